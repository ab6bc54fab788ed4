package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portfoliobot/projectstore/pkg/stores"
)

func newSkillCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skill",
		Short: "Manage project skills",
	}

	cmd.AddCommand(newSkillListCommand())
	cmd.AddCommand(newSkillAddCommand())
	cmd.AddCommand(newSkillRemoveCommand())
	cmd.AddCommand(newSkillOfCommand())

	return cmd
}

func newSkillListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the skill vocabulary",
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			skills, err := s.store.GetSkills(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, skills)
		}),
	}
}

func newSkillAddCommand() *cobra.Command {
	var (
		userID  int64
		project string
		skill   string
	)

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Tag a project with a skill",
		Example: `  portfolio skill add --user 42 --project "Portfolio bot" --skill Python`,
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			if err := s.store.InsertSkill(cmd.Context(), userID, project, skill); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Linked %s to %s\n", skill, project)
			return nil
		}),
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	cmd.Flags().StringVar(&project, "project", "", "project name")
	cmd.Flags().StringVar(&skill, "skill", "", "skill name")
	for _, flag := range []string{"user", "project", "skill"} {
		_ = cmd.MarkFlagRequired(flag)
	}

	return cmd
}

func newSkillRemoveCommand() *cobra.Command {
	var (
		userID  int64
		project string
		skill   string
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a skill from a project",
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			ctx := cmd.Context()
			projectID, err := resolveProject(ctx, s.store, userID, project)
			if err != nil {
				return err
			}
			skillID, found, err := s.store.GetSkillID(ctx, skill)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: %q", stores.ErrSkillNotFound, skill)
			}

			n, err := s.store.DeleteSkill(ctx, projectID, skillID)
			if err != nil {
				return err
			}
			return printResult(cmd, map[string]int64{"removed": n})
		}),
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	cmd.Flags().StringVar(&project, "project", "", "project name")
	cmd.Flags().StringVar(&skill, "skill", "", "skill name")
	for _, flag := range []string{"user", "project", "skill"} {
		_ = cmd.MarkFlagRequired(flag)
	}

	return cmd
}

func newSkillOfCommand() *cobra.Command {
	var (
		userID  int64
		project string
	)

	cmd := &cobra.Command{
		Use:   "of",
		Short: "Show the skills of a project",
		Long: `Show the comma-separated skills of every project with the given name.

Without --user the lookup spans all owners.`,
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			var (
				skills string
				err    error
			)
			if cmd.Flags().Changed("user") {
				skills, err = s.store.GetUserProjectSkills(cmd.Context(), userID, project)
			} else {
				skills, err = s.store.GetProjectSkills(cmd.Context(), project)
			}
			if err != nil {
				return err
			}
			return printResult(cmd, map[string]string{"skills": skills})
		}),
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "restrict to this owner")
	cmd.Flags().StringVar(&project, "project", "", "project name")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
