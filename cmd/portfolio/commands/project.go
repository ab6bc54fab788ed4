package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/portfoliobot/projectstore/pkg/stores"
)

func newProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage a user's projects",
	}

	cmd.AddCommand(newProjectAddCommand())
	cmd.AddCommand(newProjectListCommand())
	cmd.AddCommand(newProjectInfoCommand())
	cmd.AddCommand(newProjectUpdateCommand())
	cmd.AddCommand(newProjectDeleteCommand())
	cmd.AddCommand(newProjectIDCommand())

	return cmd
}

func newProjectAddCommand() *cobra.Command {
	var (
		userID int64
		name   string
		url    string
		status string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a project",
		Example: `  portfolio project add --user 42 --name "Portfolio bot" \
    --url https://github.com/me/bot --status "В процессе разработки"`,
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			ctx := cmd.Context()
			row := stores.NewProject{UserID: userID, Name: name}
			if url != "" {
				row.URL = &url
			}
			if status != "" {
				id, err := resolveStatus(ctx, s.store, status)
				if err != nil {
					return err
				}
				row.StatusID = &id
			}

			ids, err := s.store.InsertProject(ctx, row)
			if err != nil {
				return err
			}
			log.Debug().
				Int64("user_id", userID).
				Int64("project_id", ids[0]).
				Msg("Project added")

			return printResult(cmd, map[string]int64{"project_id": ids[0]})
		}),
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&url, "url", "", "project link")
	cmd.Flags().StringVar(&status, "status", "", "status name or id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newProjectListCommand() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's projects",
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			projects, err := s.store.GetProjects(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printResult(cmd, projects)
		}),
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newProjectInfoCommand() *cobra.Command {
	var (
		userID int64
		name   string
	)

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show a project with its status and skills",
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			ctx := cmd.Context()
			infos, err := s.store.GetProjectInfo(ctx, userID, name)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				return fmt.Errorf("%w: %q for user %d", stores.ErrProjectNotFound, name, userID)
			}

			skills, err := s.store.GetUserProjectSkills(ctx, userID, name)
			if err != nil {
				return err
			}

			cards := make([]projectCard, 0, len(infos))
			for _, info := range infos {
				cards = append(cards, projectCard{
					Name:        info.Name,
					Description: info.Description,
					URL:         info.URL,
					StatusName:  info.StatusName,
					Skills:      skills,
				})
			}
			return printResult(cmd, cards)
		}),
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// projectCard is the rendered form of project info.
type projectCard struct {
	Name        string  `json:"project_name" yaml:"project_name"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty"`
	URL         *string `json:"url,omitempty" yaml:"url,omitempty"`
	StatusName  *string `json:"status_name,omitempty" yaml:"status_name,omitempty"`
	Skills      string  `json:"skills" yaml:"skills"`
}

func newProjectUpdateCommand() *cobra.Command {
	var (
		userID int64
		name   string
		field  string
		value  string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change one field of a project",
		Long: `Change one field of every project with the given name owned by the user.

Updatable fields: project_name, description, url, status_id. For status_id the
value may be a status name or a numeric id.`,
		Example: `  portfolio project update --user 42 --name "Portfolio bot" \
    --field description --value "Telegram bot that shows my projects"`,
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			ctx := cmd.Context()
			f, err := stores.ParseProjectField(field)
			if err != nil {
				return err
			}

			var upd stores.ProjectUpdate
			switch f {
			case stores.FieldProjectName:
				upd = stores.SetProjectName(value)
			case stores.FieldDescription:
				upd = stores.SetDescription(value)
			case stores.FieldURL:
				upd = stores.SetURL(value)
			case stores.FieldStatusID:
				id, err := resolveStatus(ctx, s.store, value)
				if err != nil {
					return err
				}
				upd = stores.SetStatusID(id)
			}

			n, err := s.store.UpdateProjects(ctx, upd, name, userID)
			if err != nil {
				return err
			}
			return printResult(cmd, map[string]int64{"updated": n})
		}),
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&field, "field", "", "field to change")
	cmd.Flags().StringVar(&value, "value", "", "new value")
	for _, flag := range []string{"user", "name", "field", "value"} {
		_ = cmd.MarkFlagRequired(flag)
	}

	return cmd
}

func newProjectDeleteCommand() *cobra.Command {
	var (
		userID int64
		name   string
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a project and its skill links",
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			ctx := cmd.Context()
			id, err := resolveProject(ctx, s.store, userID, name)
			if err != nil {
				return err
			}

			n, err := s.store.DeleteProject(ctx, userID, id)
			if err != nil {
				return err
			}
			return printResult(cmd, map[string]int64{"deleted": n})
		}),
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newProjectIDCommand() *cobra.Command {
	var (
		userID int64
		name   string
	)

	cmd := &cobra.Command{
		Use:   "id",
		Short: "Print the id of a project",
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			id, err := resolveProject(cmd.Context(), s.store, userID, name)
			if err != nil {
				return err
			}
			return printResult(cmd, map[string]int64{"project_id": id})
		}),
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func resolveProject(ctx context.Context, store stores.Store, userID int64, name string) (int64, error) {
	id, found, err := store.GetProjectID(ctx, name, userID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: %q for user %d", stores.ErrProjectNotFound, name, userID)
	}
	return id, nil
}

// resolveStatus accepts a status name or a numeric status id.
func resolveStatus(ctx context.Context, store stores.Store, status string) (int64, error) {
	id, found, err := store.GetStatusID(ctx, status)
	if err != nil {
		return 0, err
	}
	if found {
		return id, nil
	}
	if n, err := strconv.ParseInt(status, 10, 64); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("unknown status %q", status)
}
