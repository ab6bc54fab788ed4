package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Inspect the project status vocabulary",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List statuses in lifecycle order",
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			statuses, err := s.store.ListStatuses(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, statuses)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "id <name>",
		Short: "Print the id of a status",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			id, found, err := s.store.GetStatusID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("unknown status %q", args[0])
			}
			return printResult(cmd, map[string]int64{"status_id": id})
		}),
	})

	return cmd
}
