package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newBackupCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the database",
		Long: `Write a consistent copy of the database with VACUUM INTO.

The copy can be taken while the bot is running. An existing file at the
destination is never overwritten.`,
		Example: `  portfolio backup --out backups/portfolio-2024-05-01.db`,
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			log.Info().
				Str("db", s.store.Path()).
				Str("out", outFile).
				Msg("Creating backup")

			if err := s.store.Backup(cmd.Context(), outFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup written: %s\n", outFile)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "backup output file")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func newRestoreCommand() *cobra.Command {
	var (
		backupFile string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the database from a backup",
		Long: `Replace the database file with a backup after checking its integrity.

WARNING: the current contents of the database are replaced. Stop the bot
before restoring.`,
		Example: `  portfolio restore --from backups/portfolio-2024-05-01.db --yes`,
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to replace %s without --yes", s.store.Path())
			}
			log.Info().
				Str("db", s.store.Path()).
				Str("from", backupFile).
				Msg("Restoring from backup")

			if err := s.store.Restore(cmd.Context(), backupFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database restored from %s\n", backupFile)
			return nil
		}),
	}

	cmd.Flags().StringVar(&backupFile, "from", "", "backup file to restore from")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm replacing the current database")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}
