package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/portfoliobot/projectstore/pkg/config"
	"github.com/portfoliobot/projectstore/pkg/stores"
)

func newInitCommand() *cobra.Command {
	var writeConfig string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create and seed the database",
		Long: `Create the projects, skills, status and project_skills tables and seed the
skill and status vocabularies.

Running init against an already initialized database only re-runs the seed,
which never duplicates rows.`,
		Example: `  # Initialize the default database
  portfolio init

  # Initialize a specific file and write a starter config next to it
  portfolio init --db ./data/portfolio.db --write-config ./portfolio.yaml`,
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			ctx := cmd.Context()
			log.Info().
				Str("db", s.store.Path()).
				Msg("Initializing database")

			err := s.store.CreateTables(ctx)
			switch {
			case errors.Is(err, stores.ErrSchemaExists):
				fmt.Fprintf(cmd.OutOrStdout(), "Schema already present: %s\n", s.store.Path())
			case err != nil:
				return fmt.Errorf("failed to create tables: %w", err)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Created tables: %s\n", s.store.Path())
			}

			if err := s.store.DefaultInsert(ctx); err != nil {
				return fmt.Errorf("failed to seed vocabularies: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d skills and %d statuses\n",
				len(stores.DefaultSkills), len(stores.DefaultStatuses))

			if writeConfig != "" {
				err := config.WriteDefault(writeConfig)
				switch {
				case errors.Is(err, os.ErrExist):
					fmt.Fprintf(cmd.OutOrStdout(), "Config file already exists: %s\n", writeConfig)
				case err != nil:
					return err
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", writeConfig)
				}
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&writeConfig, "write-config", "", "write a default config file to this path")

	return cmd
}

func newResetCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop all data and reseed the database",
		Long: `Drop every table, recreate the schema and seed the vocabularies again.

WARNING: all projects and skill links are deleted.`,
		Example: `  portfolio reset --yes`,
		RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset %s without --yes", s.store.Path())
			}
			log.Warn().
				Str("db", s.store.Path()).
				Msg("Resetting database")

			if err := s.store.ResetDB(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reset database: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database reset: %s\n", s.store.Path())
			return nil
		}),
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm destroying all data")

	return cmd
}
