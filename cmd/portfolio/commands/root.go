package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/portfoliobot/projectstore/pkg/config"
	"github.com/portfoliobot/projectstore/pkg/stores"
	"github.com/portfoliobot/projectstore/pkg/telemetry"
)

var (
	// Global flags
	configPath  string
	dbPath      string
	verbose     bool
	jsonOutput  bool
	metricsDump bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Portfolio bot project store",
		Long: `portfolio manages the SQLite database behind the portfolio bot.

Users keep a list of projects, each with an optional description, link and
lifecycle status, and tag them with skills from a fixed vocabulary. This tool
creates and seeds the schema and reads or edits the same data the bot uses.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&metricsDump, "metrics-dump", false, "print collected metrics after the command")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newResetCommand())
	rootCmd.AddCommand(newBackupCommand())
	rootCmd.AddCommand(newRestoreCommand())
	rootCmd.AddCommand(newProjectCommand())
	rootCmd.AddCommand(newSkillCommand())
	rootCmd.AddCommand(newStatusCommand())

	return rootCmd
}

// session is the per-invocation wiring of config, telemetry and store.
type session struct {
	cfg   *config.Config
	tel   *telemetry.Telemetry
	store *stores.SQLiteStore
}

func openSession() (*session, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigPath: configPath})
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(cfg.TelemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
		Telemetry:   tel,
	})
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	return &session{cfg: cfg, tel: tel, store: store}, nil
}

func (s *session) close(cmd *cobra.Command) error {
	if metricsDump {
		if err := s.tel.Metrics.WriteText(cmd.OutOrStdout()); err != nil {
			return err
		}
	}
	return s.tel.Shutdown(context.Background())
}

// withSession adapts a store-backed handler to cobra's RunE.
func withSession(fn func(cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		ctx := s.tel.WithContext(cmd.Context())
		cmd.SetContext(ctx)

		runErr := fn(cmd, s, args)
		if err := s.close(cmd); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	}
}

// printResult renders v as JSON with --json and as YAML otherwise.
func printResult(cmd *cobra.Command, v any) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
