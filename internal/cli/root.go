// Package cli provides the command-line interface for dbcoach.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dbcoach/dbcoach-go/internal/capture"
	"github.com/dbcoach/dbcoach-go/internal/config"
	"github.com/dbcoach/dbcoach-go/internal/db"
	"github.com/dbcoach/dbcoach-go/internal/llm"
	"github.com/dbcoach/dbcoach-go/internal/metrics"
	"github.com/dbcoach/dbcoach-go/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool
	userID  string

	// Global config and db client
	cfg      config.Config
	dbClient *db.Client

	// Shared capture store and collector
	store     *capture.Store
	collector *metrics.Collector

	// Lazy-initialized LLM model
	model *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dbcoach",
	Short: "LLM-driven database schema generation",
	Long: `DBCoach generates database schema designs from natural-language prompts,
streams the generation phase by phase, and captures every session so it can
be listed, inspected, and replayed later.

Sessions are persisted to SurrealDB when available and kept in memory
otherwise, so generation always works.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		collector = metrics.NewCollector()

		// A missing database degrades to memory-only capture instead of
		// blocking the CLI.
		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		client, err := db.NewClient(ctx, dbCfg, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: database unavailable, sessions stay in memory: %v\n", err)
		} else if err := client.InitSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: schema init failed, sessions stay in memory: %v\n", err)
			_ = client.Close(ctx)
		} else {
			dbClient = client
		}

		if dbClient != nil {
			store = capture.NewStore(dbClient, collector, nil)
		} else {
			store = capture.NewStore(nil, collector, nil)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
	},
}

// getRunner builds the pipeline runner, initializing the LLM model lazily.
func getRunner(ctx context.Context) (*pipeline.Runner, error) {
	if model == nil {
		var err error
		model, err = llm.NewModel(ctx, cfg, collector)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}

	phases, err := pipeline.LoadPhases(cfg.PhasesFile)
	if err != nil {
		return nil, fmt.Errorf("load phases: %w", err)
	}

	return pipeline.NewRunner(model, store, phases, cfg.PhaseTimeout, nil), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "local", "user id owning the sessions")

	// Add subcommands
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(projectsCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
