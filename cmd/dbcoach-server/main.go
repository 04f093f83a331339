// Package main provides the streaming generation server for dbcoach.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dbcoach/dbcoach-go/internal/capture"
	"github.com/dbcoach/dbcoach-go/internal/config"
	"github.com/dbcoach/dbcoach-go/internal/db"
	"github.com/dbcoach/dbcoach-go/internal/llm"
	"github.com/dbcoach/dbcoach-go/internal/metrics"
	"github.com/dbcoach/dbcoach-go/internal/pipeline"
	"github.com/dbcoach/dbcoach-go/internal/server"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := cleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}()
	slog.SetDefault(logger)

	slog.Info("starting dbcoach-server", "port", cfg.ServerPort, "provider", cfg.LLMProvider)

	collector := metrics.NewCollector()

	// The database is best-effort: without it the server still generates
	// and captures sessions in memory.
	var dbClient *db.Client
	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	client, err := db.NewClient(connectCtx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		slog.Warn("database unavailable, sessions stay in memory", "error", err)
	} else {
		if err := client.InitSchema(connectCtx); err != nil {
			slog.Error("failed to initialize schema", "error", err)
			cancel()
			os.Exit(1)
		}
		if *wipeDB || os.Getenv("DBCOACH_WIPE_DB") == "true" {
			if err := client.WipeData(connectCtx); err != nil {
				slog.Error("failed to wipe database", "error", err)
				cancel()
				os.Exit(1)
			}
			slog.Info("database wiped")
		}
		dbClient = client
	}
	cancel()
	if dbClient != nil {
		defer func() {
			if err := dbClient.Close(context.Background()); err != nil {
				slog.Error("failed to close database", "error", err)
			}
		}()
	}

	model, err := llm.NewModel(context.Background(), cfg, collector)
	if err != nil {
		slog.Error("failed to create LLM model", "error", err)
		os.Exit(1)
	}

	phases, err := pipeline.LoadPhases(cfg.PhasesFile)
	if err != nil {
		slog.Error("failed to load phase catalog", "error", err)
		os.Exit(1)
	}

	var store *capture.Store
	if dbClient != nil {
		store = capture.NewStore(dbClient, collector, logger)
	} else {
		store = capture.NewStore(nil, collector, logger)
	}
	runner := pipeline.NewRunner(model, store, phases, cfg.PhaseTimeout, logger)

	srv := server.New(":"+cfg.ServerPort, store, runner, dbClient, collector, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("dbcoach-server stopped")
}
