// Package main is the entry point for the parley daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/cron"
	"github.com/parleyhq/parley/internal/ctxengine"
	"github.com/parleyhq/parley/internal/gateway"
	"github.com/parleyhq/parley/internal/provider/openai"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/storage"
	"github.com/parleyhq/parley/internal/storage/sqlite"
	"github.com/parleyhq/parley/internal/summarize"
	"github.com/parleyhq/parley/internal/task"
	"github.com/parleyhq/parley/internal/telemetry"
	"github.com/parleyhq/parley/internal/token"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "parley",
		Short:         "A self-hosted daemon backing a browser chat client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("parley %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the parley daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				resolved, err := resolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			return run(cfg)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Println("Configuration OK")
			return nil
		},
	})
	return cmd
}

// run wires the daemon and blocks until a shutdown signal arrives.
func run(cfg *config.Config) error {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	defaults := cfg.Chat.ModelConfig(cfg.LLM.Model)

	toaster := gateway.NewUndoToaster()
	sessions := session.NewStore(session.Options{
		Defaults: defaults,
		Logger:   logger,
		Toaster:  toaster,
		Persist: func(state session.State) {
			if err := store.Save(context.Background(), state); err != nil {
				logger.Error("state persist failed", "error", err)
			}
		},
	})

	persisted, err := store.Load(ctx)
	switch {
	case err == nil:
		sessions.LoadState(session.Migrate(persisted, defaults))
		logger.Info("state restored", "sessions", sessions.Count())
	case errors.Is(err, storage.ErrNotFound):
		logger.Info("no persisted state, starting fresh")
	default:
		return err
	}

	llm, err := openai.New(cfg.LLM, nil)
	if err != nil {
		return err
	}

	estimator := token.NewCharEstimator(0)
	assembler := ctxengine.NewAssembler(estimator, cfg.Chat.Language)
	summarizer := summarize.NewController(sessions, llm, estimator, logger, cfg.Chat.AutoTitle())
	service := session.NewService(sessions, llm, assembler, summarizer, logger, cfg.Chat.Language)

	var taskAPI *task.Client
	var tasks *task.Controller
	if cfg.Midjourney != nil {
		taskAPI, err = task.NewClient(*cfg.Midjourney, nil)
		if err != nil {
			return err
		}
		tasks = task.NewController(sessions, taskAPI, gateway.ProxyImageURL, logger)
		tasks.Start()
		defer tasks.Stop()
	}

	scheduler := cron.NewScheduler(logger)
	if err := scheduler.RegisterJob(&cron.SnapshotJob{
		Source:       sessions,
		Store:        store,
		Logger:       logger,
		ScheduleExpr: cfg.Autosave.Schedule,
	}); err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}

	gw := gateway.New(cfg.Gateway, service, tasks, taskAPI, toaster, logger)
	if err := gw.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx := context.Background()
	if err := gw.Stop(shutdownCtx); err != nil {
		logger.Error("gateway shutdown failed", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown failed", "error", err)
	}
	if err := store.Save(shutdownCtx, sessions.State()); err != nil {
		logger.Error("final state save failed", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown failed", "error", err)
	}
	return nil
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/parley/parley.yaml → ./parley.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "parley", "parley.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "parley", "parley.yaml"))
	}

	candidates = append(candidates, "parley.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
