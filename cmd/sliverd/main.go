// Command sliverd is the per-host sliver agent: it reconciles running
// storage-gateway processes against a target set obtained from the
// Observer, by periodic poll and by authenticated push.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/syndicate/sliverd/internal/sliver/config"
	"github.com/syndicate/sliverd/internal/sliver/orchestrator"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load a .env file if one is present in the working directory, for
	// local runs and packaging that keep secrets out of the unit file.
	// Absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := newLogger(cfg.Debug)
	slog.SetDefault(logger)

	agent, err := orchestrator.New(*cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}

	if cfg.RunOnce {
		if err := agent.RunOnce(context.Background()); err != nil {
			logger.Error("run_once failed", "error", err)
			return 1
		}
		return 0
	}

	if err := agent.RunUntilSignal(cfg.Port); err != nil {
		logger.Error("agent exited with error", "error", err)
		return 1
	}
	return 0
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
