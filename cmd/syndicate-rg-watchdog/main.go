// Command syndicate-rg-watchdog supervises one Replica Gateway process.
// Its own argv carries only non-sensitive attr: tokens for discovery by
// GatewayRegistry; the sensitive gateway command line is
// read from stdin.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/syndicate/sliverd/internal/sliver/watchdog"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	argv, err := watchdog.ReadCommandLine(os.Stdin)
	if err != nil {
		logger.Error("syndicate-rg-watchdog: could not read gateway command line", "error", err)
		return 1
	}

	sup := &watchdog.Supervisor{
		Argv:   argv,
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	result, err := sup.Run(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Error("syndicate-rg-watchdog: supervisor error", "error", err)
		return 1
	}

	if result.Signaled {
		return 128 + int(result.Signal)
	}
	return result.ExitCode
}
