// Package orchestrator wires PollLoop, PushEndpoint, and Reaper onto a
// single process and coordinates their shutdown.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syndicate/sliverd/internal/sliver/config"
	"github.com/syndicate/sliverd/internal/sliver/credential"
	"github.com/syndicate/sliverd/internal/sliver/observerclient"
	"github.com/syndicate/sliverd/internal/sliver/poll"
	"github.com/syndicate/sliverd/internal/sliver/probe"
	"github.com/syndicate/sliverd/internal/sliver/push"
	"github.com/syndicate/sliverd/internal/sliver/reaper"
	"github.com/syndicate/sliverd/internal/sliver/reconcile"
	"github.com/syndicate/sliverd/internal/sliver/secret"
)

// Agent bundles every long-lived component the Orchestrator runs.
type Agent struct {
	Config     *config.Store
	Secrets    *secret.Store
	Pipeline   *credential.Pipeline
	Reconciler *reconcile.Reconciler
	PollLoop   *poll.Loop
	PushServer *push.Server
	Reaper     *reaper.Reaper
	Logger     *slog.Logger
}

// New builds an Agent from validated configuration. It is the one place
// that wires concrete implementations (ProcessSpawner, observerclient)
// into the abstractions the rest of the packages depend on.
func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pub, err := credential.LoadPublicKey(cfg.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	pipeline := credential.NewPipeline(pub)

	seed, _ := cfg.SliceSecretBytes()
	secrets := secret.NewStore(seed)

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolve hostname: %w", err)
	}

	probeImpl := probe.NewProbe()
	registry := probe.NewRegistry(probeImpl)
	observer := observerclient.New(cfg.ObserverURL, cfg.SliceName, nil)

	reconciler := reconcile.New(reconcile.Options{
		LocalHostname:    hostname,
		RGPublic:         cfg.RGPublic,
		UGOnly:           cfg.UGOnly,
		RGOnly:           cfg.RGOnly,
		MountpointRoot:   cfg.MountpointDir,
		UGWatchdogBinary: cfg.UGWatchdogBinary,
		RGWatchdogBinary: cfg.RGWatchdogBinary,
		UGGatewayBinary:  cfg.UGGatewayBinary,
		RGGatewayBinary:  cfg.RGGatewayBinary,
		Registry:         registry,
		Lister:           probeImpl,
		Spawner:          reconcile.ProcessSpawner{},
		Ensurer:          observer,
		Logger:           logger,
	})

	loop := &poll.Loop{
		Observer:   observer,
		Pipeline:   pipeline,
		Secrets:    secrets,
		Reconciler: reconciler,
		Interval:   time.Duration(cfg.PollInterval) * time.Second,
		HexSecret:  cfg.HexSecret,
		Logger:     logger,
	}

	pushServer := push.NewServer(pipeline, secrets, reconciler, logger)

	return &Agent{
		Config:     config.NewStore(cfg),
		Secrets:    secrets,
		Pipeline:   pipeline,
		Reconciler: reconciler,
		PollLoop:   loop,
		PushServer: pushServer,
		Reaper:     reaper.New(logger),
		Logger:     logger,
	}, nil
}

// Run starts PollLoop, the Reaper, and the PushEndpoint HTTP server, and
// blocks until ctx is canceled (normally by RunUntilSignal) or the HTTP
// server fails to start.
func (a *Agent) Run(ctx context.Context, port int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.Reaper.Run(ctx)
	go a.PollLoop.Run(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: a.PushServer,
	}

	errs := make(chan error, 1)
	go func() {
		a.Logger.Info("push endpoint listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
			return
		}
		errs <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
		<-errs
		return ctx.Err()
	case err := <-errs:
		return err
	}
}

// RunUntilSignal runs the Agent until SIGTERM/SIGINT, then shuts down
// gracefully.
func (a *Agent) RunUntilSignal(port int) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	err := a.Run(ctx, port)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunOnce performs exactly one poll+reconcile cycle and returns, without
// starting PushEndpoint, stopping the Reaper cleanly before it returns
// rather than leaving it running past the cycle it served.
func (a *Agent) RunOnce(ctx context.Context) error {
	reaperCtx, cancelReaper := context.WithCancel(ctx)
	defer cancelReaper()

	go a.Reaper.Run(reaperCtx)
	a.PollLoop.RunOnce(ctx)
	return nil
}
