// Package reaper reclaims watchdog children the Reconciler spawned but
// never calls Wait on itself, so they don't accumulate as zombies.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"syscall"
	"time"
)

// Exit records one reaped child.
type Exit struct {
	Pid      int
	ExitCode int
	Signaled bool
	Signal   syscall.Signal
}

// Reaper polls wait4(-1, ..., WNOHANG) in a loop, sleeping between polls
// when nothing has exited, reclaiming any direct child of this process
// as it exits, and reports each one on Exits.
type Reaper struct {
	Exits  chan Exit
	Logger *slog.Logger

	idleSleep time.Duration
}

// New creates a Reaper with a buffered Exits channel. Callers that don't
// care about individual exits may simply never read from it; the
// channel is sized generously enough that a burst of child deaths won't
// block the reap loop.
func New(logger *slog.Logger) *Reaper {
	return &Reaper{
		Exits:     make(chan Exit, 64),
		Logger:    logger,
		idleSleep: time.Second,
	}
}

// Run reaps children until ctx is canceled. It is meant to run in its
// own goroutine for the lifetime of the process.
func (r *Reaper) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		var status syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &status, syscall.WNOHANG, nil)

		switch {
		case errors.Is(err, syscall.ECHILD):
			// No children at all right now. Sleep and check again
			// rather than busy-looping; a reconcile cycle may spawn
			// one at any time.
			r.sleep(ctx)
			continue

		case err != nil:
			r.log().Warn("wait4 failed", "error", err)
			r.sleep(ctx)
			continue

		case pid == 0:
			// Children exist but none have exited yet.
			r.sleep(ctx)
			continue
		}

		exit := Exit{Pid: pid}
		switch {
		case status.Signaled():
			exit.Signaled = true
			exit.Signal = status.Signal()
		default:
			exit.ExitCode = status.ExitStatus()
		}

		r.log().Info("reaped child", "pid", pid, "exit_code", exit.ExitCode,
			"signaled", exit.Signaled, "signal", exit.Signal)

		select {
		case r.Exits <- exit:
		default:
			r.log().Warn("exits channel full, dropping reap event", "pid", pid)
		}
	}
}

func (r *Reaper) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(r.idleSleep):
	}
}

func (r *Reaper) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
