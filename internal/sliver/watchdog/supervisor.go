package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/syndicate/sliverd/internal/sliver/metrics"
)

// Supervisor runs a single gateway child process, restarting it
// according to a TerminationPredicate and FlapPolicy until its context
// is canceled.
type Supervisor struct {
	// Argv is the gateway command to run: Argv[0] is the executable,
	// the rest are arguments. It was parsed from the sensitive command
	// line handed to this watchdog over stdin by the process that
	// spawned it, never from this process's own argv.
	Argv []string

	// Predicate decides whether a death should trigger a respawn.
	// Defaults to DefaultTerminationPredicate (always respawn).
	Predicate TerminationPredicate

	// FlapThreshold and FlapReset tune FlapPolicy. Zero values fall
	// back to defaults of 600s and 3600s.
	FlapThreshold time.Duration
	FlapReset     time.Duration

	// ShutdownGrace is how long to wait after SIGTERM before SIGKILL.
	// Zero falls back to 3 seconds.
	ShutdownGrace time.Duration

	// PIDCallback, if set, is invoked with the pid of each spawned
	// child, letting a caller record it for discovery (attr tokens
	// written by whoever launched this watchdog cover that at the
	// process level; this hook exists for tests and in-process
	// bookkeeping).
	PIDCallback func(pid int)

	Logger *slog.Logger
}

func (s *Supervisor) predicate() TerminationPredicate {
	if s.Predicate != nil {
		return s.Predicate
	}
	return DefaultTerminationPredicate
}

func (s *Supervisor) flapThreshold() time.Duration {
	if s.FlapThreshold > 0 {
		return s.FlapThreshold
	}
	return 600 * time.Second
}

func (s *Supervisor) flapReset() time.Duration {
	if s.FlapReset > 0 {
		return s.FlapReset
	}
	return 3600 * time.Second
}

func (s *Supervisor) shutdownGrace() time.Duration {
	if s.ShutdownGrace > 0 {
		return s.ShutdownGrace
	}
	return 3 * time.Second
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run spawns the gateway, then supervises it until either the child
// exits in a way the predicate says not to respawn, or ctx is canceled
// (in which case the child is stopped via SIGTERM/SIGKILL and Run
// returns ctx.Err()).
func (s *Supervisor) Run(ctx context.Context) (ExitResult, error) {
	if len(s.Argv) == 0 {
		return ExitResult{}, fmt.Errorf("watchdog: empty argv")
	}

	cmd, waitErr, err := s.spawn()
	if err != nil {
		return ExitResult{}, err
	}
	lastSpawn := time.Now()
	delay := time.Second

	for {
		select {
		case <-ctx.Done():
			result := s.stop(cmd, waitErr)
			return result, ctx.Err()

		case err := <-waitErr:
			result := ClassifyWait(err)
			s.logExit(result)

			if !s.predicate()(result) {
				return result, nil
			}

			wait, next := FlapPolicy(lastSpawn, time.Now(), delay, s.flapThreshold(), s.flapReset())
			delay = next
			if wait > 0 {
				s.logger().Warn("gateway respawning too quickly, backing off",
					"wait", wait)
				time.Sleep(wait)
			}

			cmd, waitErr, err = s.spawn()
			if err != nil {
				return ExitResult{}, err
			}
			lastSpawn = time.Now()
			metrics.WatchdogRespawns.Inc()
		}
	}
}

func (s *Supervisor) spawn() (*exec.Cmd, chan error, error) {
	cmd := exec.Command(s.Argv[0], s.Argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("watchdog: spawn gateway: %w", err)
	}
	s.logger().Info("spawned gateway child", "pid", cmd.Process.Pid)
	if s.PIDCallback != nil {
		s.PIDCallback(cmd.Process.Pid)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	return cmd, done, nil
}

// stop sends SIGTERM, waits up to shutdownGrace for the child to exit
// on the already-running Wait goroutine, and escalates to SIGKILL if it
// doesn't.
func (s *Supervisor) stop(cmd *exec.Cmd, waitErr chan error) ExitResult {
	s.logger().Info("stopping gateway child", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.logger().Warn("SIGTERM failed", "pid", cmd.Process.Pid, "error", err)
	}

	select {
	case err := <-waitErr:
		return ClassifyWait(err)
	case <-time.After(s.shutdownGrace()):
		s.logger().Warn("gateway did not exit in time, sending SIGKILL", "pid", cmd.Process.Pid)
		if err := cmd.Process.Kill(); err != nil {
			s.logger().Warn("SIGKILL failed", "pid", cmd.Process.Pid, "error", err)
		}
		return ClassifyWait(<-waitErr)
	}
}

func (s *Supervisor) logExit(r ExitResult) {
	switch {
	case r.Signaled:
		s.logger().Info("gateway child exited by signal", "signal", r.Signal)
	default:
		s.logger().Info("gateway child exited", "code", r.ExitCode)
	}
}
