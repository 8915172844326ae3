package reconcile

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/syndicate/sliverd/internal/sliver/probe"
	"github.com/syndicate/sliverd/internal/sliver/shellwords"
)

// Spawner starts a watchdog process for a gateway. It exists as an
// interface so the Reconciler can be tested without actually forking
// processes.
type Spawner interface {
	Spawn(watchdogBinary string, attrs map[string]string, gatewayArgv []string) (pid int, err error)
}

// ProcessSpawner spawns real OS processes: it execs watchdogBinary with
// only non-sensitive attr: tokens on its argv, then writes the sensitive
// gateway command line to its stdin. It does not wait on the child,
// that's the Reaper's job.
type ProcessSpawner struct{}

func (ProcessSpawner) Spawn(watchdogBinary string, attrs map[string]string, gatewayArgv []string) (int, error) {
	cmd := exec.Command(watchdogBinary, probe.AttrTokens(attrs)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("%w: stdin pipe: %v", ErrSpawnFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	commandLine := shellwords.Join(gatewayArgv) + "\n"
	go func() {
		defer stdin.Close()
		stdin.Write([]byte(commandLine))
	}()

	return cmd.Process.Pid, nil
}
