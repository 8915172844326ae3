package reaper

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReaper_ReapsExitedChild(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	r := New(nil)
	go r.Run(ctx)

	cmd := exec.Command(sh, "-c", "exit 5")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	select {
	case exit := <-r.Exits:
		require.Equal(t, pid, exit.Pid)
		require.False(t, exit.Signaled)
		require.Equal(t, 5, exit.ExitCode)
	case <-ctx.Done():
		t.Fatal("reaper did not reap child in time")
	}
}
