package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFlapPolicy_LongLivedChildNoWait(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	last := base
	now := base.Add(20 * time.Minute)

	wait, next := FlapPolicy(last, now, time.Second, 600*time.Second, 3600*time.Second)
	require.Zero(t, wait)
	require.Equal(t, time.Second, next)
}

func TestFlapPolicy_QuickDeathDoublesDelay(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	last := base
	now := base.Add(5 * time.Second)

	wait, next := FlapPolicy(last, now, 2*time.Second, 600*time.Second, 3600*time.Second)
	require.Equal(t, 2*time.Second, wait)
	require.Equal(t, 4*time.Second, next)
}

func TestFlapPolicy_DelayCapsAtReset(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	last := base
	now := base.Add(5 * time.Second)

	wait, next := FlapPolicy(last, now, 3000*time.Second, 600*time.Second, 3600*time.Second)
	require.Equal(t, 3000*time.Second, wait)
	require.Equal(t, 3600*time.Second, next)
}

func TestFlapPolicy_IdleLongerThanResetClearsDelay(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	last := base
	now := base.Add(2 * time.Hour)

	wait, next := FlapPolicy(last, now, 1800*time.Second, 600*time.Second, 3600*time.Second)
	require.Zero(t, wait)
	require.Equal(t, time.Second, next)
}

func TestFlapPolicy_ZeroThresholdNeverWaits(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	wait, next := FlapPolicy(base, base, time.Second, 0, 3600*time.Second)
	require.Zero(t, wait)
	require.Equal(t, time.Second, next)
}
