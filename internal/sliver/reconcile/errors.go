package reconcile

import "errors"

var (
	// ErrBusy is returned when a reconcile is already running; the
	// caller's choice to retry.
	ErrBusy = errors.New("reconcile: already running")

	// ErrNoSecret means the slice secret is not yet cached; transient.
	ErrNoSecret = errors.New("reconcile: slice secret not available")

	// ErrTransient means GatewayRegistry found more than one matching
	// watchdog for a (kind, volume) pair; the volume is skipped this
	// cycle rather than guessed at.
	ErrTransient = errors.New("reconcile: multiple matching watchdogs found")

	// ErrSpawnFailed means a watchdog could not be launched, even after
	// the one ensure-exists retry.
	ErrSpawnFailed = errors.New("reconcile: failed to spawn watchdog")

	// ErrStopFailed means SIGTERM to a watchdog failed for a reason
	// other than the process already being gone.
	ErrStopFailed = errors.New("reconcile: failed to stop watchdog")
)
