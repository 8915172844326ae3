package reconcile

import (
	"fmt"

	"github.com/google/uuid"
)

// Status is the aggregate result of one reconcile call: per-volume
// failures are isolated, so a single call can report both successes and
// failures without aborting.
type Status struct {
	// RunID correlates every log line a single Reconcile call emits,
	// so one run's lines can be told apart from those of the runs that
	// PollLoop and PushEndpoint trigger before and after it.
	RunID     string
	Succeeded int
	Failed    int
	// FailedVolumes maps a volume name to the error that volume hit.
	FailedVolumes map[string]error
	Stopped       int
}

// OK reports whether every volume reconciled cleanly.
func (s Status) OK() bool {
	return s.Failed == 0
}

func (s Status) String() string {
	return fmt.Sprintf("reconcile[%s]: %d ok, %d failed, %d stopped", s.RunID, s.Succeeded, s.Failed, s.Stopped)
}

func newStatus() Status {
	return Status{RunID: uuid.NewString(), FailedVolumes: make(map[string]error)}
}
