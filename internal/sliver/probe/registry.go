package probe

import (
	"context"
	"path/filepath"
	"sort"
)

// GatewayInstance is a discovered watchdog process: a watchdog binary
// running with a particular set of discoverability attributes.
type GatewayInstance struct {
	Pid   int32
	Attrs map[string]string
}

// Registry finds running gateway watchdog processes by binary name and
// required attributes. It is the Go analogue of the Python agent's
// psutil-based "find my own children" scan, used by the Reconciler to
// decide whether a gateway is already running before spawning a new one.
type Registry struct {
	lister Lister
}

// NewRegistry wraps a process Lister (normally a *Probe).
func NewRegistry(lister Lister) *Registry {
	return &Registry{lister: lister}
}

// Find returns the pids of every running process whose argv[0] basename
// matches watchdogBinaryName and whose attr: tokens are a superset of
// requiredAttrs. This may legitimately return more than one pid, a
// transient state the Reconciler must handle rather than assume away.
func (r *Registry) Find(ctx context.Context, watchdogBinaryName string, requiredAttrs map[string]string) ([]int32, error) {
	procs, err := r.lister.ListProcesses(ctx)
	if err != nil {
		return nil, err
	}

	var matches []int32
	for _, proc := range procs {
		if len(proc.CmdlineTokens) == 0 {
			continue
		}
		if filepath.Base(proc.CmdlineTokens[0]) != watchdogBinaryName {
			continue
		}
		attrs := ParseAttrs(proc.CmdlineTokens[1:])
		if attrsSatisfy(attrs, requiredAttrs) {
			matches = append(matches, proc.Pid)
		}
	}
	return matches, nil
}

func attrsSatisfy(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// AttrTokens renders attrs back into the "attr:key=value" argv tokens a
// watchdog is spawned with, in a stable (sorted) order so repeated
// spawns of the same logical gateway produce an identical argv.
func AttrTokens(attrs map[string]string) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tokens := make([]string, 0, len(keys))
	for _, k := range keys {
		tokens = append(tokens, attrPrefix+k+"="+attrs[k])
	}
	return tokens
}
