// Package probe discovers already-running watchdog/gateway processes on
// the host. Discovery works off argv tokens rather than a rewritten
// process title, since this codebase's dependency stack has no
// ecosystem equivalent of setproctitle.
package probe

import (
	"context"
	"fmt"
	"strings"

	gopsprocess "github.com/DataDog/gopsutil/process"
)

// ProcessInfo is the subset of a host process this package needs: its
// pid and its argv, tokenized.
type ProcessInfo struct {
	Pid           int32
	CmdlineTokens []string
}

// Lister enumerates live host processes. Implemented by Probe; an
// interface so Registry can be tested against a fake without touching
// /proc.
type Lister interface {
	ListProcesses(ctx context.Context) ([]ProcessInfo, error)
}

// Probe lists host processes via gopsutil.
type Probe struct{}

// NewProbe returns a ready-to-use Probe.
func NewProbe() *Probe { return &Probe{} }

// ListProcesses returns every process gopsutil can enumerate along with
// its tokenized command line. Processes that vanish mid-scan (a race
// inherent to any /proc walk) or whose cmdline can't be read are skipped
// rather than failing the whole scan.
func (p *Probe) ListProcesses(ctx context.Context) ([]ProcessInfo, error) {
	pids, err := gopsprocess.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe: list pids: %w", err)
	}

	out := make([]ProcessInfo, 0, len(pids))
	for _, pid := range pids {
		proc, err := gopsprocess.NewProcess(pid)
		if err != nil {
			continue
		}
		cmdline, err := proc.CmdlineSliceWithContext(ctx)
		if err != nil || len(cmdline) == 0 {
			continue
		}
		out = append(out, ProcessInfo{Pid: pid, CmdlineTokens: cmdline})
	}
	return out, nil
}

// attrPrefix marks an argv token as a discoverability attribute, e.g.
// "attr:volume_name=lab.project".
const attrPrefix = "attr:"

// ParseAttrs extracts attr:key=value tokens from a process's argv. A
// repeated key keeps its last occurrence, matching how the shell would
// present duplicated flags.
func ParseAttrs(tokens []string) map[string]string {
	attrs := make(map[string]string)
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, attrPrefix) {
			continue
		}
		kv := strings.TrimPrefix(tok, attrPrefix)
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		attrs[key] = value
	}
	return attrs
}
