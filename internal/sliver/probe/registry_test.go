package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	procs []ProcessInfo
}

func (f fakeLister) ListProcesses(ctx context.Context) ([]ProcessInfo, error) {
	return f.procs, nil
}

func TestParseAttrs(t *testing.T) {
	attrs := ParseAttrs([]string{
		"attr:volume_name=lab.project",
		"attr:gateway_kind=UG",
		"attr:volume_name=lab.project.v2",
		"not-an-attr",
	})
	require.Equal(t, map[string]string{
		"volume_name":  "lab.project.v2",
		"gateway_kind": "UG",
	}, attrs)
}

func TestRegistry_Find(t *testing.T) {
	lister := fakeLister{procs: []ProcessInfo{
		{Pid: 100, CmdlineTokens: []string{"/usr/bin/syndicate-ug-watchdog", "attr:volume_name=lab.project"}},
		{Pid: 101, CmdlineTokens: []string{"/usr/bin/syndicate-rg-watchdog", "attr:volume_name=lab.project"}},
		{Pid: 102, CmdlineTokens: []string{"/usr/bin/syndicate-ug-watchdog", "attr:volume_name=other"}},
		{Pid: 103, CmdlineTokens: []string{"some-unrelated-process"}},
	}}

	reg := NewRegistry(lister)
	pids, err := reg.Find(context.Background(), "syndicate-ug-watchdog", map[string]string{"volume_name": "lab.project"})
	require.NoError(t, err)
	require.Equal(t, []int32{100}, pids)
}

func TestRegistry_Find_MultipleMatches(t *testing.T) {
	lister := fakeLister{procs: []ProcessInfo{
		{Pid: 1, CmdlineTokens: []string{"syndicate-ug-watchdog", "attr:volume_name=lab.project"}},
		{Pid: 2, CmdlineTokens: []string{"syndicate-ug-watchdog", "attr:volume_name=lab.project"}},
	}}

	reg := NewRegistry(lister)
	pids, err := reg.Find(context.Background(), "syndicate-ug-watchdog", map[string]string{"volume_name": "lab.project"})
	require.NoError(t, err)
	require.ElementsMatch(t, []int32{1, 2}, pids)
}

func TestAttrTokens_StableOrder(t *testing.T) {
	tokens := AttrTokens(map[string]string{
		"volume_name":  "lab.project",
		"gateway_kind": "UG",
	})
	require.Equal(t, []string{"attr:gateway_kind=UG", "attr:volume_name=lab.project"}, tokens)
}
