package analytics

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/projections"
	"github.com/ghmbegerez/converge/pkg/scm"
	"github.com/ghmbegerez/converge/pkg/store/memory"
)

// fakeSCM stubs scm.SCM with canned log entries so archaeology/
// coupling tests don't touch a real git repository.
type fakeSCM struct {
	entries []scm.LogEntry
}

func (f *fakeSCM) SimulateMerge(ctx context.Context, source, target, cwd string) (*scm.Simulation, error) {
	return &scm.Simulation{Mergeable: true}, nil
}

func (f *fakeSCM) ExecuteMerge(ctx context.Context, source, target, cwd string) (string, error) {
	return "deadbeef", nil
}

func (f *fakeSCM) LogEntries(ctx context.Context, maxCommits int, cwd string) ([]scm.LogEntry, error) {
	entries := f.entries
	if maxCommits > 0 && len(entries) > maxCommits {
		entries = entries[:maxCommits]
	}
	return entries, nil
}

func newTestService(entries []scm.LogEntry) (*Service, *memory.Store) {
	m := memory.New()
	log := eventlog.New(m)
	proj := projections.New(log, m, m)
	return New(&fakeSCM{entries: entries}, log, m, proj), m
}
