// Package scm defines the version-control port the engine depends on
// (spec.md §4.2) and a git-backed implementation. The engine never
// shells out to git directly — it only sees this interface, so a
// future backend (e.g. a hosted-API-only adapter) can replace GitSCM
// without touching the validation pipeline.
package scm

import "context"

// Simulation is the result of a dry-run merge that must not mutate the
// working tree (spec.md §4.2).
type Simulation struct {
	Mergeable    bool
	Conflicts    []string
	FilesChanged []string
}

// LogEntry is one commit as reported by LogEntries, used by the
// analytics archaeology pass (SPEC_FULL.md §4.12).
type LogEntry struct {
	SHA       string
	Author    string
	Timestamp string
	Files     []string
}

// SCM is the engine's sole view of version control (spec.md §4.2).
// Implementations must guarantee: SimulateMerge is pure (the working
// tree is unchanged on return, success or failure); ExecuteMerge is
// atomic (it either advances target or fails cleanly, never leaving a
// partial merge).
type SCM interface {
	SimulateMerge(ctx context.Context, source, target, cwd string) (*Simulation, error)
	ExecuteMerge(ctx context.Context, source, target, cwd string) (mergeSHA string, err error)
	LogEntries(ctx context.Context, maxCommits int, cwd string) ([]LogEntry, error)
}
