package scm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitSCM drives a local git checkout via the git CLI. No Go git library
// appears anywhere in the example pack (see DESIGN.md) — this shells
// out the same way original_source/src/converge/engine.py's check
// runner shells out to `make`, via os/exec rather than a wrapped
// library.
type GitSCM struct {
	// GitBin overrides the git binary name/path. Empty means "git" on PATH.
	GitBin string
}

// NewGitSCM returns a GitSCM using the git binary on PATH.
func NewGitSCM() *GitSCM { return &GitSCM{} }

func (g *GitSCM) bin() string {
	if g.GitBin != "" {
		return g.GitBin
	}
	return "git"
}

func (g *GitSCM) run(ctx context.Context, dir string, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, g.bin(), args...)
	cmd.Dir = dir
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return out.String(), errBuf.String(), err
}

// SimulateMerge performs the merge in a disposable worktree so cwd is
// never touched, per spec.md §4.2's purity guarantee.
func (g *GitSCM) SimulateMerge(ctx context.Context, source, target, cwd string) (*Simulation, error) {
	worktree, err := os.MkdirTemp("", "converge-sim-*")
	if err != nil {
		return nil, fmt.Errorf("scm: create simulation worktree dir: %w", err)
	}
	defer os.RemoveAll(worktree)

	if _, stderr, err := g.run(ctx, cwd, "worktree", "add", "--detach", "--force", worktree, target); err != nil {
		return nil, fmt.Errorf("scm: create worktree for %q: %w: %s", target, err, stderr)
	}
	defer g.run(context.Background(), cwd, "worktree", "remove", "--force", worktree)

	_, mergeErr, mergeRunErr := g.run(ctx, worktree, "merge", "--no-commit", "--no-ff", source)

	sim := &Simulation{Mergeable: mergeRunErr == nil}

	filesOut, _, _ := g.run(ctx, worktree, "diff", "--name-only", "--cached")
	sim.FilesChanged = splitNonEmptyLines(filesOut)

	if mergeRunErr != nil {
		conflictsOut, _, _ := g.run(ctx, worktree, "diff", "--name-only", "--diff-filter=U")
		sim.Conflicts = splitNonEmptyLines(conflictsOut)
		if len(sim.Conflicts) == 0 {
			// merge failed for a reason other than a textual conflict
			// (e.g. unrelated histories); surface it as one conflict entry.
			sim.Conflicts = []string{strings.TrimSpace(mergeErr)}
		}
	}

	// Always abort: SimulateMerge must never leave the worktree (or,
	// transitively, the shared object store) in a half-merged state.
	g.run(ctx, worktree, "merge", "--abort")

	return sim, nil
}

// ExecuteMerge merges source into target at cwd and returns the
// resulting commit SHA. It either advances target or fails with no
// partial state: on conflict the merge is aborted before returning.
func (g *GitSCM) ExecuteMerge(ctx context.Context, source, target, cwd string) (string, error) {
	if _, stderr, err := g.run(ctx, cwd, "checkout", target); err != nil {
		return "", fmt.Errorf("scm: checkout target %q: %w: %s", target, err, stderr)
	}

	msg := fmt.Sprintf("Merge %s into %s via converge", source, target)
	if _, stderr, err := g.run(ctx, cwd, "merge", "--no-ff", "-m", msg, source); err != nil {
		g.run(ctx, cwd, "merge", "--abort")
		return "", fmt.Errorf("scm: merge %q into %q: %w: %s", source, target, err, stderr)
	}

	sha, stderr, err := g.run(ctx, cwd, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("scm: resolve merge commit: %w: %s", err, stderr)
	}
	return strings.TrimSpace(sha), nil
}

// LogEntries returns up to maxCommits commits from HEAD, newest first,
// for the analytics archaeology pass (SPEC_FULL.md §4.12).
func (g *GitSCM) LogEntries(ctx context.Context, maxCommits int, cwd string) ([]LogEntry, error) {
	if maxCommits <= 0 {
		maxCommits = 200
	}
	const sep = "\x1f"
	format := strings.Join([]string{"%H", "%an", "%aI"}, sep)
	out, stderr, err := g.run(ctx, cwd,
		"log", fmt.Sprintf("-n%d", maxCommits), "--name-only", "--pretty=format:__COMMIT__"+sep+format)
	if err != nil {
		return nil, fmt.Errorf("scm: git log: %w: %s", err, stderr)
	}

	var entries []LogEntry
	var cur *LogEntry
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "__COMMIT__"+sep) {
			if cur != nil {
				entries = append(entries, *cur)
			}
			fields := strings.Split(strings.TrimPrefix(line, "__COMMIT__"+sep), sep)
			cur = &LogEntry{}
			if len(fields) >= 1 {
				cur.SHA = fields[0]
			}
			if len(fields) >= 2 {
				cur.Author = fields[1]
			}
			if len(fields) >= 3 {
				cur.Timestamp = fields[2]
			}
			continue
		}
		if cur != nil && strings.TrimSpace(line) != "" {
			cur.Files = append(cur.Files, filepath.ToSlash(line))
		}
	}
	if cur != nil {
		entries = append(entries, *cur)
	}
	return entries, nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// CommitSHAShort returns the first 12 hex characters of sha, matching
// the intent-id convention for merge-group intents (spec.md §3,
// "<owner>/<repo>:mg-<first-12-of-sha>").
func CommitSHAShort(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
