package analytics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/scm"
)

// filePair is an unordered pair of co-changed files, used as a map key
// the way analytics.py keys its Counter on a sorted tuple.
type filePair struct {
	A, B string
}

// computeCoupling counts, across a set of commits, how often each pair
// of files changed together (analytics.py's _compute_coupling).
func computeCoupling(entries []scm.LogEntry) map[filePair]int {
	coupling := make(map[filePair]int)
	for _, e := range entries {
		files := uniqueSorted(e.Files)
		for i, f1 := range files {
			for _, f2 := range files[i+1:] {
				coupling[filePair{f1, f2}]++
			}
		}
	}
	return coupling
}

func uniqueSorted(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

type couplingCount struct {
	A, B  string
	Count int
}

func topCoupling(coupling map[filePair]int, top int) []couplingCount {
	counts := make([]couplingCount, 0, len(coupling))
	for pair, c := range coupling {
		counts = append(counts, couplingCount{pair.A, pair.B, c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		if counts[i].A != counts[j].A {
			return counts[i].A < counts[j].A
		}
		return counts[i].B < counts[j].B
	})
	if top > 0 && len(counts) > top {
		counts = counts[:top]
	}
	return counts
}

type fileCount struct {
	File  string
	Count int
}

func topFileCounts(counts map[string]int, top int) []fileCount {
	out := make([]fileCount, 0, len(counts))
	for f, c := range counts {
		out = append(out, fileCount{f, c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].File < out[j].File
	})
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out
}

// ArchaeologyReport analyzes git history for hotspots, file coupling,
// author contribution, and bus factor (analytics.py's
// archaeology_report). It appends an archaeology.analyzed event so the
// pass itself becomes queryable history.
func (s *Service) ArchaeologyReport(ctx context.Context, maxCommits, top int, cwd string, tenantID *string) (map[string]any, error) {
	if maxCommits <= 0 {
		maxCommits = DefaultMaxCommits
	}
	if top <= 0 {
		top = ArchaeologyTopN
	}

	entries, err := s.SCM.LogEntries(ctx, maxCommits, cwd)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return map[string]any{"error": "No git history available", "commits_analyzed": 0}, nil
	}

	fileChanges := make(map[string]int)
	authorCommits := make(map[string]int)
	authorFiles := make(map[string]map[string]bool)
	for _, e := range entries {
		authorCommits[e.Author]++
		if authorFiles[e.Author] == nil {
			authorFiles[e.Author] = make(map[string]bool)
		}
		for _, f := range e.Files {
			fileChanges[f]++
			authorFiles[e.Author][f] = true
		}
	}

	hotspots := make([]map[string]any, 0, top)
	for _, fc := range topFileCounts(fileChanges, top) {
		hotspots = append(hotspots, map[string]any{"file": fc.File, "changes": fc.Count})
	}

	coupling := computeCoupling(entries)
	couplingOut := make([]map[string]any, 0, top)
	for _, cc := range topCoupling(coupling, top) {
		couplingOut = append(couplingOut, map[string]any{"file_a": cc.A, "file_b": cc.B, "co_changes": cc.Count})
	}

	authorsOut := make([]map[string]any, 0, len(authorCommits))
	for _, ac := range topFileCounts(authorCommits, top) {
		authorsOut = append(authorsOut, map[string]any{
			"author":        ac.File,
			"commits":       ac.Count,
			"files_touched": len(authorFiles[ac.File]),
		})
	}

	totalCommits := len(entries)
	significant := 0
	for _, c := range authorCommits {
		if float64(c) >= float64(totalCommits)*busFactorThreshold {
			significant++
		}
	}
	busFactor := significant
	if busFactor < 1 {
		busFactor = 1
	}

	report := map[string]any{
		"commits_analyzed": totalCommits,
		"hotspots":         hotspots,
		"coupling":         couplingOut,
		"authors":          authorsOut,
		"bus_factor":       busFactor,
		"timestamp":        models.NowISO(),
	}

	ev := models.NewEvent(models.EventArchaeologyAnalyzed, map[string]any{
		"commits_analyzed": totalCommits,
		"bus_factor":       busFactor,
	})
	ev.TenantID = tenantID
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return report, nil
}

// snapshot is the on-disk shape saved by SaveArchaeologySnapshot and
// read back by LoadCouplingData/LoadHotspotSet.
type snapshot struct {
	Coupling []map[string]any `json:"coupling"`
	Hotspots []map[string]any `json:"hotspots"`
}

func loadSnapshot(path string) (*snapshot, bool) {
	if path == "" {
		path = DefaultSnapshotPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

// SaveArchaeologySnapshot persists an archaeology report to JSON so
// LoadCouplingData/LoadHotspotSet can reuse it without rescanning git
// history on every risk evaluation (analytics.py's
// save_archaeology_snapshot).
func SaveArchaeologySnapshot(report map[string]any, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = DefaultSnapshotPath
	}
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", err
	}
	return outputPath, nil
}

// LoadCouplingData satisfies pkg/engine.CouplingProvider: it tries the
// cached archaeology snapshot first, falling back to a quick coupling
// pass over recent commits when no snapshot exists (analytics.py's
// load_coupling_data).
func (s *Service) LoadCouplingData(cwd string) ([]map[string]any, error) {
	if snap, ok := loadSnapshot(DefaultSnapshotPath); ok {
		if snap.Coupling != nil {
			return snap.Coupling, nil
		}
		return []map[string]any{}, nil
	}

	entries, err := s.SCM.LogEntries(context.Background(), quickCouplingMaxCommits, cwd)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []map[string]any{}, nil
	}

	coupling := computeCoupling(entries)
	out := make([]map[string]any, 0, couplingTopN)
	for _, cc := range topCoupling(coupling, couplingTopN) {
		if cc.Count < couplingMinCoChanges {
			continue
		}
		out = append(out, map[string]any{"file_a": cc.A, "file_b": cc.B, "co_changes": cc.Count})
	}
	return out, nil
}

// LoadHotspotSet returns high-churn files for risk enrichment
// (analytics.py's load_hotspot_set).
func (s *Service) LoadHotspotSet(cwd string) (map[string]bool, error) {
	if snap, ok := loadSnapshot(DefaultSnapshotPath); ok {
		out := make(map[string]bool)
		for _, h := range snap.Hotspots {
			changes, _ := h["changes"].(float64)
			file, _ := h["file"].(string)
			if file != "" && changes >= float64(hotspotChangeThreshold) {
				out[file] = true
			}
		}
		return out, nil
	}

	entries, err := s.SCM.LogEntries(context.Background(), quickCouplingMaxCommits, cwd)
	if err != nil {
		return nil, err
	}
	fileChanges := make(map[string]int)
	for _, e := range entries {
		for _, f := range e.Files {
			fileChanges[f]++
		}
	}
	out := make(map[string]bool)
	for f, c := range fileChanges {
		if c >= hotspotChangeThreshold {
			out[f] = true
		}
	}
	return out, nil
}
