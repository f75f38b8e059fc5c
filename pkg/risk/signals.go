package risk

import (
	"math"

	"github.com/ghmbegerez/converge/pkg/models"
)

// riskLevelBonus mirrors original_source/src/converge/risk.py's
// _RISK_BONUS table (spec.md §4.3 signal 2).
var riskLevelBonus = map[models.RiskLevel]float64{
	models.RiskLow:      0,
	models.RiskMedium:   5,
	models.RiskHigh:     15,
	models.RiskCritical: 30,
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func clamp100(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

// ComputeEntropicLoad is signal 1: disorder introduced by the change
// (spec.md §4.3).
func ComputeEntropicLoad(intent *models.Intent, sim *models.Simulation, g *Graph) float64 {
	filesCount := len(sim.FilesChanged)
	conflictCount := len(sim.Conflicts)
	depsCount := len(intent.Dependencies)

	dirs := map[string]bool{}
	for _, f := range sim.FilesChanged {
		if p := ParentDir(f); p != "" {
			dirs[p] = true
		}
	}
	dirSpread := len(dirs)

	components := 1
	if g.NumNodes() > 0 {
		components = g.WeaklyConnectedComponents()
	}

	raw := float64(filesCount)*2.0 +
		float64(conflictCount)*15.0 +
		float64(depsCount)*6.0 +
		float64(dirSpread)*3.0 +
		float64(components-1)*5.0

	return clamp100(round1(raw))
}

// ComputeContextualValue is signal 2: importance of the touched code,
// via weighted PageRank plus core-path/target/risk-level bonuses
// (spec.md §4.3).
func ComputeContextualValue(intent *models.Intent, sim *models.Simulation, g *Graph) float64 {
	if g.NumNodes() == 0 {
		return 0.0
	}
	pr := g.PageRank()

	var filePRSum float64
	for _, f := range sim.FilesChanged {
		filePRSum += pr[f]
	}
	n := g.NumNodes()
	expectedPerFile := 1.0 / float64(n)
	filesChangedCount := len(sim.FilesChanged)
	if filesChangedCount == 0 {
		filesChangedCount = 1
	}
	importanceRatio := filePRSum / (expectedPerFile * float64(filesChangedCount))

	coreTouches := 0
	for _, f := range sim.FilesChanged {
		if IsCorePath(f) {
			coreTouches++
		}
	}
	denom := len(sim.FilesChanged)
	if denom == 0 {
		denom = 1
	}
	coreRatio := float64(coreTouches) / float64(denom)

	targetBonus := 0.0
	if IsCoreTarget(intent.Target) {
		targetBonus = 10.0
	}

	bonus, ok := riskLevelBonus[intent.RiskLevel]
	if !ok {
		bonus = 5
	}

	raw := math.Min(importanceRatio*30.0, 60.0) +
		coreRatio*20.0 +
		targetBonus +
		bonus

	return clamp100(round1(raw))
}

// ComputeComplexityDelta is signal 3: net complexity change to the
// system (spec.md §4.3).
func ComputeComplexityDelta(intent *models.Intent, sim *models.Simulation, g *Graph) float64 {
	if g.NumNodes() == 0 {
		return 0.0
	}
	density := g.Density()
	edgeNodeRatio := float64(g.NumEdges()) / float64(g.NumNodes())

	crossDir := 0
	for _, node := range g.Nodes() {
		if g.Kind(node) != KindFile {
			continue
		}
		for _, e := range g.OutEdges(node) {
			if g.Kind(e.to) != KindFile {
				continue
			}
			if ParentDir(node) != ParentDir(e.to) {
				crossDir++
			}
		}
	}

	scopeCount := len(scopeHints(intent))

	raw := density*40.0 +
		math.Min(edgeNodeRatio*10.0, 30.0) +
		float64(crossDir)*3.0 +
		float64(scopeCount)*5.0

	return clamp100(round1(raw))
}

// ComputePathDependence is signal 4: sensitivity to merge order
// (spec.md §4.3).
func ComputePathDependence(intent *models.Intent, sim *models.Simulation, g *Graph) float64 {
	conflictCount := len(sim.Conflicts)
	depsCount := len(intent.Dependencies)

	coreTouches := 0
	for _, f := range sim.FilesChanged {
		if IsCorePath(f) {
			coreTouches++
		}
	}

	cycleCount := 0
	if !g.IsDAG() {
		cycleCount = len(g.SimpleCycles(20))
	}

	longest := 0
	if g.IsDAG() {
		longest = g.DAGLongestPathLength()
	}

	raw := float64(conflictCount)*20.0 +
		float64(coreTouches)*4.0 +
		float64(depsCount)*8.0 +
		float64(cycleCount)*5.0 +
		float64(longest)*2.0

	return clamp100(round1(raw))
}
