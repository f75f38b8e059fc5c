package risk

import (
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

const impactFilesLimit = 20

// AnalyzeFindings generates qualitative findings from intent +
// simulation (spec.md §4.3).
func AnalyzeFindings(intent *models.Intent, sim *models.Simulation) []models.Finding {
	var findings []models.Finding
	filesCount := len(sim.FilesChanged)
	depsCount := len(intent.Dependencies)
	conflictCount := len(sim.Conflicts)

	if filesCount > 15 {
		findings = append(findings, models.Finding{Severity: "high", Message: fmt.Sprintf("Change touches %d files", filesCount)})
	}
	if depsCount > 3 {
		findings = append(findings, models.Finding{Severity: "medium", Message: fmt.Sprintf("Depends on %d other intents", depsCount)})
	}
	if IsCoreTarget(intent.Target) {
		findings = append(findings, models.Finding{Severity: "high", Message: fmt.Sprintf("Targets core branch: %s", intent.Target)})
	}
	if conflictCount > 0 {
		findings = append(findings, models.Finding{Severity: "critical", Message: fmt.Sprintf("%d merge conflict(s) detected", conflictCount)})
	}
	return findings
}

// BuildImpactEdges returns the flat impact-edge list surfaced for
// diagnostics (spec.md §4.3).
func BuildImpactEdges(intent *models.Intent, sim *models.Simulation) []models.ImpactEdge {
	edges := []models.ImpactEdge{
		{From: intent.Source, To: intent.Target, Weight: weightMergeTarget, Kind: "merge_target"},
	}
	for _, dep := range intent.Dependencies {
		edges = append(edges, models.ImpactEdge{From: intent.ID, To: dep, Weight: weightDependsOn, Kind: "depends_on"})
	}
	for _, scope := range scopeHints(intent) {
		edges = append(edges, models.ImpactEdge{From: intent.ID, To: scope, Weight: weightScopeHit, Kind: "touches_scope"})
	}
	files := sim.FilesChanged
	if len(files) > impactFilesLimit {
		files = files[:impactFilesLimit]
	}
	for _, f := range files {
		edges = append(edges, models.ImpactEdge{From: intent.ID, To: f, Weight: weightContainment, Kind: "modifies_file"})
	}
	return edges
}

// PropagationScore is min(100, graph_component + edge_component)
// (spec.md §4.3).
func PropagationScore(g *Graph, edges []models.ImpactEdge) float64 {
	if g.NumNodes() == 0 && len(edges) == 0 {
		return 0.0
	}

	var fileNodes []string
	for _, n := range g.Nodes() {
		if g.Kind(n) == KindFile {
			fileNodes = append(fileNodes, n)
		}
	}
	graphComponent := 0.0
	if len(fileNodes) > 0 {
		var sumOut int
		for _, f := range fileNodes {
			sumOut += g.OutDegree(f)
		}
		avgOut := float64(sumOut) / float64(len(fileNodes))
		graphComponent = avgOut * 10.0
		if graphComponent > 50.0 {
			graphComponent = 50.0
		}
	}

	var totalWeight float64
	uniqueTargets := map[string]bool{}
	for _, e := range edges {
		totalWeight += e.Weight
		uniqueTargets[e.To] = true
	}
	edgeComponent := totalWeight*3.0 + float64(len(uniqueTargets))*2.0
	if edgeComponent > 50.0 {
		edgeComponent = 50.0
	}

	total := round1(graphComponent + edgeComponent)
	if total > 100.0 {
		total = 100.0
	}
	return total
}

// ContainmentScore is 1.0 minus a penalty per boundary crossing and
// per extra connected component (spec.md §4.3).
func ContainmentScore(intent *models.Intent, g *Graph, edges []models.ImpactEdge) float64 {
	if g.NumNodes() == 0 && len(edges) == 0 {
		return 1.0
	}

	boundary := map[string]bool{}
	for _, e := range edges {
		boundary[e.To] = true
	}
	for _, dep := range intent.Dependencies {
		boundary[dep] = true
	}
	for _, s := range scopeHints(intent) {
		boundary[s] = true
	}

	crossings := len(boundary)
	if crossings == 0 {
		return 1.0
	}

	components := 1
	if g.NumNodes() > 0 {
		components = g.WeaklyConnectedComponents()
	}
	componentPenalty := float64(components-1) * 0.03

	score := 1.0 - float64(crossings)*0.05 - componentPenalty
	if score < 0 {
		score = 0
	}
	return round2(score)
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// Evaluate runs the full risk evaluation: graph construction, four
// signals, legacy composite scores, propagation/containment, findings,
// and bomb detection (spec.md §4.3). Deterministic given the same
// intent, simulation, and coupling data.
func Evaluate(intent *models.Intent, sim *models.Simulation, couplingData []map[string]any) *models.RiskEval {
	g := BuildDependencyGraph(intent, sim, couplingData)

	entropicLoad := ComputeEntropicLoad(intent, sim, g)
	contextualValue := ComputeContextualValue(intent, sim, g)
	complexityDelta := ComputeComplexityDelta(intent, sim, g)
	pathDependence := ComputePathDependence(intent, sim, g)

	findings := AnalyzeFindings(intent, sim)
	edges := BuildImpactEdges(intent, sim)
	propagation := PropagationScore(g, edges)
	containment := ContainmentScore(intent, g, edges)
	bombs := DetectBombs(intent, sim, g)

	riskScore := entropicLoad*0.30 + contextualValue*0.25 + complexityDelta*0.20 + pathDependence*0.25
	if riskScore > 100.0 {
		riskScore = 100.0
	}
	riskScore = round1(riskScore)

	damageScore := contextualValue*0.5 + entropicLoad*0.3 + pathDependence*0.2
	if damageScore > 100.0 {
		damageScore = 100.0
	}
	damageScore = round1(damageScore)

	return &models.RiskEval{
		IntentID:         intent.ID,
		RiskScore:        riskScore,
		DamageScore:      damageScore,
		EntropyScore:     entropicLoad,
		PropagationScore: propagation,
		ContainmentScore: containment,
		Signals: models.RiskSignals{
			EntropicLoad:    entropicLoad,
			ContextualValue: contextualValue,
			ComplexityDelta: complexityDelta,
			PathDependence:  pathDependence,
		},
		Findings:     findings,
		ImpactEdges:  edges,
		GraphMetrics: GraphMetrics(g),
		Bombs:        bombs,
		Timestamp:    models.NowISO(),
		TenantID:     intent.TenantID,
	}
}

const (
	pagerankTopN         = 10
	pagerankDisplayLimit = 5
	pagerankPrecision    = 4
)

// GraphMetrics extracts the diagnostic metrics spec.md §4.3 surfaces
// alongside a RiskEval: node/edge counts, top PageRank entries,
// critical files, component count, and density.
func GraphMetrics(g *Graph) map[string]any {
	if g.NumNodes() == 0 {
		return map[string]any{"nodes": 0, "edges": 0, "pagerank_max": 0.0, "pagerank_top": []any{}, "components": 0, "density": 0.0}
	}

	pr := g.PageRank()
	type ranked struct {
		node string
		rank float64
	}
	top := make([]ranked, 0, len(pr))
	for _, n := range g.Nodes() {
		top = append(top, ranked{node: n, rank: pr[n]})
	}
	// Stable sort by descending rank, ties broken by insertion order
	// (the node iteration above is already insertion-ordered).
	for i := 1; i < len(top); i++ {
		for j := i; j > 0 && top[j].rank > top[j-1].rank; j-- {
			top[j], top[j-1] = top[j-1], top[j]
		}
	}
	if len(top) > pagerankTopN {
		top = top[:pagerankTopN]
	}

	var criticalFiles []map[string]any
	for _, t := range top {
		if g.Kind(t.node) == KindFile {
			criticalFiles = append(criticalFiles, map[string]any{"file": t.node, "pagerank": roundN(t.rank, pagerankPrecision)})
		}
	}
	if len(criticalFiles) > pagerankDisplayLimit {
		criticalFiles = criticalFiles[:pagerankDisplayLimit]
	}

	display := top
	if len(display) > pagerankDisplayLimit {
		display = display[:pagerankDisplayLimit]
	}
	pagerankTop := make([]map[string]any, 0, len(display))
	for _, t := range display {
		pagerankTop = append(pagerankTop, map[string]any{"node": t.node, "rank": roundN(t.rank, pagerankPrecision)})
	}

	pagerankMax := 0.0
	if len(top) > 0 {
		pagerankMax = roundN(top[0].rank, pagerankPrecision)
	}

	return map[string]any{
		"nodes":          g.NumNodes(),
		"edges":          g.NumEdges(),
		"pagerank_max":   pagerankMax,
		"pagerank_top":   pagerankTop,
		"critical_files": criticalFiles,
		"components":     g.WeaklyConnectedComponents(),
		"density":        roundN(g.Density(), pagerankPrecision),
	}
}

func roundN(v float64, places int) float64 {
	scale := 1.0
	for i := 0; i < places; i++ {
		scale *= 10
	}
	return float64(int(v*scale+0.5)) / scale
}
