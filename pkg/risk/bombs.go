package risk

import (
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

// DetectBombs looks for the three structural-degradation patterns
// spec.md §4.3 names: cascade (high-centrality fan-out), spiral
// (circular dependencies), and thermal_death (multiple entropy
// indicators elevated at once).
func DetectBombs(intent *models.Intent, sim *models.Simulation, g *Graph) []models.Bomb {
	var bombs []models.Bomb
	if g.NumNodes() == 0 {
		return bombs
	}

	pr := g.PageRank()
	n := g.NumNodes()

	var fileNodes []string
	for _, node := range g.Nodes() {
		if g.Kind(node) == KindFile {
			fileNodes = append(fileNodes, node)
		}
	}

	var highFanout []string
	for _, f := range fileNodes {
		if pr[f] > 1.5/float64(n) && g.OutDegree(f) >= 3 {
			highFanout = append(highFanout, f)
		}
	}

	if len(highFanout) > 0 {
		affected := map[string]bool{}
		for _, f := range highFanout {
			for d := range g.Descendants(f) {
				affected[d] = true
			}
		}
		if float64(len(affected)) > float64(len(sim.FilesChanged))*1.5 {
			trigger := highFanout
			if len(trigger) > 5 {
				trigger = trigger[:5]
			}
			bombs = append(bombs, models.Bomb{
				Type:     "cascade",
				Severity: "high",
				Detail: map[string]any{
					"message":       fmt.Sprintf("Change touches %d high-centrality node(s) with potential cascade to %d nodes", len(highFanout), len(affected)),
					"trigger_nodes": trigger,
					"blast_radius":  len(affected),
				},
			})
		}
	}

	if !g.IsDAG() {
		cycles := g.SimpleCycles(10)
		if len(cycles) >= 2 {
			shown := cycles
			if len(shown) > 3 {
				shown = shown[:3]
			}
			bombs = append(bombs, models.Bomb{
				Type:     "spiral",
				Severity: "medium",
				Detail: map[string]any{
					"message": fmt.Sprintf("%d circular dependency cycle(s) detected", len(cycles)),
					"cycles":  shown,
				},
			})
		}
	}

	filesCount := len(sim.FilesChanged)
	conflictCount := len(sim.Conflicts)
	depsCount := len(intent.Dependencies)
	components := g.WeaklyConnectedComponents()

	hotIndicators := 0
	if filesCount > 10 {
		hotIndicators++
	}
	if conflictCount > 0 {
		hotIndicators++
	}
	if depsCount > 3 {
		hotIndicators++
	}
	if components > 3 {
		hotIndicators++
	}
	if g.NumEdges() > g.NumNodes()*2 {
		hotIndicators++
	}

	if hotIndicators >= 3 {
		bombs = append(bombs, models.Bomb{
			Type:     "thermal_death",
			Severity: "critical",
			Detail: map[string]any{
				"message": fmt.Sprintf(
					"%d/5 entropy indicators elevated: files=%d, conflicts=%d, deps=%d, components=%d, edge_density=%d/%d",
					hotIndicators, filesCount, conflictCount, depsCount, components, g.NumEdges(), g.NumNodes()),
				"indicators": hotIndicators,
			},
		})
	}

	return bombs
}
