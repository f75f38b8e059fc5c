// Package risk implements the dependency-graph risk engine (spec.md
// §4.3): graph construction over heterogeneous nodes, four independent
// signals, composite/legacy scores, propagation/containment, findings,
// and bomb detection.
//
// Grounded on original_source/src/converge/risk.py (the monolithic
// reference implementation) and its risk/graph.py and risk/eval.py
// split, translated from NetworkX's weighted directed graph (PageRank,
// weakly-connected components, density, simple-cycle enumeration, DAG
// longest path) into a small dependency-free Go graph in this file —
// no graph/PageRank library appears anywhere in the example pack, so
// this is implemented directly rather than reaching for an
// out-of-corpus dependency (see DESIGN.md).
package risk

import (
	"path"
	"strings"

	"github.com/ghmbegerez/converge/pkg/models"
)

// NodeKind classifies a graph node (spec.md §4.3).
type NodeKind string

const (
	KindFile       NodeKind = "file"
	KindDirectory  NodeKind = "directory"
	KindScope      NodeKind = "scope"
	KindIntent     NodeKind = "intent"
	KindDependency NodeKind = "dependency"
	KindBranch     NodeKind = "branch"
)

// Edge weights (spec.md §4.3).
const (
	weightContainment  = 0.3
	weightCoLocated    = 0.2
	weightScopeHit     = 0.5
	weightScopeMiss    = 0.2
	weightDependsOn    = 0.8
	weightMergeTarget  = 1.0
	weightCoChangeUnit = 0.1
)

// coreTargets are the branches treated as production-critical (spec.md §4.3).
var coreTargets = map[string]bool{"main": true, "master": true, "release": true, "production": true, "prod": true}

// corePaths are path prefixes treated as core code (spec.md §4.3).
var corePaths = []string{"src/", "lib/", "core/", "pkg/", "internal/", "app/"}

type outEdge struct {
	to     string
	weight float64
	rel    string
}

// Graph is a directed graph with deterministic iteration order (nodes
// and edges are visited in insertion order, never Go map order), so
// that risk evaluation is bit-identical across runs per spec.md §4.3's
// determinism requirement.
type Graph struct {
	kind  map[string]NodeKind
	order []string
	out   map[string][]outEdge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{kind: map[string]NodeKind{}, out: map[string][]outEdge{}}
}

// AddNode registers id with kind if not already present; re-adding an
// existing node with a different kind is a no-op (first kind wins).
func (g *Graph) AddNode(id string, kind NodeKind) {
	if _, ok := g.kind[id]; ok {
		return
	}
	g.kind[id] = kind
	g.order = append(g.order, id)
}

// HasEdge reports whether a direct edge from→to already exists.
func (g *Graph) HasEdge(from, to string) bool {
	for _, e := range g.out[from] {
		if e.to == to {
			return true
		}
	}
	return false
}

// AddEdge adds a directed edge, auto-registering endpoints as
// KindFile if not already present (callers are expected to have
// already added real nodes; this is only a safety net).
func (g *Graph) AddEdge(from, to, rel string, weight float64) {
	g.AddNode(from, KindFile)
	g.AddNode(to, KindFile)
	g.out[from] = append(g.out[from], outEdge{to: to, weight: weight, rel: rel})
}

// Nodes returns node ids in insertion order.
func (g *Graph) Nodes() []string { return g.order }

// NumNodes returns |V|.
func (g *Graph) NumNodes() int { return len(g.order) }

// NumEdges returns |E|.
func (g *Graph) NumEdges() int {
	n := 0
	for _, edges := range g.out {
		n += len(edges)
	}
	return n
}

// Kind returns the node kind, or "" if id is not a node.
func (g *Graph) Kind(id string) NodeKind { return g.kind[id] }

// OutDegree returns the number of outgoing edges from id.
func (g *Graph) OutDegree(id string) int { return len(g.out[id]) }

// OutEdges returns id's outgoing edges in insertion order.
func (g *Graph) OutEdges(id string) []outEdge { return g.out[id] }

// Density is |E| / (|V| * (|V|-1)), NetworkX's directed-graph density.
func (g *Graph) Density() float64 {
	n := len(g.order)
	if n < 2 {
		return 0.0
	}
	return float64(g.NumEdges()) / float64(n*(n-1))
}

// WeaklyConnectedComponents returns the number of connected components
// when edge direction is ignored, via union-find over insertion order.
func (g *Graph) WeaklyConnectedComponents() int {
	parent := map[string]string{}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, n := range g.order {
		parent[n] = n
	}
	for _, n := range g.order {
		for _, e := range g.out[n] {
			if _, ok := parent[e.to]; !ok {
				parent[e.to] = e.to
			}
			union(n, e.to)
		}
	}
	roots := map[string]bool{}
	for _, n := range g.order {
		roots[find(n)] = true
	}
	if len(roots) == 0 {
		return 0
	}
	return len(roots)
}

// Descendants returns every node reachable from start via directed
// edges (excluding start itself).
func (g *Graph) Descendants(start string) map[string]bool {
	visited := map[string]bool{}
	stack := []string{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range g.out[n] {
			if !visited[e.to] {
				visited[e.to] = true
				stack = append(stack, e.to)
			}
		}
	}
	delete(visited, start)
	return visited
}

// IsDAG reports whether the graph is acyclic (Kahn's algorithm).
func (g *Graph) IsDAG() bool {
	indeg := map[string]int{}
	for _, n := range g.order {
		indeg[n] = 0
	}
	for _, n := range g.order {
		for _, e := range g.out[n] {
			indeg[e.to]++
		}
	}
	var queue []string
	for _, n := range g.order {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, e := range g.out[n] {
			indeg[e.to]--
			if indeg[e.to] == 0 {
				queue = append(queue, e.to)
			}
		}
	}
	return visited == len(g.order)
}

// DAGLongestPathLength returns the longest path (in edge count) in a
// DAG, or 0 if the graph is not acyclic. Grounded on
// nx.dag_longest_path_length's topological-order DP.
func (g *Graph) DAGLongestPathLength() int {
	if !g.IsDAG() {
		return 0
	}
	topo := g.topoOrder()
	dist := map[string]int{}
	best := 0
	for i := len(topo) - 1; i >= 0; i-- {
		n := topo[i]
		for _, e := range g.out[n] {
			if d := dist[e.to] + 1; d > dist[n] {
				dist[n] = d
			}
		}
		if dist[n] > best {
			best = dist[n]
		}
	}
	return best
}

func (g *Graph) topoOrder() []string {
	indeg := map[string]int{}
	for _, n := range g.order {
		indeg[n] = 0
	}
	for _, n := range g.order {
		for _, e := range g.out[n] {
			indeg[e.to]++
		}
	}
	var queue []string
	for _, n := range g.order {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	var topo []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		topo = append(topo, n)
		for _, e := range g.out[n] {
			indeg[e.to]--
			if indeg[e.to] == 0 {
				queue = append(queue, e.to)
			}
		}
	}
	return topo
}

// SimpleCycles enumerates simple cycles of length >= 2 via DFS,
// stopping once maxCycles have been found, mirroring the reference
// implementation's capped nx.simple_cycles enumeration.
func (g *Graph) SimpleCycles(maxCycles int) [][]string {
	var cycles [][]string
	onStack := map[string]bool{}
	var path []string
	pathIndex := map[string]int{}
	// A cycle is only reported from its earliest node in insertion
	// order, so each cycle is found once.
	pos := make(map[string]int, len(g.order))
	for i, n := range g.order {
		pos[n] = i
	}

	var dfs func(node, start string) bool
	dfs = func(node, start string) bool {
		if len(cycles) >= maxCycles {
			return true
		}
		path = append(path, node)
		pathIndex[node] = len(path) - 1
		onStack[node] = true

		tried := map[string]bool{}
		for _, e := range g.out[node] {
			if tried[e.to] {
				continue
			}
			tried[e.to] = true
			if e.to == start && len(path) >= 2 {
				cyc := make([]string, len(path))
				copy(cyc, path)
				cycles = append(cycles, cyc)
				if len(cycles) >= maxCycles {
					onStack[node] = false
					path = path[:len(path)-1]
					delete(pathIndex, node)
					return true
				}
				continue
			}
			if !onStack[e.to] {
				if pos[e.to] < pos[start] {
					continue
				}
				if dfs(e.to, start) {
					onStack[node] = false
					path = path[:len(path)-1]
					delete(pathIndex, node)
					return true
				}
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
		delete(pathIndex, node)
		return false
	}

	for _, start := range g.order {
		if len(cycles) >= maxCycles {
			break
		}
		pathIndex[start] = 0
		if dfs(start, start) {
			break
		}
		delete(pathIndex, start)
	}
	return cycles
}

// PageRank computes weighted PageRank with damping 0.85, matching
// NetworkX's default (dangling mass redistributed uniformly,
// iterated to convergence or a fixed iteration cap for determinism).
func (g *Graph) PageRank() map[string]float64 {
	n := len(g.order)
	rank := map[string]float64{}
	if n == 0 {
		return rank
	}
	const damping = 0.85
	const maxIter = 100
	const tol = 1e-6

	outWeight := map[string]float64{}
	for _, node := range g.order {
		var w float64
		for _, e := range g.out[node] {
			w += e.weight
		}
		outWeight[node] = w
		rank[node] = 1.0 / float64(n)
	}

	for iter := 0; iter < maxIter; iter++ {
		next := map[string]float64{}
		var danglingMass float64
		for _, node := range g.order {
			if outWeight[node] == 0 {
				danglingMass += rank[node]
			}
		}
		for _, node := range g.order {
			next[node] = (1 - damping) / float64(n)
			next[node] += damping * danglingMass / float64(n)
		}
		for _, node := range g.order {
			if outWeight[node] == 0 {
				continue
			}
			for _, e := range g.out[node] {
				next[e.to] += damping * rank[node] * (e.weight / outWeight[node])
			}
		}

		var delta float64
		for _, node := range g.order {
			d := next[node] - rank[node]
			if d < 0 {
				d = -d
			}
			delta += d
		}
		rank = next
		if delta < tol {
			break
		}
	}
	return rank
}

// ParentDir returns the POSIX-style parent directory of f, or "" if f
// has no parent (a bare filename).
func ParentDir(f string) string {
	cleaned := path.Clean(f)
	dir := path.Dir(cleaned)
	if dir == "." {
		return ""
	}
	return dir
}

// IsCorePath reports whether f starts with one of the recognized core
// code prefixes (spec.md §4.3).
func IsCorePath(f string) bool {
	for _, p := range corePaths {
		if strings.HasPrefix(f, p) {
			return true
		}
	}
	return false
}

// IsCoreTarget reports whether branch is one of the production-critical
// targets (spec.md §4.3).
func IsCoreTarget(branch string) bool { return coreTargets[branch] }

// BuildDependencyGraph constructs the directed graph over file,
// directory, scope, intent, and (optionally) co-change nodes (spec.md
// §4.3). couplingData entries carry "file_a", "file_b", "co_changes".
func BuildDependencyGraph(intent *models.Intent, sim *models.Simulation, couplingData []map[string]any) *Graph {
	g := NewGraph()
	addFileAndDirectoryNodes(g, sim)
	addProximityCoupling(g, sim)
	addScopeEdges(g, intent, sim)
	addIntentAndDependencyEdges(g, intent)
	if len(couplingData) > 0 {
		addExternalCoupling(g, sim, couplingData)
	}
	return g
}

func addFileAndDirectoryNodes(g *Graph, sim *models.Simulation) {
	seenDirs := map[string]bool{}
	for _, f := range sim.FilesChanged {
		g.AddNode(f, KindFile)
		parent := ParentDir(f)
		if parent == "" {
			continue
		}
		if !seenDirs[parent] {
			g.AddNode(parent, KindDirectory)
			seenDirs[parent] = true
		}
		g.AddEdge(f, parent, "contained_in", weightContainment)
	}
}

func addProximityCoupling(g *Graph, sim *models.Simulation) {
	dirFiles := map[string][]string{}
	for _, f := range sim.FilesChanged {
		parent := ParentDir(f)
		if parent == "" {
			parent = "."
		}
		dirFiles[parent] = append(dirFiles[parent], f)
	}
	for _, files := range dirFiles {
		for i, f1 := range files {
			for _, f2 := range files[i+1:] {
				if !g.HasEdge(f1, f2) {
					g.AddEdge(f1, f2, "co_located", weightCoLocated)
				}
				if !g.HasEdge(f2, f1) {
					g.AddEdge(f2, f1, "co_located", weightCoLocated)
				}
			}
		}
	}
}

func addScopeEdges(g *Graph, intent *models.Intent, sim *models.Simulation) {
	for _, scope := range scopeHints(intent) {
		g.AddNode(scope, KindScope)
		for _, f := range sim.FilesChanged {
			if strings.Contains(strings.ToLower(f), strings.ToLower(scope)) {
				g.AddEdge(scope, f, "scope_contains", weightScopeHit)
			} else {
				g.AddEdge(scope, f, "scope_touches", weightScopeMiss)
			}
		}
	}
}

func addIntentAndDependencyEdges(g *Graph, intent *models.Intent) {
	for _, dep := range intent.Dependencies {
		g.AddNode(dep, KindDependency)
		g.AddNode(intent.ID, KindIntent)
		g.AddEdge(intent.ID, dep, "depends_on", weightDependsOn)
	}
	g.AddNode(intent.ID, KindIntent)
	g.AddNode(intent.Target, KindBranch)
	g.AddEdge(intent.ID, intent.Target, "merge_target", weightMergeTarget)
}

func addExternalCoupling(g *Graph, sim *models.Simulation, couplingData []map[string]any) {
	changed := map[string]bool{}
	for _, f := range sim.FilesChanged {
		changed[f] = true
	}
	for _, c := range couplingData {
		a, _ := c["file_a"].(string)
		b, _ := c["file_b"].(string)
		coChanges := 1.0
		if v, ok := c["co_changes"].(float64); ok {
			coChanges = v
		} else if v, ok := c["co_changes"].(int); ok {
			coChanges = float64(v)
		}
		if a == "" && b == "" {
			continue
		}
		if !changed[a] && !changed[b] {
			continue
		}
		w := coChanges * weightCoChangeUnit
		if w > 1.0 {
			w = 1.0
		}
		g.AddNode(a, KindFile)
		g.AddNode(b, KindFile)
		g.AddEdge(a, b, "co_change", w)
		g.AddEdge(b, a, "co_change", w)
	}
}

// scopeHints reads technical.scope_hint as either a single string or a
// list of strings (original_source treats it as a list; spec.md §3
// allows the singular `scope_hint` key too — both shapes are honored).
func scopeHints(intent *models.Intent) []string {
	v, ok := intent.Technical["scope_hint"]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
