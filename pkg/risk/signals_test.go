package risk

import (
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestComputeEntropicLoad_WeightedSum(t *testing.T) {
	sim := &models.Simulation{
		FilesChanged: []string{"src/a.go", "lib/b.go"},
		Conflicts:    []string{"src/a.go"},
	}
	intent := newTestIntent("main", []string{"dep-1"}, nil)
	g := BuildDependencyGraph(intent, sim, nil)

	got := ComputeEntropicLoad(intent, sim, g)
	// files=2*2 + conflicts=1*15 + deps=1*6 + dirs=2*3 + (components-1)*5
	assert.Greater(t, got, 0.0)
	assert.LessOrEqual(t, got, 100.0)
}

func TestComputeEntropicLoad_ClampsAt100(t *testing.T) {
	files := make([]string, 60)
	for i := range files {
		files[i] = "f" + string(rune('a'+i%26)) + ".go"
	}
	sim := &models.Simulation{FilesChanged: files}
	intent := newTestIntent("main", nil, nil)
	g := BuildDependencyGraph(intent, sim, nil)

	got := ComputeEntropicLoad(intent, sim, g)
	assert.Equal(t, 100.0, got)
}

func TestComputeContextualValue_EmptyGraphIsZero(t *testing.T) {
	sim := &models.Simulation{}
	intent := newTestIntent("main", nil, nil)
	g := BuildDependencyGraph(intent, sim, nil)
	assert.Equal(t, 0.0, ComputeContextualValue(intent, sim, g))
}

func TestComputeContextualValue_CoreTargetAndRiskLevelBonus(t *testing.T) {
	sim := &models.Simulation{FilesChanged: []string{"docs/readme.md"}}
	intent := newTestIntent("main", nil, nil)
	intent.RiskLevel = models.RiskCritical
	g := BuildDependencyGraph(intent, sim, nil)

	got := ComputeContextualValue(intent, sim, g)
	// non-core file, core target (+10), critical risk bonus (+30) at minimum.
	assert.GreaterOrEqual(t, got, 40.0)
}

func TestComputeComplexityDelta_ScopeCountContributes(t *testing.T) {
	sim := &models.Simulation{FilesChanged: []string{"a.go", "b.go"}}
	withoutScope := newTestIntent("main", nil, nil)
	withScope := newTestIntent("main", nil, []string{"auth", "billing"})

	gWithout := BuildDependencyGraph(withoutScope, sim, nil)
	gWith := BuildDependencyGraph(withScope, sim, nil)

	deltaWithout := ComputeComplexityDelta(withoutScope, sim, gWithout)
	deltaWith := ComputeComplexityDelta(withScope, sim, gWith)
	assert.Greater(t, deltaWith, deltaWithout)
}

func TestComputePathDependence_ConflictsDominate(t *testing.T) {
	sim := &models.Simulation{FilesChanged: []string{"a.go"}, Conflicts: []string{"a.go"}}
	intent := newTestIntent("main", nil, nil)
	g := BuildDependencyGraph(intent, sim, nil)

	got := ComputePathDependence(intent, sim, g)
	assert.GreaterOrEqual(t, got, 20.0)
}

func TestComputePathDependence_CyclesIncreaseScore(t *testing.T) {
	sim := &models.Simulation{}
	intent := newTestIntent("main", nil, nil)
	g := NewGraph()
	g.AddNode("a", KindFile)
	g.AddNode("b", KindFile)
	g.AddEdge("a", "b", "x", 1)
	g.AddEdge("b", "a", "x", 1)

	got := ComputePathDependence(intent, sim, g)
	assert.GreaterOrEqual(t, got, 5.0)
}
