package preintent

import (
	"context"
	"testing"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/semantic"
	"github.com/ghmbegerez/converge/pkg/store"
	"github.com/ghmbegerez/converge/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	m := memory.New()
	log := eventlog.New(m)
	sem := semantic.New(log, m, m)
	return New(log, sem), m
}

func TestEvaluateIntent_WellDescribedDraftWithNoHistoryScoresHigh(t *testing.T) {
	svc, _ := newTestService(t)
	result, err := svc.EvaluateIntent(context.Background(), map[string]any{
		"id":     "draft-1",
		"source": "feature/x",
		"target": "main",
		"semantic": map[string]any{
			"description": "add retry logic to the payment webhook",
			"scope":       []any{"billing"},
		},
	}, nil)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.Empty(t, result.Recommendations)
}

func TestEvaluateIntent_SparseDraftLowersDescriptionQuality(t *testing.T) {
	svc, _ := newTestService(t)
	result, err := svc.EvaluateIntent(context.Background(), map[string]any{
		"id":     "draft-2",
		"source": "feature/y",
		"target": "main",
	}, nil)
	require.NoError(t, err)
	assert.Less(t, result.Signals["description_quality"].(float64), 0.5)
	assert.NotEmpty(t, result.Recommendations)
}

func TestEvaluateIntent_EnforceModeBlocksLowScore(t *testing.T) {
	svc, _ := newTestService(t)
	cfg := HarnessConfig{Mode: "enforce", Rules: []string{ruleDescriptionQuality}}
	result, err := svc.EvaluateIntent(context.Background(), map[string]any{
		"id": "draft-3",
	}, &cfg)
	require.NoError(t, err)
	assert.False(t, result.Passed)
}

func TestEvaluateIntent_DuplicateOfExistingEmbeddingLowersScore(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	text := semantic.BuildCanonicalText("feature/shared", "main", map[string]any{
		"description": "touch the billing module retry path",
		"scope":       []any{"billing"},
	})
	rec := semantic.BuildEmbeddingRecord("intent-existing", text)
	require.NoError(t, st.PutEmbedding(ctx, rec))

	result, err := svc.EvaluateIntent(ctx, map[string]any{
		"id":     "draft-4",
		"source": "feature/shared",
		"target": "main",
		"semantic": map[string]any{
			"description": "touch the billing module retry path",
			"scope":       []any{"billing"},
		},
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.Signals["max_similarity"].(float64), 1e-6)
	require.Len(t, result.SimilarIntents, 1)
	assert.Equal(t, "intent-existing", result.SimilarIntents[0]["intent_id"])
	assert.NotEmpty(t, result.Recommendations)
}

func TestEvaluateIntent_EmitsPreEvaluatedEvent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.EvaluateIntent(ctx, map[string]any{"id": "draft-5"}, nil)
	require.NoError(t, err)

	eventType := string(models.EventIntentPreEvaluated)
	events, err := svc.Log.Query(ctx, store.EventQuery{EventType: &eventType})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "draft-5", *events[0].IntentID)
}
