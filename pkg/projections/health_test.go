package projections

import (
	"context"
	"testing"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
	"github.com/ghmbegerez/converge/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	m := memory.New()
	log := eventlog.New(m)
	return New(log, m, m), m
}

func seedEvents(t *testing.T, log *eventlog.Log, nSims, nMerged, nRejected int) {
	t.Helper()
	tenant := "team-a"
	ctx := context.Background()
	for i := 0; i < nSims; i++ {
		mergeable := i < nSims-2
		ev := models.NewEvent(models.EventSimulationCompleted, map[string]any{"mergeable": mergeable})
		ev.TenantID = &tenant
		_, err := log.Append(ctx, ev)
		require.NoError(t, err)

		riskEv := models.NewEvent(models.EventRiskEvaluated, map[string]any{
			"risk_score": float64(i) * 5.0, "entropy_score": float64(i) * 2.0,
		})
		riskEv.TenantID = &tenant
		_, err = log.Append(ctx, riskEv)
		require.NoError(t, err)
	}
	for i := 0; i < nMerged; i++ {
		ev := models.NewEvent(models.EventIntentMerged, map[string]any{})
		ev.TenantID = &tenant
		_, err := log.Append(ctx, ev)
		require.NoError(t, err)
	}
	for i := 0; i < nRejected; i++ {
		ev := models.NewEvent(models.EventIntentRejected, map[string]any{"reason": "max_retries"})
		ev.TenantID = &tenant
		_, err := log.Append(ctx, ev)
		require.NoError(t, err)
	}
}

func TestRepoHealth_BasicScoring(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := "team-a"
	seedEvents(t, svc.Log, 10, 5, 2)

	health, err := svc.RepoHealth(context.Background(), &tenant, 24)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, health.RepoHealthScore, 0.0)
	assert.LessOrEqual(t, health.RepoHealthScore, 100.0)
	assert.Contains(t, []string{"green", "yellow", "red"}, health.Status)
	assert.Equal(t, 5, health.MergedLast24h)
	assert.Equal(t, 2, health.RejectedLast24h)
}

func TestRepoHealth_EmitsSnapshotEvent(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RepoHealth(context.Background(), nil, 24)
	require.NoError(t, err)

	eventType := string(models.EventHealthSnapshot)
	events, err := svc.Log.Query(context.Background(), store.EventQuery{EventType: &eventType})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRepoHealth_StructuredLearning(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := "team-a"
	seedEvents(t, svc.Log, 10, 0, 5)

	health, err := svc.RepoHealth(context.Background(), &tenant, 24)
	require.NoError(t, err)
	assert.NotEmpty(t, health.Learning.Level)
	if len(health.Learning.Lessons) > 0 {
		lesson := health.Learning.Lessons[0]
		assert.NotEmpty(t, lesson.Code)
		assert.GreaterOrEqual(t, lesson.Metric.Observed, 0.0)
	}
}

func TestChangeHealth_ReturnsScoreAndStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	intentID := "int-000"

	riskEv := models.NewEvent(models.EventRiskEvaluated, map[string]any{"risk_score": 10.0, "entropy_score": 5.0})
	riskEv.IntentID = &intentID
	_, err := svc.Log.Append(ctx, riskEv)
	require.NoError(t, err)

	simEv := models.NewEvent(models.EventSimulationCompleted, map[string]any{"mergeable": true})
	simEv.IntentID = &intentID
	_, err = svc.Log.Append(ctx, simEv)
	require.NoError(t, err)

	result, err := svc.ChangeHealth(ctx, intentID, nil)
	require.NoError(t, err)
	assert.Contains(t, []string{"green", "yellow", "red"}, result["status"])
	assert.Contains(t, result, "health_score")
	learning, ok := result["learning"].(models.Learning)
	require.True(t, ok)
	assert.NotEmpty(t, learning.Level)
}
