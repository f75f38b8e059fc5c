package projections

import (
	"context"
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putActiveIntent(t *testing.T, svc *Service, id string, retries int, createdAt string) {
	t.Helper()
	intent := models.NewIntent(id, "feature", "main")
	intent.Status = models.StatusReady
	intent.Retries = retries
	if createdAt != "" {
		intent.CreatedAt = createdAt
	}
	require.NoError(t, svc.Intents.PutIntent(context.Background(), intent))
}

func TestVerificationDebt_EmptyStateIsZero(t *testing.T) {
	svc, _ := newTestService(t)
	snap, err := svc.VerificationDebt(context.Background(), VerificationDebtOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.DebtScore)
	assert.Equal(t, "green", snap.Status)
}

func TestVerificationDebt_QueuePressureScalesWithActiveIntents(t *testing.T) {
	svc, _ := newTestService(t)
	for i := 0; i < 10; i++ {
		putActiveIntent(t, svc, "q-"+string(rune('a'+i)), 0, "")
	}
	snap, err := svc.VerificationDebt(context.Background(), VerificationDebtOptions{QueueCapacity: 50})
	require.NoError(t, err)
	assert.InDelta(t, 10.0/50.0*weightQueuePressure, snap.QueuePressureScore, 0.01)
}

func TestVerificationDebt_RetryPressureHalf(t *testing.T) {
	svc, _ := newTestService(t)
	for i := 0; i < 4; i++ {
		putActiveIntent(t, svc, "nr-"+string(rune('a'+i)), 0, "")
	}
	for i := 0; i < 4; i++ {
		putActiveIntent(t, svc, "rt-"+string(rune('a'+i)), 1, "")
	}
	snap, err := svc.VerificationDebt(context.Background(), VerificationDebtOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5*weightRetryPressure, snap.RetryPressureScore, 0.01)
}

func TestVerificationDebt_ConflictPressureBlendsMergeAndSemantic(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ev := models.NewEvent(models.EventSimulationCompleted, map[string]any{"mergeable": false})
		_, err := svc.Log.Append(ctx, ev)
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		ev := models.NewEvent(models.EventSemanticConflict, map[string]any{"conflict_id": "sc"})
		_, err := svc.Log.Append(ctx, ev)
		require.NoError(t, err)
	}
	snap, err := svc.VerificationDebt(ctx, VerificationDebtOptions{})
	require.NoError(t, err)
	assert.Equal(t, weightConflictDebt, snap.ConflictPressureScore)
}

func TestVerificationDebt_EmitsSnapshotEvent(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.VerificationDebt(context.Background(), VerificationDebtOptions{})
	require.NoError(t, err)
	assert.Greater(t, len(mustQuery(t, svc, models.EventVerificationDebt)), 0)
}

func mustQuery(t *testing.T, svc *Service, eventType models.EventType) []*models.Event {
	t.Helper()
	s := string(eventType)
	events, err := svc.Log.Query(context.Background(), store.EventQuery{EventType: &s})
	require.NoError(t, err)
	return events
}
