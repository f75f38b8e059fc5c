package review

import (
	"context"
	"testing"
	"time"

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

func putIntent(t *testing.T, st *memory.Store, id string, risk models.RiskLevel) *models.Intent {
	t.Helper()
	intent := models.NewIntent(id, "feature", "main")
	intent.RiskLevel = risk
	require.NoError(t, st.PutIntent(context.Background(), intent))
	return intent
}

func TestRequestReview_PendingWithoutReviewer(t *testing.T) {
	svc, st := newTestService(t)
	putIntent(t, st, "i1", models.RiskHigh)

	task, err := svc.RequestReview(context.Background(), "i1", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPending, task.Status)
	assert.Nil(t, task.AssignedAt)
	assert.Equal(t, models.RiskHigh, task.RiskLevel)
}

func TestRequestReview_SLADeadlineScalesByRiskLevel(t *testing.T) {
	svc, st := newTestService(t)
	putIntent(t, st, "i-crit", models.RiskCritical)
	putIntent(t, st, "i-low", models.RiskLow)

	crit, err := svc.RequestReview(context.Background(), "i-crit", RequestOptions{})
	require.NoError(t, err)
	low, err := svc.RequestReview(context.Background(), "i-low", RequestOptions{})
	require.NoError(t, err)

	critDeadline, err := time.Parse(time.RFC3339Nano, *crit.SLADeadline)
	require.NoError(t, err)
	critCreated, err := time.Parse(time.RFC3339Nano, crit.CreatedAt)
	require.NoError(t, err)
	assert.InDelta(t, 8*time.Hour, critDeadline.Sub(critCreated), float64(time.Second))

	lowDeadline, err := time.Parse(time.RFC3339Nano, *low.SLADeadline)
	require.NoError(t, err)
	lowCreated, err := time.Parse(time.RFC3339Nano, low.CreatedAt)
	require.NoError(t, err)
	assert.InDelta(t, 72*time.Hour, lowDeadline.Sub(lowCreated), float64(time.Second))
}

func TestRequestReview_WithReviewerStartsAssigned(t *testing.T) {
	svc, st := newTestService(t)
	putIntent(t, st, "i2", models.RiskMedium)

	reviewer := "alice"
	task, err := svc.RequestReview(context.Background(), "i2", RequestOptions{Reviewer: &reviewer})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewAssigned, task.Status)
	assert.NotNil(t, task.AssignedAt)
	assert.Equal(t, "alice", *task.Reviewer)
}

func TestRequestReview_UnknownIntentErrors(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RequestReview(context.Background(), "nope", RequestOptions{})
	assert.Error(t, err)
}

func TestAssignReview_ReassignmentEmitsReassignedEvent(t *testing.T) {
	svc, st := newTestService(t)
	putIntent(t, st, "i3", models.RiskMedium)
	task, err := svc.RequestReview(context.Background(), "i3", RequestOptions{})
	require.NoError(t, err)

	_, err = svc.AssignReview(context.Background(), task.ID, "bob")
	require.NoError(t, err)
	updated, err := svc.AssignReview(context.Background(), task.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", *updated.Reviewer)

	reassigned := string(models.EventReviewReassigned)
	events, err := svc.Log.Query(context.Background(), store.EventQuery{EventType: &reassigned})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCompleteReview_SetsResolutionAndCompletedAt(t *testing.T) {
	svc, st := newTestService(t)
	putIntent(t, st, "i4", models.RiskMedium)
	task, err := svc.RequestReview(context.Background(), "i4", RequestOptions{})
	require.NoError(t, err)

	done, err := svc.CompleteReview(context.Background(), task.ID, "approved", "looks good")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewCompleted, done.Status)
	assert.Equal(t, "approved", *done.Resolution)
	assert.NotNil(t, done.CompletedAt)
}

func TestCancelReview_SetsCancelledStatus(t *testing.T) {
	svc, st := newTestService(t)
	putIntent(t, st, "i5", models.RiskMedium)
	task, err := svc.RequestReview(context.Background(), "i5", RequestOptions{})
	require.NoError(t, err)

	cancelled, err := svc.CancelReview(context.Background(), task.ID, "superseded")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewCancelled, cancelled.Status)
	assert.Equal(t, "superseded", cancelled.Notes)
}

func TestEscalateReview_SetsEscalatedStatus(t *testing.T) {
	svc, st := newTestService(t)
	putIntent(t, st, "i6", models.RiskMedium)
	task, err := svc.RequestReview(context.Background(), "i6", RequestOptions{})
	require.NoError(t, err)

	escalated, err := svc.EscalateReview(context.Background(), task.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewEscalated, escalated.Status)
	assert.NotNil(t, escalated.EscalatedAt)
}
