package review

import (
	"context"
	"testing"
	"time"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pastDeadline(d time.Duration) *string {
	s := time.Now().Add(-d).UTC().Format(time.RFC3339Nano)
	return &s
}

func futureDeadline(d time.Duration) *string {
	s := time.Now().Add(d).UTC().Format(time.RFC3339Nano)
	return &s
}

func TestCheckSLABreaches_FindsOverdueOpenTasks(t *testing.T) {
	svc, st := newTestService(t)
	putIntent(t, st, "i1", models.RiskHigh)

	overdue := &models.ReviewTask{
		ID: "rev-overdue", IntentID: "i1", Status: models.ReviewPending,
		RiskLevel: models.RiskHigh, SLADeadline: pastDeadline(time.Hour), CreatedAt: models.NowISO(),
	}
	onTime := &models.ReviewTask{
		ID: "rev-ontime", IntentID: "i1", Status: models.ReviewAssigned,
		RiskLevel: models.RiskHigh, SLADeadline: futureDeadline(time.Hour), CreatedAt: models.NowISO(),
	}
	require.NoError(t, st.PutReviewTask(context.Background(), overdue))
	require.NoError(t, st.PutReviewTask(context.Background(), onTime))

	breaches, err := svc.CheckSLABreaches(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, breaches, 1)
	assert.Equal(t, "rev-overdue", breaches[0].TaskID)
}

func TestCheckSLABreaches_IgnoresTerminalStatuses(t *testing.T) {
	svc, st := newTestService(t)
	completed := &models.ReviewTask{
		ID: "rev-done", IntentID: "i1", Status: models.ReviewCompleted,
		RiskLevel: models.RiskHigh, SLADeadline: pastDeadline(time.Hour), CreatedAt: models.NowISO(),
	}
	require.NoError(t, st.PutReviewTask(context.Background(), completed))

	breaches, err := svc.CheckSLABreaches(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, breaches)
}

func TestReviewSummary_AggregatesByStatusAndReviewer(t *testing.T) {
	svc, st := newTestService(t)
	alice := "alice"

	tasks := []*models.ReviewTask{
		{ID: "r1", IntentID: "i1", Status: models.ReviewAssigned, Reviewer: &alice, RiskLevel: models.RiskMedium, CreatedAt: models.NowISO()},
		{ID: "r2", IntentID: "i2", Status: models.ReviewCompleted, RiskLevel: models.RiskLow, CreatedAt: models.NowISO()},
		{ID: "r3", IntentID: "i3", Status: models.ReviewPending, RiskLevel: models.RiskHigh, SLADeadline: pastDeadline(time.Hour), CreatedAt: models.NowISO()},
	}
	for _, task := range tasks {
		require.NoError(t, st.PutReviewTask(context.Background(), task))
	}

	summary, err := svc.ReviewSummary(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.ByStatus["assigned"])
	assert.Equal(t, 1, summary.ByReviewer["alice"])
	assert.Equal(t, 1, summary.SLABreached)
}
