package engine

import (
	"context"
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessQueue_ValidatedIntentMovesToQueued(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	intent := models.NewIntent("q1", "feature", "main")
	intent.Status = models.StatusValidated
	require.NoError(t, st.PutIntent(context.Background(), intent))

	results, err := eng.ProcessQueue(context.Background(), QueueOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeValidated, results[0].Outcome)

	saved, _, err := st.GetIntent(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, saved.Status)
}

func TestProcessQueue_MaxRetriesExceededRejects(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	intent := models.NewIntent("q2", "feature", "main")
	intent.Status = models.StatusValidated
	intent.Retries = 3
	require.NoError(t, st.PutIntent(context.Background(), intent))

	results, err := eng.ProcessQueue(context.Background(), QueueOptions{MaxRetries: 3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeRejected, results[0].Outcome)

	saved, _, err := st.GetIntent(context.Background(), "q2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, saved.Status)
}

func TestProcessQueue_BlockedIntentRequeuesThenRejectsAtLimit(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{simResult: nil, simErr: nil}, &fakeRunner{results: []models.CheckResult{{CheckType: "lint", Passed: false}}})
	intent := models.NewIntent("q3", "feature", "main")
	intent.Status = models.StatusValidated
	intent.Retries = 2
	require.NoError(t, st.PutIntent(context.Background(), intent))

	results, err := eng.ProcessQueue(context.Background(), QueueOptions{MaxRetries: 3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeBlocked, results[0].Outcome)
	assert.Equal(t, 3, results[0].Retries)

	saved, _, err := st.GetIntent(context.Background(), "q3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, saved.Status)
}

func TestProcessQueue_AutoConfirmMergesImmediately(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{mergeSHA: "abc123"}, &fakeRunner{})
	intent := models.NewIntent("q4", "feature", "main")
	intent.Status = models.StatusValidated
	require.NoError(t, st.PutIntent(context.Background(), intent))

	results, err := eng.ProcessQueue(context.Background(), QueueOptions{AutoConfirm: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeMerged, results[0].Outcome)
	assert.Equal(t, "abc123", results[0].MergedCommit)

	saved, _, err := st.GetIntent(context.Background(), "q4")
	require.NoError(t, err)
	assert.Equal(t, models.StatusMerged, saved.Status)
}

func TestProcessQueue_UnmetDependencySkipsProcessing(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	intent := models.NewIntent("q5", "feature", "main")
	intent.Status = models.StatusValidated
	intent.Dependencies = []string{"dep-not-merged"}
	require.NoError(t, st.PutIntent(context.Background(), intent))

	results, err := eng.ProcessQueue(context.Background(), QueueOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeDependencyBlocked, results[0].Outcome)
	assert.Equal(t, []string{"dep-not-merged"}, results[0].UnmetDependencies)
}

func TestProcessQueue_MetDependencyProceedsNormally(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	dep := models.NewIntent("dep-1", "x", "main")
	dep.Status = models.StatusMerged
	require.NoError(t, st.PutIntent(context.Background(), dep))

	intent := models.NewIntent("q6", "feature", "main")
	intent.Status = models.StatusValidated
	intent.Dependencies = []string{"dep-1"}
	require.NoError(t, st.PutIntent(context.Background(), intent))

	results, err := eng.ProcessQueue(context.Background(), QueueOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeValidated, results[0].Outcome)
}

func TestProcessQueue_LockHeldReturnsSingleBlockedResult(t *testing.T) {
	eng, _ := newTestEngine(&fakeSCM{}, &fakeRunner{})
	acquired, err := eng.Log.AcquireQueueLock(context.Background(), QueueLockName, "other-holder", 120)
	require.NoError(t, err)
	require.True(t, acquired)

	results, err := eng.ProcessQueue(context.Background(), QueueOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Reason, "lock held")
}
