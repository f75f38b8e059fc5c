package engine

import (
	"context"
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmMerge_QueuedIntentBecomesMerged(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	intent := models.NewIntent("c1", "feature", "main")
	intent.Status = models.StatusQueued
	require.NoError(t, st.PutIntent(context.Background(), intent))

	d, err := eng.ConfirmMerge(context.Background(), "c1", "sha-123")
	require.NoError(t, err)
	assert.Equal(t, OutcomeMerged, d.Outcome)
	assert.Equal(t, "sha-123", d.MergedCommit)

	saved, _, _ := st.GetIntent(context.Background(), "c1")
	assert.Equal(t, models.StatusMerged, saved.Status)
}

func TestConfirmMerge_GeneratesCommitWhenNoneSupplied(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	intent := models.NewIntent("confirm-generated", "feature", "main")
	intent.Status = models.StatusValidated
	require.NoError(t, st.PutIntent(context.Background(), intent))

	d, err := eng.ConfirmMerge(context.Background(), "confirm-generated", "")
	require.NoError(t, err)
	assert.Contains(t, d.MergedCommit, "confirmed-")
}

func TestConfirmMerge_WrongStatusErrors(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	intent := models.NewIntent("c2", "feature", "main")
	intent.Status = models.StatusReady
	require.NoError(t, st.PutIntent(context.Background(), intent))

	_, err := eng.ConfirmMerge(context.Background(), "c2", "sha")
	assert.Error(t, err)
}

func TestConfirmMerge_UnknownIntentErrors(t *testing.T) {
	eng, _ := newTestEngine(&fakeSCM{}, &fakeRunner{})
	_, err := eng.ConfirmMerge(context.Background(), "nope", "sha")
	assert.Error(t, err)
}

func TestResetQueue_ClearsRetriesAndSetsStatus(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	intent := models.NewIntent("r1", "feature", "main")
	intent.Retries = 2
	intent.Status = models.StatusRejected
	require.NoError(t, st.PutIntent(context.Background(), intent))

	ready := models.StatusReady
	updated, err := eng.ResetQueue(context.Background(), "r1", &ready, false)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Retries)
	assert.Equal(t, models.StatusReady, updated.Status)
}

func TestResetQueue_ClearLockForcesRelease(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	intent := models.NewIntent("r2", "feature", "main")
	require.NoError(t, st.PutIntent(context.Background(), intent))

	_, err := eng.Log.AcquireQueueLock(context.Background(), QueueLockName, "stuck-holder", 120)
	require.NoError(t, err)

	_, err = eng.ResetQueue(context.Background(), "r2", nil, true)
	require.NoError(t, err)

	acquired, err := eng.Log.AcquireQueueLock(context.Background(), QueueLockName, "new-holder", 120)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestInspectQueue_OnlyActionableFiltersToThreeStatuses(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	ready := models.NewIntent("in1", "a", "main")
	merged := models.NewIntent("in2", "b", "main")
	merged.Status = models.StatusMerged
	require.NoError(t, st.PutIntent(context.Background(), ready))
	require.NoError(t, st.PutIntent(context.Background(), merged))

	rows, err := eng.InspectQueue(context.Background(), InspectOptions{OnlyActionable: true})
	require.NoError(t, err)
	for _, r := range rows {
		assert.NotEqual(t, models.StatusMerged, r.Status)
	}
}

func TestInspectQueue_MinRetriesFilters(t *testing.T) {
	eng, st := newTestEngine(&fakeSCM{}, &fakeRunner{})
	low := models.NewIntent("in3", "a", "main")
	high := models.NewIntent("in4", "b", "main")
	high.Retries = 5
	require.NoError(t, st.PutIntent(context.Background(), low))
	require.NoError(t, st.PutIntent(context.Background(), high))

	min := 3
	rows, err := eng.InspectQueue(context.Background(), InspectOptions{MinRetries: &min})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "in4", rows[0].IntentID)
}
