package projections

import (
	"context"
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueState_BucketsByStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	statuses := []models.Status{models.StatusReady, models.StatusValidated, models.StatusQueued, models.StatusMerged}
	for i, status := range statuses {
		intent := models.NewIntent("qs-"+string(rune('0'+i)), "f", "main")
		intent.Status = status
		require.NoError(t, svc.Intents.PutIntent(ctx, intent))
	}

	state, err := svc.QueueState(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, state.Total)
	assert.Len(t, state.Pending, 3)
	assert.Equal(t, 1, state.Merged)
}
