package coherence

import (
	"context"
	"testing"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBaselines_NoEventsYieldsEmptyMap(t *testing.T) {
	log := eventlog.New(memory.New())
	baselines, err := LoadBaselines(context.Background(), log)
	require.NoError(t, err)
	assert.Empty(t, baselines)
}

func TestUpdateBaselines_PersistsAndRoundTrips(t *testing.T) {
	log := eventlog.New(memory.New())
	ctx := context.Background()

	results := []models.CoherenceResult{
		{QuestionID: "q1", Value: 12.0},
		{QuestionID: "q2", Value: 3.0},
	}
	written, err := UpdateBaselines(ctx, log, results)
	require.NoError(t, err)
	assert.Equal(t, 12.0, written["q1"])

	loaded, err := LoadBaselines(ctx, log)
	require.NoError(t, err)
	assert.Equal(t, 12.0, loaded["q1"])
	assert.Equal(t, 3.0, loaded["q2"])
}

func TestUpdateBaselines_SkipsErroredResults(t *testing.T) {
	log := eventlog.New(memory.New())
	ctx := context.Background()

	errMsg := "command failed"
	results := []models.CoherenceResult{
		{QuestionID: "q-ok", Value: 5.0},
		{QuestionID: "q-bad", Value: 0.0, Error: &errMsg},
	}
	written, err := UpdateBaselines(ctx, log, results)
	require.NoError(t, err)
	assert.Contains(t, written, "q-ok")
	assert.NotContains(t, written, "q-bad")
}

func TestLoadBaselines_UsesMostRecentEvent(t *testing.T) {
	log := eventlog.New(memory.New())
	ctx := context.Background()

	_, err := UpdateBaselines(ctx, log, []models.CoherenceResult{{QuestionID: "q1", Value: 1.0}})
	require.NoError(t, err)
	_, err = UpdateBaselines(ctx, log, []models.CoherenceResult{{QuestionID: "q1", Value: 99.0}})
	require.NoError(t, err)

	loaded, err := LoadBaselines(ctx, log)
	require.NoError(t, err)
	assert.Equal(t, 99.0, loaded["q1"])
}
