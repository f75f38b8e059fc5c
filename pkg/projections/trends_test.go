package projections

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskTrend_ReturnsRiskScores(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := "team-a"
	seedEvents(t, svc.Log, 10, 5, 2)

	trend, err := svc.RiskTrend(context.Background(), &tenant, 30)
	require.NoError(t, err)
	require.Greater(t, len(trend), 0)
	assert.Contains(t, trend[0], "risk_score")
}

func TestEntropyTrend_ReturnsEntropyScores(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := "team-a"
	seedEvents(t, svc.Log, 10, 5, 2)

	trend, err := svc.EntropyTrend(context.Background(), &tenant, 30)
	require.NoError(t, err)
	require.Greater(t, len(trend), 0)
	assert.Contains(t, trend[0], "entropy_score")
}

func TestIntegrationMetrics_CountsSimulationsAndMerges(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := "team-a"
	seedEvents(t, svc.Log, 10, 5, 2)

	metrics, err := svc.IntegrationMetrics(context.Background(), &tenant)
	require.NoError(t, err)
	assert.Equal(t, 10, metrics["total_simulations"])
	assert.Equal(t, 5, metrics["total_merged"])
	assert.Contains(t, metrics, "mergeable_rate")
}

func TestPredictIssues_ReturnsFlattenedSignals(t *testing.T) {
	svc, _ := newTestService(t)
	tenant := "team-a"
	seedHealthSnapshots(t, svc, 8, true)

	issues, err := svc.PredictIssues(context.Background(), &tenant)
	require.NoError(t, err)
	if len(issues) > 0 {
		assert.Contains(t, issues[0], "recommendation")
	}
}
