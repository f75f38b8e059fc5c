package analytics

import (
	"context"
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskReview_UnknownIntentReturnsError(t *testing.T) {
	svc, _ := newTestService(nil)
	review, err := svc.RiskReview(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.Contains(t, review["error"], "missing")
}

func TestRiskReview_JoinsRiskSimPolicyAndLearning(t *testing.T) {
	svc, st := newTestService(nil)
	ctx := context.Background()

	intent := models.NewIntent("rev-1", "feature", "main")
	require.NoError(t, st.PutIntent(ctx, intent))

	riskEv := models.NewEvent(models.EventRiskEvaluated, map[string]any{
		"risk_score":   75.0,
		"damage_score": 40.0,
		"findings": []models.Finding{
			{Severity: "critical", Message: "cascading dependency"},
		},
	})
	riskEv.IntentID = &intent.ID
	_, err := svc.Log.Append(ctx, riskEv)
	require.NoError(t, err)

	simEv := models.NewEvent(models.EventSimulationCompleted, map[string]any{"mergeable": true})
	simEv.IntentID = &intent.ID
	_, err = svc.Log.Append(ctx, simEv)
	require.NoError(t, err)

	review, err := svc.RiskReview(ctx, intent.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, intent.ID, review["intent_id"])
	assert.NotNil(t, review["risk"])
	assert.NotNil(t, review["simulation"])

	learning := review["learning"].(map[string]any)
	lessons := learning["lessons"].([]map[string]any)
	require.Len(t, lessons, 2)
	assert.Equal(t, "learn.critical_diagnostics", lessons[0]["code"])
	assert.Equal(t, "learn.review_risk", lessons[1]["code"])
}
