package policy

import (
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	return &Config{Profiles: DefaultProfiles(), Risk: DefaultRiskThresholds()}
}

func TestEvaluate_AllowsWhenEveryGatePasses(t *testing.T) {
	cfg := defaultConfig()
	eval := Evaluate(cfg, EvaluateInput{
		RiskLevel:        models.RiskLow,
		ChecksPassed:     []string{"lint"},
		EntropyDelta:     5,
		ContainmentScore: 0.9,
	})
	assert.Equal(t, models.PolicyAllow, eval.Verdict)
	assert.Empty(t, eval.BlockedGates())
}

func TestEvaluate_BlocksOnMissingCheck(t *testing.T) {
	cfg := defaultConfig()
	eval := Evaluate(cfg, EvaluateInput{
		RiskLevel:        models.RiskMedium,
		ChecksPassed:     []string{"lint"},
		EntropyDelta:     5,
		ContainmentScore: 0.9,
	})
	assert.Equal(t, models.PolicyBlock, eval.Verdict)
	assert.Contains(t, eval.BlockedGates(), string(models.GateVerification))
}

func TestEvaluate_BlocksOnContainmentBelowMinimum(t *testing.T) {
	cfg := defaultConfig()
	eval := Evaluate(cfg, EvaluateInput{
		RiskLevel:        models.RiskLow,
		ChecksPassed:     []string{"lint"},
		EntropyDelta:     5,
		ContainmentScore: 0.1,
	})
	assert.Equal(t, models.PolicyBlock, eval.Verdict)
	assert.Contains(t, eval.BlockedGates(), string(models.GateContainment))
}

func TestEvaluate_BlocksOnEntropyOverBudget(t *testing.T) {
	cfg := defaultConfig()
	eval := Evaluate(cfg, EvaluateInput{
		RiskLevel:        models.RiskLow,
		ChecksPassed:     []string{"lint"},
		EntropyDelta:     99,
		ContainmentScore: 0.9,
	})
	assert.Contains(t, eval.BlockedGates(), string(models.GateEntropy))
}

func TestEvaluate_SecurityGateOnlyEvaluatedWhenSupplied(t *testing.T) {
	cfg := defaultConfig()
	withoutSecurity := Evaluate(cfg, EvaluateInput{
		RiskLevel: models.RiskLow, ChecksPassed: []string{"lint"}, EntropyDelta: 5, ContainmentScore: 0.9,
	})
	require.Len(t, withoutSecurity.Gates, 3)

	findings := []*models.SecurityFinding{{Severity: "critical"}}
	withSecurity := Evaluate(cfg, EvaluateInput{
		RiskLevel: models.RiskLow, ChecksPassed: []string{"lint"}, EntropyDelta: 5, ContainmentScore: 0.9,
		SecurityFindings: findings,
	})
	require.Len(t, withSecurity.Gates, 4)
	assert.Equal(t, models.PolicyBlock, withSecurity.Verdict, "low profile allows 0 critical findings")
}

func TestEvaluate_CoherenceGateCriticalProfileNeeds80(t *testing.T) {
	cfg := defaultConfig()
	score := 78.0
	eval := Evaluate(cfg, EvaluateInput{
		RiskLevel: models.RiskCritical, ChecksPassed: cfg.Profiles["critical"].Checks,
		EntropyDelta: 1, ContainmentScore: 0.95, CoherenceScore: &score,
	})
	assert.Contains(t, eval.BlockedGates(), string(models.GateCoherence))

	mediumEval := Evaluate(cfg, EvaluateInput{
		RiskLevel: models.RiskMedium, ChecksPassed: cfg.Profiles["medium"].Checks,
		EntropyDelta: 1, ContainmentScore: 0.95, CoherenceScore: &score,
	})
	assert.NotContains(t, mediumEval.BlockedGates(), string(models.GateCoherence), "78 clears the default 75 threshold")
}

func TestEvaluateRiskGate_ShadowNeverEnforces(t *testing.T) {
	result := EvaluateRiskGate(RiskGateInput{
		RiskScore: 95, DamageScore: 10, PropagationScore: 10,
		Thresholds: DefaultRiskThresholds(), Mode: RiskGateShadow, EnforceRatio: 1.0, IntentID: "intent-abc",
	})
	assert.True(t, result.WouldBlock)
	assert.False(t, result.Enforced)
}

func TestEvaluateRiskGate_DeterministicBucket(t *testing.T) {
	a := EvaluateRiskGate(RiskGateInput{IntentID: "intent-abc", Thresholds: DefaultRiskThresholds(), Mode: RiskGateEnforce, EnforceRatio: 0.5})
	b := EvaluateRiskGate(RiskGateInput{IntentID: "intent-abc", Thresholds: DefaultRiskThresholds(), Mode: RiskGateEnforce, EnforceRatio: 0.5})
	assert.Equal(t, a.RolloutBucket, b.RolloutBucket)

	never := EvaluateRiskGate(RiskGateInput{
		RiskScore: 95, Thresholds: DefaultRiskThresholds(), Mode: RiskGateEnforce, EnforceRatio: 0.0, IntentID: "intent-abc",
	})
	assert.False(t, never.Enforced)
}

func TestEvaluateRiskGate_EnforceModeEnforcesWhenInGroup(t *testing.T) {
	result := EvaluateRiskGate(RiskGateInput{
		RiskScore: 95, DamageScore: 10, PropagationScore: 10,
		Thresholds: DefaultRiskThresholds(), Mode: RiskGateEnforce, EnforceRatio: 1.0, IntentID: "intent-xyz",
	})
	assert.True(t, result.WouldBlock)
	assert.True(t, result.Enforced)
	assert.NotEmpty(t, result.Breaches)
}

func TestCalibrateProfiles_TightensTowardQuantilesWithFloors(t *testing.T) {
	base := DefaultProfiles()
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i) // 0..99, p75=75 p90=90 p95=95
	}
	calibrated := CalibrateProfiles(samples, base)

	assert.InDelta(t, 75.0*calibLowMult, calibrated["low"].EntropyBudget, 1.0)
	assert.InDelta(t, 75.0, calibrated["medium"].EntropyBudget, 1.0)
	assert.InDelta(t, 90.0, calibrated["high"].EntropyBudget, 1.0)
	assert.InDelta(t, 95.0, calibrated["critical"].EntropyBudget, 1.0)
}

func TestCalibrateProfiles_NeverBelowFloor(t *testing.T) {
	base := DefaultProfiles()
	samples := []float64{0, 0, 0, 0, 0}
	calibrated := CalibrateProfiles(samples, base)

	assert.GreaterOrEqual(t, calibrated["low"].EntropyBudget, calibFloorLow)
	assert.GreaterOrEqual(t, calibrated["critical"].EntropyBudget, calibFloorCritical)
}

func TestCalibrateProfiles_EmptySamplesReturnsBaseUnchanged(t *testing.T) {
	base := DefaultProfiles()
	calibrated := CalibrateProfiles(nil, base)
	assert.Equal(t, base, calibrated)
}
