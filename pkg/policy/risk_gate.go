package policy

import (
	"fmt"

	"github.com/ghmbegerez/converge/pkg/bucket"
	"github.com/ghmbegerez/converge/pkg/models"
)

// RiskGateMode selects enforcement behavior for EvaluateRiskGate.
type RiskGateMode string

const (
	RiskGateShadow  RiskGateMode = "shadow"
	RiskGateEnforce RiskGateMode = "enforce"
)

// RiskGateInput bundles the inputs to the separate, gradually-rolled-
// out risk gate (spec.md §4.4 "Risk gate (separate)").
type RiskGateInput struct {
	RiskScore        float64
	DamageScore      float64
	PropagationScore float64
	Thresholds       RiskThresholds
	Mode             RiskGateMode
	EnforceRatio     float64
	IntentID         string
}

// EvaluateRiskGate computes breaches against the tenant thresholds and
// decides whether this intent falls in the current canary rollout
// slice. The rollout bucket is shared, byte-for-byte, with the Intake
// Controller's throttle decision via pkg/bucket — spec.md §9 calls this
// out as a public contract between the two call sites.
func EvaluateRiskGate(in RiskGateInput) *models.RiskGateResult {
	scores := map[string]float64{
		"risk_score":        in.RiskScore,
		"damage_score":       in.DamageScore,
		"propagation_score": in.PropagationScore,
	}
	limits := map[string]float64{
		"risk_score":        in.Thresholds.RiskScore,
		"damage_score":       in.Thresholds.DamageScore,
		"propagation_score": in.Thresholds.PropagationScore,
	}

	var breaches []string
	for _, metric := range []string{"risk_score", "damage_score", "propagation_score"} {
		if scores[metric] > limits[metric] {
			breaches = append(breaches, fmt.Sprintf("%s=%.1f>%.1f", metric, scores[metric], limits[metric]))
		}
	}

	wouldBlock := len(breaches) > 0

	b := 0.0
	if in.IntentID != "" {
		b = bucket.Rollout(in.IntentID)
	}
	inGroup := b < in.EnforceRatio
	enforced := in.Mode == RiskGateEnforce && wouldBlock && inGroup

	return &models.RiskGateResult{
		Breaches:           breaches,
		WouldBlock:         wouldBlock,
		RolloutBucket:      round4(b),
		InEnforcementGroup: inGroup,
		Enforced:           enforced,
		Mode:               string(in.Mode),
	}
}

func round4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}
