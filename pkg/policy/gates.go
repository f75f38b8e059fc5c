// Package policy implements the Policy Engine (spec.md §4.4): layered
// profile configuration, the four-gate (plus coherence) verdict, the
// separately-rolled-out risk gate, and entropy-budget calibration.
package policy

import (
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

// EvaluateInput bundles the per-call inputs gate evaluation needs.
type EvaluateInput struct {
	RiskLevel        models.RiskLevel
	ChecksPassed     []string
	EntropyDelta     float64
	ContainmentScore float64
	// SecurityFindings is nil to skip the security gate entirely
	// (spec.md §4.4 gate 4 "evaluated only if supplied").
	SecurityFindings []*models.SecurityFinding
	// CoherenceScore is nil to skip the coherence gate (gate 5,
	// "evaluated only if a coherence score is supplied").
	CoherenceScore *float64
	OriginType     string
}

// Evaluate runs the applicable gates and returns the aggregate
// verdict: ALLOW iff every included gate passes (spec.md §4.4).
func Evaluate(cfg *Config, in EvaluateInput) *models.PolicyEvaluation {
	profile := cfg.ProfileFor(string(in.RiskLevel), in.OriginType)

	gates := []models.GateResult{
		verificationGate(profile, in.ChecksPassed),
		containmentGate(profile, in.ContainmentScore),
		entropyGate(profile, in.EntropyDelta),
	}
	if in.SecurityFindings != nil {
		gates = append(gates, securityGate(profile, in.SecurityFindings))
	}
	if in.CoherenceScore != nil {
		gates = append(gates, coherenceGate(in.RiskLevel, *in.CoherenceScore))
	}

	allPassed := true
	for _, g := range gates {
		if !g.Passed {
			allPassed = false
			break
		}
	}

	verdict := models.PolicyBlock
	if allPassed {
		verdict = models.PolicyAllow
	}
	return &models.PolicyEvaluation{
		Verdict:     verdict,
		Gates:       gates,
		RiskLevel:   in.RiskLevel,
		ProfileUsed: string(in.RiskLevel),
	}
}

func verificationGate(profile Profile, checksPassed []string) models.GateResult {
	passedSet := map[string]bool{}
	for _, c := range checksPassed {
		passedSet[c] = true
	}
	var missing []string
	for _, required := range profile.Checks {
		if !passedSet[required] {
			missing = append(missing, required)
		}
	}
	reason := "All required checks passed"
	if len(missing) > 0 {
		reason = fmt.Sprintf("Missing checks: %v", missing)
	}
	return models.GateResult{
		Gate:      models.GateVerification,
		Passed:    len(missing) == 0,
		Reason:    reason,
		Value:     float64(len(checksPassed)),
		Threshold: float64(len(profile.Checks)),
	}
}

func containmentGate(profile Profile, containmentScore float64) models.GateResult {
	return models.GateResult{
		Gate:      models.GateContainment,
		Passed:    containmentScore >= profile.ContainmentMin,
		Reason:    fmt.Sprintf("Containment %.2f vs min %.2f", containmentScore, profile.ContainmentMin),
		Value:     containmentScore,
		Threshold: profile.ContainmentMin,
	}
}

func entropyGate(profile Profile, entropyDelta float64) models.GateResult {
	return models.GateResult{
		Gate:      models.GateEntropy,
		Passed:    entropyDelta <= profile.EntropyBudget,
		Reason:    fmt.Sprintf("Entropy delta %.1f vs budget %.1f", entropyDelta, profile.EntropyBudget),
		Value:     entropyDelta,
		Threshold: profile.EntropyBudget,
	}
}

func securityGate(profile Profile, findings []*models.SecurityFinding) models.GateResult {
	var critical, high int
	for _, f := range findings {
		switch f.Severity {
		case "critical":
			critical++
		case "high":
			high++
		}
	}
	passed := critical <= profile.Security.MaxCritical && high <= profile.Security.MaxHigh
	return models.GateResult{
		Gate:   models.GateSecurity,
		Passed: passed,
		Reason: fmt.Sprintf("Security: %d critical, %d high (max critical=%d, max high=%d)",
			critical, high, profile.Security.MaxCritical, profile.Security.MaxHigh),
		Value:     float64(critical*10 + high),
		Threshold: float64(profile.Security.MaxCritical*10 + profile.Security.MaxHigh),
	}
}

// coherenceGate applies the profile-specific pass threshold (80 for
// critical, 75 otherwise). It never produces a "warn" outcome itself —
// warn-zone nuance belongs to the coherence harness's own verdict
// (spec.md §4.5); the gate only needs pass/fail.
func coherenceGate(riskLevel models.RiskLevel, score float64) models.GateResult {
	threshold := coherencePassDefault
	if riskLevel == models.RiskCritical {
		threshold = coherencePassCritical
	}
	return models.GateResult{
		Gate:      models.GateCoherence,
		Passed:    score >= threshold,
		Reason:    fmt.Sprintf("Coherence score %.1f vs pass threshold %.1f", score, threshold),
		Value:     score,
		Threshold: threshold,
	}
}
