package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ghmbegerez/converge/pkg/coherence"
	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/policy"
	"github.com/ghmbegerez/converge/pkg/review"
	"github.com/ghmbegerez/converge/pkg/risk"
)

// ValidateOptions controls one ValidateIntent call.
type ValidateOptions struct {
	Sim               *models.Simulation // pre-computed simulation, skips re-simulating
	UseLastSimulation bool
	SkipChecks        bool
	Cwd               string
}

// ValidateIntent is Invariant 1: mergeable(i, t) = can_merge(M(t), Δi) ∧
// checks_pass. It simulates (or reuses) the merge, runs required checks,
// evaluates risk (informational, never blocking), evaluates the policy
// gates, and evaluates the separate risk gate — any of the middle four
// steps can return a Blocked decision; risk evaluation cannot.
// Grounded on original_source/engine.py's validate_intent.
func (e *Engine) ValidateIntent(ctx context.Context, intent *models.Intent, opts ValidateOptions) (*Decision, error) {
	traceID := eventlog.NewTraceID()

	sim, decision, err := e.resolveSimulation(ctx, intent, opts, traceID)
	if err != nil || decision != nil {
		return decision, err
	}

	checksPassed, decision, err := e.runValidationChecks(ctx, intent, opts, sim, traceID)
	if err != nil || decision != nil {
		return decision, err
	}

	riskEval, err := e.evaluateRiskStep(ctx, intent, sim, opts.Cwd, traceID)
	if err != nil {
		return nil, err
	}

	// Coherence is evaluated ahead of the policy gates (rather than
	// after the risk gate, as step 6 of spec.md §4.7 lists it) so its
	// score can feed the policy engine's gate 5 (spec.md §4.4 gate 5);
	// a FAIL verdict still blocks immediately, before any gate runs.
	coherenceEval, decision, err := e.evaluateCoherenceStep(ctx, intent, sim, opts.Cwd, traceID)
	if err != nil || decision != nil {
		return decision, err
	}
	var coherenceScore *float64
	if coherenceEval != nil {
		coherenceScore = &coherenceEval.CoherenceScore
	}

	policyEval, decision, err := e.evaluatePolicyStep(ctx, intent, checksPassed, riskEval, coherenceScore, sim, traceID)
	if err != nil || decision != nil {
		return decision, err
	}

	riskGate, decision, err := e.evaluateRiskGateStep(ctx, intent, riskEval, policyEval, sim, traceID)
	if err != nil || decision != nil {
		return decision, err
	}

	if coherenceEval != nil && coherenceEval.Verdict == models.CoherenceWarn {
		if err := e.requestCoherenceReview(ctx, intent); err != nil {
			return nil, err
		}
	}

	return e.finalizeValidation(ctx, intent, sim, riskEval, policyEval, riskGate, coherenceEval, traceID)
}

// evaluateCoherenceStep runs the coherence harness if one is configured
// (spec.md §4.5, §4.7 step 6). A harness with no enabled questions is
// "not configured" and the step is skipped entirely — no event, no
// score, gate 5 stays unevaluated. A FAIL verdict blocks immediately.
func (e *Engine) evaluateCoherenceStep(ctx context.Context, intent *models.Intent, sim *models.Simulation, cwd, traceID string) (*models.CoherenceEvaluation, *Decision, error) {
	harnessCfg, err := coherence.LoadHarness(e.CoherenceHarnessPath)
	if err != nil {
		return nil, nil, err
	}
	questions := harnessCfg.EnabledQuestions()
	if len(questions) == 0 {
		return nil, nil, nil
	}

	baselines, err := coherence.LoadBaselines(ctx, e.Log)
	if err != nil {
		return nil, nil, err
	}
	coherenceEval := coherence.Evaluate(ctx, questions, coherence.EvaluateOptions{
		Workdir:        cwd,
		Baselines:      baselines,
		HarnessVersion: harnessCfg.Version,
	})

	ev := models.NewEvent(models.EventCoherenceEvaluated, map[string]any{
		"coherence_score": coherenceEval.CoherenceScore,
		"verdict":         string(coherenceEval.Verdict),
		"results":         coherenceEval.Results,
		"trace_id":        traceID,
	})
	ev.TraceID = traceID
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{
		"coherence_score": coherenceEval.CoherenceScore,
		"verdict":         string(coherenceEval.Verdict),
		"trace_id":        traceID,
	}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, nil, err
	}

	if coherenceEval.Verdict == models.CoherenceFail {
		reason := fmt.Sprintf("Coherence harness failed: score %.1f", coherenceEval.CoherenceScore)
		d, err := e.block(ctx, intent, reason, sim, nil, nil, traceID)
		return coherenceEval, d, err
	}
	return coherenceEval, nil, nil
}

// requestCoherenceReview files the trigger=coherence review task a WARN
// verdict calls for (spec.md §4.7 step 6). Reviews is optional; when
// unset the WARN verdict still lets the intent proceed, it just isn't
// routed to a human.
func (e *Engine) requestCoherenceReview(ctx context.Context, intent *models.Intent) error {
	if e.Reviews == nil {
		return nil
	}
	_, err := e.Reviews.RequestReview(ctx, intent.ID, review.RequestOptions{
		Trigger:  "coherence",
		TenantID: intent.TenantID,
	})
	return err
}

func (e *Engine) resolveSimulation(ctx context.Context, intent *models.Intent, opts ValidateOptions, traceID string) (*models.Simulation, *Decision, error) {
	sim := opts.Sim
	if sim == nil {
		if opts.UseLastSimulation {
			found, ok, err := e.SimulateFromLast(ctx, intent.ID)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				d, err := e.block(ctx, intent, "No previous simulation found", nil, nil, nil, traceID)
				return nil, d, err
			}
			sim = found
		} else {
			tenant := ""
			if intent.TenantID != nil {
				tenant = *intent.TenantID
			}
			computed, err := e.Simulate(ctx, intent.Source, intent.Target, intent.ID, tenant, opts.Cwd, traceID)
			if err != nil {
				return nil, nil, err
			}
			sim = computed
		}
	}

	if !sim.Mergeable {
		shown := sim.Conflicts
		if len(shown) > ConflictDisplayLimit {
			shown = shown[:ConflictDisplayLimit]
		}
		reason := fmt.Sprintf("Merge conflicts: %s", strings.Join(shown, ", "))
		d, err := e.block(ctx, intent, reason, sim, nil, nil, traceID)
		return nil, d, err
	}
	return sim, nil, nil
}

func (e *Engine) runValidationChecks(ctx context.Context, intent *models.Intent, opts ValidateOptions, sim *models.Simulation, traceID string) ([]string, *Decision, error) {
	required := e.ChecksForRiskLevel(intent.RiskLevel, string(intent.OriginType))
	if opts.SkipChecks {
		return required, nil, nil
	}

	tenant := ""
	if intent.TenantID != nil {
		tenant = *intent.TenantID
	}
	results, err := e.RunChecks(ctx, required, intent.ID, tenant, opts.Cwd, traceID)
	if err != nil {
		return nil, nil, err
	}

	var passed []string
	var failed []string
	for _, r := range results {
		if r.Passed {
			passed = append(passed, r.CheckType)
		} else {
			failed = append(failed, r.CheckType)
		}
	}
	if len(failed) > 0 {
		d, err := e.block(ctx, intent, fmt.Sprintf("Checks failed: %v", failed), sim, nil, nil, traceID)
		return nil, d, err
	}
	return passed, nil, nil
}

func (e *Engine) evaluateRiskStep(ctx context.Context, intent *models.Intent, sim *models.Simulation, cwd, traceID string) (*models.RiskEval, error) {
	var coupling []map[string]any
	if e.Coupling != nil {
		loaded, err := e.Coupling.LoadCouplingData(cwd)
		if err != nil {
			return nil, err
		}
		coupling = loaded
	}

	riskEval := risk.Evaluate(intent, sim, coupling)
	riskEval.TenantID = intent.TenantID

	ev := models.NewEvent(models.EventRiskEvaluated, riskEvalPayload(riskEval))
	ev.TraceID = traceID
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{
		"risk_score":   riskEval.RiskScore,
		"damage_score": riskEval.DamageScore,
		"signals": map[string]any{
			"entropic_load":    riskEval.Signals.EntropicLoad,
			"contextual_value": riskEval.Signals.ContextualValue,
			"complexity_delta": riskEval.Signals.ComplexityDelta,
			"path_dependence":  riskEval.Signals.PathDependence,
		},
		"bombs":    riskEval.BombTypes(),
		"trace_id": traceID,
	}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}
	return riskEval, nil
}

func riskEvalPayload(r *models.RiskEval) map[string]any {
	return map[string]any{
		"intent_id":         r.IntentID,
		"risk_score":        r.RiskScore,
		"damage_score":      r.DamageScore,
		"entropy_score":     r.EntropyScore,
		"propagation_score": r.PropagationScore,
		"containment_score": r.ContainmentScore,
		"bombs":             r.Bombs,
		"bomb_types":        r.BombTypes(),
		"findings":          r.Findings,
		"impact_edges":      r.ImpactEdges,
		"graph_metrics":     r.GraphMetrics,
		"signals": map[string]any{
			"entropic_load":    r.Signals.EntropicLoad,
			"contextual_value": r.Signals.ContextualValue,
			"complexity_delta": r.Signals.ComplexityDelta,
			"path_dependence":  r.Signals.PathDependence,
		},
	}
}

func (e *Engine) evaluatePolicyStep(ctx context.Context, intent *models.Intent, checksPassed []string, riskEval *models.RiskEval, coherenceScore *float64, sim *models.Simulation, traceID string) (*models.PolicyEvaluation, *Decision, error) {
	policyEval := policy.Evaluate(e.Policy, policy.EvaluateInput{
		RiskLevel:        intent.RiskLevel,
		ChecksPassed:     checksPassed,
		EntropyDelta:     riskEval.EntropyScore,
		ContainmentScore: riskEval.ContainmentScore,
		CoherenceScore:   coherenceScore,
		OriginType:       string(intent.OriginType),
	})

	ev := models.NewEvent(models.EventPolicyEvaluated, map[string]any{
		"verdict":      string(policyEval.Verdict),
		"gates":        policyEval.Gates,
		"profile_used": policyEval.ProfileUsed,
		"trace_id":     traceID,
	})
	ev.TraceID = traceID
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{"verdict": string(policyEval.Verdict), "trace_id": traceID}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, nil, err
	}

	if policyEval.Verdict == models.PolicyBlock {
		d, err := e.block(ctx, intent, fmt.Sprintf("Policy blocked: gates %v", policyEval.BlockedGates()), sim, riskEval, policyEval, traceID)
		return nil, d, err
	}
	return policyEval, nil, nil
}

func (e *Engine) evaluateRiskGateStep(ctx context.Context, intent *models.Intent, riskEval *models.RiskEval, policyEval *models.PolicyEvaluation, sim *models.Simulation, traceID string) (*models.RiskGateResult, *Decision, error) {
	riskGate := policy.EvaluateRiskGate(policy.RiskGateInput{
		RiskScore:        riskEval.RiskScore,
		DamageScore:      riskEval.DamageScore,
		PropagationScore: riskEval.PropagationScore,
		Thresholds:       e.Policy.Risk,
		Mode:             policy.RiskGateShadow,
		IntentID:         intent.ID,
	})

	if riskGate.Enforced {
		d, err := e.block(ctx, intent, fmt.Sprintf("Risk gate enforced: %v", riskGate.Breaches), sim, riskEval, policyEval, traceID)
		return nil, d, err
	}
	return riskGate, nil, nil
}

func (e *Engine) finalizeValidation(ctx context.Context, intent *models.Intent, sim *models.Simulation, riskEval *models.RiskEval, policyEval *models.PolicyEvaluation, riskGate *models.RiskGateResult, coherenceEval *models.CoherenceEvaluation, traceID string) (*Decision, error) {
	intent.Status = models.StatusValidated
	intent.UpdatedAt = models.NowISO()
	if err := e.Intents.PutIntent(ctx, intent); err != nil {
		return nil, err
	}

	ev := models.NewEvent(models.EventIntentValidated, map[string]any{
		"source": intent.Source, "target": intent.Target, "trace_id": traceID,
	})
	ev.TraceID = traceID
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{"risk_score": riskEval.RiskScore, "policy_verdict": "ALLOW", "trace_id": traceID}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return &Decision{
		Outcome:    OutcomeValidated,
		IntentID:   intent.ID,
		TraceID:    traceID,
		Simulation: sim,
		Risk:       riskEval,
		Policy:     policyEval,
		RiskGate:   riskGate,
		Coherence:  coherenceEval,
	}, nil
}

func (e *Engine) block(ctx context.Context, intent *models.Intent, reason string, sim *models.Simulation, riskEval *models.RiskEval, policyEval *models.PolicyEvaluation, traceID string) (*Decision, error) {
	ev := models.NewEvent(models.EventIntentBlocked, map[string]any{"reason": reason, "trace_id": traceID})
	ev.TraceID = traceID
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{"reason": reason, "trace_id": traceID}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return &Decision{
		Outcome:    OutcomeBlocked,
		IntentID:   intent.ID,
		TraceID:    traceID,
		Reason:     reason,
		Simulation: sim,
		Risk:       riskEval,
		Policy:     policyEval,
	}, nil
}
