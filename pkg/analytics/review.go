package analytics

import (
	"context"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// intentEvents bundles the latest risk/simulation/policy payloads and
// full decision history for one intent (analytics.py's
// _gather_intent_events).
type intentEvents struct {
	RiskPayload   map[string]any
	SimPayload    map[string]any
	PolicyPayload map[string]any
	Decisions     []*models.Event
}

func (s *Service) gatherIntentEvents(ctx context.Context, intentID string) (*intentEvents, error) {
	risk, err := s.latestEventPayload(ctx, models.EventRiskEvaluated, intentID)
	if err != nil {
		return nil, err
	}
	sim, err := s.latestEventPayload(ctx, models.EventSimulationCompleted, intentID)
	if err != nil {
		return nil, err
	}
	pol, err := s.latestEventPayload(ctx, models.EventPolicyEvaluated, intentID)
	if err != nil {
		return nil, err
	}
	decisions, err := s.Log.Query(ctx, store.EventQuery{IntentID: &intentID, Limit: decisionQueryLimit})
	if err != nil {
		return nil, err
	}
	return &intentEvents{RiskPayload: risk, SimPayload: sim, PolicyPayload: pol, Decisions: decisions}, nil
}

func (s *Service) latestEventPayload(ctx context.Context, eventType models.EventType, intentID string) (map[string]any, error) {
	et := string(eventType)
	events, err := s.Log.Query(ctx, store.EventQuery{EventType: &et, IntentID: &intentID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return events[0].Payload, nil
}

// diagnostic is a single risk/simulation observation surfaced to a
// reviewer, joined from the risk-evaluated event's findings (no
// diagnostics-builder module survived the retrieval pack; this is
// reconstructed directly from RiskEval.Findings rather than a
// dedicated risk_mod.build_diagnostics translation).
type diagnostic struct {
	Severity    string `json:"severity"`
	Explanation string `json:"explanation"`
}

func buildReviewDiagnostics(events *intentEvents) []diagnostic {
	if events.RiskPayload == nil {
		return nil
	}
	return extractFindings(events.RiskPayload["findings"])
}

// extractFindings reads the risk.evaluated payload's "findings" key,
// which is a []models.Finding when the event came straight from an
// in-process store and a []any of map[string]any when it round-tripped
// through JSON (postgres).
func extractFindings(raw any) []diagnostic {
	switch v := raw.(type) {
	case []models.Finding:
		diags := make([]diagnostic, 0, len(v))
		for _, f := range v {
			diags = append(diags, diagnostic{Severity: f.Severity, Explanation: f.Message})
		}
		return diags
	case []any:
		diags := make([]diagnostic, 0, len(v))
		for _, rf := range v {
			m, ok := rf.(map[string]any)
			if !ok {
				continue
			}
			severity, _ := m["severity"].(string)
			message, _ := m["message"].(string)
			diags = append(diags, diagnostic{Severity: severity, Explanation: message})
		}
		return diags
	default:
		return nil
	}
}

func deriveReviewLearning(riskPayload map[string]any, diags []diagnostic) map[string]any {
	lessons := make([]map[string]any, 0, 2)

	critical := make([]diagnostic, 0)
	for _, d := range diags {
		if d.Severity == "critical" {
			critical = append(critical, d)
		}
	}
	if len(critical) > 0 {
		shown := critical
		if len(shown) > reviewCriticalDisplay {
			shown = shown[:reviewCriticalDisplay]
		}
		explanations := ""
		for i, d := range shown {
			if i > 0 {
				explanations += "; "
			}
			explanations += d.Explanation
		}
		lessons = append(lessons, map[string]any{
			"code":     "learn.critical_diagnostics",
			"title":    "Critical issues detected",
			"why":      fmt.Sprintf("%d critical diagnostic(s) found", len(critical)),
			"action":   "Address critical issues before proceeding: " + explanations,
			"priority": 0,
		})
	}

	riskScore, _ := toFloat(riskPayload["risk_score"])
	if riskScore > reviewRiskThreshold {
		lessons = append(lessons, map[string]any{
			"code":     "learn.review_risk",
			"title":    "Elevated risk",
			"why":      fmt.Sprintf("Risk score %.0f", riskScore),
			"action":   "Review impact graph and consider narrowing scope",
			"priority": 1,
		})
	}

	return map[string]any{
		"lessons": lessons,
		"summary": fmt.Sprintf("Review: %d actionable lesson(s)", len(lessons)),
	}
}

// RiskReview builds a comprehensive per-intent risk report joining the
// intent, its latest risk/simulation/policy evaluations, decision
// history, diagnostics, and a compliance snapshot (analytics.py's
// risk_review).
func (s *Service) RiskReview(ctx context.Context, intentID string, tenantID *string) (map[string]any, error) {
	intent, found, err := s.Intents.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]any{"error": fmt.Sprintf("Intent %s not found", intentID)}, nil
	}

	events, err := s.gatherIntentEvents(ctx, intentID)
	if err != nil {
		return nil, err
	}

	compliance, err := s.Projections.ComplianceReport(ctx, tenantID, nil)
	if err != nil {
		return nil, err
	}

	diags := buildReviewDiagnostics(events)
	diagsOut := make([]map[string]any, 0, len(diags))
	for _, d := range diags {
		diagsOut = append(diagsOut, map[string]any{"severity": d.Severity, "explanation": d.Explanation})
	}

	decisionsOut := make([]map[string]any, 0, len(events.Decisions))
	for _, ev := range events.Decisions {
		decisionsOut = append(decisionsOut, map[string]any{
			"event_type": ev.EventType,
			"timestamp":  ev.Timestamp,
			"payload":    ev.Payload,
		})
	}

	review := map[string]any{
		"intent_id":        intentID,
		"intent":           intent,
		"risk":             events.RiskPayload,
		"simulation":       events.SimPayload,
		"policy":           events.PolicyPayload,
		"diagnostics":      diagsOut,
		"compliance":       compliance,
		"decision_history": decisionsOut,
		"timestamp":        models.NowISO(),
		"tenant_id":        tenantID,
	}

	if events.RiskPayload != nil {
		review["learning"] = deriveReviewLearning(events.RiskPayload, diags)
	}

	return review, nil
}
