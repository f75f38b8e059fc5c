package projections

import (
	"context"
	"time"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// Health scoring weights (original_source/projections/health.py's
// module-level constants, ported verbatim).
const (
	weightConflict    = 30.0
	weightEntropyCap  = 50.0
	weightEntropy     = 0.5
	weightRejectedCap = 20.0
	weightRejected    = 1.5

	weightChangeRisk     = 0.5
	weightChangeEntropy  = 0.3
	weightChangeConflict = 30.0
)

func sinceHours(hours int) string {
	return time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339Nano)
}

func sinceDays(days int) string {
	return time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339Nano)
}

// RepoHealth computes and records a repo-wide health snapshot from
// the last windowHours of simulation/merge/rejection/risk events.
func (s *Service) RepoHealth(ctx context.Context, tenantID *string, windowHours int) (*models.HealthSnapshot, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	since := sinceHours(windowHours)

	sims, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventSimulationCompleted), TenantID: tenantID, Since: since, Limit: 5000,
	})
	if err != nil {
		return nil, err
	}
	totalSims := len(sims)
	mergeableSims := 0
	for _, e := range sims {
		if asBool(e.Payload["mergeable"]) {
			mergeableSims++
		}
	}
	mergeableRate := 1.0
	if totalSims > 0 {
		mergeableRate = float64(mergeableSims) / float64(totalSims)
	}
	conflictRate := 1.0 - mergeableRate

	merged, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventIntentMerged), TenantID: tenantID, Since: since, Limit: 5000,
	})
	if err != nil {
		return nil, err
	}
	rejected, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventIntentRejected), TenantID: tenantID, Since: since, Limit: 5000,
	})
	if err != nil {
		return nil, err
	}

	riskEvents, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventRiskEvaluated), TenantID: tenantID, Since: since, Limit: 5000,
	})
	if err != nil {
		return nil, err
	}
	avgEntropy := 0.0
	if len(riskEvents) > 0 {
		var sum float64
		for _, e := range riskEvents {
			sum += asFloat(e.Payload["entropy_score"])
		}
		avgEntropy = sum / float64(len(riskEvents))
	}

	activeCount, err := s.activeIntentCount(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	healthScore := 100.0
	healthScore -= conflictRate * weightConflict
	healthScore -= minFloat(avgEntropy, weightEntropyCap) * weightEntropy
	healthScore -= minFloat(float64(len(rejected)), weightRejectedCap) * weightRejected
	healthScore = clamp(round1(healthScore), 0, 100)

	snapshot := &models.HealthSnapshot{
		RepoHealthScore: healthScore,
		EntropyScore:    round1(avgEntropy),
		MergeableRate:   round3(mergeableRate),
		ConflictRate:    round3(conflictRate),
		ActiveIntents:   activeCount,
		MergedLast24h:   len(merged),
		RejectedLast24h: len(rejected),
		Status:          healthStatus(healthScore),
		TenantID:        tenantID,
		Learning:        deriveHealthLearning(healthScore, mergeableRate, avgEntropy, len(rejected)),
	}

	ev := models.NewEvent(models.EventHealthSnapshot, healthPayload(snapshot))
	ev.TenantID = tenantID
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// activeIntentCount counts intents in READY/VALIDATED/QUEUED.
func (s *Service) activeIntentCount(ctx context.Context, tenantID *string) (int, error) {
	all, err := s.Intents.ListAllIntents(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, i := range all {
		switch i.Status {
		case models.StatusReady, models.StatusValidated, models.StatusQueued:
			count++
		}
	}
	return count, nil
}

// ChangeHealth computes a point-in-time health score for a single
// intent from its most recent risk/simulation/policy evaluations.
func (s *Service) ChangeHealth(ctx context.Context, intentID string, tenantID *string) (map[string]any, error) {
	riskEvents, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventRiskEvaluated), IntentID: &intentID, Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	simEvents, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventSimulationCompleted), IntentID: &intentID, Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	policyEvents, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventPolicyEvaluated), IntentID: &intentID, Limit: 1,
	})
	if err != nil {
		return nil, err
	}

	riskScore, entropy := 0.0, 0.0
	if len(riskEvents) > 0 {
		riskScore = asFloat(riskEvents[0].Payload["risk_score"])
		entropy = asFloat(riskEvents[0].Payload["entropy_score"])
	}
	mergeable := true
	if len(simEvents) > 0 {
		mergeable = asBool(simEvents[0].Payload["mergeable"])
	}
	verdict := "unknown"
	if len(policyEvents) > 0 {
		if v, ok := policyEvents[0].Payload["verdict"].(string); ok {
			verdict = v
		}
	}

	healthScore := 100.0 - riskScore*weightChangeRisk - entropy*weightChangeEntropy
	if !mergeable {
		healthScore -= weightChangeConflict
	}
	healthScore = clamp(round1(healthScore), 0, 100)

	result := map[string]any{
		"intent_id":      intentID,
		"health_score":   healthScore,
		"risk_score":     riskScore,
		"entropy_score":  entropy,
		"mergeable":      mergeable,
		"policy_verdict": verdict,
		"status":         healthStatus(healthScore),
		"timestamp":      models.NowISO(),
		"tenant_id":      tenantID,
		"learning":       deriveChangeLearning(healthScore, riskScore, entropy, mergeable),
	}

	ev := models.NewEvent(models.EventHealthChangeSnapshot, result)
	ev.IntentID = &intentID
	ev.TenantID = tenantID
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return result, nil
}

func healthPayload(h *models.HealthSnapshot) map[string]any {
	return map[string]any{
		"repo_health_score": h.RepoHealthScore,
		"entropy_score":     h.EntropyScore,
		"mergeable_rate":    h.MergeableRate,
		"conflict_rate":     h.ConflictRate,
		"active_intents":    h.ActiveIntents,
		"merged_last_24h":   h.MergedLast24h,
		"rejected_last_24h": h.RejectedLast24h,
		"status":            h.Status,
		"tenant_id":         h.TenantID,
		"learning":          h.Learning,
	}
}

func eventTypePtr(t models.EventType) *string {
	s := string(t)
	return &s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
