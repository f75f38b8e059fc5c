package projections

import (
	"context"
	"sort"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

const defaultTrendDays = 30

// RiskTrend returns risk.evaluated samples over the trailing days
// window, oldest first, for charting risk score drift (spec.md
// §4.11).
func (s *Service) RiskTrend(ctx context.Context, tenantID *string, days int) ([]map[string]any, error) {
	if days <= 0 {
		days = defaultTrendDays
	}
	events, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventRiskEvaluated), TenantID: tenantID, Since: sinceDays(days), Limit: 2000,
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })

	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]any{
			"intent_id":  deref(e.IntentID),
			"risk_score": asFloat(e.Payload["risk_score"]),
			"timestamp":  e.Timestamp,
		})
	}
	return out, nil
}

// EntropyTrend returns risk.evaluated samples' entropy component over
// the trailing days window, oldest first.
func (s *Service) EntropyTrend(ctx context.Context, tenantID *string, days int) ([]map[string]any, error) {
	if days <= 0 {
		days = defaultTrendDays
	}
	events, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventRiskEvaluated), TenantID: tenantID, Since: sinceDays(days), Limit: 2000,
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })

	out := make([]map[string]any, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]any{
			"intent_id":     deref(e.IntentID),
			"entropy_score": asFloat(e.Payload["entropy_score"]),
			"timestamp":     e.Timestamp,
		})
	}
	return out, nil
}

// IntegrationMetrics summarizes simulation throughput: counts of
// simulations, merges, and rejections, plus the derived mergeable
// rate (spec.md §4.11).
func (s *Service) IntegrationMetrics(ctx context.Context, tenantID *string) (map[string]any, error) {
	sims, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventSimulationCompleted), TenantID: tenantID, Limit: 5000,
	})
	if err != nil {
		return nil, err
	}
	merged, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventIntentMerged), TenantID: tenantID, Limit: 5000,
	})
	if err != nil {
		return nil, err
	}
	rejected, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventIntentRejected), TenantID: tenantID, Limit: 5000,
	})
	if err != nil {
		return nil, err
	}

	mergeableRate := 1.0
	if len(sims) > 0 {
		mergeable := 0
		for _, e := range sims {
			if asBool(e.Payload["mergeable"]) {
				mergeable++
			}
		}
		mergeableRate = float64(mergeable) / float64(len(sims))
	}

	return map[string]any{
		"total_simulations": len(sims),
		"total_merged":      len(merged),
		"total_rejected":    len(rejected),
		"mergeable_rate":    round3(mergeableRate),
		"tenant_id":         tenantID,
		"timestamp":         models.NowISO(),
	}, nil
}

// PredictIssues returns predict_health's signals flattened into a
// standalone list, each annotated with the overall recommendation, for
// dashboards that want a single alerts feed (spec.md §4.11).
func (s *Service) PredictIssues(ctx context.Context, tenantID *string) ([]map[string]any, error) {
	prediction, err := s.PredictHealth(ctx, tenantID, 7, 3)
	if err != nil {
		return nil, err
	}
	signals, _ := prediction["signals"].([]map[string]any)
	recommendation, _ := prediction["recommendation"].(string)

	out := make([]map[string]any, 0, len(signals))
	for _, sig := range signals {
		enriched := map[string]any{}
		for k, v := range sig {
			enriched[k] = v
		}
		enriched["recommendation"] = recommendation
		out = append(out, enriched)
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
