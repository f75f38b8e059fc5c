package projections

import (
	"context"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// Default compliance thresholds, used whenever the caller's
// thresholds map omits a key. original_source/event_log.py persisted
// these per-tenant via upsert_compliance_thresholds; that store is out
// of scope here (see DESIGN.md), so callers pass overrides directly.
const (
	defaultMinMergeableRate = 0.8
	defaultMaxDebtScore     = 50.0
)

// ComplianceReport checks current repo metrics against operational
// thresholds (spec.md §4.11): minimum mergeable rate and maximum
// verification debt, surfacing a pass/fail per check plus alerts for
// anything out of bounds.
func (s *Service) ComplianceReport(ctx context.Context, tenantID *string, thresholds map[string]float64) (*models.ComplianceReport, error) {
	minMergeableRate := thresholdOrDefault(thresholds, "min_mergeable_rate", defaultMinMergeableRate)
	maxDebtScore := thresholdOrDefault(thresholds, "max_debt_score", defaultMaxDebtScore)

	sims, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventSimulationCompleted), TenantID: tenantID, Limit: 5000,
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

	debt, err := s.VerificationDebt(ctx, VerificationDebtOptions{TenantID: tenantID})
	if err != nil {
		return nil, err
	}

	var checks []models.ComplianceCheck
	var alerts []map[string]any

	mergeableCheck := models.ComplianceCheck{
		Name:      "mergeable_rate",
		Passed:    mergeableRate >= minMergeableRate,
		Observed:  round3(mergeableRate),
		Threshold: minMergeableRate,
	}
	checks = append(checks, mergeableCheck)
	if !mergeableCheck.Passed {
		alerts = append(alerts, map[string]any{
			"alert":     "mergeable_rate_below_threshold",
			"name":      "mergeable_rate",
			"message":   fmt.Sprintf("mergeable_rate %.3f below threshold %.3f", mergeableRate, minMergeableRate),
			"observed":  mergeableCheck.Observed,
			"threshold": minMergeableRate,
		})
	}

	debtCheck := models.ComplianceCheck{
		Name:      "debt_score",
		Passed:    debt.DebtScore <= maxDebtScore,
		Observed:  debt.DebtScore,
		Threshold: maxDebtScore,
	}
	checks = append(checks, debtCheck)
	if !debtCheck.Passed {
		alerts = append(alerts, map[string]any{
			"alert":     "debt_score_exceeded",
			"name":      "debt_score",
			"message":   fmt.Sprintf("debt_score %.1f exceeds threshold %.1f", debt.DebtScore, maxDebtScore),
			"observed":  debtCheck.Observed,
			"threshold": maxDebtScore,
		})
	}

	passed := mergeableCheck.Passed && debtCheck.Passed
	if alerts == nil {
		alerts = []map[string]any{}
	}

	report := &models.ComplianceReport{
		Passed:        passed,
		MergeableRate: round3(mergeableRate),
		Checks:        checks,
		Alerts:        alerts,
		TenantID:      tenantID,
		Timestamp:     models.NowISO(),
	}

	return report, nil
}

func thresholdOrDefault(thresholds map[string]float64, key string, def float64) float64 {
	if thresholds == nil {
		return def
	}
	if v, ok := thresholds[key]; ok {
		return v
	}
	return def
}
