package engine

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/models"
)

// ChecksForRiskLevel returns the checks the configured profile requires
// for level (original_source/engine.py's checks_for_risk_level).
func (e *Engine) ChecksForRiskLevel(level models.RiskLevel, originType string) []string {
	profile := e.Policy.ProfileFor(string(level), originType)
	if len(profile.Checks) == 0 {
		return []string{"lint"}
	}
	return profile.Checks
}

// RunChecks executes checks via the configured Runner, recording one
// check.completed event per result (original_source/engine.py's run_checks).
func (e *Engine) RunChecks(ctx context.Context, checks []string, intentID, tenantID, cwd, traceID string) ([]models.CheckResult, error) {
	results, err := e.Checks.RunChecks(ctx, checks, cwd)
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		ev := models.NewEvent(models.EventCheckCompleted, map[string]any{
			"check_type": r.CheckType,
			"passed":     r.Passed,
			"details":    r.Details,
		})
		ev.TraceID = traceID
		ev.IntentID = strPtr(intentID)
		ev.TenantID = strPtr(tenantID)
		ev.Evidence = map[string]any{"check_type": r.CheckType, "passed": r.Passed}
		if _, err := e.Log.Append(ctx, ev); err != nil {
			return nil, err
		}
	}
	return results, nil
}
