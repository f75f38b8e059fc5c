package projections

import (
	"context"
	"fmt"
	"sort"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

const (
	predictHealthDeclineMed  = -5.0
	predictHealthDeclineHigh = -10.0
	predictEntropyRiseMed    = 3.0
	predictEntropyRiseHigh   = 5.0
	predictConflictRise      = 0.05
	highConfidenceSnapshots  = 7
)

type velocities struct {
	healthVelocity    float64
	entropyVelocity   float64
	conflictVelocity  float64
	avgRecent         float64
	avgEntropyRecent  float64
	avgConflictRecent float64
	currentHealth     float64
	projectedHealth   float64
}

// PredictHealth analyzes recent health.snapshot events to project
// where repo health is headed over horizonDays, recommending a gate
// even while current health is still green if the trajectory points
// at red (spec.md §4.11).
func (s *Service) PredictHealth(ctx context.Context, tenantID *string, horizonDays, minSnapshots int) (map[string]any, error) {
	if horizonDays <= 0 {
		horizonDays = 7
	}
	if minSnapshots <= 0 {
		minSnapshots = 3
	}

	since := sinceDays(horizonDays * 2)
	snapshots, err := s.Log.Query(ctx, store.EventQuery{
		EventType: eventTypePtr(models.EventHealthSnapshot), TenantID: tenantID, Since: since, Limit: 500,
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Timestamp < snapshots[j].Timestamp })

	if len(snapshots) < minSnapshots {
		return map[string]any{
			"projected_status": "unknown",
			"confidence":       "low",
			"reason":           fmt.Sprintf("Not enough data (%d snapshots, need %d+)", len(snapshots), minSnapshots),
			"recommendation":   "Collect more health snapshots before prediction is reliable",
			"should_gate":      false,
		}, nil
	}

	vel := computeVelocities(snapshots)
	currentStatus := healthStatus(vel.currentHealth)
	projectedStatus := healthStatus(vel.projectedHealth)

	signals, shouldGate := detectHealthSignals(vel, currentStatus, vel.currentHealth, projectedStatus, vel.projectedHealth)

	result := buildPredictionResult(vel, horizonDays, signals, shouldGate, len(snapshots), tenantID)

	ev := models.NewEvent(models.EventHealthPrediction, result)
	ev.TenantID = tenantID
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return result, nil
}

func splitHalves(data []float64) ([]float64, []float64) {
	mid := len(data) / 2
	if mid == 0 {
		return data, data
	}
	return data[:mid], data[mid:]
}

func computeVelocities(snapshots []*models.Event) velocities {
	scores := make([]float64, len(snapshots))
	entropies := make([]float64, len(snapshots))
	conflictRates := make([]float64, len(snapshots))
	for i, snap := range snapshots {
		scores[i] = asFloatDefault(snap.Payload["repo_health_score"], 100.0)
		entropies[i] = asFloat(snap.Payload["entropy_score"])
		conflictRates[i] = asFloat(snap.Payload["conflict_rate"])
	}

	olderScores, recentScores := splitHalves(scores)
	olderEntropy, recentEntropy := splitHalves(entropies)
	olderConflict, recentConflict := splitHalves(conflictRates)

	avgRecent := safeAvg(recentScores)
	avgOlder := safeAvg(olderScores)
	avgEntropyRecent := safeAvg(recentEntropy)
	avgEntropyOlder := safeAvg(olderEntropy)
	avgConflictRecent := safeAvg(recentConflict)
	avgConflictOlder := safeAvg(olderConflict)

	healthVelocity := avgRecent - avgOlder
	entropyVelocity := avgEntropyRecent - avgEntropyOlder
	conflictVelocity := avgConflictRecent - avgConflictOlder

	currentHealth := 100.0
	if len(scores) > 0 {
		currentHealth = scores[len(scores)-1]
	}

	return velocities{
		healthVelocity:    healthVelocity,
		entropyVelocity:   entropyVelocity,
		conflictVelocity:  conflictVelocity,
		avgRecent:         avgRecent,
		avgEntropyRecent:  avgEntropyRecent,
		avgConflictRecent: avgConflictRecent,
		currentHealth:     currentHealth,
		projectedHealth:   clamp(avgRecent+healthVelocity, 0, 100),
	}
}

func detectHealthSignals(vel velocities, currentStatus string, currentHealth float64, projectedStatus string, projectedHealth float64) ([]map[string]any, bool) {
	var signals []map[string]any

	if vel.healthVelocity < predictHealthDeclineMed {
		severity := "medium"
		if vel.healthVelocity < predictHealthDeclineHigh {
			severity = "high"
		}
		signals = append(signals, map[string]any{
			"signal":   "predict.health_falling",
			"message":  fmt.Sprintf("Health declining at %.1f per period (current: %.0f)", vel.healthVelocity, vel.avgRecent),
			"severity": severity,
		})
	}
	if vel.entropyVelocity > predictEntropyRiseMed {
		severity := "medium"
		if vel.entropyVelocity > predictEntropyRiseHigh {
			severity = "high"
		}
		signals = append(signals, map[string]any{
			"signal":   "predict.entropy_rising",
			"message":  fmt.Sprintf("Entropy rising at +%.1f per period (current: %.1f)", vel.entropyVelocity, vel.avgEntropyRecent),
			"severity": severity,
		})
	}
	if vel.conflictVelocity > predictConflictRise {
		signals = append(signals, map[string]any{
			"signal":   "predict.conflict_rising",
			"message":  fmt.Sprintf("Conflict rate rising at +%.2f per period (current: %.1f%%)", vel.conflictVelocity, vel.avgConflictRecent*100),
			"severity": "medium",
		})
	}

	shouldGate := false
	if projectedStatus == "red" && currentStatus != "red" {
		shouldGate = true
		signals = append(signals, map[string]any{
			"signal":   "predict.approaching_red",
			"message":  fmt.Sprintf("Current: %s (%.0f), projected: red (%.0f)", currentStatus, currentHealth, projectedHealth),
			"severity": "critical",
		})
	}

	return signals, shouldGate
}

func buildPredictionResult(vel velocities, horizonDays int, signals []map[string]any, shouldGate bool, dataPoints int, tenantID *string) map[string]any {
	recommendation := "System trajectory is stable"
	if shouldGate {
		recommendation = "Consider pausing new intents — health trajectory indicates degradation"
	}
	confidence := "medium"
	if dataPoints >= highConfidenceSnapshots {
		confidence = "high"
	}
	if signals == nil {
		signals = []map[string]any{}
	}

	return map[string]any{
		"current_status":   healthStatus(vel.currentHealth),
		"current_health":   round1(vel.currentHealth),
		"projected_status": healthStatus(vel.projectedHealth),
		"projected_health": round1(vel.projectedHealth),
		"horizon_days":     horizonDays,
		"velocity": map[string]any{
			"health":        roundN(vel.healthVelocity, 2),
			"entropy":       roundN(vel.entropyVelocity, 2),
			"conflict_rate": round4(vel.conflictVelocity),
		},
		"signals":        signals,
		"should_gate":    shouldGate,
		"confidence":     confidence,
		"recommendation": recommendation,
		"data_points":    dataPoints,
		"timestamp":      models.NowISO(),
		"tenant_id":      tenantID,
	}
}

func asFloatDefault(v any, def float64) float64 {
	if v == nil {
		return def
	}
	return asFloat(v)
}
