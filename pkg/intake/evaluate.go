package intake

import (
	"context"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/bucket"
	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// EvaluateIntake decides whether to accept intent, emitting the
// corresponding intake.accepted/throttled/rejected event either way.
// If the decision rejects the intent, the caller must not persist it —
// only the intake event records the attempt (original_source/intake.py's
// evaluate_intake).
func EvaluateIntake(ctx context.Context, log *eventlog.Log, policy store.PolicyStore, signals HealthSignals, intent *models.Intent, cfg Config) (*Decision, error) {
	mode, sig, err := resolveMode(ctx, policy, signals, intent.TenantID, cfg)
	if err != nil {
		return nil, err
	}

	var decision Decision
	switch mode {
	case ModeOpen:
		decision = Decision{Accepted: true, Mode: mode, Reason: "open mode: accepting all intents", Signals: sig}

	case ModePause:
		if intent.RiskLevel == models.RiskCritical {
			decision = Decision{Accepted: true, Mode: mode, Reason: "pause mode: critical-risk intent accepted", Signals: sig}
		} else {
			decision = Decision{
				Accepted: false, Mode: mode,
				Reason:  fmt.Sprintf("pause mode: only critical-risk intents accepted (got %s)", intent.RiskLevel),
				Signals: sig,
			}
		}

	default: // ModeThrottle
		b := bucket.Rollout(intent.ID)
		sig["bucket"] = round4(b)
		sig["throttle_ratio"] = cfg.ThrottleRatio
		if b < cfg.ThrottleRatio {
			decision = Decision{
				Accepted: true, Mode: mode,
				Reason:  fmt.Sprintf("throttle mode: accepted (bucket=%.4f < ratio=%.4f)", b, cfg.ThrottleRatio),
				Signals: sig,
			}
		} else {
			decision = Decision{
				Accepted: false, Mode: mode,
				Reason:  fmt.Sprintf("throttle mode: rejected (bucket=%.4f >= ratio=%.4f)", b, cfg.ThrottleRatio),
				Signals: sig,
			}
		}
	}

	if err := emitIntakeEvent(ctx, log, intent, &decision); err != nil {
		return nil, err
	}
	return &decision, nil
}

func emitIntakeEvent(ctx context.Context, log *eventlog.Log, intent *models.Intent, decision *Decision) error {
	var eventType models.EventType
	switch {
	case decision.Accepted:
		eventType = models.EventIntakeAccepted
	case decision.Mode == ModeThrottle:
		eventType = models.EventIntakeThrottled
	default:
		eventType = models.EventIntakeRejected
	}

	ev := models.NewEvent(eventType, map[string]any{
		"mode":        string(decision.Mode),
		"accepted":    decision.Accepted,
		"risk_level":  string(intent.RiskLevel),
		"origin_type": string(intent.OriginType),
		"signals":     decision.Signals,
		"reason":      decision.Reason,
	})
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	_, err := log.Append(ctx, ev)
	return err
}

// resolveMode returns the effective mode (manual override, if set,
// otherwise the auto-computed mode) plus the signal map used to derive
// it, with auto_mode always present so callers can see what the system
// would have chosen absent an override.
func resolveMode(ctx context.Context, policy store.PolicyStore, signals HealthSignals, tenantID *string, cfg Config) (Mode, map[string]any, error) {
	tid := ""
	if tenantID != nil {
		tid = *tenantID
	}

	override, err := getOverride(ctx, policy, tid)
	if err != nil {
		return "", nil, err
	}

	autoMode, sig, err := computeAutoMode(signals, tenantID, cfg)
	if err != nil {
		return "", nil, err
	}
	sig["auto_mode"] = string(autoMode)

	if override != nil {
		return override.Mode, sig, nil
	}
	return autoMode, sig, nil
}

// computeAutoMode derives intake mode from health + verification-debt
// signals: the effective score is the worse of repo health and
// (100 - debt), so high debt can trigger throttle/pause even when
// health alone looks fine (original_source/intake.py's _compute_auto_mode).
func computeAutoMode(signals HealthSignals, tenantID *string, cfg Config) (Mode, map[string]any, error) {
	healthScore, healthStatus, conflictRate, err := signals.RepoHealthScore(tenantID)
	if err != nil {
		return "", nil, err
	}
	debtScore, debtStatus, err := signals.VerificationDebtScore(tenantID)
	if err != nil {
		return "", nil, err
	}
	total, pending, err := signals.QueueCounts(tenantID)
	if err != nil {
		return "", nil, err
	}

	debtAdjusted := 100.0 - debtScore
	if debtAdjusted < 0 {
		debtAdjusted = 0
	}
	effective := healthScore
	if debtAdjusted < effective {
		effective = debtAdjusted
	}

	sig := map[string]any{
		"health_score":       healthScore,
		"health_status":      healthStatus,
		"debt_score":         debtScore,
		"debt_status":        debtStatus,
		"effective_score":    round1(effective),
		"queue_total":        total,
		"queue_pending":      pending,
		"conflict_rate":      conflictRate,
		"pause_threshold":    cfg.PauseBelowHealth,
		"throttle_threshold": cfg.ThrottleBelowHealth,
	}

	switch {
	case effective < cfg.PauseBelowHealth:
		return ModePause, sig, nil
	case effective < cfg.ThrottleBelowHealth:
		return ModeThrottle, sig, nil
	default:
		return ModeOpen, sig, nil
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func round4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}
