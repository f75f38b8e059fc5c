package engine

import (
	"context"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

// ConfirmMerge marks a QUEUED or VALIDATED intent MERGED, used when a
// merge happened out of band (e.g. a human merged the PR directly) and
// the queue needs to catch up to reality (original_source/engine.py's
// confirm_merge).
func (e *Engine) ConfirmMerge(ctx context.Context, intentID, mergedCommit string) (*Decision, error) {
	intent, found, err := e.Intents.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("engine: intent %s not found", intentID)
	}
	if intent.Status != models.StatusQueued && intent.Status != models.StatusValidated {
		return nil, fmt.Errorf("engine: intent %s is %s, expected QUEUED or VALIDATED", intentID, intent.Status)
	}

	sha := mergedCommit
	if sha == "" {
		sha = "confirmed-" + shortID(intentID)
	}

	intent.Status = models.StatusMerged
	intent.UpdatedAt = models.NowISO()
	if err := e.Intents.PutIntent(ctx, intent); err != nil {
		return nil, err
	}

	ev := models.NewEvent(models.EventIntentMerged, map[string]any{
		"merged_commit": sha, "source": intent.Source, "target": intent.Target,
	})
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{"merged_commit": sha}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return &Decision{Outcome: OutcomeMerged, IntentID: intentID, MergedCommit: sha}, nil
}

// ResetQueue clears an intent's retry count and optionally forces its
// status and releases the queue lock unconditionally — an operator
// escape hatch for a stuck queue (original_source/engine.py's reset_queue).
func (e *Engine) ResetQueue(ctx context.Context, intentID string, setStatus *models.Status, clearLock bool) (*models.Intent, error) {
	if clearLock {
		if err := e.Log.ForceReleaseQueueLock(ctx, QueueLockName); err != nil {
			return nil, err
		}
	}

	intent, found, err := e.Intents.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("engine: intent %s not found", intentID)
	}

	newStatus := intent.Status
	if setStatus != nil {
		newStatus = *setStatus
	}
	intent.Status = newStatus
	intent.Retries = 0
	intent.UpdatedAt = models.NowISO()
	if err := e.Intents.PutIntent(ctx, intent); err != nil {
		return nil, err
	}

	ev := models.NewEvent(models.EventQueueReset, map[string]any{
		"new_status": string(newStatus), "retries_reset": true,
	})
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}
	return intent, nil
}

// InspectedIntent is one row of InspectQueue's summary view.
type InspectedIntent struct {
	IntentID  string
	Status    models.Status
	Retries   int
	Priority  int
	Source    string
	Target    string
	RiskLevel models.RiskLevel
}

// InspectOptions filters InspectQueue.
type InspectOptions struct {
	Status         *models.Status
	MinRetries     *int
	OnlyActionable bool
	Limit          int
	TenantID       *string
}

// actionableStatuses mirrors original_source/engine.py's inspect_queue
// only_actionable set: states where an operator decision still matters.
var actionableStatuses = []models.Status{models.StatusReady, models.StatusValidated, models.StatusQueued}

// InspectQueue reports a filtered, capped view of intents for operator
// tooling (original_source/engine.py's inspect_queue).
func (e *Engine) InspectQueue(ctx context.Context, opts InspectOptions) ([]InspectedIntent, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	var all []*models.Intent
	switch {
	case opts.OnlyActionable:
		for _, s := range actionableStatuses {
			batch, err := e.Intents.ListIntentsByStatus(ctx, s, opts.TenantID)
			if err != nil {
				return nil, err
			}
			all = append(all, batch...)
		}
	case opts.Status != nil:
		batch, err := e.Intents.ListIntentsByStatus(ctx, *opts.Status, opts.TenantID)
		if err != nil {
			return nil, err
		}
		all = batch
	default:
		for _, s := range []models.Status{models.StatusReady, models.StatusValidated, models.StatusQueued, models.StatusMerged, models.StatusRejected} {
			batch, err := e.Intents.ListIntentsByStatus(ctx, s, opts.TenantID)
			if err != nil {
				return nil, err
			}
			all = append(all, batch...)
		}
	}

	result := make([]InspectedIntent, 0, len(all))
	for _, intent := range all {
		if opts.MinRetries != nil && intent.Retries < *opts.MinRetries {
			continue
		}
		result = append(result, InspectedIntent{
			IntentID:  intent.ID,
			Status:    intent.Status,
			Retries:   intent.Retries,
			Priority:  intent.Priority,
			Source:    intent.Source,
			Target:    intent.Target,
			RiskLevel: intent.RiskLevel,
		})
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
