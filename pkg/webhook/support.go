package webhook

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/intake"
	"github.com/ghmbegerez/converge/pkg/models"
)

func (d *Dispatcher) evaluateIntake(ctx context.Context, intent *models.Intent) (*intake.Decision, error) {
	return intake.EvaluateIntake(ctx, d.Log, d.Policy, d.Signals, intent, d.IntakeCfg)
}

func (d *Dispatcher) appendEvent(ctx context.Context, eventType models.EventType, intentID string, tenantID *string, payload map[string]any) error {
	ev := models.NewEvent(eventType, payload)
	ev.IntentID = &intentID
	ev.TenantID = tenantID
	_, err := d.Log.Append(ctx, ev)
	return err
}

// recordCommitLink emits the audit trail for a SHA/intent association
// (github_events.py's _record_commit_link). This port carries no
// dedicated commit-link store — spec.md's event log is itself the
// durable record, so the link lives only as intent.linked_commit's
// payload rather than a separate queryable table.
func (d *Dispatcher) recordCommitLink(ctx context.Context, intentID, repo, sha, role, trigger string, tenantID *string) error {
	return d.appendEvent(ctx, models.EventIntentLinkedCommit, intentID, tenantID, map[string]any{
		"repo": repo, "sha": sha, "role": role, "trigger": trigger,
	})
}
