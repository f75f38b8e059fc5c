package webhook

import (
	"context"
	"strings"

	"github.com/ghmbegerez/converge/pkg/models"
)

// handlePush resets READY/VALIDATED intents whose source branch was
// just pushed back to READY for revalidation (github_events.py's
// _handle_push).
func (d *Dispatcher) handlePush(ctx context.Context, data map[string]any) (map[string]any, error) {
	ref := asString(data, "ref")
	const branchPrefix = "refs/heads/"
	if !strings.HasPrefix(ref, branchPrefix) {
		return map[string]any{"ok": true, "action": "ignored", "reason": "not_branch_push"}, nil
	}
	branch := strings.TrimPrefix(ref, branchPrefix)

	repoFullName := nestedString(data, "repository", "full_name")
	headSHA := asString(data, "after")

	var revalidated []string
	for _, status := range []models.Status{models.StatusReady, models.StatusValidated} {
		intents, err := d.Intents.ListIntentsByStatus(ctx, status, nil)
		if err != nil {
			return nil, err
		}
		for _, intent := range intents {
			if intent.Source != branch {
				continue
			}
			intentRepo, _ := intent.Technical["repo"].(string)
			if intentRepo != "" && intentRepo != repoFullName {
				continue
			}
			intent.Technical["initial_base_commit"] = headSHA
			if intent.Status != models.StatusReady {
				intent.Status = models.StatusReady
			}
			intent.UpdatedAt = models.NowISO()
			if err := d.Intents.PutIntent(ctx, intent); err != nil {
				return nil, err
			}
			if err := d.appendEvent(ctx, models.EventIntentRequeued, intent.ID, intent.TenantID, map[string]any{
				"trigger": "push_revalidation", "branch": branch, "new_head_sha": headSHA,
			}); err != nil {
				return nil, err
			}
			if err := d.recordCommitLink(ctx, intent.ID, repoFullName, headSHA, "head", "push_revalidation", intent.TenantID); err != nil {
				return nil, err
			}
			revalidated = append(revalidated, intent.ID)
		}
	}

	return map[string]any{"ok": true, "action": "push_processed", "revalidated": revalidated}, nil
}
