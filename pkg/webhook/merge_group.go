package webhook

import (
	"context"
	"strings"

	"github.com/ghmbegerez/converge/pkg/models"
)

func (d *Dispatcher) handleMergeGroup(ctx context.Context, data map[string]any) (map[string]any, error) {
	action := asString(data, "action")
	mergeGroup, _ := data["merge_group"].(map[string]any)
	repoFullName := nestedString(data, "repository", "full_name")
	headSHA := asString(mergeGroup, "head_sha")

	if headSHA == "" || repoFullName == "" {
		return map[string]any{"ok": true, "action": "ignored", "reason": "incomplete_payload"}, nil
	}

	displaySHA := headSHA
	if len(displaySHA) > shaDisplayLen {
		displaySHA = displaySHA[:shaDisplayLen]
	}
	intentID := repoFullName + ":mg-" + displaySHA

	switch action {
	case "checks_requested":
		return d.handleMergeGroupChecksRequested(ctx, data, mergeGroup, intentID, repoFullName, headSHA)
	case "destroyed":
		return d.handleMergeGroupDestroyed(ctx, data, mergeGroup, intentID)
	}
	return map[string]any{"ok": true, "action": "ignored", "reason": "unknown_merge_group_action_" + action}, nil
}

func (d *Dispatcher) handleMergeGroupChecksRequested(ctx context.Context, data, mergeGroup map[string]any, intentID, repoFullName, headSHA string) (map[string]any, error) {
	baseRef := asString(mergeGroup, "base_ref")
	baseRef = strings.TrimPrefix(baseRef, "refs/heads/")
	if baseRef == "" {
		baseRef = "main"
	}
	headRef := asString(mergeGroup, "head_ref")

	intent := models.NewIntent(intentID, headRef, baseRef)
	intent.Status = models.StatusReady
	intent.CreatedBy = "github-merge-queue"
	intent.TenantID = defaultTenant()
	intent.OriginType = models.OriginIntegration
	intent.Semantic = map[string]any{
		"problem_statement": "Merge queue candidate",
		"objective":         "Validate merge group before integration",
	}
	installation, _ := data["installation"].(map[string]any)
	intent.Technical = map[string]any{
		"source_ref": headRef, "target_ref": baseRef, "initial_base_commit": headSHA,
		"repo": repoFullName, "merge_group_head_ref": headRef,
		"installation_id": nestedValue(installation, "id"), "webhook_event": "merge_group",
	}

	decision, err := d.evaluateIntake(ctx, intent)
	if err != nil {
		return nil, err
	}
	if !decision.Accepted {
		return map[string]any{
			"ok": true, "intent_id": intentID, "action": "intake_rejected",
			"mode": string(decision.Mode), "reason": decision.Reason,
		}, nil
	}

	if err := d.Intents.PutIntent(ctx, intent); err != nil {
		return nil, err
	}
	if err := d.appendEvent(ctx, models.EventMergeGroupChecksReq, intent.ID, intent.TenantID, intentToPayload(intent)); err != nil {
		return nil, err
	}
	if err := d.recordCommitLink(ctx, intent.ID, repoFullName, headSHA, "head", "merge_group", intent.TenantID); err != nil {
		return nil, err
	}

	return map[string]any{"ok": true, "intent_id": intentID, "action": "merge_group_checks_requested"}, nil
}

func (d *Dispatcher) handleMergeGroupDestroyed(ctx context.Context, data, mergeGroup map[string]any, intentID string) (map[string]any, error) {
	intent, found, err := d.Intents.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]any{"ok": true, "intent_id": intentID, "action": "ignored", "reason": "unknown_intent"}, nil
	}

	reason := asString(data, "reason")
	if reason == "" {
		reason = "destroyed"
	}

	intent.Status = models.StatusRejected
	intent.UpdatedAt = models.NowISO()
	if err := d.Intents.PutIntent(ctx, intent); err != nil {
		return nil, err
	}
	if err := d.appendEvent(ctx, models.EventMergeGroupDestroyed, intent.ID, intent.TenantID, map[string]any{
		"source": intent.Source, "target": intent.Target, "reason": reason,
		"trigger": "github_merge_group_destroyed",
	}); err != nil {
		return nil, err
	}

	return map[string]any{"ok": true, "intent_id": intentID, "action": "merge_group_destroyed"}, nil
}
