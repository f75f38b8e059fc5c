package webhook

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/models"
)

func buildPRIntent(pr, data map[string]any, intentID, repoFullName string) *models.Intent {
	head, _ := pr["head"].(map[string]any)
	base, _ := pr["base"].(map[string]any)
	source := asString(head, "ref")
	target := asString(base, "ref")
	if target == "" {
		target = "main"
	}
	headSHA := asString(head, "sha")
	if headSHA == "" || source == "" {
		return nil
	}

	intent := models.NewIntent(intentID, source, target)
	intent.Status = models.StatusReady
	intent.CreatedBy = "github-webhook"
	intent.TenantID = defaultTenant()
	intent.OriginType = models.OriginIntegration
	intent.Semantic = map[string]any{
		"problem_statement": asString(pr, "title"),
		"objective":         asString(pr, "title"),
	}
	installation, _ := data["installation"].(map[string]any)
	intent.Technical = map[string]any{
		"source_ref":          source,
		"target_ref":          target,
		"initial_base_commit": headSHA,
		"repo":                repoFullName,
		"pr_number":           nestedValue(pr, "number"),
		"installation_id":     nestedValue(installation, "id"),
	}
	return intent
}

func (d *Dispatcher) handlePROpened(ctx context.Context, data, pr map[string]any, intentID, repoFullName string) (map[string]any, error) {
	intent := buildPRIntent(pr, data, intentID, repoFullName)
	if intent == nil {
		return map[string]any{
			"ok": true, "intent_id": intentID, "action": "ignored",
			"reason": "missing_head_sha_or_ref",
		}, nil
	}

	headSHA := nestedString(pr, "head", "sha")

	if d.PreIntent != nil {
		preResult, err := d.PreIntent.EvaluateIntent(ctx, preIntentData(intent), d.PreIntentHarness)
		if err != nil {
			return nil, err
		}
		if !preResult.Passed {
			return map[string]any{
				"ok": true, "intent_id": intentID, "action": "pre_intent_rejected",
				"score": preResult.Score, "recommendations": preResult.Recommendations,
			}, nil
		}
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
	if err := d.appendEvent(ctx, models.EventIntentCreated, intent.ID, intent.TenantID, intentToPayload(intent)); err != nil {
		return nil, err
	}
	if err := d.recordCommitLink(ctx, intent.ID, repoFullName, headSHA, "head", "pr_opened", intent.TenantID); err != nil {
		return nil, err
	}
	if d.PreIntent != nil {
		if err := d.PreIntent.Semantic.EmbedIntent(ctx, intent); err != nil {
			return nil, err
		}
	}

	return map[string]any{"ok": true, "intent_id": intentID, "action": "created"}, nil
}

// preIntentData projects intent's fields into the raw map
// preintent.Service.EvaluateIntent reads (SPEC_FULL.md §4.13) — the
// harness runs before the intent is persisted, so it takes a plain
// map rather than a *models.Intent.
func preIntentData(intent *models.Intent) map[string]any {
	data := map[string]any{
		"id":       intent.ID,
		"source":   intent.Source,
		"target":   intent.Target,
		"semantic": intent.Semantic,
	}
	if intent.TenantID != nil {
		data["tenant_id"] = *intent.TenantID
	}
	return data
}

func (d *Dispatcher) handlePRClosed(ctx context.Context, pr map[string]any, intentID, repoFullName string) (map[string]any, error) {
	merged := asBool(pr, "merged")
	headSHA := nestedString(pr, "head", "sha")
	mergeCommit := asString(pr, "merge_commit_sha")

	intent, found, err := d.Intents.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]any{"ok": true, "intent_id": intentID, "action": "ignored", "reason": "unknown_intent"}, nil
	}

	newStatus := models.StatusRejected
	evtType := models.EventIntentRejected
	decision := "rejected"
	if merged {
		newStatus = models.StatusMerged
		evtType = models.EventIntentMerged
		decision = "merged"
	}

	intent.Status = newStatus
	intent.UpdatedAt = models.NowISO()
	if err := d.Intents.PutIntent(ctx, intent); err != nil {
		return nil, err
	}
	if err := d.appendEvent(ctx, evtType, intent.ID, intent.TenantID, map[string]any{
		"source": intent.Source, "target": intent.Target,
		"merged": merged, "merge_commit_sha": mergeCommit, "trigger": "github_pr_closed",
	}); err != nil {
		return nil, err
	}

	if merged && mergeCommit != "" {
		intentRepo := repoFullName
		if r, ok := intent.Technical["repo"].(string); ok && r != "" {
			intentRepo = r
		}
		if err := d.recordCommitLink(ctx, intent.ID, intentRepo, mergeCommit, "merge", "pr_merged", intent.TenantID); err != nil {
			return nil, err
		}
	}

	return map[string]any{"ok": true, "intent_id": intentID, "action": decision}, nil
}

func intentToPayload(intent *models.Intent) map[string]any {
	return map[string]any{
		"id": intent.ID, "source": intent.Source, "target": intent.Target,
		"status": string(intent.Status), "created_by": intent.CreatedBy,
		"semantic": intent.Semantic, "technical": intent.Technical,
		"origin_type": string(intent.OriginType),
	}
}
