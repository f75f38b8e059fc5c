// Package webhook routes parsed GitHub webhook deliveries to intent
// lifecycle transitions: pull_request events create or close intents,
// push events revalidate open ones, and merge_group events track
// GitHub's native merge queue (SPEC_FULL.md §4.2).
// Grounded on original_source/src/converge/api/routers/github_events.py.
package webhook

import (
	"context"
	"os"
	"strconv"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/intake"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/preintent"
	"github.com/ghmbegerez/converge/pkg/store"
)

// shaDisplayLen mirrors github_events.py's _SHA_DISPLAY_LEN: characters
// of a commit SHA shown in merge-group intent IDs.
const shaDisplayLen = 12

const tenantEnvVar = "CONVERGE_GITHUB_DEFAULT_TENANT"

// Dispatcher routes GitHub webhook deliveries to intent-lifecycle
// handlers (github_events.py's dispatch_github_event).
type Dispatcher struct {
	Log       *eventlog.Log
	Intents   store.IntentStore
	Policy    store.PolicyStore
	Signals   intake.HealthSignals
	IntakeCfg intake.Config

	// PreIntent runs the pre-intent harness (SPEC_FULL.md §4.13) ahead
	// of intake evaluation for every incoming pull_request "opened",
	// "synchronize" or "reopened" event, and embeds each accepted
	// intent for later conflict
	// scanning (SPEC_FULL.md §4.14) via its own Semantic field. Nil
	// disables both: no pre-evaluation, no embedding.
	PreIntent *preintent.Service

	// PreIntentHarness overrides the rules/thresholds/mode PreIntent
	// evaluates against. Nil means preintent.DefaultHarnessConfig()
	// (shadow mode: scores are recorded but never block intake).
	PreIntentHarness *preintent.HarnessConfig
}

// New builds a webhook Dispatcher. preIntentSvc may be nil to disable
// the pre-intent harness and embedding side effects entirely.
func New(log *eventlog.Log, intents store.IntentStore, policy store.PolicyStore, signals intake.HealthSignals, intakeCfg intake.Config, preIntentSvc *preintent.Service) *Dispatcher {
	return &Dispatcher{Log: log, Intents: intents, Policy: policy, Signals: signals, IntakeCfg: intakeCfg, PreIntent: preIntentSvc}
}

func defaultTenant() *string {
	if v := os.Getenv(tenantEnvVar); v != "" {
		return &v
	}
	return nil
}

// Dispatch routes a parsed GitHub event to the matching handler,
// returning a JSON-serializable response body.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, data map[string]any, deliveryID string) (map[string]any, error) {
	switch eventType {
	case "pull_request":
		return d.dispatchPullRequest(ctx, data)
	case "push":
		return d.handlePush(ctx, data)
	case "merge_group":
		return d.handleMergeGroup(ctx, data)
	}
	return map[string]any{"ok": true, "delivery_id": deliveryID}, nil
}

func (d *Dispatcher) dispatchPullRequest(ctx context.Context, data map[string]any) (map[string]any, error) {
	action, _ := data["action"].(string)
	pr, _ := data["pull_request"].(map[string]any)
	repoFullName := nestedString(data, "repository", "full_name")
	prNumber := nestedValue(pr, "number")
	intentID := prIntentID(repoFullName, prNumber)

	switch action {
	case "opened", "synchronize", "reopened":
		return d.handlePROpened(ctx, data, pr, intentID, repoFullName)
	case "closed":
		return d.handlePRClosed(ctx, pr, intentID, repoFullName)
	}
	return map[string]any{"ok": true, "intent_id": intentID, "action": "ignored", "reason": "unhandled_action"}, nil
}

func prIntentID(repoFullName string, prNumber any) string {
	n, _ := prNumber.(float64)
	numStr := strconv.Itoa(int(n))
	if repoFullName != "" {
		return repoFullName + ":pr-" + numStr
	}
	return "pr-" + numStr
}
