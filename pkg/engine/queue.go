package engine

import (
	"context"
	"os"
	"strconv"

	"github.com/ghmbegerez/converge/pkg/models"
	"golang.org/x/sync/errgroup"
)

// QueueLockName is the advisory lock name serializing ProcessQueue
// across concurrent workers (spec.md §4.1, §4.8).
const QueueLockName = "queue_processor"

// QueueLockTTLSeconds bounds how long a held lock survives a crashed
// holder before it is considered stale and evictable.
const QueueLockTTLSeconds = 120

// revalidationConcurrency bounds how many intents' Invariant 2
// revalidation (ValidateIntent, itself dominated by scm.SimulateMerge
// against a disposable worktree) run in flight at once. Each
// revalidation only reads cwd's history and git's own worktree
// locking serializes the add/remove pair internally, so fanning these
// out is safe even though they share one checkout.
const revalidationConcurrency = 4

// QueueOptions bundles ProcessQueue's tuning knobs (original_source/
// engine.py's _QueueOpts).
type QueueOptions struct {
	Limit             int
	Target            string
	AutoConfirm       bool
	MaxRetries        int
	UseLastSimulation bool
	SkipChecks        bool
	Cwd               string
}

func (o QueueOptions) withDefaults() QueueOptions {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Target == "" {
		o.Target = DefaultTargetBranch
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

// ProcessQueue processes up to opts.Limit VALIDATED intents:
// Invariant 2 revalidates each against current target state before
// merging; Invariant 3 rejects any intent whose retries already meet
// the limit. A process-wide advisory lock (held under this process's
// own PID) prevents concurrent queue runs.
// Grounded on original_source/engine.py's process_queue.
func (e *Engine) ProcessQueue(ctx context.Context, opts QueueOptions) ([]*Decision, error) {
	opts = opts.withDefaults()
	holder := strconv.Itoa(os.Getpid())

	acquired, err := e.Log.AcquireQueueLock(ctx, QueueLockName, holder, QueueLockTTLSeconds)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return []*Decision{{Outcome: OutcomeBlocked, Reason: "Queue lock held. Another process may be running."}}, nil
	}
	defer e.Log.ReleaseQueueLock(ctx, QueueLockName, holder)

	intents, err := e.Intents.ListIntentsByStatus(ctx, models.StatusValidated, nil)
	if err != nil {
		return nil, err
	}
	if len(intents) > opts.Limit {
		intents = intents[:opts.Limit]
	}

	results := make([]*Decision, len(intents))
	var pending []int // indices into intents still needing revalidation
	for i, intent := range intents {
		if d, err := e.checkDependencies(ctx, intent); err != nil {
			return nil, err
		} else if d != nil {
			results[i] = d
			continue
		}

		if d, err := e.checkReviewGate(ctx, intent); err != nil {
			return nil, err
		} else if d != nil {
			results[i] = d
			continue
		}

		// Invariant 3: bounded retry, checked before spending a
		// revalidation slot on an intent that is rejected regardless.
		if intent.Retries >= opts.MaxRetries {
			d, err := e.rejectMaxRetries(ctx, intent, opts.MaxRetries)
			if err != nil {
				return nil, err
			}
			results[i] = d
			continue
		}

		pending = append(pending, i)
	}

	// Invariant 2: revalidate every pending intent against current
	// target state in parallel — each is an independent probe, so
	// fanning them out shortens wall-clock time without affecting the
	// outcome of any single intent.
	decisions := make([]*Decision, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(revalidationConcurrency)
	for slot, idx := range pending {
		slot, intent := slot, intents[idx]
		g.Go(func() error {
			d, err := e.ValidateIntent(gctx, intent, ValidateOptions{
				UseLastSimulation: opts.UseLastSimulation,
				SkipChecks:        opts.SkipChecks,
				Cwd:               opts.Cwd,
			})
			if err != nil {
				return err
			}
			decisions[slot] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Applying a decision (queueing, merging) mutates the shared
	// target branch, so that part stays strictly sequential in the
	// intents' original order even though revalidation ran in parallel.
	for slot, idx := range pending {
		d, err := e.applyQueueDecision(ctx, intents[idx], decisions[slot], opts)
		if err != nil {
			return nil, err
		}
		results[idx] = d
	}

	ev := models.NewEvent(models.EventQueueProcessed, map[string]any{
		"processed": len(results), "limit": opts.Limit, "target": opts.Target,
	})
	ev.Evidence = map[string]any{"count": len(results)}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}
	return results, nil
}

// checkDependencies returns a dependency_blocked Decision if any of
// intent's dependencies have not yet reached MERGED, else nil.
func (e *Engine) checkDependencies(ctx context.Context, intent *models.Intent) (*Decision, error) {
	if len(intent.Dependencies) == 0 {
		return nil, nil
	}

	var unmet []string
	for _, depID := range intent.Dependencies {
		dep, found, err := e.Intents.GetIntent(ctx, depID)
		if err != nil {
			return nil, err
		}
		if !found || dep.Status != models.StatusMerged {
			unmet = append(unmet, depID)
		}
	}
	if len(unmet) == 0 {
		return nil, nil
	}

	ev := models.NewEvent(models.EventIntentDependencyBlock, map[string]any{
		"reason":             "Unmet dependencies",
		"unmet_dependencies": unmet,
		"all_dependencies":   intent.Dependencies,
		"plan_id":            intent.PlanID,
	})
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{"unmet_count": len(unmet), "total_deps": len(intent.Dependencies)}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return &Decision{
		Outcome:           OutcomeDependencyBlocked,
		IntentID:          intent.ID,
		Reason:            "Unmet dependencies",
		UnmetDependencies: unmet,
		PlanID:            intent.PlanID,
	}, nil
}

// checkReviewGate blocks an intent that has an open review task, or
// whose latest resolved review was not approved (spec.md §4.10). A
// nil Reviews service (no review subsystem wired) disables the gate
// entirely. A rejected or deferred resolution blocks every cycle
// until a new review is requested and approved — there is no retry
// consumption here, matching checkDependencies' skip-this-cycle
// behavior rather than handleBlockedIntent's retry-increment path.
func (e *Engine) checkReviewGate(ctx context.Context, intent *models.Intent) (*Decision, error) {
	if e.Reviews == nil {
		return nil, nil
	}

	tasks, err := e.Reviews.Reviews.ListReviewTasksByIntent(ctx, intent.ID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	latest := tasks[len(tasks)-1]
	if latest.IsOpen() {
		return e.blockOnReview(ctx, intent, "Open review pending for this intent")
	}
	if latest.Resolution != nil && *latest.Resolution == "approved" {
		return nil, nil
	}

	reason := "Review resolution is not approved"
	if latest.Resolution != nil {
		reason = "Review resolution \"" + *latest.Resolution + "\" blocks merge"
	}
	return e.blockOnReview(ctx, intent, reason)
}

func (e *Engine) blockOnReview(ctx context.Context, intent *models.Intent, reason string) (*Decision, error) {
	ev := models.NewEvent(models.EventIntentReviewBlock, map[string]any{"reason": reason})
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{"reason": reason}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return &Decision{Outcome: OutcomeBlocked, IntentID: intent.ID, Reason: reason}, nil
}

// applyQueueDecision takes an already-computed revalidation decision
// and applies its side effects: queueing the intent, requeuing or
// rejecting it if revalidation blocked, and merging it when
// opts.AutoConfirm is set. Unlike revalidation itself, this mutates
// intent.Status and (via executeMerge) the target branch, so callers
// must invoke it sequentially across intents sharing a target.
func (e *Engine) applyQueueDecision(ctx context.Context, intent *models.Intent, decision *Decision, opts QueueOptions) (*Decision, error) {
	if decision.Outcome == OutcomeBlocked {
		return e.handleBlockedIntent(ctx, intent, decision, opts.MaxRetries)
	}

	intent.Status = models.StatusQueued
	intent.UpdatedAt = models.NowISO()
	if err := e.Intents.PutIntent(ctx, intent); err != nil {
		return nil, err
	}

	if opts.AutoConfirm {
		if err := e.executeMerge(ctx, intent, decision, opts.Cwd, opts.MaxRetries); err != nil {
			return nil, err
		}
	}
	return decision, nil
}

func (e *Engine) rejectMaxRetries(ctx context.Context, intent *models.Intent, maxRetries int) (*Decision, error) {
	intent.Status = models.StatusRejected
	intent.UpdatedAt = models.NowISO()
	if err := e.Intents.PutIntent(ctx, intent); err != nil {
		return nil, err
	}

	ev := models.NewEvent(models.EventIntentRejected, map[string]any{
		"reason": fmtMaxRetries(maxRetries), "retries": intent.Retries,
	})
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{"retries": intent.Retries, "max_retries": maxRetries}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return &Decision{Outcome: OutcomeRejected, IntentID: intent.ID, Reason: "max_retries_exceeded", Retries: intent.Retries}, nil
}

func (e *Engine) handleBlockedIntent(ctx context.Context, intent *models.Intent, decision *Decision, maxRetries int) (*Decision, error) {
	newRetries := intent.Retries + 1
	newStatus := models.StatusReady
	eventType := models.EventIntentRequeued
	if newRetries >= maxRetries {
		newStatus = models.StatusRejected
		eventType = models.EventIntentRejected
	}

	intent.Status = newStatus
	intent.Retries = newRetries
	intent.UpdatedAt = models.NowISO()
	if err := e.Intents.PutIntent(ctx, intent); err != nil {
		return nil, err
	}

	ev := models.NewEvent(eventType, map[string]any{"reason": decision.Reason, "retries": newRetries})
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{"retries": newRetries}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	decision.Retries = newRetries
	return decision, nil
}

func (e *Engine) executeMerge(ctx context.Context, intent *models.Intent, decision *Decision, cwd string, maxRetries int) error {
	sha, err := e.SCM.ExecuteMerge(ctx, intent.Source, intent.Target, cwd)
	if err != nil {
		newRetries := intent.Retries + 1
		newStatus := models.StatusReady
		if newRetries >= maxRetries {
			newStatus = models.StatusRejected
		}
		intent.Status = newStatus
		intent.Retries = newRetries
		intent.UpdatedAt = models.NowISO()
		if putErr := e.Intents.PutIntent(ctx, intent); putErr != nil {
			return putErr
		}

		ev := models.NewEvent(models.EventIntentMergeFailed, map[string]any{
			"error": err.Error(), "source": intent.Source, "target": intent.Target, "retries": newRetries,
		})
		ev.IntentID = &intent.ID
		ev.TenantID = intent.TenantID
		ev.Evidence = map[string]any{"error": err.Error(), "retries": newRetries}
		if _, appendErr := e.Log.Append(ctx, ev); appendErr != nil {
			return appendErr
		}

		decision.Outcome = OutcomeMergeFailed
		decision.Error = err.Error()
		decision.Retries = newRetries
		return nil
	}

	intent.Status = models.StatusMerged
	intent.UpdatedAt = models.NowISO()
	if err := e.Intents.PutIntent(ctx, intent); err != nil {
		return err
	}

	ev := models.NewEvent(models.EventIntentMerged, map[string]any{
		"merged_commit": sha, "source": intent.Source, "target": intent.Target,
	})
	ev.IntentID = &intent.ID
	ev.TenantID = intent.TenantID
	ev.Evidence = map[string]any{"merged_commit": sha}
	if _, err := e.Log.Append(ctx, ev); err != nil {
		return err
	}

	decision.Outcome = OutcomeMerged
	decision.MergedCommit = sha
	return nil
}

func fmtMaxRetries(maxRetries int) string {
	return "Max retries (" + strconv.Itoa(maxRetries) + ") exceeded"
}
