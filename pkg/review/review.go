// Package review orchestrates human review tasks: creation,
// assignment, completion, cancellation, escalation, and SLA-breach
// detection. A review task is attached to an intent when policy
// evaluation or conflict detection decides a human must sign off
// before the intent can merge (spec.md §3, §4.10). Grounded on
// original_source/src/converge/reviews.py.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// SLAHours maps a risk level to its review turnaround budget.
// defaults.py's REVIEW_SLA_HOURS was absent from the filtered
// original_source copy (the same gap noted across pkg/policy,
// pkg/intake, pkg/checkrunner, pkg/engine); the 72/48/24/8 schedule is
// reconstructed from spec.md §4.6's prose.
var SLAHours = map[models.RiskLevel]int{
	models.RiskLow:      72,
	models.RiskMedium:   48,
	models.RiskHigh:     24,
	models.RiskCritical: 8,
}

const defaultSLAHours = 48

// Service orchestrates review tasks against the event log and an
// intent/review store pair.
type Service struct {
	Log     *eventlog.Log
	Intents store.IntentStore
	Reviews store.ReviewStore
}

// New builds a review Service.
func New(log *eventlog.Log, intents store.IntentStore, reviews store.ReviewStore) *Service {
	return &Service{Log: log, Intents: intents, Reviews: reviews}
}

func computeSLADeadline(risk models.RiskLevel, createdAt string) (string, error) {
	hours, ok := SLAHours[risk]
	if !ok {
		hours = defaultSLAHours
	}
	base, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return "", fmt.Errorf("parse created_at: %w", err)
	}
	return base.Add(time.Duration(hours) * time.Hour).Format(time.RFC3339Nano), nil
}

// RequestOptions carries request_review's keyword arguments.
type RequestOptions struct {
	Trigger  string // policy | conflict | coherence | manual
	Reviewer *string
	Priority *int
	TenantID *string
}

// RequestReview creates a review task for intentID, auto-computing its
// SLA deadline from the intent's risk level. If opts.Reviewer is set
// the task starts ASSIGNED instead of PENDING.
func (s *Service) RequestReview(ctx context.Context, intentID string, opts RequestOptions) (*models.ReviewTask, error) {
	intent, found, err := s.Intents.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("intent %s not found", intentID)
	}

	trigger := opts.Trigger
	if trigger == "" {
		trigger = "policy"
	}

	created := models.NowISO()
	sla, err := computeSLADeadline(intent.RiskLevel, created)
	if err != nil {
		return nil, err
	}

	priority := intent.Priority
	if opts.Priority != nil {
		priority = *opts.Priority
	}

	tenantID := intent.TenantID
	if opts.TenantID != nil {
		tenantID = opts.TenantID
	}

	status := models.ReviewPending
	var assignedAt *string
	if opts.Reviewer != nil {
		status = models.ReviewAssigned
		assignedAt = &created
	}

	task := &models.ReviewTask{
		ID:          "rev-" + models.NewID(),
		IntentID:    intentID,
		Status:      status,
		Reviewer:    opts.Reviewer,
		Priority:    priority,
		RiskLevel:   intent.RiskLevel,
		Trigger:     trigger,
		SLADeadline: &sla,
		CreatedAt:   created,
		AssignedAt:  assignedAt,
		TenantID:    tenantID,
	}
	if err := s.Reviews.PutReviewTask(ctx, task); err != nil {
		return nil, err
	}

	ev := models.NewEvent(models.EventReviewRequested, reviewPayload(task))
	ev.IntentID = &intentID
	ev.TenantID = tenantID
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	if opts.Reviewer != nil {
		assignEv := models.NewEvent(models.EventReviewAssigned, map[string]any{
			"task_id": task.ID, "reviewer": *opts.Reviewer,
		})
		assignEv.IntentID = &intentID
		assignEv.TenantID = tenantID
		if _, err := s.Log.Append(ctx, assignEv); err != nil {
			return nil, err
		}
	}

	return task, nil
}

// AssignReview assigns (or reassigns) taskID to reviewer.
func (s *Service) AssignReview(ctx context.Context, taskID, reviewer string) (*models.ReviewTask, error) {
	task, found, err := s.Reviews.GetReviewTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("review task %s not found", taskID)
	}

	oldReviewer := task.Reviewer
	assignedAt := models.NowISO()

	task.Reviewer = &reviewer
	task.AssignedAt = &assignedAt
	task.Status = models.ReviewAssigned
	if err := s.Reviews.PutReviewTask(ctx, task); err != nil {
		return nil, err
	}

	eventType := models.EventReviewAssigned
	if oldReviewer != nil {
		eventType = models.EventReviewReassigned
	}
	ev := models.NewEvent(eventType, map[string]any{
		"task_id": taskID, "reviewer": reviewer, "old_reviewer": oldReviewer,
	})
	ev.IntentID = &task.IntentID
	ev.TenantID = task.TenantID
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return task, nil
}

// CompleteReview resolves taskID with a verdict (approved|rejected|deferred).
func (s *Service) CompleteReview(ctx context.Context, taskID, resolution, notes string) (*models.ReviewTask, error) {
	task, found, err := s.Reviews.GetReviewTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("review task %s not found", taskID)
	}
	if resolution == "" {
		resolution = "approved"
	}

	completedAt := models.NowISO()
	task.Status = models.ReviewCompleted
	task.CompletedAt = &completedAt
	task.Resolution = &resolution
	task.Notes = notes
	if err := s.Reviews.PutReviewTask(ctx, task); err != nil {
		return nil, err
	}

	ev := models.NewEvent(models.EventReviewCompleted, map[string]any{
		"task_id": taskID, "reviewer": task.Reviewer, "resolution": resolution, "notes": notes,
	})
	ev.IntentID = &task.IntentID
	ev.TenantID = task.TenantID
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return task, nil
}

// CancelReview withdraws taskID without a verdict.
func (s *Service) CancelReview(ctx context.Context, taskID, reason string) (*models.ReviewTask, error) {
	task, found, err := s.Reviews.GetReviewTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("review task %s not found", taskID)
	}

	task.Status = models.ReviewCancelled
	task.Notes = reason
	if err := s.Reviews.PutReviewTask(ctx, task); err != nil {
		return nil, err
	}

	ev := models.NewEvent(models.EventReviewCancelled, map[string]any{"task_id": taskID, "reason": reason})
	ev.IntentID = &task.IntentID
	ev.TenantID = task.TenantID
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return task, nil
}

// EscalateReview bumps taskID to ESCALATED, typically in response to
// an SLA breach.
func (s *Service) EscalateReview(ctx context.Context, taskID, reason string) (*models.ReviewTask, error) {
	task, found, err := s.Reviews.GetReviewTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("review task %s not found", taskID)
	}
	if reason == "" {
		reason = "sla_breach"
	}

	escalatedAt := models.NowISO()
	task.Status = models.ReviewEscalated
	task.EscalatedAt = &escalatedAt
	if err := s.Reviews.PutReviewTask(ctx, task); err != nil {
		return nil, err
	}

	ev := models.NewEvent(models.EventReviewEscalated, map[string]any{
		"task_id": taskID, "reviewer": task.Reviewer, "reason": reason,
	})
	ev.IntentID = &task.IntentID
	ev.TenantID = task.TenantID
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return task, nil
}

func reviewPayload(t *models.ReviewTask) map[string]any {
	return map[string]any{
		"id":           t.ID,
		"intent_id":    t.IntentID,
		"status":       string(t.Status),
		"reviewer":     t.Reviewer,
		"priority":     t.Priority,
		"risk_level":   string(t.RiskLevel),
		"trigger":      t.Trigger,
		"sla_deadline": t.SLADeadline,
		"created_at":   t.CreatedAt,
	}
}
