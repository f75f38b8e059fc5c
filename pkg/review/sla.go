package review

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/models"
)

// breachableStatuses are the open statuses an SLA deadline still
// applies to; ESCALATED tasks have already been flagged once.
var breachableStatuses = map[models.ReviewStatus]bool{
	models.ReviewPending:  true,
	models.ReviewAssigned: true,
	models.ReviewInReview: true,
}

// Breach describes one review task past its SLA deadline.
type Breach struct {
	TaskID       string
	IntentID     string
	Reviewer     *string
	SLADeadline  string
	RiskLevel    models.RiskLevel
	Status       models.ReviewStatus
	OverdueSince string
}

// CheckSLABreaches scans open review tasks for expired SLA deadlines,
// emitting a review.sla_breached event for each one found.
func (s *Service) CheckSLABreaches(ctx context.Context, tenantID *string) ([]Breach, error) {
	now := models.NowISO()
	tasks, err := s.Reviews.ListOpenReviewTasks(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var breaches []Breach
	for _, task := range tasks {
		if !breachableStatuses[task.Status] {
			continue
		}
		if task.SLADeadline == nil || *task.SLADeadline >= now {
			continue
		}

		breach := Breach{
			TaskID:       task.ID,
			IntentID:     task.IntentID,
			Reviewer:     task.Reviewer,
			SLADeadline:  *task.SLADeadline,
			RiskLevel:    task.RiskLevel,
			Status:       task.Status,
			OverdueSince: *task.SLADeadline,
		}
		breaches = append(breaches, breach)

		ev := models.NewEvent(models.EventReviewSLABreached, map[string]any{
			"task_id":       breach.TaskID,
			"intent_id":     breach.IntentID,
			"reviewer":      breach.Reviewer,
			"sla_deadline":  breach.SLADeadline,
			"risk_level":    string(breach.RiskLevel),
			"status":        string(breach.Status),
			"overdue_since": breach.OverdueSince,
		})
		ev.IntentID = &task.IntentID
		ev.TenantID = task.TenantID
		if _, err := s.Log.Append(ctx, ev); err != nil {
			return nil, err
		}
	}

	return breaches, nil
}

// Summary aggregates review task stats for the operator dashboard.
type Summary struct {
	Total       int
	ByStatus    map[string]int
	ByReviewer  map[string]int
	SLABreached int
	Timestamp   string
}

// assignedStatuses are the in-flight states counted toward a
// reviewer's active workload in ByReviewer.
var assignedStatuses = map[models.ReviewStatus]bool{
	models.ReviewAssigned: true,
	models.ReviewInReview: true,
}

// ReviewSummary computes Summary over every review task, scoped to
// tenantID when set.
func (s *Service) ReviewSummary(ctx context.Context, tenantID *string) (*Summary, error) {
	tasks, err := s.Reviews.ListAllReviewTasks(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := models.NowISO()
	summary := &Summary{
		ByStatus:   map[string]int{},
		ByReviewer: map[string]int{},
		Timestamp:  now,
	}

	for _, task := range tasks {
		summary.Total++
		summary.ByStatus[string(task.Status)]++

		if task.Reviewer != nil && assignedStatuses[task.Status] {
			summary.ByReviewer[*task.Reviewer]++
		}
		if task.SLADeadline != nil && *task.SLADeadline < now && breachableStatuses[task.Status] {
			summary.SLABreached++
		}
	}

	return summary, nil
}
