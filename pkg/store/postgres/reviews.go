package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

func (s *Store) GetReviewTask(ctx context.Context, id string) (*models.ReviewTask, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, intent_id, status, reviewer, priority, risk_level, trigger, sla_deadline,
		       created_at, assigned_at, completed_at, escalated_at, resolution, notes, tenant_id
		FROM review_tasks WHERE id = $1`, id)
	task, err := scanReviewTask(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return task, true, nil
}

func (s *Store) PutReviewTask(ctx context.Context, task *models.ReviewTask) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_tasks (id, intent_id, status, reviewer, priority, risk_level, trigger,
		                          sla_deadline, created_at, assigned_at, completed_at, escalated_at,
		                          resolution, notes, tenant_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
		  status=$3, reviewer=$4, priority=$5, risk_level=$6, trigger=$7, sla_deadline=$8,
		  assigned_at=$10, completed_at=$11, escalated_at=$12, resolution=$13, notes=$14, tenant_id=$15`,
		task.ID, task.IntentID, string(task.Status), task.Reviewer, task.Priority,
		string(task.RiskLevel), task.Trigger, task.SLADeadline, task.CreatedAt, task.AssignedAt,
		task.CompletedAt, task.EscalatedAt, task.Resolution, task.Notes, task.TenantID,
	)
	if err != nil {
		return fmt.Errorf("upsert review task: %w", err)
	}
	return nil
}

func (s *Store) ListOpenReviewTasks(ctx context.Context, tenantID *string) ([]*models.ReviewTask, error) {
	query := `SELECT id, intent_id, status, reviewer, priority, risk_level, trigger, sla_deadline,
	                 created_at, assigned_at, completed_at, escalated_at, resolution, notes, tenant_id
	          FROM review_tasks
	          WHERE status IN ('pending','assigned','in_review','escalated')`
	args := []any{}
	if tenantID != nil {
		query += " AND tenant_id = $1"
		args = append(args, *tenantID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list open review tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.ReviewTask
	for rows.Next() {
		task, err := scanReviewTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (s *Store) ListAllReviewTasks(ctx context.Context, tenantID *string) ([]*models.ReviewTask, error) {
	query := `SELECT id, intent_id, status, reviewer, priority, risk_level, trigger, sla_deadline,
	                 created_at, assigned_at, completed_at, escalated_at, resolution, notes, tenant_id
	          FROM review_tasks`
	args := []any{}
	if tenantID != nil {
		query += " WHERE tenant_id = $1"
		args = append(args, *tenantID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list all review tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.ReviewTask
	for rows.Next() {
		task, err := scanReviewTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (s *Store) ListReviewTasksByIntent(ctx context.Context, intentID string) ([]*models.ReviewTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intent_id, status, reviewer, priority, risk_level, trigger, sla_deadline,
		       created_at, assigned_at, completed_at, escalated_at, resolution, notes, tenant_id
		FROM review_tasks WHERE intent_id = $1 ORDER BY created_at ASC`, intentID)
	if err != nil {
		return nil, fmt.Errorf("list review tasks by intent: %w", err)
	}
	defer rows.Close()

	var out []*models.ReviewTask
	for rows.Next() {
		task, err := scanReviewTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func scanReviewTask(r rowScanner) (*models.ReviewTask, error) {
	var t models.ReviewTask
	var status, riskLevel string
	var reviewer, resolution, tenantID sql.NullString
	var slaDeadline, assignedAt, completedAt, escalatedAt sql.NullString

	err := r.Scan(&t.ID, &t.IntentID, &status, &reviewer, &t.Priority, &riskLevel, &t.Trigger,
		&slaDeadline, &t.CreatedAt, &assignedAt, &completedAt, &escalatedAt, &resolution, &t.Notes, &tenantID)
	if err != nil {
		return nil, err
	}
	t.Status = models.ReviewStatus(status)
	t.RiskLevel = models.RiskLevel(riskLevel)
	t.Reviewer = stringPtr(reviewer)
	t.Resolution = stringPtr(resolution)
	t.TenantID = stringPtr(tenantID)
	t.SLADeadline = stringPtr(slaDeadline)
	t.AssignedAt = stringPtr(assignedAt)
	t.CompletedAt = stringPtr(completedAt)
	t.EscalatedAt = stringPtr(escalatedAt)
	return &t, nil
}
