package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

func (s *Store) GetIntent(ctx context.Context, id string) (*models.Intent, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, target, status, created_at, created_by, risk_level, priority,
		       semantic, technical, checks_required, dependencies, retries, tenant_id,
		       plan_id, origin_type, updated_at
		FROM intents WHERE id = $1`, id)
	intent, err := scanIntent(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return intent, true, nil
}

func (s *Store) PutIntent(ctx context.Context, intent *models.Intent) error {
	semantic, err := jsonb(intent.Semantic)
	if err != nil {
		return fmt.Errorf("marshal semantic: %w", err)
	}
	technical, err := jsonb(intent.Technical)
	if err != nil {
		return fmt.Errorf("marshal technical: %w", err)
	}
	checks, err := jsonb(intent.ChecksRequired)
	if err != nil {
		return fmt.Errorf("marshal checks_required: %w", err)
	}
	deps, err := jsonb(intent.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO intents (id, source, target, status, created_at, created_by, risk_level, priority,
		                     semantic, technical, checks_required, dependencies, retries, tenant_id,
		                     plan_id, origin_type, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
		  source=$2, target=$3, status=$4, risk_level=$7, priority=$8, semantic=$9, technical=$10,
		  checks_required=$11, dependencies=$12, retries=$13, tenant_id=$14, plan_id=$15,
		  origin_type=$16, updated_at=$17`,
		intent.ID, intent.Source, intent.Target, string(intent.Status), intent.CreatedAt,
		intent.CreatedBy, string(intent.RiskLevel), intent.Priority, semantic, technical,
		checks, deps, intent.Retries, intent.TenantID, intent.PlanID, string(intent.OriginType),
		intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert intent: %w", err)
	}
	return nil
}

func (s *Store) ListIntentsByStatus(ctx context.Context, status models.Status, tenantID *string) ([]*models.Intent, error) {
	query := `SELECT id, source, target, status, created_at, created_by, risk_level, priority,
	                 semantic, technical, checks_required, dependencies, retries, tenant_id,
	                 plan_id, origin_type, updated_at
	          FROM intents WHERE status = $1`
	args := []any{string(status)}
	if tenantID != nil {
		query += " AND tenant_id = $2"
		args = append(args, *tenantID)
	}
	query += " ORDER BY priority ASC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list intents by status: %w", err)
	}
	defer rows.Close()
	return scanIntents(rows)
}

func (s *Store) ListIntentsByTarget(ctx context.Context, target string, tenantID *string) ([]*models.Intent, error) {
	query := `SELECT id, source, target, status, created_at, created_by, risk_level, priority,
	                 semantic, technical, checks_required, dependencies, retries, tenant_id,
	                 plan_id, origin_type, updated_at
	          FROM intents WHERE target = $1`
	args := []any{target}
	if tenantID != nil {
		query += " AND tenant_id = $2"
		args = append(args, *tenantID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list intents by target: %w", err)
	}
	defer rows.Close()
	return scanIntents(rows)
}

func (s *Store) ListAllIntents(ctx context.Context, tenantID *string) ([]*models.Intent, error) {
	query := `SELECT id, source, target, status, created_at, created_by, risk_level, priority,
	                 semantic, technical, checks_required, dependencies, retries, tenant_id,
	                 plan_id, origin_type, updated_at
	          FROM intents`
	args := []any{}
	if tenantID != nil {
		query += " WHERE tenant_id = $1"
		args = append(args, *tenantID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list all intents: %w", err)
	}
	defer rows.Close()
	return scanIntents(rows)
}

func scanIntents(rows *sql.Rows) ([]*models.Intent, error) {
	var out []*models.Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, rows.Err()
}

func scanIntent(r rowScanner) (*models.Intent, error) {
	var i models.Intent
	var status, riskLevel, originType string
	var tenantID, planID sql.NullString
	var semantic, technical, checks, deps []byte

	err := r.Scan(&i.ID, &i.Source, &i.Target, &status, &i.CreatedAt, &i.CreatedBy, &riskLevel,
		&i.Priority, &semantic, &technical, &checks, &deps, &i.Retries, &tenantID, &planID,
		&originType, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.Status = models.Status(status)
	i.RiskLevel = models.RiskLevel(riskLevel)
	i.OriginType = models.OriginType(originType)
	i.TenantID = stringPtr(tenantID)
	i.PlanID = stringPtr(planID)
	i.Semantic = map[string]any{}
	i.Technical = map[string]any{}
	if err := unjsonb(semantic, &i.Semantic); err != nil {
		return nil, fmt.Errorf("unmarshal semantic: %w", err)
	}
	if err := unjsonb(technical, &i.Technical); err != nil {
		return nil, fmt.Errorf("unmarshal technical: %w", err)
	}
	if err := unjsonb(checks, &i.ChecksRequired); err != nil {
		return nil, fmt.Errorf("unmarshal checks_required: %w", err)
	}
	if err := unjsonb(deps, &i.Dependencies); err != nil {
		return nil, fmt.Errorf("unmarshal dependencies: %w", err)
	}
	return &i, nil
}
