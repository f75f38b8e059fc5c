package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

func (s *Store) GetCoherenceBaseline(ctx context.Context, questionID, tenantID string) (float64, bool, error) {
	var v float64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM coherence_baselines WHERE question_id = $1 AND tenant_id = $2`,
		questionID, tenantID,
	).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get coherence baseline: %w", err)
	}
	return v, true, nil
}

func (s *Store) SetCoherenceBaseline(ctx context.Context, questionID, tenantID string, value float64, updatedAt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coherence_baselines (question_id, tenant_id, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (question_id, tenant_id) DO UPDATE SET value = $3, updated_at = $4`,
		questionID, tenantID, value, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert coherence baseline: %w", err)
	}
	return nil
}

func (s *Store) PutSecurityFinding(ctx context.Context, f *models.SecurityFinding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO security_findings (id, scanner, category, severity, file, line, rule, evidence,
		                               confidence, intent_id, tenant_id, scan_id, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO NOTHING`,
		f.ID, f.Scanner, f.Category, f.Severity, f.File, f.Line, f.Rule, f.Evidence,
		f.Confidence, f.IntentID, f.TenantID, f.ScanID, f.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert security finding: %w", err)
	}
	return nil
}

func (s *Store) ListSecurityFindings(ctx context.Context, intentID string) ([]*models.SecurityFinding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scanner, category, severity, file, line, rule, evidence, confidence,
		       intent_id, tenant_id, scan_id, timestamp
		FROM security_findings WHERE intent_id = $1`, intentID)
	if err != nil {
		return nil, fmt.Errorf("list security findings: %w", err)
	}
	defer rows.Close()

	var out []*models.SecurityFinding
	for rows.Next() {
		var f models.SecurityFinding
		var intentIDCol, tenantID, scanID sql.NullString
		if err := rows.Scan(&f.ID, &f.Scanner, &f.Category, &f.Severity, &f.File, &f.Line, &f.Rule,
			&f.Evidence, &f.Confidence, &intentIDCol, &tenantID, &scanID, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("scan security finding: %w", err)
		}
		f.IntentID = stringPtr(intentIDCol)
		f.TenantID = stringPtr(tenantID)
		f.ScanID = stringPtr(scanID)
		out = append(out, &f)
	}
	return out, rows.Err()
}
