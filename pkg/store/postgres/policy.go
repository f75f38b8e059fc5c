package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

func (s *Store) GetAgentPolicy(ctx context.Context, agentID string, tenantID string) (*models.AgentPolicy, bool, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM agent_policies WHERE agent_id = $1 AND tenant_id = $2`,
		agentID, tenantID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get agent policy: %w", err)
	}
	var p models.AgentPolicy
	if err := unjsonb(doc, &p); err != nil {
		return nil, false, fmt.Errorf("unmarshal agent policy: %w", err)
	}
	return &p, true, nil
}

func (s *Store) PutAgentPolicy(ctx context.Context, policy *models.AgentPolicy, tenantID string) error {
	doc, err := jsonb(policy)
	if err != nil {
		return fmt.Errorf("marshal agent policy: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_policies (agent_id, tenant_id, document, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_id, tenant_id) DO UPDATE SET document = $3, updated_at = $4`,
		policy.AgentID, tenantID, doc, models.NowISO(),
	)
	if err != nil {
		return fmt.Errorf("upsert agent policy: %w", err)
	}
	return nil
}

func (s *Store) GetRiskPolicyVersion(ctx context.Context, tenantID string) (map[string]any, int64, bool, error) {
	var doc []byte
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT document, version FROM risk_policies WHERE tenant_id = $1`, tenantID,
	).Scan(&doc, &version)
	if err == sql.ErrNoRows {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("get risk policy: %w", err)
	}
	document := map[string]any{}
	if err := unjsonb(doc, &document); err != nil {
		return nil, 0, false, fmt.Errorf("unmarshal risk policy: %w", err)
	}
	return document, version, true, nil
}

func (s *Store) PutRiskPolicy(ctx context.Context, tenantID string, document map[string]any) (int64, error) {
	doc, err := jsonb(document)
	if err != nil {
		return 0, fmt.Errorf("marshal risk policy: %w", err)
	}
	var version int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO risk_policies (tenant_id, version, document, updated_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (tenant_id) DO UPDATE SET
		  version = risk_policies.version + 1, document = $2, updated_at = $3
		RETURNING version`,
		tenantID, doc, models.NowISO(),
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("upsert risk policy: %w", err)
	}
	return version, nil
}

func (s *Store) GetIntakeOverride(ctx context.Context, tenantID string) (string, string, string, string, bool, error) {
	var mode, setBy, setAt, reason string
	err := s.db.QueryRowContext(ctx,
		`SELECT mode, set_by, set_at, reason FROM intake_overrides WHERE tenant_id = $1`, tenantID,
	).Scan(&mode, &setBy, &setAt, &reason)
	if err == sql.ErrNoRows {
		return "", "", "", "", false, nil
	}
	if err != nil {
		return "", "", "", "", false, fmt.Errorf("get intake override: %w", err)
	}
	return mode, setBy, setAt, reason, true, nil
}

func (s *Store) PutIntakeOverride(ctx context.Context, tenantID, mode, setBy, setAt, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO intake_overrides (tenant_id, mode, set_by, set_at, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id) DO UPDATE SET mode = $2, set_by = $3, set_at = $4, reason = $5`,
		tenantID, mode, setBy, setAt, reason,
	)
	if err != nil {
		return fmt.Errorf("upsert intake override: %w", err)
	}
	return nil
}
