// Package postgres implements pkg/store.Store directly over
// database/sql + the pgx stdlib driver, with hand-written SQL against
// the schema in pkg/database/migrations. There is no ORM layer: the
// teacher's generated Ent client does not exist in this tree (see
// DESIGN.md), so every query here is explicit.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// Store is a PostgreSQL-backed implementation of store.Store.
type Store struct {
	db *sql.DB
}

// New wraps an already-connected, already-migrated *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var _ store.Store = (*Store)(nil)

func jsonb(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func unjsonb[T any](raw []byte, out *T) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func nullableString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

// --- EventStore ---

func (s *Store) AppendEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	payload, err := jsonb(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	evidence, err := jsonb(event.Evidence)
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, trace_id, timestamp, event_type, intent_id, agent_id, tenant_id, payload, evidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.TraceID, event.Timestamp, string(event.EventType),
		event.IntentID, event.AgentID, event.TenantID, payload, evidence,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

func (s *Store) QueryEvents(ctx context.Context, filter store.EventQuery) ([]*models.Event, error) {
	where, args := eventWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, trace_id, timestamp, event_type, intent_id, agent_id, tenant_id, payload, evidence
		FROM events %s ORDER BY timestamp DESC LIMIT $%d`, where, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) CountEvents(ctx context.Context, filter store.EventQuery) (int, error) {
	where, args := eventWhere(filter)
	var n int
	query := fmt.Sprintf(`SELECT count(*) FROM events %s`, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *Store) PruneEvents(ctx context.Context, before string, tenantID *string, dryRun bool) (int, error) {
	conds := []string{"timestamp < $1"}
	args := []any{before}
	if tenantID != nil {
		args = append(args, *tenantID)
		conds = append(conds, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	where := "WHERE " + strings.Join(conds, " AND ")

	if dryRun {
		var n int
		query := fmt.Sprintf(`SELECT count(*) FROM events %s`, where)
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count prunable events: %w", err)
		}
		return n, nil
	}

	query := fmt.Sprintf(`DELETE FROM events %s`, where)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func eventWhere(f store.EventQuery) (string, []any) {
	var conds []string
	var args []any
	add := func(col string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.EventType != nil {
		add("event_type", *f.EventType)
	}
	if f.IntentID != nil {
		add("intent_id", *f.IntentID)
	}
	if f.AgentID != nil {
		add("agent_id", *f.AgentID)
	}
	if f.TenantID != nil {
		add("tenant_id", *f.TenantID)
	}
	if f.TraceID != nil {
		add("trace_id", *f.TraceID)
	}
	if f.Since != "" {
		args = append(args, f.Since)
		conds = append(conds, fmt.Sprintf("timestamp > $%d", len(args)))
	}
	if f.Until != "" {
		args = append(args, f.Until)
		conds = append(conds, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (*models.Event, error) {
	var e models.Event
	var eventType string
	var intentID, agentID, tenantID sql.NullString
	var payload, evidence []byte

	if err := r.Scan(&e.ID, &e.TraceID, &e.Timestamp, &eventType, &intentID, &agentID, &tenantID, &payload, &evidence); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.EventType = models.EventType(eventType)
	e.IntentID = stringPtr(intentID)
	e.AgentID = stringPtr(agentID)
	e.TenantID = stringPtr(tenantID)
	e.Payload = map[string]any{}
	e.Evidence = map[string]any{}
	if err := unjsonb(payload, &e.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := unjsonb(evidence, &e.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	return &e, nil
}

// --- ChainStateStore ---

func (s *Store) GetChainState(ctx context.Context, chainID string) (string, int64, bool, error) {
	var lastHash string
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_hash, event_count FROM chain_state WHERE chain_id = $1`, chainID,
	).Scan(&lastHash, &count)
	if err == sql.ErrNoRows {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("get chain state: %w", err)
	}
	return lastHash, count, true, nil
}

func (s *Store) SetChainState(ctx context.Context, chainID, lastHash string, eventCount int64, updatedAt string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chain_state (chain_id, last_hash, event_count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chain_id) DO UPDATE SET last_hash = $2, event_count = $3, updated_at = $4`,
		chainID, lastHash, eventCount, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("set chain state: %w", err)
	}
	return nil
}

// --- LockStore ---

func (s *Store) AcquireLock(ctx context.Context, lockName, holderPID string, ttlSeconds int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339Nano)
	expiresAt := now.Add(time.Duration(ttlSeconds) * time.Second).Format(time.RFC3339Nano)

	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_locks WHERE lock_name = $1 AND expires_at < $2`, lockName, nowStr); err != nil {
		return false, fmt.Errorf("evict stale lock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO queue_locks (lock_name, holder_pid, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		lockName, holderPID, nowStr, expiresAt,
	)
	if err != nil {
		// Unique violation on lock_name means another holder still owns it.
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit lock acquire: %w", err)
	}
	return true, nil
}

func (s *Store) ReleaseLock(ctx context.Context, lockName, holderPID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue_locks WHERE lock_name = $1 AND holder_pid = $2`, lockName, holderPID)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

func (s *Store) ForceReleaseLock(ctx context.Context, lockName string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue_locks WHERE lock_name = $1`, lockName)
	if err != nil {
		return fmt.Errorf("force release lock: %w", err)
	}
	return nil
}
