package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

func (s *Store) PutEmbedding(ctx context.Context, rec *models.EmbeddingRecord) error {
	vector, err := jsonb(rec.Vector)
	if err != nil {
		return fmt.Errorf("marshal embedding vector: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO embedding_records (intent_id, model, dimension, checksum, vector, generated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (intent_id, model) DO UPDATE SET
		  dimension=$3, checksum=$4, vector=$5, generated_at=$6`,
		rec.IntentID, rec.Model, rec.Dimension, rec.Checksum, vector, rec.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

func (s *Store) GetEmbedding(ctx context.Context, intentID, model string) (*models.EmbeddingRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT intent_id, model, dimension, checksum, vector, generated_at
		FROM embedding_records WHERE intent_id = $1 AND model = $2`, intentID, model)
	rec, err := scanEmbedding(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *Store) ListEmbeddings(ctx context.Context, model string) ([]*models.EmbeddingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT intent_id, model, dimension, checksum, vector, generated_at
		FROM embedding_records WHERE model = $1`, model)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var out []*models.EmbeddingRecord
	for rows.Next() {
		rec, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanEmbedding(r rowScanner) (*models.EmbeddingRecord, error) {
	var rec models.EmbeddingRecord
	var vector []byte
	if err := r.Scan(&rec.IntentID, &rec.Model, &rec.Dimension, &rec.Checksum, &vector, &rec.GeneratedAt); err != nil {
		return nil, fmt.Errorf("scan embedding: %w", err)
	}
	if err := unjsonb(vector, &rec.Vector); err != nil {
		return nil, fmt.Errorf("unmarshal embedding vector: %w", err)
	}
	return &rec, nil
}

func (s *Store) PutSemanticConflict(ctx context.Context, c *models.SemanticConflict) error {
	scope, err := jsonb(c.OverlappingScope)
	if err != nil {
		return fmt.Errorf("marshal overlapping scope: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO semantic_conflicts (id, intent_a, intent_b, similarity, overlapping_scope, status, detected_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET status=$6, resolved_at=$8`,
		c.ID, c.IntentA, c.IntentB, c.Similarity, scope, c.Status, c.DetectedAt, c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert semantic conflict: %w", err)
	}
	return nil
}

func (s *Store) ListOpenSemanticConflicts(ctx context.Context) ([]*models.SemanticConflict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, intent_a, intent_b, similarity, overlapping_scope, status, detected_at, resolved_at
		FROM semantic_conflicts WHERE status = 'open'`)
	if err != nil {
		return nil, fmt.Errorf("list open semantic conflicts: %w", err)
	}
	defer rows.Close()

	var out []*models.SemanticConflict
	for rows.Next() {
		var c models.SemanticConflict
		var scope []byte
		var resolvedAt sql.NullString
		if err := rows.Scan(&c.ID, &c.IntentA, &c.IntentB, &c.Similarity, &scope, &c.Status, &c.DetectedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan semantic conflict: %w", err)
		}
		if err := unjsonb(scope, &c.OverlappingScope); err != nil {
			return nil, fmt.Errorf("unmarshal overlapping scope: %w", err)
		}
		c.ResolvedAt = stringPtr(resolvedAt)
		out = append(out, &c)
	}
	return out, rows.Err()
}
