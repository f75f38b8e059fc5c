package semantic

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// Similarity/conflict thresholds, calibrated per provider type
// (conflicts.py's module constants): the deterministic provider only
// detects near-exact text matches (cosine ~1.0 or ~0.0), so it needs
// much higher thresholds than an ML-based embedding would.
const (
	defaultSimilarityThreshold       = 0.70
	defaultConflictThreshold         = 0.60
	deterministicSimilarityThreshold = 0.95
	deterministicConflictThreshold   = 0.80
)

const maxConflictsListed = 50

// CosineSimilarity computes the cosine similarity between two equal-
// length vectors, returning 0 on length mismatch or a zero vector
// (conflicts.py's _cosine_similarity, numpy path omitted — Go has no
// numpy, and the pure-Python fallback is already what this translates).
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ConflictCandidate is a pair of intents whose embeddings are similar
// enough to warrant scoring.
type ConflictCandidate struct {
	IntentA    string
	IntentB    string
	Similarity float64
	Target     string
}

// ConflictScore is a scored candidate, combining embedding similarity
// with target/scope overlap heuristics.
type ConflictScore struct {
	IntentA       string
	IntentB       string
	Score         float64
	Similarity    float64
	TargetOverlap float64
	ScopeOverlap  float64
	Target        string
	PlanA         *string
	PlanB         *string
}

// ConflictReport is the result of a full conflict scan.
type ConflictReport struct {
	Conflicts        []ConflictScore
	CandidatesChecked int
	Mode             string
	Threshold        float64
	Timestamp        string
}

func effectiveSimilarityThreshold(model string, explicit *float64) float64 {
	if explicit != nil {
		return *explicit
	}
	if strings.HasPrefix(model, "deterministic") {
		return deterministicSimilarityThreshold
	}
	return defaultSimilarityThreshold
}

func effectiveConflictThreshold(model string, explicit *float64) float64 {
	if explicit != nil {
		return *explicit
	}
	if strings.HasPrefix(model, "deterministic") {
		return deterministicConflictThreshold
	}
	return defaultConflictThreshold
}

func (s *Service) loadActiveIntents(ctx context.Context, tenantID *string, target string) ([]*models.Intent, error) {
	var result []*models.Intent
	for _, status := range activeStatuses() {
		intents, err := s.Intents.ListIntentsByStatus(ctx, status, tenantID)
		if err != nil {
			return nil, err
		}
		result = append(result, intents...)
	}
	if target != "" {
		filtered := result[:0]
		for _, i := range result {
			if i.Target == target {
				filtered = append(filtered, i)
			}
		}
		result = filtered
	}
	return result, nil
}

func (s *Service) loadEmbeddingVectors(ctx context.Context, model string, ids []string) map[string][]float64 {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	vectors := make(map[string][]float64, len(ids))
	recs, err := s.Store.ListEmbeddings(ctx, model)
	if err != nil {
		return vectors
	}
	for _, rec := range recs {
		if idSet[rec.IntentID] {
			vectors[rec.IntentID] = rec.Vector
		}
	}
	return vectors
}

// GenerateCandidates finds pairs of active intents across different
// plans with high embedding similarity, grouped by shared target
// branch (conflicts.py's generate_candidates).
func (s *Service) GenerateCandidates(ctx context.Context, model, tenantID, target string, similarityThreshold *float64) ([]ConflictCandidate, error) {
	var tenant *string
	if tenantID != "" {
		tenant = &tenantID
	}
	effective := effectiveSimilarityThreshold(model, similarityThreshold)

	intents, err := s.loadActiveIntents(ctx, tenant, target)
	if err != nil {
		return nil, err
	}
	if len(intents) < 2 {
		return nil, nil
	}

	byTarget := make(map[string][]*models.Intent)
	ids := make([]string, 0, len(intents))
	for _, i := range intents {
		byTarget[i.Target] = append(byTarget[i.Target], i)
		ids = append(ids, i.ID)
	}
	vectors := s.loadEmbeddingVectors(ctx, model, ids)

	var candidates []ConflictCandidate
	seen := make(map[string]bool)
	for tgt, group := range byTarget {
		for i, a := range group {
			for _, b := range group[i+1:] {
				if a.PlanID != nil && b.PlanID != nil && *a.PlanID == *b.PlanID {
					continue
				}
				pair := pairKey(a.ID, b.ID)
				if seen[pair] {
					continue
				}
				seen[pair] = true

				va, okA := vectors[a.ID]
				vb, okB := vectors[b.ID]
				if !okA || !okB {
					continue
				}
				sim := roundN(CosineSimilarity(va, vb), 4)
				if sim >= effective {
					candidates = append(candidates, ConflictCandidate{
						IntentA: a.ID, IntentB: b.ID, Similarity: sim, Target: tgt,
					})
				}
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	return candidates, nil
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func scopeHint(i *models.Intent) []string {
	return stringSlice(i.Technical["scope_hint"])
}

func scopeOverlap(a, b *models.Intent) float64 {
	scopeA := scopeHint(a)
	scopeB := scopeHint(b)
	if len(scopeA) == 0 && len(scopeB) == 0 {
		return 0.0
	}
	setA := make(map[string]bool, len(scopeA))
	for _, s := range scopeA {
		setA[s] = true
	}
	setB := make(map[string]bool, len(scopeB))
	for _, s := range scopeB {
		setB[s] = true
	}
	union := make(map[string]bool)
	for s := range setA {
		union[s] = true
	}
	for s := range setB {
		union[s] = true
	}
	if len(union) == 0 {
		return 0.0
	}
	shared := 0
	for s := range setA {
		if setB[s] {
			shared++
		}
	}
	return float64(shared) / float64(len(union))
}

func targetOverlap(a, b *models.Intent) float64 {
	if a.Target == b.Target {
		return 1.0
	}
	return 0.0
}

// ScoreConflict combines embedding similarity with target/scope
// overlap (conflicts.py's score_conflict, weights 0.6/0.2/0.2).
func ScoreConflict(candidate ConflictCandidate, a, b *models.Intent) ConflictScore {
	const wSimilarity, wTarget, wScope = 0.6, 0.2, 0.2
	to := targetOverlap(a, b)
	so := scopeOverlap(a, b)
	score := wSimilarity*candidate.Similarity + wTarget*to + wScope*so

	return ConflictScore{
		IntentA:       candidate.IntentA,
		IntentB:       candidate.IntentB,
		Score:         roundN(score, 4),
		Similarity:    candidate.Similarity,
		TargetOverlap: to,
		ScopeOverlap:  so,
		Target:        candidate.Target,
		PlanA:         a.PlanID,
		PlanB:         b.PlanID,
	}
}

// ScanConflicts runs the full pipeline: generate candidates, score
// each, and emit semantic.conflict_detected for those at or above the
// conflict threshold (conflicts.py's scan_conflicts).
func (s *Service) ScanConflicts(ctx context.Context, model, tenantID, target string, similarityThreshold, conflictThreshold *float64, mode string) (*ConflictReport, error) {
	if model == "" {
		model = DeterministicModel
	}
	if mode == "" {
		mode = "shadow"
	}
	effectiveConflict := effectiveConflictThreshold(model, conflictThreshold)

	candidates, err := s.GenerateCandidates(ctx, model, tenantID, target, similarityThreshold)
	if err != nil {
		return nil, err
	}

	var tenant *string
	if tenantID != "" {
		tenant = &tenantID
	}

	scored := make([]ConflictScore, 0, len(candidates))
	for _, cand := range candidates {
		intentA, foundA, err := s.Intents.GetIntent(ctx, cand.IntentA)
		if err != nil {
			return nil, err
		}
		intentB, foundB, err := s.Intents.GetIntent(ctx, cand.IntentB)
		if err != nil {
			return nil, err
		}
		if !foundA || !foundB {
			continue
		}

		cs := ScoreConflict(cand, intentA, intentB)
		if cs.Score < effectiveConflict {
			continue
		}
		scored = append(scored, cs)

		ev := models.NewEvent(models.EventSemanticConflict, map[string]any{
			"intent_a":       cs.IntentA,
			"intent_b":       cs.IntentB,
			"score":          cs.Score,
			"similarity":     cs.Similarity,
			"target_overlap": cs.TargetOverlap,
			"scope_overlap":  cs.ScopeOverlap,
			"target":         cs.Target,
			"mode":           mode,
		})
		ev.IntentID = &cs.IntentA
		ev.TenantID = tenant
		ev.Evidence = map[string]any{"plan_a": cs.PlanA, "plan_b": cs.PlanB}
		if _, err := s.Log.Append(ctx, ev); err != nil {
			return nil, err
		}
	}

	return &ConflictReport{
		Conflicts:         scored,
		CandidatesChecked: len(candidates),
		Mode:              mode,
		Threshold:         effectiveConflict,
		Timestamp:         models.NowISO(),
	}, nil
}

// ResolveConflict marks a detected pair as resolved (conflicts.py's
// resolve_conflict).
func (s *Service) ResolveConflict(ctx context.Context, intentA, intentB, resolution, resolvedBy string, tenantID *string) error {
	if resolution == "" {
		resolution = "acknowledged"
	}
	if resolvedBy == "" {
		resolvedBy = "system"
	}
	ev := models.NewEvent(models.EventSemanticResolved, map[string]any{
		"intent_a":    intentA,
		"intent_b":    intentB,
		"resolution":  resolution,
		"resolved_by": resolvedBy,
	})
	ev.IntentID = &intentA
	ev.TenantID = tenantID
	_, err := s.Log.Append(ctx, ev)
	return err
}

// ListConflicts returns recently detected conflicts that have not been
// resolved (conflicts.py's list_conflicts).
func (s *Service) ListConflicts(ctx context.Context, tenantID *string, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = maxConflictsListed
	}
	detectedType := string(models.EventSemanticConflict)
	detected, err := s.Log.Query(ctx, store.EventQuery{EventType: &detectedType, TenantID: tenantID, Limit: limit})
	if err != nil {
		return nil, err
	}

	resolvedType := string(models.EventSemanticResolved)
	resolvedEvents, err := s.Log.Query(ctx, store.EventQuery{EventType: &resolvedType, TenantID: tenantID, Limit: limit * 2})
	if err != nil {
		return nil, err
	}
	resolvedPairs := make(map[string]bool, len(resolvedEvents))
	for _, ev := range resolvedEvents {
		a, _ := ev.Payload["intent_a"].(string)
		b, _ := ev.Payload["intent_b"].(string)
		resolvedPairs[pairKey(a, b)] = true
	}

	result := make([]map[string]any, 0, len(detected))
	for _, ev := range detected {
		a, _ := ev.Payload["intent_a"].(string)
		b, _ := ev.Payload["intent_b"].(string)
		if resolvedPairs[pairKey(a, b)] {
			continue
		}
		result = append(result, ev.Payload)
	}
	return result, nil
}

func roundN(f float64, n int) float64 {
	scale := math.Pow(10, float64(n))
	return math.Round(f*scale) / scale
}
