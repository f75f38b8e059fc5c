// Package preintent evaluates a draft intent's quality signals before
// formal creation, catching likely duplicates and under-specified
// descriptions early (SPEC_FULL.md §4.13).
// Grounded on original_source/src/converge/harness.py.
package preintent

import (
	"context"
	"math"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/semantic"
)

const (
	ruleSemanticSimilarity = "semantic_similarity"
	ruleDescriptionQuality = "description_quality"

	defaultSimilarityThreshold = 0.80
	defaultMaxSimilarShown     = 5

	// similarityReportFloor mirrors harness.py's _check_semantic_similarity:
	// only similarities above this are worth surfacing to the caller.
	similarityReportFloor = 0.5
)

// HarnessConfig controls which rules run and how strictly results are
// enforced (harness.py's HarnessConfig).
type HarnessConfig struct {
	SimilarityThreshold float64
	MaxSimilarShown     int
	Mode                string // shadow | enforce
	Rules               []string
}

// DefaultHarnessConfig returns harness.py's dataclass defaults.
func DefaultHarnessConfig() HarnessConfig {
	return HarnessConfig{
		SimilarityThreshold: defaultSimilarityThreshold,
		MaxSimilarShown:     defaultMaxSimilarShown,
		Mode:                "shadow",
		Rules:               []string{ruleSemanticSimilarity, ruleDescriptionQuality},
	}
}

func (c HarnessConfig) hasRule(rule string) bool {
	for _, r := range c.Rules {
		if r == rule {
			return true
		}
	}
	return false
}

// EvaluationResult is the outcome of evaluating a draft intent
// (harness.py's EvaluationResult).
type EvaluationResult struct {
	Score           float64
	Passed          bool
	SimilarIntents  []map[string]any
	Signals         map[string]any
	Recommendations []string
	Mode            string
}

// Service evaluates draft intents against the existing embedding
// corpus before the intent is formally created.
type Service struct {
	Log      *eventlog.Log
	Semantic *semantic.Service
}

// New builds a pre-intent evaluation Service.
func New(log *eventlog.Log, sem *semantic.Service) *Service {
	return &Service{Log: log, Semantic: sem}
}

// EvaluateIntent runs the configured rules against a draft intent's
// raw fields (id, tenant_id, source, target, semantic) and emits
// intent.pre_evaluated (harness.py's evaluate_intent).
func (s *Service) EvaluateIntent(ctx context.Context, intentData map[string]any, cfg *HarnessConfig) (*EvaluationResult, error) {
	effective := DefaultHarnessConfig()
	if cfg != nil {
		effective = *cfg
		if effective.MaxSimilarShown <= 0 {
			effective.MaxSimilarShown = defaultMaxSimilarShown
		}
		if effective.Mode == "" {
			effective.Mode = "shadow"
		}
		if len(effective.Rules) == 0 {
			effective.Rules = DefaultHarnessConfig().Rules
		}
	}

	signals := map[string]any{}
	var recommendations []string
	var similarIntents []map[string]any

	if effective.hasRule(ruleSemanticSimilarity) {
		maxSim, similar, err := s.checkSemanticSimilarity(ctx, intentData, effective)
		if err != nil {
			return nil, err
		}
		signals["max_similarity"] = maxSim
		similarIntents = similar
		if maxSim > effective.SimilarityThreshold {
			recommendations = append(recommendations,
				"Very similar intent found. Consider reviewing existing intents before creating a new one.")
		}
	}

	if effective.hasRule(ruleDescriptionQuality) {
		quality, suggestions := checkDescriptionQuality(intentData)
		signals["description_quality"] = quality
		if quality < 0.5 {
			recommendations = append(recommendations, suggestions...)
		}
	}

	score := compositeScore(signals)
	passed := true
	if effective.Mode == "enforce" && score < 0.5 {
		passed = false
	}

	result := &EvaluationResult{
		Score:           roundN(score, 3),
		Passed:          passed,
		SimilarIntents:  truncate(similarIntents, effective.MaxSimilarShown),
		Signals:         signals,
		Recommendations: recommendations,
		Mode:            effective.Mode,
	}

	ev := models.NewEvent(models.EventIntentPreEvaluated, map[string]any{
		"score":         result.Score,
		"passed":        result.Passed,
		"mode":          effective.Mode,
		"signals":       signals,
		"similar_count": len(similarIntents),
	})
	if id, ok := intentData["id"].(string); ok && id != "" {
		ev.IntentID = &id
	}
	if tenantID, ok := intentData["tenant_id"].(string); ok && tenantID != "" {
		ev.TenantID = &tenantID
	}
	if _, err := s.Log.Append(ctx, ev); err != nil {
		return nil, err
	}

	return result, nil
}

// compositeScore averages signal values, inverting max_similarity so
// that low similarity (good) contributes a high score (harness.py's
// composite score step).
func compositeScore(signals map[string]any) float64 {
	if len(signals) == 0 {
		return 1.0
	}
	var sum float64
	for key, v := range signals {
		f, _ := v.(float64)
		if key == "max_similarity" {
			sum += 1.0 - f
		} else {
			sum += f
		}
	}
	return sum / float64(len(signals))
}

func truncate(items []map[string]any, max int) []map[string]any {
	if len(items) <= max {
		return items
	}
	return items[:max]
}

func roundN(f float64, n int) float64 {
	scale := math.Pow(10, float64(n))
	return math.Round(f*scale) / scale
}
