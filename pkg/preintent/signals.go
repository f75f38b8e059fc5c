package preintent

import (
	"context"
	"sort"

	"github.com/ghmbegerez/converge/pkg/semantic"
)

// checkSemanticSimilarity embeds the draft's canonical text and
// compares it against every stored embedding, returning the max
// similarity found and the intents above similarityReportFloor
// (harness.py's _check_semantic_similarity).
func (s *Service) checkSemanticSimilarity(ctx context.Context, intentData map[string]any, cfg HarnessConfig) (float64, []map[string]any, error) {
	source, _ := intentData["source"].(string)
	target, _ := intentData["target"].(string)
	if target == "" {
		target = "main"
	}
	semanticFields, _ := intentData["semantic"].(map[string]any)

	text := semantic.BuildCanonicalText(source, target, semanticFields)
	draftVec := semantic.DeterministicProvider{}.Embed(text)

	embeddings, err := s.Semantic.Store.ListEmbeddings(ctx, semantic.DeterministicModel)
	if err != nil {
		return 0.0, nil, err
	}

	var similar []map[string]any
	maxSim := 0.0
	for _, emb := range embeddings {
		sim := semantic.CosineSimilarity(draftVec, emb.Vector)
		if sim > maxSim {
			maxSim = sim
		}
		if sim > similarityReportFloor {
			similar = append(similar, map[string]any{
				"intent_id":  emb.IntentID,
				"similarity": roundN(sim, 3),
			})
		}
	}

	sort.Slice(similar, func(i, j int) bool {
		return similar[i]["similarity"].(float64) > similar[j]["similarity"].(float64)
	})
	if len(similar) > cfg.MaxSimilarShown {
		similar = similar[:cfg.MaxSimilarShown]
	}

	return roundN(maxSim, 3), similar, nil
}

// checkDescriptionQuality scores whether the draft has a meaningful
// description, a declared scope, and both endpoints set
// (harness.py's _check_description_quality).
func checkDescriptionQuality(intentData map[string]any) (float64, []string) {
	semanticFields, _ := intentData["semantic"].(map[string]any)
	var scoreParts []float64
	var suggestions []string

	desc, _ := semanticFields["description"].(string)
	if len(desc) > 10 {
		scoreParts = append(scoreParts, 1.0)
	} else {
		scoreParts = append(scoreParts, 0.0)
		suggestions = append(suggestions, "Add a meaningful description to the semantic field.")
	}

	if hasScope(semanticFields) {
		scoreParts = append(scoreParts, 1.0)
	} else {
		scoreParts = append(scoreParts, 0.3)
		suggestions = append(suggestions, "Add affected areas/scope to help with conflict detection.")
	}

	source, _ := intentData["source"].(string)
	target, _ := intentData["target"].(string)
	if source != "" && target != "" {
		scoreParts = append(scoreParts, 1.0)
	} else {
		scoreParts = append(scoreParts, 0.0)
		suggestions = append(suggestions, "Both source and target branches are required.")
	}

	var sum float64
	for _, p := range scoreParts {
		sum += p
	}
	return roundN(sum/float64(len(scoreParts)), 3), suggestions
}

func hasScope(semanticFields map[string]any) bool {
	if semanticFields == nil {
		return false
	}
	if scope, ok := semanticFields["scope"].([]any); ok && len(scope) > 0 {
		return true
	}
	if scope, ok := semanticFields["scope"].([]string); ok && len(scope) > 0 {
		return true
	}
	if areas, ok := semanticFields["affected_areas"].([]any); ok && len(areas) > 0 {
		return true
	}
	if areas, ok := semanticFields["affected_areas"].([]string); ok && len(areas) > 0 {
		return true
	}
	return false
}
