package coherence

import (
	"fmt"
	"strings"

	"github.com/ghmbegerez/converge/pkg/models"
)

// CheckConsistency cross-validates a coherence harness run against an
// objective risk evaluation, flagging cases where the two disagree
// (spec.md §4.5 "Cross-validation").
func CheckConsistency(coherenceEval *models.CoherenceEvaluation, riskEval *models.RiskEval) []models.Inconsistency {
	var out []models.Inconsistency

	if coherenceEval.CoherenceScore > 75 && riskEval.RiskScore > 50 {
		out = append(out, models.Inconsistency{
			Kind: "score_mismatch",
			Message: fmt.Sprintf("Coherence harness passed (%.1f) but risk is elevated (%.1f)",
				coherenceEval.CoherenceScore, riskEval.RiskScore),
		})
	}

	if len(coherenceEval.Results) > 0 && allPassed(coherenceEval.Results) && len(riskEval.Bombs) > 0 {
		out = append(out, models.Inconsistency{
			Kind:    "bomb_undetected",
			Message: fmt.Sprintf("Structural degradation detected (%v) but coherence harness didn't flag it", riskEval.BombTypes()),
		})
	}

	if riskEval.PropagationScore > 40 && !hasScopeQuestion(coherenceEval.Results) {
		out = append(out, models.Inconsistency{
			Kind: "missing_scope_validation",
			Message: fmt.Sprintf("High propagation (%.1f) but no scope questions in harness",
				riskEval.PropagationScore),
		})
	}

	return out
}

func allPassed(results []models.CoherenceResult) bool {
	for _, r := range results {
		if r.Verdict != models.CoherencePass {
			return false
		}
	}
	return true
}

func hasScopeQuestion(results []models.CoherenceResult) bool {
	for _, r := range results {
		if strings.HasPrefix(r.QuestionID, "q-scope") {
			return true
		}
	}
	return false
}
