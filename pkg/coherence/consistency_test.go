package coherence

import (
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestCheckConsistency_ScoreMismatch(t *testing.T) {
	coherenceEval := &models.CoherenceEvaluation{CoherenceScore: 90, Results: []models.CoherenceResult{{Verdict: models.CoherencePass}}}
	riskEval := &models.RiskEval{RiskScore: 60}
	got := CheckConsistency(coherenceEval, riskEval)
	assert.Len(t, got, 1)
	assert.Equal(t, "score_mismatch", got[0].Kind)
}

func TestCheckConsistency_BombUndetected(t *testing.T) {
	coherenceEval := &models.CoherenceEvaluation{
		CoherenceScore: 50,
		Results:        []models.CoherenceResult{{Verdict: models.CoherencePass}},
	}
	riskEval := &models.RiskEval{RiskScore: 10, Bombs: []models.Bomb{{Type: "cascade"}}}
	got := CheckConsistency(coherenceEval, riskEval)
	assert.Len(t, got, 1)
	assert.Equal(t, "bomb_undetected", got[0].Kind)
}

func TestCheckConsistency_MissingScopeValidation(t *testing.T) {
	coherenceEval := &models.CoherenceEvaluation{
		CoherenceScore: 50,
		Results:        []models.CoherenceResult{{QuestionID: "q-structural-1", Verdict: models.CoherenceFail}},
	}
	riskEval := &models.RiskEval{RiskScore: 10, PropagationScore: 50}
	got := CheckConsistency(coherenceEval, riskEval)
	assert.Len(t, got, 1)
	assert.Equal(t, "missing_scope_validation", got[0].Kind)
}

func TestCheckConsistency_NoIssuesIsEmpty(t *testing.T) {
	coherenceEval := &models.CoherenceEvaluation{
		CoherenceScore: 50,
		Results:        []models.CoherenceResult{{QuestionID: "q-scope-1", Verdict: models.CoherenceFail}},
	}
	riskEval := &models.RiskEval{RiskScore: 10, PropagationScore: 10}
	got := CheckConsistency(coherenceEval, riskEval)
	assert.Empty(t, got)
}
