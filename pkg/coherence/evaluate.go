package coherence

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/models"
)

// severityWeights is the per-failure point penalty (spec.md §4.5).
var severityWeights = map[string]float64{
	"critical": 30,
	"high":     20,
	"medium":   10,
}

// Default pass/warn thresholds for the harness's own verdict (spec.md
// §4.5). The Policy Engine's coherence gate applies its own,
// risk-level-aware thresholds on top of the resulting score.
const (
	DefaultPassThreshold = 75.0
	DefaultWarnThreshold = 60.0
)

// EvaluateOptions customizes one harness run.
type EvaluateOptions struct {
	Workdir       string
	Baselines     map[string]float64
	PassThreshold float64
	WarnThreshold float64
	HarnessVersion string
}

// Evaluate runs the check of every question it is given (it does not
// consult Enabled; callers pass HarnessConfig.EnabledQuestions()), scores the aggregate
// result, and returns the full evaluation. An empty question list is
// a vacuous pass (score 100, spec.md §4.5 is silent but
// original_source/coherence.py treats "nothing configured" this way).
func Evaluate(ctx context.Context, questions []models.CoherenceQuestion, opts EvaluateOptions) *models.CoherenceEvaluation {
	if len(questions) == 0 {
		return &models.CoherenceEvaluation{
			CoherenceScore: 100.0,
			Verdict:        models.CoherencePass,
			HarnessVersion: "none",
		}
	}

	passThreshold := opts.PassThreshold
	if passThreshold == 0 {
		passThreshold = DefaultPassThreshold
	}
	warnThreshold := opts.WarnThreshold
	if warnThreshold == 0 {
		warnThreshold = DefaultWarnThreshold
	}

	results := make([]models.CoherenceResult, 0, len(questions))
	for _, q := range questions {
		var baseline *float64
		if v, ok := opts.Baselines[q.ID]; ok {
			baseline = &v
		}
		results = append(results, RunQuestion(ctx, q, opts.Workdir, baseline))
	}

	var penalty float64
	for _, r := range results {
		if r.Verdict != models.CoherencePass {
			penalty += severityFor(r.QuestionID, questions)
		}
	}

	score := 100.0 - penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	verdict := models.CoherenceFail
	switch {
	case score >= passThreshold:
		verdict = models.CoherencePass
	case score >= warnThreshold:
		verdict = models.CoherenceWarn
	}

	return &models.CoherenceEvaluation{
		CoherenceScore: score,
		Verdict:        verdict,
		Results:        results,
		HarnessVersion: opts.HarnessVersion,
	}
}

func severityFor(questionID string, questions []models.CoherenceQuestion) float64 {
	for _, q := range questions {
		if q.ID == questionID {
			if w, ok := severityWeights[q.Severity]; ok {
				return w
			}
			return severityWeights["high"]
		}
	}
	return severityWeights["high"]
}
