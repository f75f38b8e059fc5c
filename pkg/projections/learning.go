package projections

import "github.com/ghmbegerez/converge/pkg/models"

// Structured-learning thresholds. projections/learning.py itself was
// filtered out of the retrieval pack; the shape here (level, summary,
// lessons with observed/target metrics, next_actions) is reconstructed
// from tests/test_projections.py's TestStructuredLearning assertions,
// reusing the same green/yellow health bands the rest of the package
// already scores against.
const (
	learningMergeableRateTarget = 0.9
	learningEntropyTarget       = 20.0
	learningRejectedTarget      = 0.0
)

// deriveHealthLearning turns a repo-health computation into a
// human-legible summary with actionable lessons.
func deriveHealthLearning(healthScore, mergeableRate, avgEntropy float64, rejectedCount int) models.Learning {
	var lessons []models.Lesson
	var actions []string

	if mergeableRate < learningMergeableRateTarget {
		lessons = append(lessons, models.Lesson{
			Code:   "learning.low_mergeable_rate",
			Metric: models.LessonMetric{Observed: round3(mergeableRate), Target: learningMergeableRateTarget},
		})
		actions = append(actions, "Investigate recent merge conflicts and tighten pre-merge simulation coverage")
	}
	if avgEntropy > learningEntropyTarget {
		lessons = append(lessons, models.Lesson{
			Code:   "learning.high_entropy",
			Metric: models.LessonMetric{Observed: round1(avgEntropy), Target: learningEntropyTarget},
		})
		actions = append(actions, "Review high-entropy intents for scope creep before queuing")
	}
	if rejectedCount > 0 {
		lessons = append(lessons, models.Lesson{
			Code:   "learning.rejections_present",
			Metric: models.LessonMetric{Observed: float64(rejectedCount), Target: learningRejectedTarget},
		})
		actions = append(actions, "Audit rejected intents for a common root cause")
	}

	return buildLearning(healthScore, lessons, actions)
}

// deriveChangeLearning turns a single change's health computation into
// a human-legible summary with actionable lessons.
func deriveChangeLearning(healthScore, riskScore, entropy float64, mergeable bool) models.Learning {
	var lessons []models.Lesson
	var actions []string

	if riskScore > 50 {
		lessons = append(lessons, models.Lesson{
			Code:   "learning.elevated_risk",
			Metric: models.LessonMetric{Observed: round1(riskScore), Target: 50},
		})
		actions = append(actions, "Request human review before merging this change")
	}
	if entropy > learningEntropyTarget {
		lessons = append(lessons, models.Lesson{
			Code:   "learning.high_entropy",
			Metric: models.LessonMetric{Observed: round1(entropy), Target: learningEntropyTarget},
		})
		actions = append(actions, "Split this change into smaller, independently verifiable intents")
	}
	if !mergeable {
		lessons = append(lessons, models.Lesson{
			Code:   "learning.merge_conflict",
			Metric: models.LessonMetric{Observed: 0, Target: 1},
		})
		actions = append(actions, "Resolve the underlying merge conflict and re-simulate")
	}

	return buildLearning(healthScore, lessons, actions)
}

func buildLearning(healthScore float64, lessons []models.Lesson, actions []string) models.Learning {
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	if actions == nil {
		actions = []string{}
	}

	level := "info"
	summary := "No issues detected."
	switch {
	case healthScore < healthYellowFloor:
		level = "critical"
		summary = "Health is critical — immediate attention recommended."
	case healthScore < healthGreenFloor:
		level = "warning"
		summary = "Health is degraded — review the lessons below."
	case len(lessons) > 0:
		summary = "Health is healthy overall, with minor items to watch."
	}

	return models.Learning{
		Level:       level,
		Summary:     summary,
		Lessons:     lessons,
		NextActions: actions,
	}
}
