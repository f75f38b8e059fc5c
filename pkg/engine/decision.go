package engine

import "github.com/ghmbegerez/converge/pkg/models"

// Outcome is the terminal classification of a pipeline decision.
type Outcome string

const (
	OutcomeValidated         Outcome = "validated"
	OutcomeBlocked           Outcome = "blocked"
	OutcomeDependencyBlocked Outcome = "dependency_blocked"
	OutcomeRejected          Outcome = "rejected"
	OutcomeMerged            Outcome = "merged"
	OutcomeMergeFailed       Outcome = "merge_failed"
)

// Decision is the uniform result of validating or processing one
// intent, carrying only the fields relevant to its Outcome — the same
// shape original_source/engine.py's decision dicts grow incrementally
// as a call progresses through the pipeline.
type Decision struct {
	Outcome           Outcome
	IntentID          string
	TraceID           string
	Reason            string
	Simulation        *models.Simulation
	Risk              *models.RiskEval
	Policy            *models.PolicyEvaluation
	RiskGate          *models.RiskGateResult
	Coherence         *models.CoherenceEvaluation
	Retries           int
	MergedCommit      string
	Error             string
	UnmetDependencies []string
	PlanID            *string
}
