package models

// Learning is the structured, human-legible lesson format every
// projection attaches to its output (spec.md §4.11's "explainable
// derived views" requirement): a short summary plus zero or more
// Lessons, each naming a metric that missed its target and a suggested
// next action.
type Learning struct {
	Level       string   `json:"level"` // info | warning | critical
	Summary     string   `json:"summary"`
	Lessons     []Lesson `json:"lessons"`
	NextActions []string `json:"next_actions"`
}

// Lesson names one metric that missed its target.
type Lesson struct {
	Code   string       `json:"code"`
	Metric LessonMetric `json:"metric"`
}

// LessonMetric is the observed-vs-target pair backing a Lesson.
type LessonMetric struct {
	Observed float64 `json:"observed"`
	Target   float64 `json:"target"`
}

// HealthSnapshot is repo_health's output (spec.md §4.11): a point-in-
// time health score derived from recent simulation/merge/rejection/
// risk events.
type HealthSnapshot struct {
	RepoHealthScore float64  `json:"repo_health_score"`
	EntropyScore    float64  `json:"entropy_score"`
	MergeableRate   float64  `json:"mergeable_rate"`
	ConflictRate    float64  `json:"conflict_rate"`
	ActiveIntents   int      `json:"active_intents"`
	MergedLast24h   int      `json:"merged_last_24h"`
	RejectedLast24h int      `json:"rejected_last_24h"`
	Status          string   `json:"status"` // green | yellow | red
	TenantID        *string  `json:"tenant_id,omitempty"`
	Learning        Learning `json:"learning"`
}

// VerificationDebtSnapshot is verification_debt's output (spec.md
// §4.11): a composite score across staleness, queue pressure, review
// backlog, conflict pressure, and retry pressure, each weighted to sum
// to 100 at full debt.
type VerificationDebtSnapshot struct {
	DebtScore             float64 `json:"debt_score"`
	StalenessScore        float64 `json:"staleness_score"`
	QueuePressureScore    float64 `json:"queue_pressure_score"`
	ReviewBacklogScore    float64 `json:"review_backlog_score"`
	ConflictPressureScore float64 `json:"conflict_pressure_score"`
	RetryPressureScore    float64 `json:"retry_pressure_score"`
	Status                string  `json:"status"` // green | yellow | red
	TenantID              *string `json:"tenant_id,omitempty"`
	Timestamp             string  `json:"timestamp"`
}

// QueueStateSnapshot is queue_state's output: the live breakdown of
// intents by status.
type QueueStateSnapshot struct {
	Total    int            `json:"total"`
	Pending  []string       `json:"pending"` // READY | VALIDATED | QUEUED intent IDs
	Merged   int            `json:"merged"`
	Rejected int            `json:"rejected"`
	ByStatus map[string]int `json:"by_status"`
}

// ComplianceCheck is one pass/fail compliance assertion.
type ComplianceCheck struct {
	Name      string  `json:"name"`
	Passed    bool    `json:"passed"`
	Observed  float64 `json:"observed"`
	Threshold float64 `json:"threshold"`
}

// ComplianceReport is compliance_report's output: a bundle of
// threshold checks against current repo metrics.
type ComplianceReport struct {
	Passed        bool              `json:"passed"`
	MergeableRate float64           `json:"mergeable_rate"`
	Checks        []ComplianceCheck `json:"checks"`
	Alerts        []map[string]any  `json:"alerts"`
	TenantID      *string           `json:"tenant_id,omitempty"`
	Timestamp     string            `json:"timestamp"`
}
