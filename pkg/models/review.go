package models

// ReviewTask is a human-review request attached to an intent
// (spec.md §3, §4.10).
type ReviewTask struct {
	ID           string       `json:"id"`
	IntentID     string       `json:"intent_id"`
	Status       ReviewStatus `json:"status"`
	Reviewer     *string      `json:"reviewer,omitempty"`
	Priority     int          `json:"priority"`
	RiskLevel    RiskLevel    `json:"risk_level"`
	Trigger      string       `json:"trigger"` // policy | conflict | coherence | manual
	SLADeadline  *string      `json:"sla_deadline,omitempty"`
	CreatedAt    string       `json:"created_at"`
	AssignedAt   *string      `json:"assigned_at,omitempty"`
	CompletedAt  *string      `json:"completed_at,omitempty"`
	EscalatedAt  *string      `json:"escalated_at,omitempty"`
	Resolution   *string      `json:"resolution,omitempty"` // approved | rejected | deferred
	Notes        string       `json:"notes"`
	TenantID     *string      `json:"tenant_id,omitempty"`
}

// IsOpen reports whether the task has not yet reached a terminal state.
func (r *ReviewTask) IsOpen() bool {
	switch r.Status {
	case ReviewPending, ReviewAssigned, ReviewInReview, ReviewEscalated:
		return true
	default:
		return false
	}
}

// SecurityFinding is a single scanner-reported issue (spec.md §3).
type SecurityFinding struct {
	ID         string  `json:"id"`
	Scanner    string  `json:"scanner"`
	Category   string  `json:"category"` // sast | sca | secrets | iac | other
	Severity   string  `json:"severity"` // critical | high | medium | low | info
	File       string  `json:"file"`
	Line       int     `json:"line"`
	Rule       string  `json:"rule"`
	Evidence   string  `json:"evidence"`
	Confidence float64 `json:"confidence"`
	IntentID   *string `json:"intent_id,omitempty"`
	TenantID   *string `json:"tenant_id,omitempty"`
	ScanID     *string `json:"scan_id,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

// CommitLink associates an intent with an observed commit
// (spec.md §3). Composite key (intent_id, sha, role).
type CommitLink struct {
	IntentID   string `json:"intent_id"`
	Repo       string `json:"repo"`
	SHA        string `json:"sha"`
	Role       string `json:"role"` // head | base | merge
	ObservedAt string `json:"observed_at"`
}

// EmbeddingRecord stores a semantic embedding for an intent
// (spec.md §3). Composite key (intent_id, model).
type EmbeddingRecord struct {
	IntentID    string    `json:"intent_id"`
	Model       string    `json:"model"`
	Dimension   int       `json:"dimension"`
	Checksum    string    `json:"checksum"`
	Vector      []float64 `json:"vector"`
	GeneratedAt string    `json:"generated_at"`
}

// SemanticConflict records two intents whose embeddings and scope
// overlap above threshold (SPEC_FULL.md §4.14).
type SemanticConflict struct {
	ID                string   `json:"id"`
	IntentA           string   `json:"intent_a"`
	IntentB           string   `json:"intent_b"`
	Similarity        float64  `json:"similarity"`
	OverlappingScope  []string `json:"overlapping_scope"`
	Status            string   `json:"status"` // open | resolved
	DetectedAt        string   `json:"detected_at"`
	ResolvedAt        *string  `json:"resolved_at,omitempty"`
}
