package models

// EventType enumerates the stable, wire-visible event type strings
// (spec.md §3 and §6: "external consumers rely on them verbatim").
type EventType string

const (
	EventSimulationCompleted    EventType = "simulation.completed"
	EventCheckCompleted         EventType = "check.completed"
	EventRiskEvaluated          EventType = "risk.evaluated"
	EventPolicyEvaluated        EventType = "policy.evaluated"
	EventCoherenceEvaluated     EventType = "coherence.evaluated"
	EventCoherenceBaselineSet   EventType = "coherence.baseline_updated"
	EventIntentCreated          EventType = "intent.created"
	EventIntentValidated        EventType = "intent.validated"
	EventIntentBlocked          EventType = "intent.blocked"
	EventIntentLinkedCommit     EventType = "intent.linked_commit"
	EventIntentMerged           EventType = "intent.merged"
	EventIntentMergeFailed      EventType = "intent.merge_failed"
	EventIntentRejected         EventType = "intent.rejected"
	EventIntentRequeued         EventType = "intent.requeued"
	EventIntentDependencyBlock  EventType = "intent.dependency_blocked"
	EventIntentReviewBlock      EventType = "intent.review_blocked"
	EventIntentPreEvaluated     EventType = "intent.pre_evaluated"
	EventQueueProcessed         EventType = "queue.processed"
	EventQueueReset             EventType = "queue.reset"
	EventWorkerStarted          EventType = "worker.started"
	EventWorkerStopped          EventType = "worker.stopped"
	EventAccessGranted          EventType = "access.granted"
	EventAccessDenied           EventType = "access.denied"
	EventIntakeAccepted         EventType = "intake.accepted"
	EventIntakeThrottled        EventType = "intake.throttled"
	EventIntakeRejected         EventType = "intake.rejected"
	EventIntakeModeChanged      EventType = "intake.mode_changed"
	EventReviewRequested        EventType = "review.requested"
	EventReviewAssigned         EventType = "review.assigned"
	EventReviewReassigned       EventType = "review.reassigned"
	EventReviewCancelled        EventType = "review.cancelled"
	EventReviewCompleted        EventType = "review.completed"
	EventReviewEscalated        EventType = "review.escalated"
	EventReviewSLABreached      EventType = "review.sla_breached"
	EventSemanticConflict       EventType = "semantic.conflict_detected"
	EventSemanticResolved       EventType = "semantic.conflict_resolved"
	EventSecurityScanCompleted  EventType = "security.scan.completed"
	EventHealthSnapshot         EventType = "health.snapshot"
	EventHealthChangeSnapshot   EventType = "health.change_snapshot"
	EventHealthPrediction       EventType = "health.prediction"
	EventVerificationDebt       EventType = "verification.debt_snapshot"
	EventFeatureFlagChanged     EventType = "feature_flag.changed"
	EventCalibrationCompleted   EventType = "calibration.completed"
	EventArchaeologyAnalyzed    EventType = "archaeology.analyzed"
	EventDatasetExported        EventType = "dataset.exported"
	EventMergeGroupChecksReq    EventType = "merge_group.checks_requested"
	EventMergeGroupDestroyed    EventType = "merge_group.destroyed"
)

// Event is the immutable, append-only record that is the system's
// sole source of truth (spec.md §3).
type Event struct {
	ID        string         `json:"id"`
	TraceID   string         `json:"trace_id"`
	Timestamp string         `json:"timestamp"`
	EventType EventType       `json:"event_type"`
	IntentID  *string        `json:"intent_id,omitempty"`
	AgentID   *string        `json:"agent_id,omitempty"`
	TenantID  *string        `json:"tenant_id,omitempty"`
	Payload   map[string]any `json:"payload"`
	Evidence  map[string]any `json:"evidence,omitempty"`
}

// NewEvent builds an Event, assigning id/timestamp, mirroring
// original_source/models.py's Event defaults (event_log.Append also
// assigns trace_id when absent, per spec.md §4.1).
func NewEvent(eventType EventType, payload map[string]any) *Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Event{
		ID:        NewID(),
		Timestamp: NowISO(),
		EventType: eventType,
		Payload:   payload,
		Evidence:  map[string]any{},
	}
}
