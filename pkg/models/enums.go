// Package models holds the domain types shared across the converge
// core: events, intents, risk/policy/coherence evaluations, and review
// tasks. These are grounded on original_source/models.py, translated
// from Python dataclasses into Go structs with explicit JSON tags
// (the wire shape is part of the public contract per spec.md §6).
package models

// Status is the intent lifecycle state (spec.md §3, §4.8).
type Status string

const (
	StatusReady     Status = "READY"
	StatusValidated Status = "VALIDATED"
	StatusQueued    Status = "QUEUED"
	StatusMerged    Status = "MERGED"
	StatusRejected  Status = "REJECTED"
)

// RiskLevel classifies an intent's blast radius.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ReviewStatus is the lifecycle of a ReviewTask.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewAssigned  ReviewStatus = "assigned"
	ReviewInReview  ReviewStatus = "in_review"
	ReviewEscalated ReviewStatus = "escalated"
	ReviewCompleted ReviewStatus = "completed"
	ReviewCancelled ReviewStatus = "cancelled"
)

// PolicyVerdict is the outcome of policy gate evaluation.
type PolicyVerdict string

const (
	PolicyAllow PolicyVerdict = "ALLOW"
	PolicyBlock PolicyVerdict = "BLOCK"
)

// GateName identifies a policy gate.
type GateName string

const (
	GateVerification GateName = "verification"
	GateContainment  GateName = "containment"
	GateEntropy      GateName = "entropy"
	GateSecurity     GateName = "security"
	GateCoherence    GateName = "coherence"
)

// CoherenceVerdict is the outcome of a coherence harness run.
type CoherenceVerdict string

const (
	CoherencePass CoherenceVerdict = "pass"
	CoherenceWarn CoherenceVerdict = "warn"
	CoherenceFail CoherenceVerdict = "fail"
)

// OriginType classifies who created an intent.
type OriginType string

const (
	OriginHuman       OriginType = "human"
	OriginAgent       OriginType = "agent"
	OriginIntegration OriginType = "integration"
)
