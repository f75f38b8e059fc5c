// Package store defines the persistence ports used by the rest of the
// system and the Backend names (in-memory for tests, PostgreSQL for
// production) that pkg/storefactory uses to select a concrete backend.
// Each port is an independent
// interface; Store composes them by embedding, not by a shared base
// type, so a backend can satisfy Store without any inheritance-style
// coupling between ports (spec.md §9 "Mixin composition").
package store

import (
	"context"
	"fmt"

	"github.com/ghmbegerez/converge/pkg/models"
)

// EventQuery filters Query/Count against the event log. Filter keys are
// restricted to this struct's fields — there is no passthrough map, so
// there is nothing for a caller to inject arbitrary SQL into.
type EventQuery struct {
	EventType *string
	IntentID  *string
	AgentID   *string
	TenantID  *string
	TraceID   *string
	Since     string
	Until     string
	Limit     int
}

// EventStore is the append-only event log port (spec.md §4.1).
type EventStore interface {
	AppendEvent(ctx context.Context, event *models.Event) (*models.Event, error)
	QueryEvents(ctx context.Context, filter EventQuery) ([]*models.Event, error)
	CountEvents(ctx context.Context, filter EventQuery) (int, error)
	PruneEvents(ctx context.Context, before string, tenantID *string, dryRun bool) (int, error)
}

// ChainStateStore tracks the hash-chain tip per chain_id (spec.md §3).
type ChainStateStore interface {
	GetChainState(ctx context.Context, chainID string) (lastHash string, eventCount int64, found bool, err error)
	SetChainState(ctx context.Context, chainID, lastHash string, eventCount int64, updatedAt string) error
}

// LockStore is the advisory-lock port used by the queue processor
// (spec.md §3, §4.1, §4.8). TTL eviction is lazy: on acquire, stale
// rows for lockName are deleted before attempting the unique insert.
type LockStore interface {
	AcquireLock(ctx context.Context, lockName, holderPID string, ttlSeconds int) (bool, error)
	ReleaseLock(ctx context.Context, lockName, holderPID string) error
	ForceReleaseLock(ctx context.Context, lockName string) error
}

// IntentStore is the materialized-view port over intents (spec.md §3, §4.8).
type IntentStore interface {
	GetIntent(ctx context.Context, id string) (*models.Intent, bool, error)
	PutIntent(ctx context.Context, intent *models.Intent) error
	ListIntentsByStatus(ctx context.Context, status models.Status, tenantID *string) ([]*models.Intent, error)
	ListIntentsByTarget(ctx context.Context, target string, tenantID *string) ([]*models.Intent, error)
	ListAllIntents(ctx context.Context, tenantID *string) ([]*models.Intent, error)
}

// ReviewStore is the review-task port (spec.md §4.10).
type ReviewStore interface {
	GetReviewTask(ctx context.Context, id string) (*models.ReviewTask, bool, error)
	PutReviewTask(ctx context.Context, task *models.ReviewTask) error
	ListOpenReviewTasks(ctx context.Context, tenantID *string) ([]*models.ReviewTask, error)
	ListAllReviewTasks(ctx context.Context, tenantID *string) ([]*models.ReviewTask, error)
	// ListReviewTasksByIntent returns every review task filed against
	// intentID, oldest first — the queue processor's review gate
	// (spec.md §4.10) uses this to find the latest resolution.
	ListReviewTasksByIntent(ctx context.Context, intentID string) ([]*models.ReviewTask, error)
}

// DeliveryStore is the webhook-idempotency port (spec.md §3).
type DeliveryStore interface {
	// RecordDelivery returns false if deliveryID was already recorded.
	RecordDelivery(ctx context.Context, deliveryID string, receivedAt string) (bool, error)
}

// PolicyStore holds per-tenant policy documents (spec.md §3, §4.4).
type PolicyStore interface {
	GetAgentPolicy(ctx context.Context, agentID string, tenantID string) (*models.AgentPolicy, bool, error)
	PutAgentPolicy(ctx context.Context, policy *models.AgentPolicy, tenantID string) error
	GetRiskPolicyVersion(ctx context.Context, tenantID string) (document map[string]any, version int64, found bool, err error)
	PutRiskPolicy(ctx context.Context, tenantID string, document map[string]any) (version int64, err error)
	GetIntakeOverride(ctx context.Context, tenantID string) (mode, setBy, setAt, reason string, found bool, err error)
	PutIntakeOverride(ctx context.Context, tenantID, mode, setBy, setAt, reason string) error
}

// EmbeddingStore holds semantic embeddings and detected conflicts
// (SPEC_FULL.md §4.14).
type EmbeddingStore interface {
	PutEmbedding(ctx context.Context, rec *models.EmbeddingRecord) error
	GetEmbedding(ctx context.Context, intentID, model string) (*models.EmbeddingRecord, bool, error)
	ListEmbeddings(ctx context.Context, model string) ([]*models.EmbeddingRecord, error)
	PutSemanticConflict(ctx context.Context, c *models.SemanticConflict) error
	ListOpenSemanticConflicts(ctx context.Context) ([]*models.SemanticConflict, error)
}

// CoherenceStore holds coherence baselines (spec.md §4.5).
type CoherenceStore interface {
	GetCoherenceBaseline(ctx context.Context, questionID, tenantID string) (value float64, found bool, err error)
	SetCoherenceBaseline(ctx context.Context, questionID, tenantID string, value float64, updatedAt string) error
}

// SecurityStore holds scanner findings (spec.md §3).
type SecurityStore interface {
	PutSecurityFinding(ctx context.Context, f *models.SecurityFinding) error
	ListSecurityFindings(ctx context.Context, intentID string) ([]*models.SecurityFinding, error)
}

// Store composes every port. Concrete backends (memory, postgres)
// implement all of them; callers depend on the narrowest port interface
// they actually need rather than on Store itself, wherever practical.
type Store interface {
	EventStore
	ChainStateStore
	LockStore
	IntentStore
	ReviewStore
	DeliveryStore
	PolicyStore
	EmbeddingStore
	CoherenceStore
	SecurityStore
}

// Backend identifies which concrete Store implementation to construct.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
)

// ErrUnknownBackend is wrapped in the error storefactory.New returns for
// an unrecognized Backend value.
var ErrUnknownBackend = fmt.Errorf("store: unknown backend")
