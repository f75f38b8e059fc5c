// Package eventlog implements the append-only event journal that is the
// system's sole source of truth (spec.md §3, §4.1): Append/Query/Count/
// Prune over the Store's EventStore port, an optional hash chain for
// tamper-evidence, the queue advisory lock, and webhook delivery dedup.
//
// Grounded on codeready-toolchain-tarsy/pkg/cleanup's ticker-driven
// retention sweep for the shape of PruneEvents' callers, though the
// sweep loop itself lives in the worker (spec.md §4.9) rather than here
// since the Log is a pure port-wrapping library, not a background
// service.
package eventlog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

const defaultQueryLimit = 200

// GlobalChain is the chain_id used for events that carry no tenant_id.
const GlobalChain = "global"

// Publisher fans an already-persisted event out to live subscribers
// (pkg/events' ConnectionManager, over PostgreSQL NOTIFY or an
// in-process broadcast). Append treats a Publisher failure as
// non-fatal: the event is already durably stored, so a stalled
// WebSocket fan-out must not fail the caller that appended it.
type Publisher interface {
	Publish(ctx context.Context, event *models.Event) error
}

// Log wraps the event/chain/lock/delivery ports with the trace_id,
// hash-chain, and whitelisted-filter discipline spec.md §4.1 requires.
type Log struct {
	store store.EventStore
	chain store.ChainStateStore
	lock  store.LockStore
	deliv store.DeliveryStore

	// Publisher broadcasts every appended event for live WebSocket
	// delivery (SPEC_FULL.md §6's /events/ws surface). Nil disables
	// broadcasting; persistence and the hash chain are unaffected.
	Publisher Publisher
}

// New builds a Log over a Store (which satisfies all four embedded ports).
func New(s store.Store) *Log {
	return &Log{store: s, chain: s, lock: s, deliv: s}
}

// Append assigns id/timestamp (if absent), resolves trace_id per the
// discipline in spec.md §4.1, advances the hash chain for the event's
// chain (tenant_id, or GlobalChain when tenant_id is nil), and persists
// atomically through the store.
func (l *Log) Append(ctx context.Context, event *models.Event) (*models.Event, error) {
	if event.ID == "" {
		event.ID = models.NewID()
	}
	if event.Timestamp == "" {
		event.Timestamp = models.NowISO()
	}
	if event.TraceID == "" {
		event.TraceID = NewTraceID()
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}

	chainID := GlobalChain
	if event.TenantID != nil && *event.TenantID != "" {
		chainID = *event.TenantID
	}

	prevHash, count, found, err := l.chain.GetChainState(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("eventlog: read chain state: %w", err)
	}
	if !found {
		count = 0
	}

	canon, err := canonicalize(event)
	if err != nil {
		return nil, fmt.Errorf("eventlog: canonicalize event: %w", err)
	}
	nextHash := chainHash(prevHash, canon)

	stored, err := l.store.AppendEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	if err := l.chain.SetChainState(ctx, chainID, nextHash, count+1, event.Timestamp); err != nil {
		return nil, fmt.Errorf("eventlog: advance chain state: %w", err)
	}

	if l.Publisher != nil {
		if err := l.Publisher.Publish(ctx, stored); err != nil {
			slog.Warn("eventlog: publish failed", "error", err, "event_type", string(stored.EventType))
		}
	}

	return stored, nil
}

// Query returns events ordered by timestamp DESC, defaulting Limit to 200.
func (l *Log) Query(ctx context.Context, filter store.EventQuery) ([]*models.Event, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultQueryLimit
	}
	return l.store.QueryEvents(ctx, filter)
}

// Count filters on the same whitelist as Query but ignores Since/Until/Limit.
func (l *Log) Count(ctx context.Context, filter store.EventQuery) (int, error) {
	return l.store.CountEvents(ctx, filter)
}

// Prune removes events older than before, optionally scoped to a tenant,
// returning the affected row count. dryRun reports the count without
// deleting anything.
func (l *Log) Prune(ctx context.Context, before string, tenantID *string, dryRun bool) (int, error) {
	return l.store.PruneEvents(ctx, before, tenantID, dryRun)
}

// VerifyChain recomputes the hash chain over events for chainID in
// ascending timestamp order and reports whether it matches the stored
// tip. Used by operational tooling, not the hot path.
func (l *Log) VerifyChain(ctx context.Context, chainID string) (bool, error) {
	tenantFilter := store.EventQuery{Limit: 1<<31 - 1}
	if chainID != GlobalChain {
		id := chainID
		tenantFilter.TenantID = &id
	}
	queried, err := l.store.QueryEvents(ctx, tenantFilter)
	if err != nil {
		return false, err
	}
	// QueryEvents returns newest-first; the chain advances oldest-first.
	// The global chain covers only events that carry no tenant_id.
	var events []*models.Event
	for i := len(queried) - 1; i >= 0; i-- {
		evt := queried[i]
		if chainID == GlobalChain && evt.TenantID != nil && *evt.TenantID != "" {
			continue
		}
		events = append(events, evt)
	}

	storedHash, storedCount, found, err := l.chain.GetChainState(ctx, chainID)
	if err != nil {
		return false, err
	}
	if !found {
		return len(events) == 0, nil
	}

	hash := ""
	for _, evt := range events {
		canon, err := canonicalize(evt)
		if err != nil {
			return false, err
		}
		hash = chainHash(hash, canon)
	}
	return hash == storedHash && int64(len(events)) == storedCount, nil
}

// AcquireQueueLock is the queue processor's advisory lock (spec.md §4.1,
// §4.8). Stale rows for lockName are evicted lazily before the insert.
func (l *Log) AcquireQueueLock(ctx context.Context, lockName, holderPID string, ttlSeconds int) (bool, error) {
	return l.lock.AcquireLock(ctx, lockName, holderPID, ttlSeconds)
}

// ReleaseQueueLock releases lockName only if holderPID still holds it.
func (l *Log) ReleaseQueueLock(ctx context.Context, lockName, holderPID string) error {
	return l.lock.ReleaseLock(ctx, lockName, holderPID)
}

// ForceReleaseQueueLock releases lockName regardless of the current holder.
func (l *Log) ForceReleaseQueueLock(ctx context.Context, lockName string) error {
	return l.lock.ForceReleaseLock(ctx, lockName)
}

// RecordDelivery provides at-most-once webhook processing: it returns
// true the first time deliveryID is seen and false on every repeat.
func (l *Log) RecordDelivery(ctx context.Context, deliveryID string) (firstSeen bool, err error) {
	return l.deliv.RecordDelivery(ctx, deliveryID, models.NowISO())
}

// NewTraceID returns "trace-<random>", honoring CONVERGE_TRACE_ID when
// the environment pins it (spec.md §4.1, "for end-to-end testing").
func NewTraceID() string {
	if pinned := os.Getenv("CONVERGE_TRACE_ID"); pinned != "" {
		return pinned
	}
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return "trace-" + hex.EncodeToString(buf[:])
}

// canonicalize returns a deterministic JSON encoding of event: Go's
// encoding/json sorts map keys lexicographically, so this is stable
// across process restarts without a separate canonicalization step.
func canonicalize(event *models.Event) ([]byte, error) {
	return json.Marshal(event)
}

func chainHash(prevHash string, canonicalEvent []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonicalEvent)
	return hex.EncodeToString(h.Sum(nil))
}
