// Package semantic builds canonical intent text, embeds it with a
// deterministic provider, and detects semantic conflicts between
// concurrently open intents targeting the same branch
// (SPEC_FULL.md §4.14).
// Grounded on original_source/src/converge/semantic/conflicts.py.
package semantic

import (
	"context"

	"github.com/ghmbegerez/converge/pkg/eventlog"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// Service bundles the event log and intent store conflict detection
// and the pre-intent harness both depend on.
type Service struct {
	Log     *eventlog.Log
	Intents store.IntentStore
	Store   store.EmbeddingStore
}

// New builds a semantic Service.
func New(log *eventlog.Log, intents store.IntentStore, embeddings store.EmbeddingStore) *Service {
	return &Service{Log: log, Intents: intents, Store: embeddings}
}

func activeStatuses() []models.Status {
	return []models.Status{models.StatusReady, models.StatusValidated, models.StatusQueued}
}

// EmbedIntent builds intent's canonical text and persists its
// deterministic embedding, so GenerateCandidates/ScanConflicts can
// later find it as a candidate. Called once per intent, at intake
// time, before any conflict scan can see it.
func (s *Service) EmbedIntent(ctx context.Context, intent *models.Intent) error {
	text := BuildCanonicalText(intent.Source, intent.Target, intent.Semantic)
	rec := BuildEmbeddingRecord(intent.ID, text)
	return s.Store.PutEmbedding(ctx, rec)
}
