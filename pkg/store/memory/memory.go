// Package memory implements pkg/store.Store entirely in process memory.
// It is grounded on the teacher's pattern of swapping a lightweight
// backend into tests behind the same interface the production backend
// satisfies (spec.md §9 "Tests swap an in-memory backend").
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
)

// Store is an in-memory implementation of store.Store. Safe for
// concurrent use; every method takes the single mutex for its duration.
type Store struct {
	mu sync.Mutex

	events      []*models.Event
	chainState  map[string]chainRow
	locks       map[string]lockRow
	intents     map[string]*models.Intent
	reviews     map[string]*models.ReviewTask
	deliveries  map[string]string
	agentPolicy map[string]*models.AgentPolicy
	riskPolicy  map[string]riskPolicyRow
	intake      map[string]intakeRow
	embeddings  map[string]*models.EmbeddingRecord
	conflicts   map[string]*models.SemanticConflict
	baselines   map[string]float64
	findings    map[string][]*models.SecurityFinding
}

type chainRow struct {
	lastHash   string
	eventCount int64
}

type lockRow struct {
	holderPID string
	expiresAt string
}

type riskPolicyRow struct {
	document map[string]any
	version  int64
}

type intakeRow struct {
	mode, setBy, setAt, reason string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		chainState:  map[string]chainRow{},
		locks:       map[string]lockRow{},
		intents:     map[string]*models.Intent{},
		reviews:     map[string]*models.ReviewTask{},
		deliveries:  map[string]string{},
		agentPolicy: map[string]*models.AgentPolicy{},
		riskPolicy:  map[string]riskPolicyRow{},
		intake:      map[string]intakeRow{},
		embeddings:  map[string]*models.EmbeddingRecord{},
		conflicts:   map[string]*models.SemanticConflict{},
		baselines:   map[string]float64{},
		findings:    map[string][]*models.SecurityFinding{},
	}
}

var _ store.Store = (*Store)(nil)

// --- EventStore ---

func (s *Store) AppendEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.events = append(s.events, &cp)
	return &cp, nil
}

func matchesEvent(e *models.Event, f store.EventQuery) bool {
	if f.EventType != nil && string(e.EventType) != *f.EventType {
		return false
	}
	if f.IntentID != nil && (e.IntentID == nil || *e.IntentID != *f.IntentID) {
		return false
	}
	if f.AgentID != nil && (e.AgentID == nil || *e.AgentID != *f.AgentID) {
		return false
	}
	if f.TenantID != nil && (e.TenantID == nil || *e.TenantID != *f.TenantID) {
		return false
	}
	if f.TraceID != nil && e.TraceID != *f.TraceID {
		return false
	}
	if f.Since != "" && e.Timestamp <= f.Since {
		return false
	}
	if f.Until != "" && e.Timestamp > f.Until {
		return false
	}
	return true
}

func (s *Store) QueryEvents(ctx context.Context, filter store.EventQuery) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*models.Event
	for _, e := range s.events {
		if matchesEvent(e, filter) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp > matched[j].Timestamp })

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) CountEvents(ctx context.Context, filter store.EventQuery) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if matchesEvent(e, filter) {
			n++
		}
	}
	return n, nil
}

func (s *Store) PruneEvents(ctx context.Context, before string, tenantID *string, dryRun bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*models.Event
	affected := 0
	for _, e := range s.events {
		match := e.Timestamp < before && (tenantID == nil || (e.TenantID != nil && *e.TenantID == *tenantID))
		if match {
			affected++
			if dryRun {
				kept = append(kept, e)
			}
			continue
		}
		kept = append(kept, e)
	}
	if !dryRun {
		s.events = kept
	}
	return affected, nil
}

// --- ChainStateStore ---

func (s *Store) GetChainState(ctx context.Context, chainID string) (string, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.chainState[chainID]
	if !ok {
		return "", 0, false, nil
	}
	return row.lastHash, row.eventCount, true, nil
}

func (s *Store) SetChainState(ctx context.Context, chainID, lastHash string, eventCount int64, updatedAt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainState[chainID] = chainRow{lastHash: lastHash, eventCount: eventCount}
	return nil
}

// --- LockStore ---

func (s *Store) AcquireLock(ctx context.Context, lockName, holderPID string, ttlSeconds int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := models.NowISO()
	if row, ok := s.locks[lockName]; ok && row.expiresAt < now {
		delete(s.locks, lockName)
	}
	if _, ok := s.locks[lockName]; ok {
		return false, nil
	}
	s.locks[lockName] = lockRow{holderPID: holderPID, expiresAt: expireAt(ttlSeconds)}
	return true, nil
}

func expireAt(ttlSeconds int) string {
	return time.Now().UTC().Add(time.Duration(ttlSeconds) * time.Second).Format(time.RFC3339Nano)
}

func (s *Store) ReleaseLock(ctx context.Context, lockName, holderPID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.locks[lockName]; ok && row.holderPID == holderPID {
		delete(s.locks, lockName)
	}
	return nil
}

func (s *Store) ForceReleaseLock(ctx context.Context, lockName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, lockName)
	return nil
}

// --- IntentStore ---

func (s *Store) GetIntent(ctx context.Context, id string) (*models.Intent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.intents[id]
	if !ok {
		return nil, false, nil
	}
	cp := *i
	return &cp, true, nil
}

func (s *Store) PutIntent(ctx context.Context, intent *models.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *intent
	s.intents[intent.ID] = &cp
	return nil
}

func (s *Store) ListIntentsByStatus(ctx context.Context, status models.Status, tenantID *string) ([]*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Intent
	for _, i := range s.intents {
		if i.Status != status {
			continue
		}
		if tenantID != nil && (i.TenantID == nil || *i.TenantID != *tenantID) {
			continue
		}
		cp := *i
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Priority != out[b].Priority {
			return out[a].Priority < out[b].Priority
		}
		return out[a].CreatedAt < out[b].CreatedAt
	})
	return out, nil
}

func (s *Store) ListIntentsByTarget(ctx context.Context, target string, tenantID *string) ([]*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Intent
	for _, i := range s.intents {
		if i.Target != target {
			continue
		}
		if tenantID != nil && (i.TenantID == nil || *i.TenantID != *tenantID) {
			continue
		}
		cp := *i
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListAllIntents(ctx context.Context, tenantID *string) ([]*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Intent
	for _, i := range s.intents {
		if tenantID != nil && (i.TenantID == nil || *i.TenantID != *tenantID) {
			continue
		}
		cp := *i
		out = append(out, &cp)
	}
	return out, nil
}

// --- ReviewStore ---

func (s *Store) GetReviewTask(ctx context.Context, id string) (*models.ReviewTask, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (s *Store) PutReviewTask(ctx context.Context, task *models.ReviewTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.reviews[task.ID] = &cp
	return nil
}

func (s *Store) ListOpenReviewTasks(ctx context.Context, tenantID *string) ([]*models.ReviewTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ReviewTask
	for _, r := range s.reviews {
		if !r.IsOpen() {
			continue
		}
		if tenantID != nil && (r.TenantID == nil || *r.TenantID != *tenantID) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListAllReviewTasks(ctx context.Context, tenantID *string) ([]*models.ReviewTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ReviewTask
	for _, r := range s.reviews {
		if tenantID != nil && (r.TenantID == nil || *r.TenantID != *tenantID) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListReviewTasksByIntent(ctx context.Context, intentID string) ([]*models.ReviewTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ReviewTask
	for _, r := range s.reviews {
		if r.IntentID != intentID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

// --- DeliveryStore ---

func (s *Store) RecordDelivery(ctx context.Context, deliveryID string, receivedAt string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[deliveryID]; ok {
		return false, nil
	}
	s.deliveries[deliveryID] = receivedAt
	return true, nil
}

// --- PolicyStore ---

func policyKey(id, tenantID string) string { return tenantID + "/" + id }

func (s *Store) GetAgentPolicy(ctx context.Context, agentID string, tenantID string) (*models.AgentPolicy, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.agentPolicy[policyKey(agentID, tenantID)]
	if !ok {
		return nil, false, nil
	}
	cp := *p
	return &cp, true, nil
}

func (s *Store) PutAgentPolicy(ctx context.Context, policy *models.AgentPolicy, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *policy
	s.agentPolicy[policyKey(policy.AgentID, tenantID)] = &cp
	return nil
}

func (s *Store) GetRiskPolicyVersion(ctx context.Context, tenantID string) (map[string]any, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.riskPolicy[tenantID]
	if !ok {
		return nil, 0, false, nil
	}
	return row.document, row.version, true, nil
}

func (s *Store) PutRiskPolicy(ctx context.Context, tenantID string, document map[string]any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.riskPolicy[tenantID]
	row.version++
	row.document = document
	s.riskPolicy[tenantID] = row
	return row.version, nil
}

func (s *Store) GetIntakeOverride(ctx context.Context, tenantID string) (string, string, string, string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.intake[tenantID]
	if !ok {
		return "", "", "", "", false, nil
	}
	return row.mode, row.setBy, row.setAt, row.reason, true, nil
}

func (s *Store) PutIntakeOverride(ctx context.Context, tenantID, mode, setBy, setAt, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intake[tenantID] = intakeRow{mode: mode, setBy: setBy, setAt: setAt, reason: reason}
	return nil
}

// --- EmbeddingStore ---

func embKey(intentID, model string) string { return intentID + "/" + model }

func (s *Store) PutEmbedding(ctx context.Context, rec *models.EmbeddingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.embeddings[embKey(rec.IntentID, rec.Model)] = &cp
	return nil
}

func (s *Store) GetEmbedding(ctx context.Context, intentID, model string) (*models.EmbeddingRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.embeddings[embKey(intentID, model)]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (s *Store) ListEmbeddings(ctx context.Context, model string) ([]*models.EmbeddingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.EmbeddingRecord
	for _, r := range s.embeddings {
		if r.Model == model {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) PutSemanticConflict(ctx context.Context, c *models.SemanticConflict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.conflicts[c.ID] = &cp
	return nil
}

func (s *Store) ListOpenSemanticConflicts(ctx context.Context) ([]*models.SemanticConflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SemanticConflict
	for _, c := range s.conflicts {
		if c.Status == "open" {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- CoherenceStore ---

func baselineKey(questionID, tenantID string) string { return tenantID + "/" + questionID }

func (s *Store) GetCoherenceBaseline(ctx context.Context, questionID, tenantID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.baselines[baselineKey(questionID, tenantID)]
	return v, ok, nil
}

func (s *Store) SetCoherenceBaseline(ctx context.Context, questionID, tenantID string, value float64, updatedAt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baselines[baselineKey(questionID, tenantID)] = value
	return nil
}

// --- SecurityStore ---

func (s *Store) PutSecurityFinding(ctx context.Context, f *models.SecurityFinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.IntentID == nil {
		return nil
	}
	cp := *f
	s.findings[*f.IntentID] = append(s.findings[*f.IntentID], &cp)
	return nil
}

func (s *Store) ListSecurityFindings(ctx context.Context, intentID string) ([]*models.SecurityFinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.SecurityFinding(nil), s.findings[intentID]...), nil
}
