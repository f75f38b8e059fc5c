package eventlog

import (
	"context"
	"os"
	"testing"

	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/store"
	"github.com/ghmbegerez/converge/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_AssignsIDTimestampAndTraceID(t *testing.T) {
	log := New(memory.New())
	evt := &models.Event{EventType: models.EventIntentMerged, Payload: map[string]any{"sha": "abc"}}

	stored, err := log.Append(context.Background(), evt)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.NotEmpty(t, stored.Timestamp)
	assert.NotEmpty(t, stored.TraceID)
	assert.Contains(t, stored.TraceID, "trace-")
}

type recordingPublisher struct {
	events []*models.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt *models.Event) error {
	p.events = append(p.events, evt)
	return nil
}

func TestAppend_PublishesToPublisherAfterPersisting(t *testing.T) {
	log := New(memory.New())
	pub := &recordingPublisher{}
	log.Publisher = pub

	stored, err := log.Append(context.Background(), &models.Event{
		EventType: models.EventIntentMerged, Payload: map[string]any{"sha": "abc"},
	})
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, stored.ID, pub.events[0].ID)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, *models.Event) error {
	return assert.AnError
}

func TestAppend_PublisherFailureDoesNotFailAppend(t *testing.T) {
	log := New(memory.New())
	log.Publisher = failingPublisher{}

	stored, err := log.Append(context.Background(), &models.Event{
		EventType: models.EventIntentMerged, Payload: map[string]any{"sha": "abc"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
}

func TestAppend_HonorsPinnedTraceID(t *testing.T) {
	t.Setenv("CONVERGE_TRACE_ID", "trace-pinned-123")
	log := New(memory.New())

	stored, err := log.Append(context.Background(), &models.Event{EventType: models.EventIntentValidated})
	require.NoError(t, err)
	assert.Equal(t, "trace-pinned-123", stored.TraceID)

	stored2, err := log.Append(context.Background(), &models.Event{EventType: models.EventIntentBlocked})
	require.NoError(t, err)
	assert.Equal(t, "trace-pinned-123", stored2.TraceID)
}

func TestAppend_PreservesExplicitTraceID(t *testing.T) {
	log := New(memory.New())
	stored, err := log.Append(context.Background(), &models.Event{EventType: models.EventIntentMerged, TraceID: "trace-explicit"})
	require.NoError(t, err)
	assert.Equal(t, "trace-explicit", stored.TraceID)
}

func TestAppend_AdvancesChainState(t *testing.T) {
	s := memory.New()
	log := New(s)
	ctx := context.Background()

	_, err := log.Append(ctx, &models.Event{EventType: models.EventIntentValidated})
	require.NoError(t, err)

	hash1, count1, found, err := s.GetChainState(ctx, GlobalChain)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, hash1)
	assert.Equal(t, int64(1), count1)

	_, err = log.Append(ctx, &models.Event{EventType: models.EventIntentMerged})
	require.NoError(t, err)

	hash2, count2, found, err := s.GetChainState(ctx, GlobalChain)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEqual(t, hash1, hash2)
	assert.Equal(t, int64(2), count2)
}

func TestAppend_SeparateChainsPerTenant(t *testing.T) {
	s := memory.New()
	log := New(s)
	ctx := context.Background()
	tenantA := "tenant-a"

	_, err := log.Append(ctx, &models.Event{EventType: models.EventIntentValidated})
	require.NoError(t, err)
	_, err = log.Append(ctx, &models.Event{EventType: models.EventIntentValidated, TenantID: &tenantA})
	require.NoError(t, err)

	_, globalCount, _, err := s.GetChainState(ctx, GlobalChain)
	require.NoError(t, err)
	_, tenantCount, _, err := s.GetChainState(ctx, tenantA)
	require.NoError(t, err)

	assert.Equal(t, int64(1), globalCount)
	assert.Equal(t, int64(1), tenantCount)
}

func TestVerifyChain_MatchesAfterAppends(t *testing.T) {
	log := New(memory.New())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, &models.Event{EventType: models.EventQueueProcessed, Payload: map[string]any{"seq": i}})
		require.NoError(t, err)
	}

	ok, err := log.VerifyChain(ctx, GlobalChain)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyChain_EmptyChainVerifies(t *testing.T) {
	log := New(memory.New())
	ok, err := log.VerifyChain(context.Background(), GlobalChain)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuery_DefaultsLimitAndOrdersDescending(t *testing.T) {
	log := New(memory.New())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		evt := models.NewEvent(models.EventQueueProcessed, map[string]any{"seq": i})
		_, err := log.Append(ctx, evt)
		require.NoError(t, err)
	}

	events, err := log.Query(ctx, store.EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.GreaterOrEqual(t, events[0].Timestamp, events[1].Timestamp)
	assert.GreaterOrEqual(t, events[1].Timestamp, events[2].Timestamp)
}

func TestCount_FiltersByEventType(t *testing.T) {
	log := New(memory.New())
	ctx := context.Background()

	_, _ = log.Append(ctx, &models.Event{EventType: models.EventIntentMerged})
	_, _ = log.Append(ctx, &models.Event{EventType: models.EventIntentBlocked})
	_, _ = log.Append(ctx, &models.Event{EventType: models.EventIntentMerged})

	merged := string(models.EventIntentMerged)
	count, err := log.Count(ctx, store.EventQuery{EventType: &merged})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPrune_RespectsTenantScope(t *testing.T) {
	log := New(memory.New())
	ctx := context.Background()
	tenantA := "tenant-a"

	_, err := log.Append(ctx, &models.Event{EventType: models.EventIntentMerged, Timestamp: "2020-01-01T00:00:00Z", TenantID: &tenantA})
	require.NoError(t, err)
	_, err = log.Append(ctx, &models.Event{EventType: models.EventIntentMerged, Timestamp: "2020-01-01T00:00:00Z"})
	require.NoError(t, err)

	affected, err := log.Prune(ctx, "2025-01-01T00:00:00Z", &tenantA, false)
	require.NoError(t, err)
	assert.Equal(t, 1, affected)

	remaining, err := log.Query(ctx, store.EventQuery{})
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	assert.Nil(t, remaining[0].TenantID)
}

func TestAcquireAndReleaseQueueLock(t *testing.T) {
	log := New(memory.New())
	ctx := context.Background()

	ok, err := log.AcquireQueueLock(ctx, "queue", "pid-1", 30)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = log.AcquireQueueLock(ctx, "queue", "pid-2", 30)
	require.NoError(t, err)
	assert.False(t, ok, "a second holder must not acquire a lock already held")

	require.NoError(t, log.ReleaseQueueLock(ctx, "queue", "pid-2"))
	ok, err = log.AcquireQueueLock(ctx, "queue", "pid-2", 30)
	require.NoError(t, err)
	assert.False(t, ok, "release by a non-holder must be a no-op, lock stays held by pid-1")

	require.NoError(t, log.ReleaseQueueLock(ctx, "queue", "pid-1"))

	ok, err = log.AcquireQueueLock(ctx, "queue", "pid-2", 30)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestForceReleaseQueueLock(t *testing.T) {
	log := New(memory.New())
	ctx := context.Background()

	_, err := log.AcquireQueueLock(ctx, "queue", "pid-1", 30)
	require.NoError(t, err)

	require.NoError(t, log.ForceReleaseQueueLock(ctx, "queue"))

	ok, err := log.AcquireQueueLock(ctx, "queue", "pid-2", 30)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecordDelivery_AtMostOnce(t *testing.T) {
	log := New(memory.New())
	ctx := context.Background()

	first, err := log.RecordDelivery(ctx, "delivery-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := log.RecordDelivery(ctx, "delivery-1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestNewTraceID_FormatWithoutPin(t *testing.T) {
	_ = os.Unsetenv("CONVERGE_TRACE_ID")
	id := NewTraceID()
	assert.Contains(t, id, "trace-")
	assert.Len(t, id, len("trace-")+16)
}
