package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/cidery/pkg/domain/entities"
)

var eventTime = time.Date(2026, 9, 15, 14, 30, 0, 0, time.UTC)

type recordingHandler struct {
	mu     sync.Mutex
	types  map[string]bool
	seen   []Event
	notify chan struct{}
}

func newRecordingHandler(types ...string) *recordingHandler {
	h := &recordingHandler{types: make(map[string]bool), notify: make(chan struct{}, 16)}
	for _, t := range types {
		h.types[t] = true
	}
	return h
}

func (h *recordingHandler) Handle(event Event) error {
	h.mu.Lock()
	h.seen = append(h.seen, event)
	h.mu.Unlock()
	h.notify <- struct{}{}
	return nil
}

func (h *recordingHandler) CanHandle(eventType string) bool {
	return h.types[eventType]
}

func testBatch() entities.Batch {
	return entities.Batch{
		ID:               "b-1",
		VesselID:         "tank-1",
		Name:             "2026-09-15_TANK-1_KIBL_A",
		BatchNumber:      "2026-09-15_TANK-1_KIBL_A",
		InitialVolume:    decimal.NewFromInt(400),
		CurrentVolume:    decimal.NewFromInt(400),
		Status:           entities.BatchActive,
		StartDate:        eventTime,
		OriginPressRunID: "pr-1",
	}
}

func TestPublishAppendsToBatchStream(t *testing.T) {
	store := NewInMemoryEventStore()
	ctx := context.Background()

	batch := testBatch()
	row := entities.BatchComposition{ID: "c-1", BatchID: batch.ID, PurchaseLineID: "L1"}

	require.NoError(t, store.Publish(ctx, NewBatchCreatedEvent(batch, "byWeight", eventTime)))
	require.NoError(t, store.Publish(ctx, NewBatchCompositionCreatedEvent(row, eventTime)))

	stream, err := store.ReadEvents("b-1", 1)
	require.NoError(t, err)
	require.Len(t, stream, 2)

	assert.Equal(t, BatchCreatedEvent, stream[0].Type())
	assert.Equal(t, 1, stream[0].Version())
	assert.Equal(t, BatchCompositionCreatedEvent, stream[1].Type())
	assert.Equal(t, 2, stream[1].Version())
	assert.Equal(t, eventTime, stream[1].Timestamp())

	created, ok := stream[0].Data().(BatchCreated)
	require.True(t, ok)
	assert.Equal(t, "byWeight", created.AllocationMode)
	assert.Equal(t, "pr-1", created.Batch.OriginPressRunID)

	composed, ok := stream[1].Data().(BatchCompositionCreated)
	require.True(t, ok)
	assert.Equal(t, "L1", composed.Composition.PurchaseLineID)
}

func TestPublishRejectsMissingStreamAndCancelledContext(t *testing.T) {
	store := NewInMemoryEventStore()

	err := store.Publish(context.Background(), NewEvent(BatchCreatedEvent, "", nil, eventTime))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.Publish(ctx, NewBatchCreatedEvent(testBatch(), "byWeight", eventTime))
	assert.ErrorIs(t, err, context.Canceled)

	all, err := store.ReadAllEvents(0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReadEventsBounds(t *testing.T) {
	store := NewInMemoryEventStore()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendEvent("s", NewEvent("tick", "s", i, eventTime)))
	}

	tests := []struct {
		name string
		from int
		want int
	}{
		{"from zero reads all", 0, 3},
		{"from first", 1, 3},
		{"from last", 3, 1},
		{"past the end", 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ReadEvents("s", tt.from)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	missing, err := store.ReadEvents("nope", 1)
	require.NoError(t, err)
	assert.Empty(t, missing)

	all, err := store.ReadAllEvents(2)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].Data())
}

func TestSubscribersNotified(t *testing.T) {
	store := NewInMemoryEventStore()
	handler := newRecordingHandler(BatchCreatedEvent)
	require.NoError(t, store.Subscribe([]string{BatchCreatedEvent, BatchCompositionCreatedEvent}, handler))

	require.NoError(t, store.Publish(context.Background(), NewBatchCreatedEvent(testBatch(), "bySugar", eventTime)))

	select {
	case <-handler.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not notified")
	}

	handler.mu.Lock()
	require.Len(t, handler.seen, 1)
	assert.Equal(t, "b-1", handler.seen[0].StreamID())
	handler.mu.Unlock()

	require.NoError(t, store.Unsubscribe(handler))
	require.NoError(t, store.Publish(context.Background(), NewBatchCreatedEvent(testBatch(), "bySugar", eventTime)))

	select {
	case <-handler.notify:
		t.Fatal("unsubscribed handler was notified")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublisherFunc(t *testing.T) {
	var got Event
	p := PublisherFunc(func(_ context.Context, e Event) error {
		got = e
		return nil
	})
	event := NewEvent("x", "s", nil, eventTime)
	require.NoError(t, p.Publish(context.Background(), event))
	assert.Equal(t, event, got)

	assert.NoError(t, NopPublisher.Publish(context.Background(), event))
}
