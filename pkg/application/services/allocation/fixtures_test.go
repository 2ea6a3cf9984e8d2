package allocation

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/repositories"
	"github.com/vsinha/cidery/pkg/infrastructure/repositories/memory"
)

var testDate = time.Date(2026, 9, 15, 14, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedClock() time.Time { return testDate }

// sequentialIDs returns a deterministic id generator
func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

type lineInput struct {
	id      string
	variety string
	weight  string
	cost    string
	sugar   string
}

func newLine(t *testing.T, in lineInput) *entities.PurchaseLine {
	t.Helper()
	line, err := entities.NewPurchaseLine(in.id, "vendor-"+in.id, "variety-"+in.variety, in.variety,
		dec(in.weight), decimal.Zero, dec(in.cost))
	require.NoError(t, err)
	if in.sugar != "" {
		sugar := dec(in.sugar)
		line.MeasuredSugarPercent = &sugar
	}
	return line
}

func newVessel(t *testing.T, id, name, capacity string) *entities.Vessel {
	t.Helper()
	v, err := entities.NewVessel(id, name, dec(capacity))
	require.NoError(t, err)
	return v
}

// seedStore creates a memory store holding press run "pr-1" with the given
// total volume, lines and vessels
func seedStore(t *testing.T, volume string, lines []lineInput, vessels ...*entities.Vessel) *memory.Store {
	t.Helper()
	pressRun, err := entities.NewPressRun("pr-1", dec(volume), testDate.Add(-24*time.Hour))
	require.NoError(t, err)

	data := repositories.SeedData{
		PressRuns: []*entities.PressRun{pressRun},
		Vessels:   vessels,
	}
	for i, in := range lines {
		data.PurchaseLines = append(data.PurchaseLines, newLine(t, in))
		data.PressLines = append(data.PressLines, entities.PressLine{
			PressRunID:     pressRun.ID,
			PurchaseLineID: in.id,
			Position:       i,
		})
	}

	store := memory.NewStore()
	require.NoError(t, store.Seed(context.Background(), data))
	return store
}

func assign(vesselID, volume string) entities.Assignment {
	return entities.Assignment{ToVesselID: vesselID, Volume: dec(volume)}
}

type fakeMetrics struct {
	mu              sync.Mutex
	runs            map[string]int
	batches         int
	divergences     int
	publishFailures int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: make(map[string]int)}
}

func (m *fakeMetrics) ObserveRun(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[result]++
}

func (m *fakeMetrics) BatchesCreated(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches += n
}

func (m *fakeMetrics) CostDivergence() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.divergences++
}

func (m *fakeMetrics) PublishFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishFailures++
}

var errInjected = errors.New("injected failure")

// failingStore fails the n-th composition insert of a transaction
type failingStore struct {
	repositories.AllocationStore
	failOn int
}

func (s *failingStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.AllocationTx) error) error {
	return s.AllocationStore.RunInTransaction(ctx, func(ctx context.Context, tx repositories.AllocationTx) error {
		return fn(ctx, &failingTx{AllocationTx: tx, failOn: s.failOn})
	})
}

type failingTx struct {
	repositories.AllocationTx
	failOn int
	calls  int
}

func (tx *failingTx) InsertCompositions(ctx context.Context, rows []*entities.BatchComposition) error {
	tx.calls++
	if tx.calls == tx.failOn {
		return errInjected
	}
	return tx.AllocationTx.InsertCompositions(ctx, rows)
}
