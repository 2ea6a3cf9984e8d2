package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/repositories"
)

type state struct {
	pressRuns     map[string]entities.PressRun
	vessels       map[string]entities.Vessel
	purchaseLines map[string]entities.PurchaseLine
	pressLines    map[string][]entities.PressLine
	batches       []entities.Batch
	compositions  []entities.BatchComposition
	allocations   map[string]entities.PressRunAllocation
}

func newState() state {
	return state{
		pressRuns:     make(map[string]entities.PressRun),
		vessels:       make(map[string]entities.Vessel),
		purchaseLines: make(map[string]entities.PurchaseLine),
		pressLines:    make(map[string][]entities.PressLine),
		allocations:   make(map[string]entities.PressRunAllocation),
	}
}

// clone copies every container. Entity values are shallow copies; the
// pointer fields they carry are never mutated after creation.
func (s state) clone() state {
	cloned := newState()
	for k, v := range s.pressRuns {
		cloned.pressRuns[k] = v
	}
	for k, v := range s.vessels {
		cloned.vessels[k] = v
	}
	for k, v := range s.purchaseLines {
		cloned.purchaseLines[k] = v
	}
	for k, v := range s.pressLines {
		cloned.pressLines[k] = append([]entities.PressLine(nil), v...)
	}
	for k, v := range s.allocations {
		cloned.allocations[k] = v
	}
	cloned.batches = append([]entities.Batch(nil), s.batches...)
	cloned.compositions = append([]entities.BatchComposition(nil), s.compositions...)
	return cloned
}

// Store provides an in-memory transactional allocation store. Transactions
// run one at a time against a private copy of the state, which replaces the
// committed state only when the transaction function succeeds.
type Store struct {
	mu    sync.RWMutex
	state state
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{state: newState()}
}

// Verify interface compliance
var (
	_ repositories.AllocationStore = (*Store)(nil)
	_ repositories.BatchReader     = (*Store)(nil)
	_ repositories.Seeder          = (*Store)(nil)
)

// Seed loads upstream records, replacing any with the same id. A failed seed
// leaves the store unchanged.
func (s *Store) Seed(_ context.Context, data repositories.SeedData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	for _, pr := range data.PressRuns {
		if pr == nil || pr.ID == "" {
			return fmt.Errorf("press run id cannot be empty")
		}
		next.pressRuns[pr.ID] = *pr
	}
	for _, v := range data.Vessels {
		if v == nil || v.ID == "" {
			return fmt.Errorf("vessel id cannot be empty")
		}
		next.vessels[v.ID] = *v
	}
	for _, line := range data.PurchaseLines {
		if line == nil || line.ID == "" {
			return fmt.Errorf("purchase line id cannot be empty")
		}
		next.purchaseLines[line.ID] = *line
	}
	for _, pl := range data.PressLines {
		if _, ok := next.pressRuns[pl.PressRunID]; !ok {
			return fmt.Errorf("press line references unknown press run %s", pl.PressRunID)
		}
		if _, ok := next.purchaseLines[pl.PurchaseLineID]; !ok {
			return fmt.Errorf("press line references unknown purchase line %s", pl.PurchaseLineID)
		}
		next.pressLines[pl.PressRunID] = upsertPressLine(next.pressLines[pl.PressRunID], pl)
	}
	for id := range next.pressLines {
		lines := next.pressLines[id]
		sort.SliceStable(lines, func(i, j int) bool {
			return lines[i].Position < lines[j].Position
		})
	}

	s.state = next
	return nil
}

func upsertPressLine(lines []entities.PressLine, pl entities.PressLine) []entities.PressLine {
	for i := range lines {
		if lines[i].PurchaseLineID == pl.PurchaseLineID {
			lines[i] = pl
			return lines
		}
	}
	return append(lines, pl)
}

// RunInTransaction executes fn within a transactional copy of the store state
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.AllocationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &transaction{state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	// A cancelled caller must not see a commit it can no longer observe.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = tx.state
	return nil
}

// BatchesForPressRun returns committed batches created from a press run, in creation order
func (s *Store) BatchesForPressRun(_ context.Context, pressRunID string) ([]*entities.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var batches []*entities.Batch
	for i := range s.state.batches {
		if s.state.batches[i].OriginPressRunID == pressRunID {
			b := s.state.batches[i]
			batches = append(batches, &b)
		}
	}
	return batches, nil
}

// CompositionsForBatch returns the committed composition rows of a batch
func (s *Store) CompositionsForBatch(_ context.Context, batchID string) ([]*entities.BatchComposition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*entities.BatchComposition
	for i := range s.state.compositions {
		if s.state.compositions[i].BatchID == batchID {
			c := s.state.compositions[i]
			rows = append(rows, &c)
		}
	}
	return rows, nil
}

// Counts reports committed batch and composition totals
func (s *Store) Counts() (batches, compositions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.batches), len(s.state.compositions)
}

type transaction struct {
	state state
}

func (tx *transaction) GetPressRun(_ context.Context, id string) (*entities.PressRun, error) {
	pr, ok := tx.state.pressRuns[id]
	if !ok {
		return nil, fmt.Errorf("press run %s: %w", id, repositories.ErrNotFound)
	}
	return &pr, nil
}

func (tx *transaction) CountBatchesForPressRun(_ context.Context, pressRunID string) (int, error) {
	count := 0
	for i := range tx.state.batches {
		if tx.state.batches[i].OriginPressRunID == pressRunID {
			count++
		}
	}
	return count, nil
}

func (tx *transaction) GetVessel(_ context.Context, id string) (*entities.Vessel, error) {
	v, ok := tx.state.vessels[id]
	if !ok {
		return nil, fmt.Errorf("vessel %s: %w", id, repositories.ErrNotFound)
	}
	return &v, nil
}

func (tx *transaction) ListPurchaseLines(_ context.Context, pressRunID string) ([]*entities.PurchaseLine, error) {
	links := tx.state.pressLines[pressRunID]
	lines := make([]*entities.PurchaseLine, 0, len(links))
	for _, link := range links {
		line, ok := tx.state.purchaseLines[link.PurchaseLineID]
		if !ok {
			return nil, fmt.Errorf("purchase line %s: %w", link.PurchaseLineID, repositories.ErrNotFound)
		}
		lines = append(lines, &line)
	}
	return lines, nil
}

func (tx *transaction) ClaimPressRun(_ context.Context, claim entities.PressRunAllocation) error {
	if _, exists := tx.state.allocations[claim.PressRunID]; exists {
		return fmt.Errorf("press run %s: %w", claim.PressRunID, repositories.ErrAlreadyAllocated)
	}
	tx.state.allocations[claim.PressRunID] = claim
	return nil
}

func (tx *transaction) InsertBatch(_ context.Context, batch *entities.Batch) error {
	for i := range tx.state.batches {
		if tx.state.batches[i].ID == batch.ID {
			return fmt.Errorf("batch %q already exists", batch.ID)
		}
	}
	tx.state.batches = append(tx.state.batches, *batch)
	return nil
}

func (tx *transaction) InsertCompositions(_ context.Context, rows []*entities.BatchComposition) error {
	for _, row := range rows {
		if !tx.hasBatch(row.BatchID) {
			return fmt.Errorf("composition %s references unknown batch %s", row.ID, row.BatchID)
		}
		tx.state.compositions = append(tx.state.compositions, *row)
	}
	return nil
}

func (tx *transaction) hasBatch(id string) bool {
	for i := range tx.state.batches {
		if tx.state.batches[i].ID == id {
			return true
		}
	}
	return false
}
