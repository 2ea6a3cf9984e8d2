package repositories

import (
	"context"
	"errors"

	"github.com/vsinha/cidery/pkg/domain/entities"
)

var (
	// ErrNotFound is returned by lookups for a missing record
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyAllocated is returned when a press run already has a claim row
	ErrAlreadyAllocated = errors.New("press run already allocated")
)

// AllocationTx is the set of reads and writes a press-run allocation performs
// inside one transaction. Implementations must not let writes become visible
// before the surrounding RunInTransaction commits.
type AllocationTx interface {
	// GetPressRun loads a press run and holds it against concurrent allocation
	// until the transaction ends where the backend supports row locks.
	GetPressRun(ctx context.Context, id string) (*entities.PressRun, error)
	CountBatchesForPressRun(ctx context.Context, pressRunID string) (int, error)
	GetVessel(ctx context.Context, id string) (*entities.Vessel, error)
	// ListPurchaseLines joins press lines through purchase, vendor and variety,
	// in press-line order.
	ListPurchaseLines(ctx context.Context, pressRunID string) ([]*entities.PurchaseLine, error)
	// ClaimPressRun records the idempotency claim; ErrAlreadyAllocated if one exists.
	ClaimPressRun(ctx context.Context, claim entities.PressRunAllocation) error
	InsertBatch(ctx context.Context, batch *entities.Batch) error
	InsertCompositions(ctx context.Context, rows []*entities.BatchComposition) error
}

// AllocationStore runs allocation work atomically. If fn returns an error or
// ctx is cancelled, nothing fn wrote is kept.
type AllocationStore interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx AllocationTx) error) error
}

// BatchReader provides read-only access to created batches
type BatchReader interface {
	BatchesForPressRun(ctx context.Context, pressRunID string) ([]*entities.Batch, error)
	CompositionsForBatch(ctx context.Context, batchID string) ([]*entities.BatchComposition, error)
}
