package events

import (
	"time"

	"github.com/vsinha/cidery/pkg/domain/entities"
)

const (
	BatchCreatedEvent            = "batch.created"
	BatchCompositionCreatedEvent = "batch_composition.created"
)

type BatchCreated struct {
	Batch          entities.Batch `json:"batch"`
	AllocationMode string         `json:"allocation_mode"`
}

type BatchCompositionCreated struct {
	Composition entities.BatchComposition `json:"composition"`
}

// NewBatchCreatedEvent streams under the batch id
func NewBatchCreatedEvent(batch entities.Batch, mode string, at time.Time) Event {
	return NewEvent(BatchCreatedEvent, batch.ID, BatchCreated{Batch: batch, AllocationMode: mode}, at)
}

// NewBatchCompositionCreatedEvent streams under the owning batch id so a
// batch and its rows read back as one stream
func NewBatchCompositionCreatedEvent(row entities.BatchComposition, at time.Time) Event {
	return NewEvent(BatchCompositionCreatedEvent, row.BatchID, BatchCompositionCreated{Composition: row}, at)
}
