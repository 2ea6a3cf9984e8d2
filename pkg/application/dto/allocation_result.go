package dto

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/cidery/pkg/domain/entities"
)

// AllocationResult is the outcome of processing one press run into batches
type AllocationResult struct {
	PressRunID string
	Mode       string
	// CreatedBatchIDs has one id per input assignment, in input order
	CreatedBatchIDs []string
	Batches         []BatchAllocation
	// DryRun results were computed and checked but rolled back
	DryRun bool
}

// BatchAllocation is one created batch with its composition rows
type BatchAllocation struct {
	Batch        entities.Batch
	Compositions []entities.BatchComposition
	// CostDivergence is the batch's material cost minus the press run's total
	// purchase cost. It is zero only for single-vessel full consumption.
	CostDivergence decimal.Decimal
}
