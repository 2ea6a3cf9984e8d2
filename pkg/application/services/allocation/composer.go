package allocation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/repositories"
	"github.com/vsinha/cidery/pkg/domain/services"
)

// CostCheck selects what a batch's material cost total is checked against
type CostCheck int

const (
	// CostCheckAllocated compares the batch's material cost against the sum of
	// each line's total cost times its fraction. Both come from the same
	// fractions, so it catches row bookkeeping drift, not lost cost.
	CostCheckAllocated CostCheck = iota
	// CostCheckGlobal compares the batch's material cost against the press
	// run's full purchase cost. It only holds when the press run has a single
	// purchase line.
	CostCheckGlobal
)

func (c CostCheck) String() string {
	switch c {
	case CostCheckAllocated:
		return "allocated"
	case CostCheckGlobal:
		return "global"
	default:
		return fmt.Sprintf("CostCheck(%d)", int(c))
	}
}

// ParseCostCheck converts a flag value into a CostCheck
func ParseCostCheck(s string) (CostCheck, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allocated":
		return CostCheckAllocated, nil
	case "global":
		return CostCheckGlobal, nil
	default:
		return 0, entities.NewAllocationError(entities.Validation, "unknown cost check",
			"cost_check", s)
	}
}

// ComposeInput is one vessel assignment with the fractions it receives
type ComposeInput struct {
	PressRunID string
	Assignment entities.Assignment
	Vessel     *entities.Vessel
	Fractions  []services.LineFraction
	// Sequence distinguishes batches that share a vessel code within one run
	Sequence string
}

// ComposedBatch is a batch and its composition rows, built but not yet stored
type ComposedBatch struct {
	Batch        *entities.Batch
	Compositions []*entities.BatchComposition
	Totals       entities.CompositionTotals
	// AllocatedCost is Σ TotalCost × fraction, computed from the fractions
	AllocatedCost decimal.Decimal
	// PurchaseCost is the press run's full purchase cost
	PurchaseCost decimal.Decimal
}

// CostDivergence is the batch's material cost minus the full purchase cost
func (cb *ComposedBatch) CostDivergence() decimal.Decimal {
	return cb.Totals.MaterialCost.Sub(cb.PurchaseCost)
}

// Diverges reports whether the batch cost differs from the full purchase cost
// by more than the cost tolerance
func (cb *ComposedBatch) Diverges() bool {
	return !entities.WithinTolerance(cb.Totals.MaterialCost, cb.PurchaseCost, entities.CostTolerance)
}

// Composer turns one assignment into a batch with composition rows
type Composer struct {
	StartDate time.Time
	NewID     func() string
	CostCheck CostCheck
}

// Compose builds the batch and its rows. Nothing is written.
func (c *Composer) Compose(in ComposeInput) (*ComposedBatch, error) {
	if in.Vessel == nil {
		return nil, entities.NewAllocationError(entities.Validation, "assignment has no vessel",
			"vessel_id", in.Assignment.ToVesselID)
	}
	if len(in.Fractions) == 0 {
		return nil, entities.NewAllocationError(entities.Validation, "no fractions to compose",
			"vessel_id", in.Vessel.ID)
	}

	batchID := c.NewID()
	rows := make([]*entities.BatchComposition, 0, len(in.Fractions))
	allocatedCost := decimal.Zero
	purchaseCost := decimal.Zero

	for _, f := range in.Fractions {
		line := f.Line
		juice := in.Assignment.Volume.Mul(f.Fraction)
		cost := line.TotalCost.Mul(f.Fraction)

		row := &entities.BatchComposition{
			ID:              c.NewID(),
			BatchID:         batchID,
			PurchaseLineID:  line.ID,
			VendorID:        line.VendorID,
			VarietyID:       line.VarietyID,
			VarietyName:     line.VarietyName,
			LotCode:         line.LotCode,
			InputWeight:     line.InputWeight,
			JuiceVolume:     juice,
			FractionOfBatch: f.Fraction,
			MaterialCost:    cost,
		}
		if line.MeasuredSugarPercent != nil {
			sugar := *line.MeasuredSugarPercent
			mass := entities.PercentOf(juice, sugar)
			row.AvgSugarPercent = &sugar
			row.EstimatedSugarMass = &mass
		}
		rows = append(rows, row)

		allocatedCost = allocatedCost.Add(f.Fraction.Mul(line.TotalCost))
		purchaseCost = purchaseCost.Add(line.TotalCost)
	}

	var primary *services.PrimaryVariety
	if p, ok := services.SelectPrimaryVariety(rows); ok {
		primary = &p
	}
	name := services.GenerateBatchName(c.StartDate, in.Vessel.Code(), primary, in.Sequence)

	batch := &entities.Batch{
		ID:               batchID,
		VesselID:         in.Vessel.ID,
		Name:             name,
		BatchNumber:      name,
		InitialVolume:    in.Assignment.Volume,
		CurrentVolume:    in.Assignment.Volume,
		Status:           entities.BatchActive,
		StartDate:        c.StartDate,
		OriginPressRunID: in.PressRunID,
	}

	return &ComposedBatch{
		Batch:         batch,
		Compositions:  rows,
		Totals:        entities.SumCompositions(rows),
		AllocatedCost: allocatedCost,
		PurchaseCost:  purchaseCost,
	}, nil
}

// CheckInvariants verifies fraction, volume and cost conservation for one batch
func (c *Composer) CheckInvariants(cb *ComposedBatch) error {
	totals := cb.Totals
	batch := cb.Batch

	if !entities.WithinTolerance(totals.Fraction, decimal.NewFromInt(1), entities.FractionTolerance) {
		return entities.NewAllocationError(entities.Invariant, "composition fractions do not sum to one",
			"batch_name", batch.Name,
			"vessel_id", batch.VesselID,
			"fraction_sum", totals.Fraction.String())
	}

	if !entities.WithinTolerance(totals.JuiceVolume, batch.InitialVolume, entities.VolumeTolerance) {
		return entities.NewAllocationError(entities.Invariant, "composition volumes do not sum to the assigned volume",
			"batch_name", batch.Name,
			"vessel_id", batch.VesselID,
			"volume_sum", totals.JuiceVolume.String(),
			"expected_volume", batch.InitialVolume.String())
	}

	expected := cb.AllocatedCost
	if c.CostCheck == CostCheckGlobal {
		expected = cb.PurchaseCost
	}
	if !entities.WithinTolerance(totals.MaterialCost, expected, entities.CostTolerance) {
		return entities.NewAllocationError(entities.Invariant, "composition material cost does not match the expected cost",
			"batch_name", batch.Name,
			"vessel_id", batch.VesselID,
			"cost_check", c.CostCheck.String(),
			"cost_sum", totals.MaterialCost.String(),
			"expected_cost", expected.String())
	}
	return nil
}

// Persist writes the batch and then its rows
func (c *Composer) Persist(ctx context.Context, tx repositories.AllocationTx, cb *ComposedBatch) error {
	if err := tx.InsertBatch(ctx, cb.Batch); err != nil {
		return fmt.Errorf("failed to insert batch %s: %w", cb.Batch.Name, err)
	}
	if err := tx.InsertCompositions(ctx, cb.Compositions); err != nil {
		return fmt.Errorf("failed to insert compositions for batch %s: %w", cb.Batch.Name, err)
	}
	return nil
}
