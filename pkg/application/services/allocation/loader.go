package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/repositories"
)

// LoadedPressRun is everything the allocation reads, validated
type LoadedPressRun struct {
	PressRun *entities.PressRun
	// Vessels is aligned with the assignments: Vessels[i] receives assignment i
	Vessels []*entities.Vessel
	Lines   []*entities.PurchaseLine
}

// Loader reads and validates the inputs of one allocation. It must run inside
// the same transaction as the inserts that follow it.
type Loader struct{}

// Load fetches the press run, checks it has not been allocated, validates the
// assignments against the press run and vessels, and loads the purchase lines.
func (Loader) Load(ctx context.Context, tx repositories.AllocationTx, pressRunID string, assignments []entities.Assignment) (*LoadedPressRun, error) {
	if pressRunID == "" {
		return nil, entities.NewAllocationError(entities.Validation, "press run id cannot be empty")
	}

	pressRun, err := tx.GetPressRun(ctx, pressRunID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, entities.NewAllocationError(entities.NotFound, "press run not found",
			"press_run_id", pressRunID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load press run %s: %w", pressRunID, err)
	}

	existing, err := tx.CountBatchesForPressRun(ctx, pressRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing batches for press run %s: %w", pressRunID, err)
	}
	if existing > 0 {
		return nil, entities.NewAllocationError(entities.Conflict, "press run has already been processed into batches",
			"press_run_id", pressRunID,
			"existing_batches", fmt.Sprintf("%d", existing))
	}

	if len(assignments) == 0 {
		return nil, entities.NewAllocationError(entities.Validation, "at least one vessel assignment is required",
			"press_run_id", pressRunID)
	}

	totalAssigned := entities.TotalAssigned(assignments)
	if entities.ExceedsBy(totalAssigned, pressRun.TotalJuiceVolume, entities.VolumeTolerance) {
		return nil, entities.NewAllocationError(entities.Validation, "assigned volume exceeds press run volume",
			"press_run_id", pressRunID,
			"requested", totalAssigned.String(),
			"available", pressRun.TotalJuiceVolume.String())
	}

	vessels := make([]*entities.Vessel, len(assignments))
	for i, a := range assignments {
		if !a.Volume.IsPositive() {
			return nil, entities.NewAllocationError(entities.Validation, "assignment volume must be positive",
				"assignment", fmt.Sprintf("%d", i),
				"vessel_id", a.ToVesselID,
				"volume", a.Volume.String())
		}

		vessel, err := tx.GetVessel(ctx, a.ToVesselID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, entities.NewAllocationError(entities.NotFound, "vessel not found",
				"assignment", fmt.Sprintf("%d", i),
				"vessel_id", a.ToVesselID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load vessel %s: %w", a.ToVesselID, err)
		}

		if entities.ExceedsBy(a.Volume, vessel.Capacity, entities.VolumeTolerance) {
			return nil, entities.NewAllocationError(entities.Validation, "assignment volume exceeds vessel capacity",
				"assignment", fmt.Sprintf("%d", i),
				"vessel_id", vessel.ID,
				"requested", a.Volume.String(),
				"capacity", vessel.Capacity.String())
		}
		vessels[i] = vessel
	}

	lines, err := tx.ListPurchaseLines(ctx, pressRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase lines for press run %s: %w", pressRunID, err)
	}
	if len(lines) == 0 {
		return nil, entities.NewAllocationError(entities.Validation, "press run has no purchase lines",
			"press_run_id", pressRunID)
	}

	return &LoadedPressRun{
		PressRun: pressRun,
		Vessels:  vessels,
		Lines:    lines,
	}, nil
}
