package testing_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/cidery/pkg/application/services/allocation"
	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/services"
	fixtures "github.com/vsinha/cidery/pkg/infrastructure/testing"
)

func TestOrchardScenario(t *testing.T) {
	ctx := context.Background()
	store, err := fixtures.NewOrchardStore(ctx)
	require.NoError(t, err)

	svc := allocation.NewService(store, allocation.WithClock(func() time.Time { return fixtures.PressedAt }))
	result, err := svc.AllocatePressRun(ctx, allocation.Request{
		PressRunID: fixtures.HarvestPressRunID,
		Assignments: []entities.Assignment{
			{ToVesselID: fixtures.MainTankID, Volume: decimal.NewFromInt(600)},
			{ToVesselID: fixtures.SmallTankID, Volume: decimal.NewFromInt(400)},
		},
		Mode: services.AllocationByWeight,
	})
	require.NoError(t, err)

	require.Len(t, result.Batches, 2)
	assert.Equal(t, "2026-09-14_TANK-1_KIBL_A", result.Batches[0].Batch.Name)
	assert.Equal(t, "2026-09-14_TANK-2_KIBL_A", result.Batches[1].Batch.Name)
	assert.True(t, allocation.TotalMaterialCost(result).Equal(decimal.NewFromInt(2000)))

	batches, rows := store.Counts()
	assert.Equal(t, 2, batches)
	assert.Equal(t, 4, rows)
}

func TestOrchardLatePressRunHasNoSugarBasis(t *testing.T) {
	ctx := context.Background()
	store, err := fixtures.NewOrchardStore(ctx)
	require.NoError(t, err)

	_, err = allocation.NewService(store).AllocatePressRun(ctx, allocation.Request{
		PressRunID:  fixtures.LatePressRunID,
		Assignments: []entities.Assignment{{ToVesselID: fixtures.BarrelID, Volume: decimal.NewFromInt(200)}},
		Mode:        services.AllocationBySugar,
	})
	assert.ErrorIs(t, err, entities.ErrInvariant)

	batches, _ := store.Counts()
	assert.Zero(t, batches)
}
