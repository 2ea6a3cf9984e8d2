package main

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cidery/pkg/application/services/allocation"
	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/services"
	"github.com/vsinha/cidery/pkg/infrastructure/events"
	fixtures "github.com/vsinha/cidery/pkg/infrastructure/testing"
)

func main() {
	ctx := context.Background()

	store, err := fixtures.NewOrchardStore(ctx)
	if err != nil {
		log.Fatalf("seed store: %v", err)
	}
	audit := events.NewInMemoryEventStore()

	svc := allocation.NewService(store, allocation.WithPublisher(audit))

	assignments := []entities.Assignment{
		{ToVesselID: fixtures.MainTankID, Volume: decimal.NewFromInt(800)},
		{ToVesselID: fixtures.BarrelID, Volume: decimal.NewFromInt(200)},
	}

	fmt.Printf("🍎 Allocating press run %s by sugar...\n", fixtures.HarvestPressRunID)
	result, err := svc.AllocatePressRun(ctx, allocation.Request{
		PressRunID:  fixtures.HarvestPressRunID,
		Assignments: assignments,
		Mode:        services.AllocationBySugar,
	})
	if err != nil {
		log.Fatalf("allocate: %v", err)
	}

	for _, b := range result.Batches {
		fmt.Printf("\n🛢  %s (%s L in %s)\n", b.Batch.Name, b.Batch.InitialVolume, b.Batch.VesselID)
		for _, row := range b.Compositions {
			fmt.Printf("  %-16s %8s L  %6s%%  $%s\n",
				row.VarietyName,
				row.JuiceVolume.StringFixed(3),
				row.FractionOfBatch.Mul(decimal.NewFromInt(100)).StringFixed(2),
				row.MaterialCost.StringFixed(2))
		}
	}
	fmt.Printf("\n💰 Material cost across batches: $%s\n", allocation.TotalMaterialCost(result).StringFixed(2))

	all, err := audit.ReadAllEvents(0)
	if err != nil {
		log.Fatalf("read audit trail: %v", err)
	}
	fmt.Printf("📜 Audit events recorded: %d\n", len(all))

	// A second run over the same press run is refused
	_, err = svc.AllocatePressRun(ctx, allocation.Request{
		PressRunID:  fixtures.HarvestPressRunID,
		Assignments: assignments,
		Mode:        services.AllocationBySugar,
	})
	fmt.Printf("🔁 Re-running: %v\n", err)

	fmt.Println("✅ Allocation complete!")
}
