package testing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/repositories"
	"github.com/vsinha/cidery/pkg/infrastructure/repositories/memory"
)

// Ids used by the orchard scenario
const (
	HarvestPressRunID = "PR-2026-001"
	LatePressRunID    = "PR-2026-002"
	MainTankID        = "tank-1"
	SmallTankID       = "tank-2"
	BarrelID          = "barrel-7"
)

// PressedAt is when the orchard scenario's press runs came off the press
var PressedAt = time.Date(2026, 9, 14, 18, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}

// BuildOrchardTestData builds a small harvest: three vessels, a 1000 L press
// run from two vendors and a 500 L press run whose only line has no sugar
// reading.
func BuildOrchardTestData() repositories.SeedData {
	vessels := []*entities.Vessel{
		{ID: MainTankID, Name: "Tank 1", Capacity: dec("1200")},
		{ID: SmallTankID, Name: "Tank 2", Capacity: dec("600")},
		{ID: BarrelID, Name: "Barrel 7", Capacity: dec("225")},
	}

	pressRuns := []*entities.PressRun{
		{ID: HarvestPressRunID, TotalJuiceVolume: dec("1000"), PressedAt: PressedAt},
		{ID: LatePressRunID, TotalJuiceVolume: dec("500"), PressedAt: PressedAt.Add(48 * time.Hour)},
	}

	lines := []*entities.PurchaseLine{
		{
			ID: "PL-101", PurchaseID: "PO-11", VendorID: "V-HILL", VendorName: "Hillside Orchard",
			VarietyID: "kingston-black", VarietyName: "Kingston Black", LotCode: ptr("HO-KB-26"),
			InputWeight: dec("700"), UnitCost: dec("2"), TotalCost: dec("1400"),
			MeasuredSugarPercent: ptr(dec("12.5")),
		},
		{
			ID: "PL-102", PurchaseID: "PO-12", VendorID: "V-BROOK", VendorName: "Brook Farm",
			VarietyID: "dabinett", VarietyName: "Dabinett",
			InputWeight: dec("300"), UnitCost: dec("2"), TotalCost: dec("600"),
			MeasuredSugarPercent: ptr(dec("11")),
		},
		{
			ID: "PL-201", PurchaseID: "PO-13", VendorID: "V-HILL", VendorName: "Hillside Orchard",
			VarietyID: "yarlington-mill", VarietyName: "Yarlington Mill",
			InputWeight: dec("800"), UnitCost: dec("1.5"), TotalCost: dec("1200"),
		},
	}

	pressLines := []entities.PressLine{
		{PressRunID: HarvestPressRunID, PurchaseLineID: "PL-101", Position: 0},
		{PressRunID: HarvestPressRunID, PurchaseLineID: "PL-102", Position: 1},
		{PressRunID: LatePressRunID, PurchaseLineID: "PL-201", Position: 0},
	}

	return repositories.SeedData{
		PressRuns:     pressRuns,
		Vessels:       vessels,
		PurchaseLines: lines,
		PressLines:    pressLines,
	}
}

// NewOrchardStore returns an in-memory store seeded with BuildOrchardTestData
func NewOrchardStore(ctx context.Context) (*memory.Store, error) {
	store := memory.NewStore()
	if err := store.Seed(ctx, BuildOrchardTestData()); err != nil {
		return nil, err
	}
	return store, nil
}
