package repositories

import (
	"context"

	"github.com/vsinha/cidery/pkg/domain/entities"
)

// SeedData is the upstream data a store needs before press runs can be
// allocated: press runs, vessels, purchase lines and the press lines linking them.
type SeedData struct {
	PressRuns     []*entities.PressRun
	Vessels       []*entities.Vessel
	PurchaseLines []*entities.PurchaseLine
	PressLines    []entities.PressLine
}

// Seeder loads upstream records into a store
type Seeder interface {
	Seed(ctx context.Context, data SeedData) error
}
