package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PressRun is one completed pressing event with a known juice yield
type PressRun struct {
	ID               string
	TotalJuiceVolume decimal.Decimal
	PressedAt        time.Time
}

// NewPressRun creates a validated PressRun
func NewPressRun(id string, totalJuiceVolume decimal.Decimal, pressedAt time.Time) (*PressRun, error) {
	if id == "" {
		return nil, fmt.Errorf("press run id cannot be empty")
	}
	if totalJuiceVolume.IsNegative() {
		return nil, fmt.Errorf("total juice volume cannot be negative, got %s", totalJuiceVolume)
	}

	return &PressRun{
		ID:               id,
		TotalJuiceVolume: totalJuiceVolume,
		PressedAt:        pressedAt,
	}, nil
}

// PressRunAllocation marks a press run as processed into batches. A store
// keeps at most one per press run.
type PressRunAllocation struct {
	PressRunID  string
	AllocatedAt time.Time
	BatchCount  int
}

// PressLine links a purchase line to the press run that consumed it.
// Position keeps the order lines were loaded onto the press.
type PressLine struct {
	PressRunID     string
	PurchaseLineID string
	Position       int
}
