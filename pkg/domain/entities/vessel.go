package entities

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Vessel is a physical container with finite capacity
type Vessel struct {
	ID       string
	Name     string
	Capacity decimal.Decimal
}

// NewVessel creates a validated Vessel
func NewVessel(id, name string, capacity decimal.Decimal) (*Vessel, error) {
	if id == "" {
		return nil, fmt.Errorf("vessel id cannot be empty")
	}
	if !capacity.IsPositive() {
		return nil, fmt.Errorf("vessel capacity must be positive, got %s", capacity)
	}

	return &Vessel{
		ID:       id,
		Name:     name,
		Capacity: capacity,
	}, nil
}

// Code returns the display code used in batch names. Falls back to the id
// when the vessel has no name.
func (v *Vessel) Code() string {
	name := v.Name
	if strings.TrimSpace(name) == "" {
		name = v.ID
	}
	return strings.Join(strings.Fields(strings.ToUpper(name)), "-")
}
