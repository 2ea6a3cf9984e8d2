package entities

import "github.com/shopspring/decimal"

// Assignment directs a portion of a press run's juice to one vessel. It is
// caller input and never persisted on its own.
type Assignment struct {
	ToVesselID string
	Volume     decimal.Decimal
}

// TotalAssigned sums the volumes of all assignments
func TotalAssigned(assignments []Assignment) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assignments {
		total = total.Add(a.Volume)
	}
	return total
}
