package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PurchaseLine is one purchased lot of fruit consumed by a press run, joined
// with its purchase, vendor and variety.
type PurchaseLine struct {
	ID                   string
	PurchaseID           string
	VendorID             string
	VendorName           string
	VarietyID            string
	VarietyName          string
	LotCode              *string
	InputWeight          decimal.Decimal
	UnitCost             decimal.Decimal
	TotalCost            decimal.Decimal
	MeasuredSugarPercent *decimal.Decimal
}

// NewPurchaseLine creates a validated PurchaseLine
func NewPurchaseLine(id, vendorID, varietyID, varietyName string, inputWeight, unitCost, totalCost decimal.Decimal) (*PurchaseLine, error) {
	if id == "" {
		return nil, fmt.Errorf("purchase line id cannot be empty")
	}
	if vendorID == "" {
		return nil, fmt.Errorf("vendor id cannot be empty")
	}
	if varietyID == "" {
		return nil, fmt.Errorf("variety id cannot be empty")
	}
	if inputWeight.IsNegative() {
		return nil, fmt.Errorf("input weight cannot be negative, got %s", inputWeight)
	}
	if totalCost.IsNegative() {
		return nil, fmt.Errorf("total cost cannot be negative, got %s", totalCost)
	}

	return &PurchaseLine{
		ID:          id,
		VendorID:    vendorID,
		VarietyID:   varietyID,
		VarietyName: varietyName,
		InputWeight: inputWeight,
		UnitCost:    unitCost,
		TotalCost:   totalCost,
	}, nil
}

// SugarMass returns inputWeight * sugar% / 100, treating a missing
// measurement as zero.
func (l *PurchaseLine) SugarMass() decimal.Decimal {
	if l.MeasuredSugarPercent == nil {
		return decimal.Zero
	}
	return PercentOf(l.InputWeight, *l.MeasuredSugarPercent)
}
