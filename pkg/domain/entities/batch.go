package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus represents the lifecycle status of a batch
type BatchStatus int

const (
	BatchActive BatchStatus = iota
	BatchCompleted
	BatchCancelled
)

// String method for BatchStatus enum
func (s BatchStatus) String() string {
	switch s {
	case BatchActive:
		return "active"
	case BatchCompleted:
		return "completed"
	case BatchCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name
func (s BatchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseBatchStatus converts a stored status string back to a BatchStatus
func ParseBatchStatus(s string) (BatchStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return BatchActive, nil
	case "completed":
		return BatchCompleted, nil
	case "cancelled":
		return BatchCancelled, nil
	default:
		return BatchActive, fmt.Errorf("invalid batch status: %s (expected: active, completed, or cancelled)", s)
	}
}

// Batch is a tracked quantity of juice occupying one vessel, created from one
// assignment of a press run.
type Batch struct {
	ID               string
	VesselID         string
	Name             string
	BatchNumber      string
	InitialVolume    decimal.Decimal
	CurrentVolume    decimal.Decimal
	Status           BatchStatus
	StartDate        time.Time
	OriginPressRunID string
}

// BatchComposition records how much of a batch's juice and cost trace back to
// one purchase line. Rows are historical and never updated.
type BatchComposition struct {
	ID                 string
	BatchID            string
	PurchaseLineID     string
	VendorID           string
	VarietyID          string
	VarietyName        string
	LotCode            *string
	InputWeight        decimal.Decimal
	JuiceVolume        decimal.Decimal
	FractionOfBatch    decimal.Decimal
	MaterialCost       decimal.Decimal
	AvgSugarPercent    *decimal.Decimal
	EstimatedSugarMass *decimal.Decimal
}

// CompositionTotals holds the sums the conservation checks compare
type CompositionTotals struct {
	Fraction     decimal.Decimal
	JuiceVolume  decimal.Decimal
	MaterialCost decimal.Decimal
}

// SumCompositions totals fraction, volume and cost over a set of rows
func SumCompositions(rows []*BatchComposition) CompositionTotals {
	totals := CompositionTotals{
		Fraction:     decimal.Zero,
		JuiceVolume:  decimal.Zero,
		MaterialCost: decimal.Zero,
	}
	for _, row := range rows {
		totals.Fraction = totals.Fraction.Add(row.FractionOfBatch)
		totals.JuiceVolume = totals.JuiceVolume.Add(row.JuiceVolume)
		totals.MaterialCost = totals.MaterialCost.Add(row.MaterialCost)
	}
	return totals
}
