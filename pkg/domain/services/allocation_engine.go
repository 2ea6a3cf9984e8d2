package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cidery/pkg/domain/entities"
)

// AllocationMode is the weighting policy used to split purchase-line
// contributions into fractions
type AllocationMode int

const (
	AllocationByWeight AllocationMode = iota
	AllocationBySugar
)

// String method for AllocationMode enum
func (m AllocationMode) String() string {
	switch m {
	case AllocationByWeight:
		return "weight"
	case AllocationBySugar:
		return "sugar"
	default:
		return "unknown"
	}
}

// ParseAllocationMode accepts weight/byWeight and sugar/bySugar, case-insensitive
func ParseAllocationMode(s string) (AllocationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weight", "byweight", "":
		return AllocationByWeight, nil
	case "sugar", "bysugar":
		return AllocationBySugar, nil
	default:
		return AllocationByWeight, entities.NewAllocationError(entities.Validation,
			fmt.Sprintf("invalid allocation mode: %s (expected: weight or sugar)", s),
			"mode", s)
	}
}

// LineFraction is one purchase line's share of the press run
type LineFraction struct {
	Line     *entities.PurchaseLine
	Fraction decimal.Decimal
	// SugarMass is set only under AllocationBySugar
	SugarMass *decimal.Decimal
}

// ComputeFractions normalizes the purchase lines into fractions that sum to 1.
// The result keeps the input order and is applied unchanged to every vessel
// assignment of an invocation.
func ComputeFractions(lines []*entities.PurchaseLine, mode AllocationMode) ([]LineFraction, error) {
	if len(lines) == 0 {
		return nil, entities.NewAllocationError(entities.Validation, "no purchase lines to allocate")
	}

	basis := make([]decimal.Decimal, len(lines))
	for i, line := range lines {
		switch mode {
		case AllocationByWeight:
			basis[i] = line.InputWeight
		case AllocationBySugar:
			basis[i] = line.SugarMass()
		default:
			return nil, entities.NewAllocationError(entities.Validation,
				fmt.Sprintf("unsupported allocation mode %d", int(mode)))
		}
		if basis[i].IsNegative() {
			return nil, entities.NewAllocationError(entities.Invariant,
				"negative allocation basis",
				"purchase_line_id", line.ID,
				"mode", mode.String(),
				"basis", basis[i].String())
		}
	}

	denominator := entities.SumDecimals(basis)
	if !denominator.IsPositive() {
		return nil, entities.NewAllocationError(entities.Invariant,
			fmt.Sprintf("allocation denominator must be positive under %s mode", mode),
			"mode", mode.String(),
			"denominator", denominator.String(),
			"lines", fmt.Sprintf("%d", len(lines)))
	}

	fractions := make([]LineFraction, len(lines))
	for i, line := range lines {
		lf := LineFraction{
			Line:     line,
			Fraction: basis[i].Div(denominator),
		}
		if mode == AllocationBySugar {
			mass := basis[i]
			lf.SugarMass = &mass
		}
		fractions[i] = lf
	}

	return fractions, nil
}
