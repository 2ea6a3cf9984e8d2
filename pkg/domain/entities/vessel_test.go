package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVessel_Code(t *testing.T) {
	testCases := []struct {
		id, name, expected string
	}{
		{"v1", "Tank 1", "TANK-1"},
		{"v2", "  barrel   7 ", "BARREL-7"},
		{"v3", "", "V3"},
		{"ibc-04", "   ", "IBC-04"},
	}

	for _, tc := range testCases {
		v, err := NewVessel(tc.id, tc.name, decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.Equal(t, tc.expected, v.Code(), "name %q", tc.name)
	}
}

func TestEntityValidation(t *testing.T) {
	testCases := []struct {
		name        string
		build       func() error
		expectError string
	}{
		{"empty vessel id", func() error {
			_, err := NewVessel("", "Tank", decimal.NewFromInt(1))
			return err
		}, "vessel id cannot be empty"},
		{"zero capacity", func() error {
			_, err := NewVessel("v1", "Tank", decimal.Zero)
			return err
		}, "vessel capacity must be positive, got 0"},
		{"empty press run id", func() error {
			_, err := NewPressRun("", decimal.NewFromInt(1), time.Now())
			return err
		}, "press run id cannot be empty"},
		{"negative press volume", func() error {
			_, err := NewPressRun("pr-1", decimal.NewFromInt(-1), time.Now())
			return err
		}, "total juice volume cannot be negative, got -1"},
		{"negative weight", func() error {
			_, err := NewPurchaseLine("L1", "ven", "var", "Dabinett", decimal.NewFromInt(-5), decimal.Zero, decimal.Zero)
			return err
		}, "input weight cannot be negative, got -5"},
		{"missing variety", func() error {
			_, err := NewPurchaseLine("L1", "ven", "", "Dabinett", decimal.NewFromInt(5), decimal.Zero, decimal.Zero)
			return err
		}, "variety id cannot be empty"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.EqualError(t, tc.build(), tc.expectError)
		})
	}
}

func TestPurchaseLine_SugarMass(t *testing.T) {
	line, err := NewPurchaseLine("L1", "ven", "var", "Dabinett", decimal.NewFromInt(700), decimal.NewFromInt(2), decimal.NewFromInt(1400))
	require.NoError(t, err)
	assert.True(t, line.SugarMass().IsZero(), "sugar mass without a measurement: %s", line.SugarMass())

	sugar := decimal.RequireFromString("12.5")
	line.MeasuredSugarPercent = &sugar
	assert.True(t, line.SugarMass().Equal(decimal.RequireFromString("87.5")), "sugar mass %s", line.SugarMass())
}
