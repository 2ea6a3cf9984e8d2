package csv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeSeedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, VesselsFile, `vessel_id,name,capacity
v1,Tank 1,1200
v2,Barrel 7,225
`)
	writeFile(t, dir, PressRunsFile, `press_run_id,total_juice_volume,pressed_at
pr-1,1000,2026-09-14
pr-2,450.5,2026-09-15T08:00:00Z
`)
	writeFile(t, dir, PurchaseLinesFile, `purchase_line_id,press_run_id,purchase_id,vendor_id,vendor_name,variety_id,variety_name,lot_code,input_weight,unit_cost,total_cost,measured_sugar_percent
L1,pr-1,P1,ven-1,Hillside Orchard,var-1,Dabinett,LOT-9,700,2,1400,12.5
L2,pr-1,P1,ven-2,Valley Farm,var-2,Yarlington Mill,,300,1.5,450,
L3,pr-2,P2,ven-1,Hillside Orchard,var-3,Kingston Black,,500,2,1000,11
L4,,P3,ven-1,Hillside Orchard,var-1,Dabinett,,100,2,200,
`)
	return dir
}

func TestLoader_LoadDirectory(t *testing.T) {
	data, err := NewLoader().LoadDirectory(writeSeedDir(t))
	require.NoError(t, err)

	require.Len(t, data.Vessels, 2)
	assert.Equal(t, "Barrel 7", data.Vessels[1].Name)
	assert.Equal(t, "225", data.Vessels[1].Capacity.String())

	require.Len(t, data.PressRuns, 2)
	assert.Equal(t, "450.5", data.PressRuns[1].TotalJuiceVolume.String())
	assert.Equal(t, 2026, data.PressRuns[0].PressedAt.Year())

	require.Len(t, data.PurchaseLines, 4)
	l1 := data.PurchaseLines[0]
	assert.Equal(t, "P1", l1.PurchaseID)
	assert.Equal(t, "Hillside Orchard", l1.VendorName)
	assert.Equal(t, "Dabinett", l1.VarietyName)
	require.NotNil(t, l1.LotCode)
	assert.Equal(t, "LOT-9", *l1.LotCode)
	require.NotNil(t, l1.MeasuredSugarPercent)
	assert.Equal(t, "12.5", l1.MeasuredSugarPercent.String())

	l2 := data.PurchaseLines[1]
	assert.Nil(t, l2.LotCode)
	assert.Nil(t, l2.MeasuredSugarPercent)

	// L4 is not linked to a press run
	require.Len(t, data.PressLines, 3)
	assert.Equal(t, "pr-1", data.PressLines[1].PressRunID)
	assert.Equal(t, "L2", data.PressLines[1].PurchaseLineID)
	assert.Equal(t, 1, data.PressLines[1].Position)
	assert.Equal(t, 0, data.PressLines[2].Position)
}

func TestLoader_Errors(t *testing.T) {
	testCases := []struct {
		name      string
		content   string
		expectErr string
	}{
		{
			name:      "header mismatch",
			content:   "id,name,capacity\nv1,Tank,10\n",
			expectErr: "vessels CSV header mismatch",
		},
		{
			name:      "header only",
			content:   "vessel_id,name,capacity\n",
			expectErr: "vessels CSV must have header and at least one data row",
		},
		{
			name:      "bad capacity",
			content:   "vessel_id,name,capacity\nv1,Tank,lots\n",
			expectErr: "vessels CSV row 2: invalid capacity: lots",
		},
		{
			name:      "zero capacity",
			content:   "vessel_id,name,capacity\nv1,Tank,10\nv2,Tank 2,0\n",
			expectErr: "vessels CSV row 3: vessel capacity must be positive, got 0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), VesselsFile, tc.content)
			_, err := NewLoader().LoadVessels(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectErr)
		})
	}
}

func TestLoader_BadPressedAt(t *testing.T) {
	path := writeFile(t, t.TempDir(), PressRunsFile, "press_run_id,total_juice_volume,pressed_at\npr-1,10,yesterday\n")
	_, err := NewLoader().LoadPressRuns(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pressed_at format")
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader().LoadDirectory(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open vessels file")
}
