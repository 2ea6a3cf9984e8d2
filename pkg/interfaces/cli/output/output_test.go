package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/cidery/pkg/application/dto"
	"github.com/vsinha/cidery/pkg/domain/entities"
)

func sampleResult() *dto.AllocationResult {
	lot := "LOT-7"
	sugar := decimal.RequireFromString("12.5")
	mass := decimal.RequireFromString("35")
	start := time.Date(2026, 9, 15, 14, 30, 0, 0, time.UTC)

	batch := entities.Batch{
		ID:               "b-1",
		VesselID:         "tank-1",
		Name:             "2026-09-15_TANK-1_KIBL_A",
		BatchNumber:      "2026-09-15_TANK-1_KIBL_A",
		InitialVolume:    decimal.NewFromInt(400),
		CurrentVolume:    decimal.NewFromInt(400),
		Status:           entities.BatchActive,
		StartDate:        start,
		OriginPressRunID: "pr-1",
	}
	rows := []entities.BatchComposition{
		{
			ID: "c-1", BatchID: "b-1", PurchaseLineID: "L1", VendorID: "v-1",
			VarietyID: "kingston-black", VarietyName: "Kingston Black", LotCode: &lot,
			InputWeight: decimal.NewFromInt(700), JuiceVolume: decimal.NewFromInt(280),
			FractionOfBatch: decimal.RequireFromString("0.7"), MaterialCost: decimal.NewFromInt(1400),
			AvgSugarPercent: &sugar, EstimatedSugarMass: &mass,
		},
		{
			ID: "c-2", BatchID: "b-1", PurchaseLineID: "L2", VendorID: "v-2",
			VarietyID: "dabinett", VarietyName: "Dabinett",
			InputWeight: decimal.NewFromInt(300), JuiceVolume: decimal.NewFromInt(120),
			FractionOfBatch: decimal.RequireFromString("0.3"), MaterialCost: decimal.NewFromInt(600),
		},
	}
	return &dto.AllocationResult{
		PressRunID:      "pr-1",
		Mode:            "byWeight",
		CreatedBatchIDs: []string{"b-1"},
		Batches: []dto.BatchAllocation{{
			Batch:          batch,
			Compositions:   rows,
			CostDivergence: decimal.NewFromInt(-5),
		}},
	}
}

func TestGenerateText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, sampleResult(), Config{Format: "text", Verbose: true}))

	out := buf.String()
	assert.Contains(t, out, "Press Run: pr-1")
	assert.Contains(t, out, "Mode: byWeight")
	assert.Contains(t, out, "Batches: 1")
	assert.Contains(t, out, "2026-09-15_TANK-1_KIBL_A")
	assert.Contains(t, out, "Kingston Black")
	assert.Contains(t, out, "0.7000")
	assert.Contains(t, out, "Material cost: 2000.00")
	assert.Contains(t, out, "-5.00")
	assert.NotContains(t, out, "dry run")
}

func TestGenerateTextDryRun(t *testing.T) {
	result := sampleResult()
	result.DryRun = true

	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, result, Config{}))
	assert.Contains(t, buf.String(), "(dry run, nothing saved)")
	assert.NotContains(t, buf.String(), "Differs from press run purchase cost")
}

func TestGenerateJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, sampleResult(), Config{Format: "json"}))

	var got struct {
		PressRunID      string   `json:"press_run_id"`
		DryRun          bool     `json:"dry_run"`
		CreatedBatchIDs []string `json:"created_batch_ids"`
		Batches         []struct {
			Name          string `json:"name"`
			Status        string `json:"status"`
			InitialVolume string `json:"initial_volume"`
			Compositions  []struct {
				PurchaseLineID  string  `json:"purchase_line_id"`
				FractionOfBatch string  `json:"fraction_of_batch"`
				LotCode         *string `json:"lot_code"`
				AvgSugarPercent *string `json:"avg_sugar_percent"`
			} `json:"compositions"`
		} `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "pr-1", got.PressRunID)
	assert.False(t, got.DryRun)
	assert.Equal(t, []string{"b-1"}, got.CreatedBatchIDs)
	require.Len(t, got.Batches, 1)
	assert.Equal(t, "active", got.Batches[0].Status)
	assert.Equal(t, "400", got.Batches[0].InitialVolume)
	require.Len(t, got.Batches[0].Compositions, 2)
	assert.Equal(t, "0.7", got.Batches[0].Compositions[0].FractionOfBatch)
	require.NotNil(t, got.Batches[0].Compositions[0].LotCode)
	assert.Equal(t, "LOT-7", *got.Batches[0].Compositions[0].LotCode)
	assert.Nil(t, got.Batches[0].Compositions[1].AvgSugarPercent)
}

func TestGenerateJSONEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, &dto.AllocationResult{PressRunID: "pr-9"}, Config{Format: "json"}))
	assert.Contains(t, buf.String(), `"created_batch_ids": []`)
	assert.Contains(t, buf.String(), `"batches": []`)
}

func TestGenerateCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Generate(&buf, sampleResult(), Config{Format: "csv"}))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, CompositionHeader, records[0])
	assert.Equal(t, "LOT-7", records[1][9])
	assert.Equal(t, "12.5", records[1][14])
	assert.Equal(t, "", records[2][9])
	assert.Equal(t, "", records[2][15])
	assert.Equal(t, "0.3", records[2][12])
}

func TestGenerateToOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	var buf bytes.Buffer

	require.NoError(t, Generate(&buf, sampleResult(), Config{Format: "json", OutputDir: dir, Verbose: true}))
	require.NoError(t, Generate(&buf, sampleResult(), Config{Format: "csv", OutputDir: dir, Verbose: true}))

	jsonData, err := os.ReadFile(filepath.Join(dir, "pr-1_allocation.json"))
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"press_run_id": "pr-1"`)

	csvData, err := os.ReadFile(filepath.Join(dir, "pr-1_compositions.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csvData), "batch_id,batch_name"))

	assert.Contains(t, buf.String(), "JSON results saved to")
	assert.Contains(t, buf.String(), "CSV results saved to")
}

func TestGenerateUnsupportedFormat(t *testing.T) {
	err := Generate(&bytes.Buffer{}, sampleResult(), Config{Format: "xml"})
	assert.ErrorContains(t, err, "unsupported output format: xml")
}

func TestFromStored(t *testing.T) {
	src := sampleResult().Batches[0]
	batch := src.Batch
	rows := map[string][]*entities.BatchComposition{
		"b-1": {&src.Compositions[0], &src.Compositions[1]},
	}

	result := FromStored("pr-1", []*entities.Batch{&batch}, rows)
	assert.Equal(t, "pr-1", result.PressRunID)
	assert.Equal(t, []string{"b-1"}, result.CreatedBatchIDs)
	require.Len(t, result.Batches, 1)
	assert.Len(t, result.Batches[0].Compositions, 2)
	assert.True(t, result.Batches[0].CostDivergence.IsZero())

	empty := FromStored("pr-2", nil, nil)
	assert.Empty(t, empty.Batches)
}
