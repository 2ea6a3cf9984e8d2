package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cidery/pkg/application/dto"
	"github.com/vsinha/cidery/pkg/domain/entities"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	Elapsed   time.Duration
}

// Generate writes result in the configured format. With an OutputDir the
// json and csv formats are written to files there instead of w.
func Generate(w io.Writer, result *dto.AllocationResult, config Config) error {
	switch config.Format {
	case "text", "":
		return generateTextOutput(w, result, config)
	case "json":
		return generateJSONOutput(w, result, config)
	case "csv":
		return generateCSVOutput(w, result, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

func generateTextOutput(w io.Writer, result *dto.AllocationResult, config Config) error {
	title := "📊 Press Run Allocation"
	if result.DryRun {
		title += " (dry run, nothing saved)"
	}
	fmt.Fprintf(w, "%s\n", title)
	fmt.Fprintf(w, "======================\n\n")

	fmt.Fprintf(w, "Press Run: %s\n", result.PressRunID)
	if result.Mode != "" {
		fmt.Fprintf(w, "Mode: %s\n", result.Mode)
	}
	fmt.Fprintf(w, "Batches: %d\n", len(result.Batches))
	if config.Verbose && config.Elapsed > 0 {
		fmt.Fprintf(w, "Elapsed: %v\n", config.Elapsed)
	}
	fmt.Fprintln(w)

	for _, b := range result.Batches {
		batch := b.Batch
		fmt.Fprintf(w, "🛢  %s\n", batch.Name)
		fmt.Fprintf(w, "  ID: %s  Vessel: %s  Volume: %s  Status: %s  Started: %s\n",
			batch.ID,
			batch.VesselID,
			batch.InitialVolume.String(),
			batch.Status,
			batch.StartDate.Format("2006-01-02"))

		fmt.Fprintf(w, "  %-14s %-18s %-10s %-12s %-10s %-12s %-8s\n",
			"Purchase Line", "Variety", "Fraction", "Juice", "Weight", "Cost", "Sugar %")
		fmt.Fprintf(w, "  %-14s %-18s %-10s %-12s %-10s %-12s %-8s\n",
			"--------------", "------------------", "----------", "------------", "----------", "------------", "--------")

		totalCost := decimal.Zero
		for _, row := range b.Compositions {
			totalCost = totalCost.Add(row.MaterialCost)
			fmt.Fprintf(w, "  %-14s %-18s %-10s %-12s %-10s %-12s %-8s\n",
				row.PurchaseLineID,
				row.VarietyName,
				row.FractionOfBatch.StringFixed(4),
				row.JuiceVolume.StringFixed(3),
				row.InputWeight.String(),
				row.MaterialCost.StringFixed(2),
				optional(row.AvgSugarPercent, 2))
		}
		fmt.Fprintf(w, "  Material cost: %s\n", totalCost.StringFixed(2))
		if !b.CostDivergence.IsZero() && config.Verbose {
			fmt.Fprintf(w, "  ⚠️  Differs from press run purchase cost by %s\n", b.CostDivergence.StringFixed(2))
		}
		fmt.Fprintln(w)
	}

	return nil
}

type resultJSON struct {
	PressRunID      string      `json:"press_run_id"`
	Mode            string      `json:"mode,omitempty"`
	DryRun          bool        `json:"dry_run"`
	CreatedBatchIDs []string    `json:"created_batch_ids"`
	Batches         []batchJSON `json:"batches"`
}

type batchJSON struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	BatchNumber      string            `json:"batch_number"`
	VesselID         string            `json:"vessel_id"`
	InitialVolume    decimal.Decimal   `json:"initial_volume"`
	CurrentVolume    decimal.Decimal   `json:"current_volume"`
	Status           string            `json:"status"`
	StartDate        time.Time         `json:"start_date"`
	OriginPressRunID string            `json:"origin_press_run_id"`
	CostDivergence   decimal.Decimal   `json:"cost_divergence"`
	Compositions     []compositionJSON `json:"compositions"`
}

type compositionJSON struct {
	ID                 string           `json:"id"`
	PurchaseLineID     string           `json:"purchase_line_id"`
	VendorID           string           `json:"vendor_id"`
	VarietyID          string           `json:"variety_id"`
	VarietyName        string           `json:"variety_name,omitempty"`
	LotCode            *string          `json:"lot_code,omitempty"`
	InputWeight        decimal.Decimal  `json:"input_weight"`
	JuiceVolume        decimal.Decimal  `json:"juice_volume"`
	FractionOfBatch    decimal.Decimal  `json:"fraction_of_batch"`
	MaterialCost       decimal.Decimal  `json:"material_cost"`
	AvgSugarPercent    *decimal.Decimal `json:"avg_sugar_percent,omitempty"`
	EstimatedSugarMass *decimal.Decimal `json:"estimated_sugar_mass,omitempty"`
}

func toJSON(result *dto.AllocationResult) resultJSON {
	out := resultJSON{
		PressRunID:      result.PressRunID,
		Mode:            result.Mode,
		DryRun:          result.DryRun,
		CreatedBatchIDs: result.CreatedBatchIDs,
		Batches:         make([]batchJSON, 0, len(result.Batches)),
	}
	if out.CreatedBatchIDs == nil {
		out.CreatedBatchIDs = []string{}
	}
	for _, b := range result.Batches {
		bj := batchJSON{
			ID:               b.Batch.ID,
			Name:             b.Batch.Name,
			BatchNumber:      b.Batch.BatchNumber,
			VesselID:         b.Batch.VesselID,
			InitialVolume:    b.Batch.InitialVolume,
			CurrentVolume:    b.Batch.CurrentVolume,
			Status:           b.Batch.Status.String(),
			StartDate:        b.Batch.StartDate,
			OriginPressRunID: b.Batch.OriginPressRunID,
			CostDivergence:   b.CostDivergence,
			Compositions:     make([]compositionJSON, 0, len(b.Compositions)),
		}
		for _, row := range b.Compositions {
			bj.Compositions = append(bj.Compositions, compositionJSON{
				ID:                 row.ID,
				PurchaseLineID:     row.PurchaseLineID,
				VendorID:           row.VendorID,
				VarietyID:          row.VarietyID,
				VarietyName:        row.VarietyName,
				LotCode:            row.LotCode,
				InputWeight:        row.InputWeight,
				JuiceVolume:        row.JuiceVolume,
				FractionOfBatch:    row.FractionOfBatch,
				MaterialCost:       row.MaterialCost,
				AvgSugarPercent:    row.AvgSugarPercent,
				EstimatedSugarMass: row.EstimatedSugarMass,
			})
		}
		out.Batches = append(out.Batches, bj)
	}
	return out
}

func generateJSONOutput(w io.Writer, result *dto.AllocationResult, config Config) error {
	jsonData, err := json.MarshalIndent(toJSON(result), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		_, err = fmt.Fprintln(w, string(jsonData))
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := filepath.Join(config.OutputDir, result.PressRunID+"_allocation.json")
	if err := os.WriteFile(filename, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(w, "💾 JSON results saved to: %s\n", filename)
	}
	return nil
}

// CompositionHeader is the column layout of the csv format, one row per
// composition
var CompositionHeader = []string{
	"batch_id", "batch_name", "vessel_id", "origin_press_run_id",
	"composition_id", "purchase_line_id", "vendor_id", "variety_id", "variety_name", "lot_code",
	"input_weight", "juice_volume", "fraction_of_batch", "material_cost",
	"avg_sugar_percent", "estimated_sugar_mass",
}

func generateCSVOutput(w io.Writer, result *dto.AllocationResult, config Config) error {
	if config.OutputDir == "" {
		return writeCompositionsCSV(w, result)
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := filepath.Join(config.OutputDir, result.PressRunID+"_compositions.csv")
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	if err := writeCompositionsCSV(file, result); err != nil {
		return fmt.Errorf("failed to write compositions CSV: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(w, "💾 CSV results saved to: %s\n", filename)
	}
	return nil
}

func writeCompositionsCSV(w io.Writer, result *dto.AllocationResult) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CompositionHeader); err != nil {
		return err
	}

	for _, b := range result.Batches {
		for _, row := range b.Compositions {
			record := []string{
				b.Batch.ID,
				b.Batch.Name,
				b.Batch.VesselID,
				b.Batch.OriginPressRunID,
				row.ID,
				row.PurchaseLineID,
				row.VendorID,
				row.VarietyID,
				row.VarietyName,
				stringValue(row.LotCode),
				row.InputWeight.String(),
				row.JuiceVolume.String(),
				row.FractionOfBatch.String(),
				row.MaterialCost.String(),
				optional(row.AvgSugarPercent, -1),
				optional(row.EstimatedSugarMass, -1),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// optional formats d with places decimals, or exactly when places < 0
func optional(d *decimal.Decimal, places int32) string {
	if d == nil {
		return ""
	}
	if places < 0 {
		return d.String()
	}
	return d.StringFixed(places)
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FromStored assembles a result from batches read back from a store
func FromStored(pressRunID string, batches []*entities.Batch, rows map[string][]*entities.BatchComposition) *dto.AllocationResult {
	result := &dto.AllocationResult{
		PressRunID:      pressRunID,
		CreatedBatchIDs: make([]string, 0, len(batches)),
		Batches:         make([]dto.BatchAllocation, 0, len(batches)),
	}
	for _, b := range batches {
		stored := rows[b.ID]
		comps := make([]entities.BatchComposition, len(stored))
		for i, row := range stored {
			comps[i] = *row
		}
		result.CreatedBatchIDs = append(result.CreatedBatchIDs, b.ID)
		result.Batches = append(result.Batches, dto.BatchAllocation{
			Batch:        *b,
			Compositions: comps,
		})
	}
	return result
}
