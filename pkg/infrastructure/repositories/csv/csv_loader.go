package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cidery/pkg/domain/entities"
	"github.com/vsinha/cidery/pkg/domain/repositories"
)

// File names read by LoadDirectory
const (
	VesselsFile       = "vessels.csv"
	PressRunsFile     = "press_runs.csv"
	PurchaseLinesFile = "purchase_lines.csv"
)

var (
	vesselsHeader   = []string{"vessel_id", "name", "capacity"}
	pressRunsHeader = []string{"press_run_id", "total_juice_volume", "pressed_at"}
	linesHeader     = []string{
		"purchase_line_id", "press_run_id", "purchase_id", "vendor_id", "vendor_name",
		"variety_id", "variety_name", "lot_code", "input_weight", "unit_cost",
		"total_cost", "measured_sugar_percent",
	}
)

// Loader handles loading seed data from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadDirectory reads vessels.csv, press_runs.csv and purchase_lines.csv
// from dir. Purchase lines are linked to their press run in file order.
func (l *Loader) LoadDirectory(dir string) (repositories.SeedData, error) {
	var data repositories.SeedData

	vessels, err := l.LoadVessels(filepath.Join(dir, VesselsFile))
	if err != nil {
		return data, err
	}
	pressRuns, err := l.LoadPressRuns(filepath.Join(dir, PressRunsFile))
	if err != nil {
		return data, err
	}
	lines, pressLines, err := l.LoadPurchaseLines(filepath.Join(dir, PurchaseLinesFile))
	if err != nil {
		return data, err
	}

	data.Vessels = vessels
	data.PressRuns = pressRuns
	data.PurchaseLines = lines
	data.PressLines = pressLines
	return data, nil
}

// LoadVessels loads vessels from a CSV file
func (l *Loader) LoadVessels(filename string) ([]*entities.Vessel, error) {
	records, err := readRecords(filename, "vessels", vesselsHeader)
	if err != nil {
		return nil, err
	}

	vessels := make([]*entities.Vessel, 0, len(records))
	for i, record := range records {
		capacity, err := parseDecimal("capacity", record[2])
		if err != nil {
			return nil, fmt.Errorf("vessels CSV row %d: %w", i+2, err)
		}
		vessel, err := entities.NewVessel(record[0], record[1], capacity)
		if err != nil {
			return nil, fmt.Errorf("vessels CSV row %d: %w", i+2, err)
		}
		vessels = append(vessels, vessel)
	}

	return vessels, nil
}

// LoadPressRuns loads press runs from a CSV file
func (l *Loader) LoadPressRuns(filename string) ([]*entities.PressRun, error) {
	records, err := readRecords(filename, "press runs", pressRunsHeader)
	if err != nil {
		return nil, err
	}

	pressRuns := make([]*entities.PressRun, 0, len(records))
	for i, record := range records {
		volume, err := parseDecimal("total_juice_volume", record[1])
		if err != nil {
			return nil, fmt.Errorf("press runs CSV row %d: %w", i+2, err)
		}
		pressedAt, err := parseTime(record[2])
		if err != nil {
			return nil, fmt.Errorf("press runs CSV row %d: %w", i+2, err)
		}
		pressRun, err := entities.NewPressRun(record[0], volume, pressedAt)
		if err != nil {
			return nil, fmt.Errorf("press runs CSV row %d: %w", i+2, err)
		}
		pressRuns = append(pressRuns, pressRun)
	}

	return pressRuns, nil
}

// LoadPurchaseLines loads purchase lines and the press lines linking each to
// its press run
func (l *Loader) LoadPurchaseLines(filename string) ([]*entities.PurchaseLine, []entities.PressLine, error) {
	records, err := readRecords(filename, "purchase lines", linesHeader)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]*entities.PurchaseLine, 0, len(records))
	pressLines := make([]entities.PressLine, 0, len(records))
	positions := make(map[string]int)

	for i, record := range records {
		line, err := parsePurchaseLine(record)
		if err != nil {
			return nil, nil, fmt.Errorf("purchase lines CSV row %d: %w", i+2, err)
		}
		lines = append(lines, line)

		pressRunID := strings.TrimSpace(record[1])
		if pressRunID == "" {
			continue
		}
		pressLines = append(pressLines, entities.PressLine{
			PressRunID:     pressRunID,
			PurchaseLineID: line.ID,
			Position:       positions[pressRunID],
		})
		positions[pressRunID]++
	}

	return lines, pressLines, nil
}

func readRecords(filename, kind string, expectedHeader []string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", kind, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%s CSV must have header and at least one data row", kind)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", kind, expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", kind, i+2, len(expectedHeader), len(record))
		}
	}

	return records[1:], nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parsePurchaseLine(record []string) (*entities.PurchaseLine, error) {
	inputWeight, err := parseDecimal("input_weight", record[8])
	if err != nil {
		return nil, err
	}
	unitCost, err := parseDecimal("unit_cost", record[9])
	if err != nil {
		return nil, err
	}
	totalCost, err := parseDecimal("total_cost", record[10])
	if err != nil {
		return nil, err
	}

	line, err := entities.NewPurchaseLine(record[0], record[3], record[5], record[6], inputWeight, unitCost, totalCost)
	if err != nil {
		return nil, err
	}
	line.PurchaseID = record[2]
	line.VendorName = record[4]

	if lot := strings.TrimSpace(record[7]); lot != "" {
		line.LotCode = &lot
	}
	if sugar := strings.TrimSpace(record[11]); sugar != "" {
		pct, err := parseDecimal("measured_sugar_percent", sugar)
		if err != nil {
			return nil, err
		}
		line.MeasuredSugarPercent = &pct
	}

	return line, nil
}

func parseDecimal(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %s", column, s)
	}
	return d, nil
}

// parseTime accepts RFC3339 timestamps or plain dates
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid pressed_at format: %s (expected YYYY-MM-DD or RFC3339)", s)
	}
	return t, nil
}
