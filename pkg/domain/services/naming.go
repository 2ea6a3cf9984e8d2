package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cidery/pkg/domain/entities"
)

const (
	// UnknownVarietyCode is used when a variety name yields no code
	UnknownVarietyCode = "UNKN"
	// BlendCode replaces the variety code when no variety dominates
	BlendCode = "BLEND"
	// DefaultSequence is the sequence suffix of the first batch of a vessel
	DefaultSequence = "A"
	// BatchDateLayout is the date component of a batch name
	BatchDateLayout = "2006-01-02"
)

// DominanceThreshold is the minimum fraction a single variety must reach to
// name a batch instead of BLEND.
var DominanceThreshold = decimal.RequireFromString("0.6")

// PrimaryVariety identifies the variety that names a batch
type PrimaryVariety struct {
	VarietyID string
	Name      string
}

// SelectPrimaryVariety applies the dominance rule to a batch's composition.
// A single row always names the batch. Otherwise the row with the largest
// fraction names it only if that fraction reaches DominanceThreshold; rows are
// compared one by one and ties keep the earlier row. ok is false when the
// batch is a blend.
func SelectPrimaryVariety(compositions []*entities.BatchComposition) (PrimaryVariety, bool) {
	if len(compositions) == 0 {
		return PrimaryVariety{}, false
	}
	if len(compositions) == 1 {
		c := compositions[0]
		return PrimaryVariety{VarietyID: c.VarietyID, Name: c.VarietyName}, true
	}

	best := compositions[0]
	for _, c := range compositions[1:] {
		if c.FractionOfBatch.GreaterThan(best.FractionOfBatch) {
			best = c
		}
	}

	if best.FractionOfBatch.LessThan(DominanceThreshold) {
		return PrimaryVariety{}, false
	}
	return PrimaryVariety{VarietyID: best.VarietyID, Name: best.VarietyName}, true
}

// GenerateVarietyCode derives a short code from a variety name:
// 1 word -> first 4 letters, 2 words -> 2+2, 3 words -> 1+1+2,
// 4 or more words -> first letter of the first 4 words.
func GenerateVarietyCode(name string) string {
	words := strings.Fields(strings.ToUpper(strings.TrimSpace(name)))

	var code string
	switch len(words) {
	case 0:
		return UnknownVarietyCode
	case 1:
		code = prefix(words[0], 4)
	case 2:
		code = prefix(words[0], 2) + prefix(words[1], 2)
	case 3:
		code = prefix(words[0], 1) + prefix(words[1], 1) + prefix(words[2], 2)
	default:
		for _, w := range words[:4] {
			code += prefix(w, 1)
		}
	}

	if code == "" {
		return UnknownVarietyCode
	}
	return code
}

// GenerateBatchName formats {date}_{vesselCode}_{varietyCode|BLEND}_{sequence}.
// primary is nil for a blend. It has no hidden inputs: identical arguments
// always give the identical name.
func GenerateBatchName(date time.Time, vesselCode string, primary *PrimaryVariety, sequence string) string {
	varietyCode := BlendCode
	if primary != nil {
		varietyCode = GenerateVarietyCode(primary.Name)
	}
	if sequence == "" {
		sequence = DefaultSequence
	}
	return strings.Join([]string{date.Format(BatchDateLayout), vesselCode, varietyCode, sequence}, "_")
}

// SequenceLabel returns the n-th (0-based) sequence suffix: A..Z, then AA, AB...
func SequenceLabel(n int) string {
	if n < 0 {
		n = 0
	}
	label := ""
	for {
		label = string(rune('A'+n%26)) + label
		n = n/26 - 1
		if n < 0 {
			return label
		}
	}
}

func prefix(word string, n int) string {
	runes := []rune(word)
	if len(runes) < n {
		return string(runes)
	}
	return string(runes[:n])
}
