package invoice

import (
	"github.com/shopspring/decimal"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

// minConfidence is the floor below which a result is discarded
const minConfidence = 30

// amountCeiling caps plausible invoice amounts during validation
const amountCeiling = 1_000_000

// maxNameLen truncates extracted name fields during validation
const maxNameLen = 200

// Score computes the overall extraction confidence.
//
// Point budget:
//   - invoice number present:  +15
//   - invoice date present:    +15
//   - client name present:     +15
//   - total TTC present:       +20
//   - line items present:      +15
//   - supplier name present:   +10
//   - HT + TVA = TTC within 1: +10
//   - source text < 200 chars: -10
//
// Clamped to [0, 100].
func Score(data *models.InvoiceData, text string) int {
	score := 0

	if data.InvoiceNumber != "" {
		score += 15
	}
	if data.InvoiceDate != "" {
		score += 15
	}
	if data.Client != nil && data.Client.Name != "" {
		score += 15
	}
	if data.TotalTTC != nil {
		score += 20
	}
	if len(data.LineItems) > 0 {
		score += 15
	}
	if data.Supplier != nil && data.Supplier.Name != "" {
		score += 10
	}
	if AmountsConsistent(data) {
		score += 10
	}
	if len(text) < 200 {
		score -= 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// AmountsConsistent reports whether HT, TVA and TTC are all present and
// HT + TVA reconstructs TTC within one currency unit.
func AmountsConsistent(data *models.InvoiceData) bool {
	if data.TotalHT == nil || data.TVAAmount == nil || data.TotalTTC == nil {
		return false
	}
	ht := decimal.NewFromFloat(*data.TotalHT)
	tva := decimal.NewFromFloat(*data.TVAAmount)
	ttc := decimal.NewFromFloat(*data.TotalTTC)
	return ht.Add(tva).Sub(ttc).Abs().LessThan(decimal.NewFromInt(1))
}

// Validate clamps amounts to a plausible range and truncates name
// fields. Out-of-range amounts are dropped, not corrected.
func Validate(data *models.InvoiceData) *models.InvoiceData {
	data.TotalTTC = validAmount(data.TotalTTC)
	data.TotalHT = validAmount(data.TotalHT)
	data.TVAAmount = validAmount(data.TVAAmount)

	data.InvoiceNumber = truncate(data.InvoiceNumber, maxNameLen)
	if data.Client != nil {
		data.Client.Name = truncate(data.Client.Name, maxNameLen)
	}
	if data.Supplier != nil {
		data.Supplier.Name = truncate(data.Supplier.Name, maxNameLen)
	}
	return data
}

func validAmount(a *float64) *float64 {
	if a == nil {
		return nil
	}
	if *a < 0 || *a > amountCeiling {
		return nil
	}
	rounded := decimal.NewFromFloat(*a).Round(2).InexactFloat64()
	return &rounded
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
