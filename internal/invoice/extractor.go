// Package invoice recovers invoice-shaped fields from free text
// produced by the PDF and image extractors. Extraction is regex driven
// and best effort: every field cascade is an explicit ordered pattern
// list evaluated with early exit, so match priority is visible and
// testable rather than an accident of code order.
package invoice

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

// minTextLen aborts extraction outright on fragments
const minTextLen = 50

// precheckThreshold is the minimum plausibility score before any field
// extraction runs
const precheckThreshold = 5

var invoiceKeywords = []string{
	"facture", "invoice", "devis", "quote", "quotation",
	"bill", "receipt", "reçu", "note", "bon de commande",
}

var financialKeywords = []string{
	"total", "montant", "amount", "prix", "price",
	"tva", "vat", "tax", "ht", "ttc", "hors taxe", "toutes taxes",
}

var (
	currencyAmountRe = regexp.MustCompile(`\d+[,.]?\d*\s*[€$£]|\d+[,.]?\d*\s*(EUR|USD|GBP)`)
	numericDateRe    = regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
)

// numberPattern pairs a regex with a validity check on the captured
// candidate. Cascades run in order, first accepted candidate wins.
type numberPattern struct {
	re     *regexp.Regexp
	accept func(string) bool
}

// A bare digit run must be longer than a labelled or alphanumeric code
// to be believable as a document number.
func plausibleNumber(s string) bool {
	if len(s) >= 3 && !allDigits(s) {
		return true
	}
	return len(s) >= 4
}

// The document-word alternatives may be followed by a number marker
// ("Facture N° 2024-001"), so the marker is consumed before the capture
// instead of being captured itself.
var numberPatterns = []numberPattern{
	{regexp.MustCompile(`(?i)(?:facture|invoice|bill|n°|no|number|#)(?:\s*(?:n°|no|number|#))?\s*:?\s*([A-Z0-9\-_]+)`), plausibleNumber},
	{regexp.MustCompile(`(?i)(?:ref|référence|reference)\s*:?\s*([A-Z0-9\-_]+)`), plausibleNumber},
	{regexp.MustCompile(`([A-Z]{2,}\d{3,})`), plausibleNumber},
	{regexp.MustCompile(`(\d{4,})`), plausibleNumber},
}

var datePatterns = []*regexp.Regexp{
	numericDateRe,
	regexp.MustCompile(`(?i)\d{1,2}\s+(?:janvier|février|mars|avril|mai|juin|juillet|août|septembre|octobre|novembre|décembre)\s+\d{2,4}`),
	regexp.MustCompile(`(?i)\d{1,2}\s+(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{2,4}`),
	regexp.MustCompile(`\d{2,4}[/-]\d{1,2}[/-]\d{1,2}`),
}

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+[,.]?\d*)\s*€`),
	regexp.MustCompile(`€\s*(\d+[,.]?\d*)`),
	regexp.MustCompile(`(?i)(\d+[,.]?\d*)\s*EUR`),
	regexp.MustCompile(`(?i)EUR\s*(\d+[,.]?\d*)`),
	regexp.MustCompile(`(\d+[,.]?\d*)\s*(?:TTC|ttc)`),
	regexp.MustCompile(`(\d+[,.]?\d*)\s*(?:HT|ht)`),
	regexp.MustCompile(`(?i)(?:total|montant|amount)\s*:?\s*(\d+[,.]?\d*)`),
	regexp.MustCompile(`(?i)(\d+[,.]?\d*)\s*(?:total|montant|amount)`),
}

var (
	htLabelRe  = regexp.MustCompile(`(?:ht|hors\s*taxe|net)\s*:?\s*(\d+[,.]?\d*)`)
	tvaLabelRe = regexp.MustCompile(`(?:tva|vat|tax|taxe)\s*:?\s*(\d+[,.]?\d*)`)
)

var (
	emailRe       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{2}[\s.-]?\d{2}[\s.-]?\d{2}[\s.-]?\d{2}[\s.-]?\d{2}\b`),
		regexp.MustCompile(`\+33[\s.-]?\d[\s.-]?\d{2}[\s.-]?\d{2}[\s.-]?\d{2}[\s.-]?\d{2}`),
	}
)

var clientMarkers = []string{"client", "customer", "bill to", "facturé à", "destinataire"}

// Line item shapes, tried in order per line. Shape 1 is
// (quantity, description, price), shape 2 (description, quantity,
// price), shape 3 (description, price).
var lineItemPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s+(.+?)\s+(\d+[,.]?\d*)\s*€`),
	regexp.MustCompile(`(.+?)\s+(\d+)\s+(\d+[,.]?\d*)`),
	regexp.MustCompile(`(.+?)\s+(\d+[,.]?\d*)\s*€`),
}

// Extract runs the full invoice field cascade on free text. It returns
// nil when the text is too short, fails the plausibility pre-check, or
// scores below the confidence floor. A nil result means "no invoice
// data", never an error.
func Extract(text string) *models.InvoiceData {
	if len(strings.TrimSpace(text)) < minTextLen {
		return nil
	}
	if !LikelyInvoice(text) {
		return nil
	}

	data := &models.InvoiceData{}
	data.InvoiceNumber = extractNumber(text)
	data.InvoiceDate, data.DueDate, data.DatesFound = extractDates(text)
	data.Client = extractClient(text)
	data.TotalTTC, data.TotalHT, data.TVAAmount, data.AmountsFound = extractAmounts(text)
	data.LineItems = extractLineItems(text)
	data.Supplier = extractSupplier(text)

	data.Confidence = Score(data, text)
	if data.Confidence < minConfidence {
		return nil
	}
	return Validate(data)
}

// LikelyInvoice is the plausibility pre-check: a weighted count of
// invoice keywords, financial keywords, currency amounts and dates.
func LikelyInvoice(text string) bool {
	lower := strings.ToLower(text)

	invoiceMatches := 0
	for _, kw := range invoiceKeywords {
		if strings.Contains(lower, kw) {
			invoiceMatches++
		}
	}
	financialMatches := 0
	for _, kw := range financialKeywords {
		if strings.Contains(lower, kw) {
			financialMatches++
		}
	}

	amountMatches := len(currencyAmountRe.FindAllString(text, -1))
	dateMatches := len(numericDateRe.FindAllString(text, -1))

	score := invoiceMatches*3 + financialMatches*2 + min(amountMatches, 5) + min(dateMatches, 3)
	return score >= precheckThreshold
}

func extractNumber(text string) string {
	for _, p := range numberPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(m[1])
			if p.accept(candidate) {
				return candidate
			}
		}
	}
	return ""
}

// extractDates collects every date-looking string, de-duplicates them
// preserving first-seen order, and assigns the first as the document
// date and the last as the due date. Heuristic, not a guarantee.
// A later pattern matching inside a span an earlier pattern already
// claimed is skipped, so "15/01/2024" is not also collected as
// "15/01/20" by the year-first pattern.
func extractDates(text string) (invoiceDate, dueDate string, found []string) {
	seen := map[string]bool{}
	var claimed [][]int
	overlaps := func(start, end int) bool {
		for _, span := range claimed {
			if start < span[1] && end > span[0] {
				return true
			}
		}
		return false
	}
	for _, re := range datePatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if overlaps(loc[0], loc[1]) {
				continue
			}
			claimed = append(claimed, loc)
			m := text[loc[0]:loc[1]]
			if !seen[m] {
				seen[m] = true
				found = append(found, m)
			}
		}
	}
	if len(found) > 0 {
		invoiceDate = found[0]
		if len(found) > 1 {
			dueDate = found[len(found)-1]
		}
	}
	return invoiceDate, dueDate, found
}

// extractClient scans for a counter-party section marker and captures
// the following non-blank lines as one block: first line is the name,
// up to 3 more are the address, email and phone are pattern-searched
// inside the block.
func extractClient(text string) *models.Party {
	lines := strings.Split(text, "\n")

	var sections []string
	for i, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))
		if !containsAny(lower, clientMarkers) {
			continue
		}
		var section []string
		for j := i + 1; j < len(lines) && j < i+6; j++ {
			s := strings.TrimSpace(lines[j])
			if s == "" {
				break
			}
			section = append(section, s)
		}
		if len(section) > 0 {
			sections = append(sections, strings.Join(section, "\n"))
		}
	}
	if len(sections) == 0 {
		return nil
	}

	party := &models.Party{}
	first := strings.TrimSpace(strings.SplitN(sections[0], "\n", 2)[0])
	if len(first) > 2 {
		party.Name = first
	}

	var addressLines []string
	for _, section := range sections {
		parts := strings.Split(section, "\n")
		for _, l := range parts[1:] {
			if s := strings.TrimSpace(l); s != "" {
				addressLines = append(addressLines, s)
			}
		}
	}
	if len(addressLines) > 3 {
		addressLines = addressLines[:3]
	}
	party.Address = strings.Join(addressLines, "\n")

	block := strings.Join(sections, "\n")
	party.Email = firstMatch(emailRe, block)
	party.Phone = firstPhone(block)

	if party.Name == "" && party.Address == "" && party.Email == "" && party.Phone == "" {
		return nil
	}
	return party
}

// extractSupplier treats the document head as the issuer block, same
// heuristics as the client block. Only the first 10 lines are scanned.
func extractSupplier(text string) *models.Party {
	lines := strings.Split(text, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	var block []string
	for _, line := range lines {
		s := strings.TrimSpace(line)
		if s != "" && len(s) > 3 {
			block = append(block, s)
		}
	}
	if len(block) == 0 {
		return nil
	}

	party := &models.Party{Name: block[0]}
	if len(block) > 1 {
		end := min(len(block), 4)
		party.Address = strings.Join(block[1:end], "\n")
	}
	joined := strings.Join(block, "\n")
	party.Email = firstMatch(emailRe, joined)
	party.Phone = firstPhone(joined)
	return party
}

// extractAmounts collects currency-tagged numbers, de-duplicates and
// sorts descending; the largest is assumed to be the total including
// tax. Labelled HT/TVA amounts override; otherwise both are back-solved
// from TTC at the default 20% rate and accepted only if a matching
// candidate exists within 1 unit. Never invented outright.
func extractAmounts(text string) (ttc, ht, tva *float64, found []float64) {
	seen := map[string]bool{}
	for _, re := range amountPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			d, err := parseAmount(m[1])
			if err != nil {
				continue
			}
			key := d.String()
			if !seen[key] {
				seen[key] = true
				found = append(found, d.InexactFloat64())
			}
		}
	}
	if len(found) == 0 {
		return nil, nil, nil, nil
	}
	sortDesc(found)
	ttc = ptr(found[0])

	lower := strings.ToLower(text)
	htLabelled := false
	if m := htLabelRe.FindStringSubmatch(lower); m != nil {
		if d, err := parseAmount(m[1]); err == nil {
			ht = ptr(d.InexactFloat64())
			htLabelled = true
		}
	}
	if m := tvaLabelRe.FindStringSubmatch(lower); m != nil {
		if d, err := parseAmount(m[1]); err == nil {
			tva = ptr(d.InexactFloat64())
		}
	}

	if ht == nil {
		// Back-solve at the default 20% rate, accepting only values
		// that already appear as candidates.
		estimatedHT := *ttc / 1.20
		estimatedTVA := *ttc - estimatedHT
		for _, a := range found {
			if abs(a-estimatedHT) < 1 {
				ht = ptr(a)
			} else if tva == nil && abs(a-estimatedTVA) < 1 {
				tva = ptr(a)
			}
		}
	} else if tva == nil && htLabelled && *ttc >= *ht {
		// TTC and a labelled HT determine the tax arithmetically.
		d := decimal.NewFromFloat(*ttc).Sub(decimal.NewFromFloat(*ht)).Round(2)
		tva = ptr(d.InexactFloat64())
	}
	return ttc, ht, tva, found
}

func extractLineItems(text string) []models.LineItem {
	var items []models.LineItem
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if len(line) < 10 {
			continue
		}
		for _, re := range lineItemPatterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			groups := m[1:]
			if item, ok := parseLineItem(groups); ok {
				items = append(items, item)
			}
			break
		}
	}
	return items
}

// parseLineItem disambiguates the three accepted shapes by which
// groups parse as numbers.
func parseLineItem(groups []string) (models.LineItem, bool) {
	switch len(groups) {
	case 3:
		if qty, err := strconv.Atoi(groups[0]); err == nil {
			if price, err := parseAmount(groups[2]); err == nil {
				p := price.InexactFloat64()
				return models.LineItem{
					Description: strings.TrimSpace(groups[1]),
					Quantity:    qty,
					UnitPrice:   p,
					Total:       float64(qty) * p,
				}, true
			}
		}
		if qty, err := strconv.Atoi(groups[1]); err == nil {
			if price, err := parseAmount(groups[2]); err == nil {
				p := price.InexactFloat64()
				return models.LineItem{
					Description: strings.TrimSpace(groups[0]),
					Quantity:    qty,
					UnitPrice:   p,
					Total:       float64(qty) * p,
				}, true
			}
		}
	case 2:
		if price, err := parseAmount(groups[1]); err == nil {
			p := price.InexactFloat64()
			return models.LineItem{
				Description: strings.TrimSpace(groups[0]),
				Quantity:    1,
				UnitPrice:   p,
				Total:       p,
			}, true
		}
	}
	return models.LineItem{}, false
}

// parseAmount accepts both comma and dot decimal separators
func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
}

func firstMatch(re *regexp.Regexp, s string) string {
	return re.FindString(s)
}

func firstPhone(s string) string {
	for _, re := range phonePatterns {
		if m := re.FindString(s); m != "" {
			return m
		}
	}
	return ""
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func sortDesc(v []float64) {
	for i := 1; i < len(v); i++ {
		for j := i; j > 0 && v[j] > v[j-1]; j-- {
			v[j], v[j-1] = v[j-1], v[j]
		}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func ptr(f float64) *float64 { return &f }
