package invoice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInvoice = `ACME Conseil SARL
12 rue de la République
69002 Lyon
contact@acme-conseil.fr
04 72 00 11 22

Facture N° 2024-001
Date: 15/01/2024
Échéance: 15/02/2024

Client:
Société Dupont
8 avenue des Champs
75008 Paris

2 Prestation de conseil 50,00 €

Total HT: 100,00 €
TVA (20%): 20,00 €
Total TTC: 120,00 €
`

func TestExtractFullInvoice(t *testing.T) {
	data := Extract(sampleInvoice)
	require.NotNil(t, data)

	assert.Equal(t, "2024-001", data.InvoiceNumber)
	assert.Equal(t, "15/01/2024", data.InvoiceDate)
	assert.Equal(t, "15/02/2024", data.DueDate)

	require.NotNil(t, data.TotalTTC)
	assert.InDelta(t, 120.0, *data.TotalTTC, 0.01)
	require.NotNil(t, data.TotalHT)
	assert.InDelta(t, 100.0, *data.TotalHT, 0.01)
	require.NotNil(t, data.TVAAmount)
	assert.InDelta(t, 20.0, *data.TVAAmount, 0.01)

	require.NotNil(t, data.Client)
	assert.Equal(t, "Société Dupont", data.Client.Name)
	require.NotNil(t, data.Supplier)
	assert.Equal(t, "ACME Conseil SARL", data.Supplier.Name)
	assert.Equal(t, "contact@acme-conseil.fr", data.Supplier.Email)

	assert.GreaterOrEqual(t, data.Confidence, 50)
	assert.LessOrEqual(t, data.Confidence, 100)
}

func TestExtractShortTextReturnsNil(t *testing.T) {
	assert.Nil(t, Extract("Facture 123"))
	assert.Nil(t, Extract(""))
}

func TestExtractNonInvoiceTextReturnsNil(t *testing.T) {
	text := strings.Repeat("Rapport d'activité mensuel sans aucun chiffre pertinent. ", 5)
	assert.Nil(t, Extract(text))
}

func TestLikelyInvoicePrecheck(t *testing.T) {
	// One invoice keyword (x3) and one financial keyword (x2) reach the
	// threshold of 5 exactly.
	assert.True(t, LikelyInvoice("facture avec un total à payer"))
	// A single financial keyword scores 2, below the threshold.
	assert.False(t, LikelyInvoice("le montant reste à définir"))
	assert.False(t, LikelyInvoice("plain text with no financial vocabulary"))
}

func TestExtractNumberCascadeOrder(t *testing.T) {
	// Labelled forms outrank bare codes appearing earlier in the text.
	assert.Equal(t, "FA-2024-42", extractNumber("REF999 xyz Facture n° FA-2024-42"))
	// Bare digit runs need at least 4 digits.
	assert.Equal(t, "", extractNumber("item 123 units"))
	assert.Equal(t, "12345", extractNumber("12345"))
	// Alphanumeric codes of length 3+ are accepted.
	assert.Equal(t, "AB1234", extractNumber("AB1234"))
}

func TestExtractDatesFirstAndLast(t *testing.T) {
	first, last, found := extractDates("du 01/01/2024 au 31/01/2024, payable le 15/02/2024")
	assert.Equal(t, "01/01/2024", first)
	assert.Equal(t, "15/02/2024", last)
	assert.Len(t, found, 3)
}

func TestExtractDatesMonthNames(t *testing.T) {
	first, _, found := extractDates("Fait le 3 février 2024 puis le 10 March 2024")
	assert.Equal(t, "3 février 2024", first)
	assert.Len(t, found, 2)
}

func TestExtractDatesDeduplicated(t *testing.T) {
	_, last, found := extractDates("le 15/01/2024, rappel du 15/01/2024")
	assert.Len(t, found, 1)
	assert.Equal(t, "", last)
}

func TestExtractAmountsLargestIsTTC(t *testing.T) {
	ttc, _, _, found := extractAmounts("Sous-total 80,00 € Remise 10,00 € Total 95,50 €")
	assert.NotNil(t, ttc)
	assert.InDelta(t, 95.5, *ttc, 0.01)
	assert.InDelta(t, 95.5, found[0], 0.01)
}

func TestExtractAmountsBackSolveFromTTC(t *testing.T) {
	// No labelled HT/TVA: both are back-solved at the default 20% rate
	// and must match existing candidates within 1 unit.
	ttc, ht, tva, _ := extractAmounts("Montant 100,00 € puis 20,00 € et enfin 120,00 €")
	assert.NotNil(t, ttc)
	assert.InDelta(t, 120.0, *ttc, 0.01)
	assert.NotNil(t, ht)
	assert.InDelta(t, 100.0, *ht, 0.01)
	assert.NotNil(t, tva)
	assert.InDelta(t, 20.0, *tva, 0.01)
}

func TestExtractAmountsNeverInvented(t *testing.T) {
	// A lone amount yields TTC only: no candidate matches the
	// back-solved HT or TVA, so neither appears.
	ttc, ht, tva, _ := extractAmounts("Total: 500,00 €")
	assert.NotNil(t, ttc)
	assert.Nil(t, ht)
	assert.Nil(t, tva)
}

func TestExtractLineItemShapes(t *testing.T) {
	text := strings.Join([]string{
		"3 Cartouches d'encre 25,00 €",
		"Maintenance annuelle 2 150,00",
		"Frais de livraison 12,50 €",
	}, "\n")
	items := extractLineItems(text)
	assert.Len(t, items, 3)

	assert.Equal(t, 3, items[0].Quantity)
	assert.InDelta(t, 25.0, items[0].UnitPrice, 0.01)
	assert.InDelta(t, 75.0, items[0].Total, 0.01)

	assert.Equal(t, 2, items[1].Quantity)
	assert.InDelta(t, 150.0, items[1].UnitPrice, 0.01)

	assert.Equal(t, 1, items[2].Quantity)
	assert.InDelta(t, 12.5, items[2].Total, 0.01)
}

func TestExtractClientBlock(t *testing.T) {
	text := `Facturé à:
Jean Dupont
10 rue Victor Hugo
33000 Bordeaux
jean.dupont@mail.fr
`
	party := extractClient(text)
	assert.NotNil(t, party)
	assert.Equal(t, "Jean Dupont", party.Name)
	assert.Contains(t, party.Address, "10 rue Victor Hugo")
	assert.Equal(t, "jean.dupont@mail.fr", party.Email)
}

func TestExtractClientNoMarkerReturnsNil(t *testing.T) {
	assert.Nil(t, extractClient("ligne un\nligne deux\nligne trois"))
}
