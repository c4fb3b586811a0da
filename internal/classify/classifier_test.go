package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

func TestDetectDataTypeClients(t *testing.T) {
	cols := []string{"Nom", "Email", "Téléphone"}
	assert.Equal(t, models.DataTypeClients, DetectDataType(cols))
}

func TestDetectDataTypeProducts(t *testing.T) {
	cols := []string{"Référence", "Désignation", "Prix unitaire", "TVA"}
	assert.Equal(t, models.DataTypeProducts, DetectDataType(cols))
}

func TestDetectDataTypeTransactions(t *testing.T) {
	cols := []string{"Date", "Montant", "Libellé"}
	assert.Equal(t, models.DataTypeTransactions, DetectDataType(cols))
}

func TestDetectDataTypeGeneric(t *testing.T) {
	cols := []string{"colonne_a", "colonne_b", "colonne_c"}
	assert.Equal(t, models.DataTypeGeneric, DetectDataType(cols))
}

// Clients outrank products and transactions when several categories
// reach the threshold.
func TestDetectDataTypePriorityOrder(t *testing.T) {
	cols := []string{"Nom client", "Email", "Prix", "TVA", "Date", "Montant"}
	assert.Equal(t, models.DataTypeClients, DetectDataType(cols))

	cols = []string{"Produit", "Prix", "Date", "Montant"}
	assert.Equal(t, models.DataTypeProducts, DetectDataType(cols))
}

// A single keyword hit is below the threshold. Note "adresse" matches
// exactly one keyword; an email column would score two ("email" and
// the contained "mail") and tip into clients.
func TestDetectDataTypeSingleHitIsGeneric(t *testing.T) {
	assert.Equal(t, models.DataTypeGeneric, DetectDataType([]string{"adresse", "x", "y"}))
	assert.Equal(t, models.DataTypeClients, DetectDataType([]string{"email", "x", "y"}))
}

func TestDetectDataTypeDeterministic(t *testing.T) {
	cols := []string{"Nom", "Email", "prix", "tva", "date"}
	first := DetectDataType(cols)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DetectDataType(cols))
	}
}

func TestMapColumnsClientSchema(t *testing.T) {
	cols := []string{"Nom", "Email", "Téléphone"}
	m := MapColumns(models.DataTypeClients, cols)
	assert.Equal(t, "Nom", m["name"])
	assert.Equal(t, "Email", m["email"])
	assert.Equal(t, "Téléphone", m["phone"])
	assert.Equal(t, "", m["address"])
	assert.Equal(t, "", m["country"])
}

// The same raw column can satisfy two canonical fields; this matches
// the observed mapper behavior and is deliberate.
func TestMapColumnsNonExclusive(t *testing.T) {
	cols := []string{"Nom du client", "Montant"}
	m := MapColumns(models.DataTypeTransactions, cols)
	assert.Equal(t, "Montant", m["amount"])
	assert.Equal(t, "Nom du client", m["client"])
	// "Nom du client" is not claimed exclusively: nothing stops another
	// field from matching it too if its keywords hit.
	m2 := MapColumns(models.DataTypeClients, cols)
	assert.Equal(t, "Nom du client", m2["name"])
}

func TestMapColumnsFirstKeywordWins(t *testing.T) {
	// "nom" appears before "name" in the client name keywords, so the
	// French column wins even when an English one is present first.
	cols := []string{"Full name", "Nom"}
	m := MapColumns(models.DataTypeClients, cols)
	assert.Equal(t, "Nom", m["name"])
}

func TestMapColumnsGenericReturnsNil(t *testing.T) {
	assert.Nil(t, MapColumns(models.DataTypeGeneric, []string{"a", "b"}))
}

func TestMapRecords(t *testing.T) {
	cols := []string{"Nom", "Email", "Téléphone"}
	rows := []map[string]string{
		{"Nom": "Jean Dupont", "Email": "jean@example.fr", "Téléphone": "0612345678"},
		{"Nom": "Marie Martin", "Email": "", "Téléphone": "0698765432"},
		{"Nom": "", "Email": "", "Téléphone": ""},
	}
	mr := MapRecords(models.DataTypeClients, cols, rows)
	assert.NotNil(t, mr)
	assert.Equal(t, 2, mr.TotalCount)
	assert.Equal(t, "Jean Dupont", mr.Records[0]["name"])
	assert.Equal(t, "jean@example.fr", mr.Records[0]["email"])
	_, has := mr.Records[1]["email"]
	assert.False(t, has)
	assert.Contains(t, mr.DetectedFields, "postal_code")
}
