package extract

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

func writeWorkbook(t *testing.T, sheets map[string][][]string, order []string) string {
	t.Helper()
	f := excelize.NewFile()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := make([]interface{}, len(row))
			for c, v := range row {
				values[c] = v
			}
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestExcelExtractStructuredTwoSheets(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{
		"Clients": {
			{"Nom", "Email", "Téléphone"},
			{"Jean Dupont", "jean@example.fr", "0612345678"},
			{"Marie Martin", "marie@example.fr", "0698765432"},
		},
		"Catalogue": {
			{"Produit", "Référence", "Prix"},
			{"Stylo", "ST-01", "2,50"},
		},
	}, []string{"Clients", "Catalogue"})

	wb, err := ExcelExtractor{}.ExtractStructured(path)
	require.NoError(t, err)

	assert.Equal(t, 2, wb.SheetCount)
	require.Len(t, wb.Sheets, 2)

	assert.Equal(t, "Clients", wb.Sheets[0].Name)
	assert.Equal(t, models.DataTypeClients, wb.Sheets[0].DataType)
	assert.Equal(t, 2, wb.Sheets[0].NumRows)

	assert.Equal(t, models.DataTypeProducts, wb.Sheets[1].DataType)

	// One clients sheet, one products sheet: the tie resolves to the
	// first sheet encountered.
	assert.Equal(t, models.DataTypeClients, wb.DataType)
}

func TestExcelMajorityVote(t *testing.T) {
	rows := func(header ...string) [][]string {
		return [][]string{header, {"x", "y", "z"}}
	}
	path := writeWorkbook(t, map[string][][]string{
		"A": rows("Produit", "Prix", "TVA"),
		"B": rows("Article", "Tarif", "Référence"),
		"C": rows("Nom", "Email", "Adresse"),
	}, []string{"A", "B", "C"})

	wb, err := ExcelExtractor{}.ExtractStructured(path)
	require.NoError(t, err)
	assert.Equal(t, models.DataTypeProducts, wb.DataType)
}

func TestExcelExtractText(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{
		"Ventes": {
			{"Date", "Montant"},
			{"01/02/2024", "150"},
		},
	}, []string{"Ventes"})

	text, err := ExcelExtractor{}.ExtractText(path)
	require.NoError(t, err)
	assert.Contains(t, text, "=== Feuille: Ventes ===")
	assert.Contains(t, text, "En-têtes: Date | Montant")
	assert.Contains(t, text, "01/02/2024 | 150")
}

func TestExcelMappedRecords(t *testing.T) {
	path := writeWorkbook(t, map[string][][]string{
		"Clients": {
			{"Nom", "Email"},
			{"Jean", "jean@example.fr"},
		},
	}, []string{"Clients"})

	wb, err := ExcelExtractor{}.ExtractStructured(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)
	mr := wb.Sheets[0].MappedRecords
	require.NotNil(t, mr)
	assert.Equal(t, "Jean", mr.Records[0]["name"])
}
