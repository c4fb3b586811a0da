package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestCSVExtractStructuredClients(t *testing.T) {
	content := "Nom;Email;Téléphone\nJean Dupont;jean@example.fr;0612345678\nMarie Martin;marie@example.fr;0698765432\n"
	path := writeTemp(t, "clients.csv", []byte(content))

	table, err := CSVExtractor{}.ExtractStructured(path)
	require.NoError(t, err)

	assert.Equal(t, models.DataTypeClients, table.DataType)
	assert.Equal(t, ";", table.Delimiter)
	assert.Equal(t, "utf-8", table.Encoding)
	assert.Equal(t, 2, table.NumRows)
	assert.Equal(t, 3, table.NumColumns)
	assert.Equal(t, []string{"Nom", "Email", "Téléphone"}, table.Columns)

	require.NotNil(t, table.MappedRecords)
	assert.Equal(t, "Nom", table.MappedRecords.ColumnMapping["name"])
	assert.Equal(t, "Email", table.MappedRecords.ColumnMapping["email"])
	assert.Equal(t, "Téléphone", table.MappedRecords.ColumnMapping["phone"])
	assert.Equal(t, 2, table.MappedRecords.TotalCount)
}

func TestCSVDelimiterDetection(t *testing.T) {
	cases := map[string]string{
		"a,b,c\n1,2,3\n":     ",",
		"a;b;c\n1;2;3\n":     ";",
		"a\tb\tc\n1\t2\t3\n": "\t",
		"a|b|c\n1|2|3\n":     "|",
	}
	for content, want := range cases {
		assert.Equal(t, want, string(detectDelimiter(content)), "content %q", content)
	}
}

func TestCSVDelimiterDefaultsToComma(t *testing.T) {
	assert.Equal(t, ",", string(detectDelimiter("one column only\nstill one\n")))
}

func TestCSVEncodingFallback(t *testing.T) {
	// "Téléphone" in latin-1: é is byte 0xE9, invalid as UTF-8
	raw := []byte("Nom;T\xe9l\xe9phone\nJean;0612345678\n")
	path := writeTemp(t, "latin1.csv", raw)

	text, err := CSVExtractor{}.ExtractText(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Téléphone")

	table, err := CSVExtractor{}.ExtractStructured(path)
	require.NoError(t, err)
	assert.NotEqual(t, "utf-8", table.Encoding)
	assert.Contains(t, table.Columns, "Téléphone")
}

func TestCSVUTF8BOMStripped(t *testing.T) {
	raw := append([]byte("\xef\xbb\xbf"), []byte("a,b\n1,2\n")...)
	path := writeTemp(t, "bom.csv", raw)
	table, err := CSVExtractor{}.ExtractStructured(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Columns)
}

func TestCSVEmptyRowsDropped(t *testing.T) {
	content := "a,b\n1,2\n,\n  ,  \n3,4\n"
	path := writeTemp(t, "gaps.csv", []byte(content))
	table, err := CSVExtractor{}.ExtractStructured(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumRows)
}

func TestCSVRowCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("a,b\n")
	for i := 0; i < maxStructuredRows+50; i++ {
		b.WriteString("1,2\n")
	}
	path := writeTemp(t, "big.csv", []byte(b.String()))
	table, err := CSVExtractor{}.ExtractStructured(path)
	require.NoError(t, err)
	assert.Equal(t, maxStructuredRows, table.NumRows)
	assert.True(t, table.Truncated)
	assert.Len(t, table.PreviewData, previewRowCount)
}

func TestCSVColumnStats(t *testing.T) {
	content := "Montant,Date,Libellé\n10,01/02/2024,achat\n20,02/02/2024,\n10,03/02/2024,vente\n"
	path := writeTemp(t, "tx.csv", []byte(content))
	table, err := CSVExtractor{}.ExtractStructured(path)
	require.NoError(t, err)

	assert.Equal(t, "numeric", table.ColumnTypes["Montant"])
	assert.Equal(t, "date", table.ColumnTypes["Date"])
	assert.Equal(t, "text", table.ColumnTypes["Libellé"])

	stats := table.Analysis.Columns["Montant"]
	assert.Equal(t, 3, stats.NonNullCount)
	assert.Equal(t, 2, stats.UniqueCount)

	lib := table.Analysis.Columns["Libellé"]
	assert.Equal(t, 1, lib.NullCount)

	assert.InDelta(t, 1.0-1.0/9.0, table.Analysis.FillRate, 0.001)
	assert.Equal(t, []string{"10", "20"}, table.SampleValues["Montant"])
}

func TestCSVRaggedRowsTolerated(t *testing.T) {
	content := "a,b,c\n1,2\n3,4,5,6\n"
	path := writeTemp(t, "ragged.csv", []byte(content))
	table, err := CSVExtractor{}.ExtractStructured(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumRows)
	assert.Equal(t, "", table.PreviewData[0]["c"])
}
