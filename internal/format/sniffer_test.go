package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

func TestSniffPDFByContent(t *testing.T) {
	head := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	fam, mime, ok := Sniff(head, "report.bin")
	assert.True(t, ok)
	assert.Equal(t, models.FamilyPDF, fam)
	assert.Equal(t, "application/pdf", mime)
}

func TestSniffPNGByContent(t *testing.T) {
	head := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	fam, _, ok := Sniff(head, "scan")
	assert.True(t, ok)
	assert.Equal(t, models.FamilyImage, fam)
}

func TestSniffCSVFallsBackToExtension(t *testing.T) {
	head := []byte("name;email;phone\nJean Dupont;jean@example.fr;0612345678\n")
	fam, _, ok := Sniff(head, "clients.csv")
	assert.True(t, ok)
	assert.Equal(t, models.FamilyCSV, fam)
}

func TestSniffXlsxZipContainer(t *testing.T) {
	// xlsx files start with the zip local-file-header magic
	head := []byte("PK\x03\x04\x14\x00\x06\x00")
	fam, _, ok := Sniff(head, "ventes.xlsx")
	assert.True(t, ok)
	assert.Equal(t, models.FamilyExcel, fam)
}

func TestSniffRejectsExecutable(t *testing.T) {
	head := []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}
	_, _, ok := Sniff(head, "malware.exe")
	assert.False(t, ok)
}

func TestSniffRejectsUnknownExtension(t *testing.T) {
	head := []byte("plain text content without a table")
	_, _, ok := Sniff(head, "notes.docx")
	assert.False(t, ok)
}

func TestSupportedFormatsCatalogIsClosed(t *testing.T) {
	catalog := SupportedFormats()
	assert.Len(t, catalog, 4)
	families := map[string]bool{}
	for _, f := range catalog {
		families[f.Family] = true
		assert.NotEmpty(t, f.Description)
		assert.NotEmpty(t, f.Extensions)
	}
	for _, fam := range []string{models.FamilyCSV, models.FamilyExcel, models.FamilyPDF, models.FamilyImage} {
		assert.True(t, families[fam], fam)
		assert.True(t, FamilySupported(fam))
	}
	assert.False(t, FamilySupported("docx"))
}
