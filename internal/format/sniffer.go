// Package format identifies which extraction family an uploaded file
// belongs to, from its content first and its declared name second.
package format

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

// MaxFileSize is the upload ceiling enforced before any row is created
const MaxFileSize = 50 << 20 // 50 MiB

// sniffLen is how many leading bytes content detection needs
const sniffLen = 512

var extensionFamily = map[string]string{
	".csv":  models.FamilyCSV,
	".txt":  models.FamilyCSV,
	".xlsx": models.FamilyExcel,
	".xls":  models.FamilyExcel,
	".pdf":  models.FamilyPDF,
	".png":  models.FamilyImage,
	".jpg":  models.FamilyImage,
	".jpeg": models.FamilyImage,
	".gif":  models.FamilyImage,
	".bmp":  models.FamilyImage,
	".tiff": models.FamilyImage,
	".tif":  models.FamilyImage,
}

var mimeFamily = map[string]string{
	"text/csv":        models.FamilyCSV,
	"application/pdf": models.FamilyPDF,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": models.FamilyExcel,
	"application/vnd.ms-excel": models.FamilyExcel,
	"image/png":                models.FamilyImage,
	"image/jpeg":               models.FamilyImage,
	"image/gif":                models.FamilyImage,
	"image/bmp":                models.FamilyImage,
	"image/tiff":               models.FamilyImage,
}

// Sniff determines the format family for a file from its leading bytes
// and declared filename. The content type wins when it is conclusive;
// the extension is consulted only for generic types (plain text, zip
// containers, octet streams). Returns the family, the detected MIME
// type, and whether the file is supported at all.
func Sniff(head []byte, filename string) (family, mimeType string, ok bool) {
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	mimeType = http.DetectContentType(head)
	ext := strings.ToLower(filepath.Ext(filename))

	// Strip charset parameters ("text/plain; charset=utf-8")
	base := mimeType
	if i := strings.Index(base, ";"); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}

	if fam, found := mimeFamily[base]; found {
		// A .xlsx sniffs as zip on some platforms but never as
		// image or pdf, so a conclusive match is trustworthy.
		return fam, mimeType, true
	}

	switch base {
	case "text/plain", "application/zip", "application/octet-stream", "":
		if fam, found := extensionFamily[ext]; found {
			return fam, mimeType, true
		}
	}
	return "", mimeType, false
}

// SupportedFormats returns the closed catalog of accepted format
// families, for the supported-types endpoint.
func SupportedFormats() []models.FormatInfo {
	return []models.FormatInfo{
		{
			Family:      models.FamilyCSV,
			Description: "Delimited text files (CSV and plain text tables)",
			MimeTypes:   []string{"text/csv", "text/plain"},
			Extensions:  []string{".csv", ".txt"},
		},
		{
			Family:      models.FamilyExcel,
			Description: "Spreadsheet workbooks",
			MimeTypes: []string{
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				"application/vnd.ms-excel",
			},
			Extensions: []string{".xlsx", ".xls"},
		},
		{
			Family:      models.FamilyPDF,
			Description: "Portable documents, text-based or scanned",
			MimeTypes:   []string{"application/pdf"},
			Extensions:  []string{".pdf"},
		},
		{
			Family:      models.FamilyImage,
			Description: "Raster images processed through OCR",
			MimeTypes:   []string{"image/png", "image/jpeg", "image/gif", "image/bmp", "image/tiff"},
			Extensions:  []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".tif"},
		},
	}
}

// FamilySupported reports whether the given family is part of the catalog
func FamilySupported(family string) bool {
	switch family {
	case models.FamilyCSV, models.FamilyExcel, models.FamilyPDF, models.FamilyImage:
		return true
	}
	return false
}
