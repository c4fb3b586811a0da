package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfMinTextLen is the output length below which the primary PDF
// extractor is considered to have failed and the fallback runs.
const pdfMinTextLen = 50

// PDFExtractor handles the portable-document family. The primary
// parser reads embedded text per page and renders row-grouped text as
// pipe-joined table lines; pdftotext is the lower-fidelity fallback
// for documents the library cannot handle.
type PDFExtractor struct {
	Runner       Runner
	PdftotextBin string
}

// NewPDFExtractor wires the exec-backed runner with the default binary
func NewPDFExtractor(runner Runner, pdftotextBin string) PDFExtractor {
	if pdftotextBin == "" {
		pdftotextBin = "pdftotext"
	}
	return PDFExtractor{Runner: runner, PdftotextBin: pdftotextBin}
}

// ExtractText runs the primary-then-fallback chain and reports which
// step produced the text.
func (e PDFExtractor) ExtractText(ctx context.Context, path string) (string, string, error) {
	steps := []Step{
		{Name: "pdf-native", Run: func(ctx context.Context) (string, error) {
			return e.nativeText(path)
		}},
		{Name: "pdftotext", Run: func(ctx context.Context) (string, error) {
			return e.pdfToText(ctx, path)
		}},
	}
	return TryInOrder(ctx, steps, func(s string) bool {
		return len(strings.TrimSpace(s)) >= pdfMinTextLen
	})
}

// nativeText pulls per-page text, then appends a pipe-joined rendering
// of the row-grouped content so table-ish layouts survive as lines.
func (e PDFExtractor) nativeText(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat pdf: %w", err)
	}
	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		if text, err := page.GetPlainText(nil); err == nil && strings.TrimSpace(text) != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}

		// Row-grouped text approximates the page's tables: each row
		// becomes one pipe-joined line appended after the page text.
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			var cells []string
			for _, word := range row.Content {
				if s := strings.TrimSpace(word.S); s != "" {
					cells = append(cells, s)
				}
			}
			if len(cells) > 1 {
				b.WriteString(strings.Join(cells, " | "))
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}

func (e PDFExtractor) pdfToText(ctx context.Context, path string) (string, error) {
	out, _, err := e.Runner.Run(ctx, e.PdftotextBin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
