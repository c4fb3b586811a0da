package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

// textRowCap bounds the rows rendered per sheet in the plain-text
// rendition; structured extraction has its own, larger cap.
const textRowCap = 200

// ExcelExtractor handles the spreadsheet family.
type ExcelExtractor struct{}

// ExtractText renders every sheet as pipe-delimited lines under a
// sheet banner.
func (ExcelExtractor) ExtractText(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		b.WriteString(fmt.Sprintf("=== Feuille: %s ===\n", sheet))
		for i, row := range rows {
			if i > textRowCap {
				break
			}
			if i == 0 {
				b.WriteString("En-têtes: ")
			}
			b.WriteString(strings.Join(row, " | "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// ExtractStructured processes every sheet like a table and derives the
// workbook-level data type by majority vote across sheets, ties going
// to the earliest sheet's type.
func (ExcelExtractor) ExtractStructured(path string) (*models.WorkbookData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	wb := &models.WorkbookData{SheetCount: len(sheets)}

	for _, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}
		wb.Sheets = append(wb.Sheets, processSheet(name, rows))
	}

	wb.DataType = workbookDataType(wb.Sheets)
	return wb, nil
}

func processSheet(name string, raw [][]string) models.SheetData {
	// Trailing unnamed columns are dropped; interior ones keep their
	// position under a synthetic name so row values stay aligned.
	header := raw[0]
	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	columns := make([]string, len(header))
	for i, c := range header {
		s := strings.TrimSpace(c)
		if s == "" {
			s = fmt.Sprintf("column_%d", i+1)
		}
		columns[i] = s
	}

	var rows []map[string]string
	truncated := false
	for _, record := range raw[1:] {
		if len(rows) >= maxStructuredRows {
			truncated = true
			break
		}
		if row := recordToRow(columns, record); row != nil {
			rows = append(rows, row)
		}
	}

	table := buildTable(columns, rows)
	sheet := models.SheetData{
		Name:          name,
		DataType:      table.DataType,
		NumRows:       table.NumRows,
		NumColumns:    table.NumColumns,
		Truncated:     truncated,
		Columns:       table.Columns,
		ColumnTypes:   table.ColumnTypes,
		Analysis:      table.Analysis,
		PreviewData:   table.PreviewData,
		SampleValues:  table.SampleValues,
		MappedRecords: table.MappedRecords,
	}
	return sheet
}

// workbookDataType is the majority vote over per-sheet types. A tie
// resolves to the type of the earliest sheet.
func workbookDataType(sheets []models.SheetData) string {
	counts := map[string]int{}
	var order []string
	for _, s := range sheets {
		if counts[s.DataType] == 0 {
			order = append(order, s.DataType)
		}
		counts[s.DataType]++
	}
	best := models.DataTypeGeneric
	bestCount := 0
	for _, dt := range order {
		if counts[dt] > bestCount {
			best = dt
			bestCount = counts[dt]
		}
	}
	return best
}
