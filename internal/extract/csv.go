package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/comptaflow/document-extraction-service/internal/classify"
	"github.com/comptaflow/document-extraction-service/internal/models"
)

const (
	// encodingSampleLen bounds how much of the file encoding detection reads
	encodingSampleLen = 10 << 10
	// delimiterSampleLen bounds the delimiter sniffing sample
	delimiterSampleLen = 1024

	// maxStructuredRows caps how many data rows are analyzed
	maxStructuredRows = 1000
	// previewRowCount is the number of rows kept in preview_data
	previewRowCount = 10
	// sampleValueCount is the number of distinct values kept per column
	sampleValueCount = 5
	// statSampleCount is the number of values shown in per-column stats
	statSampleCount = 3
)

var delimiterCandidates = []rune{',', ';', '\t', '|'}

var dateValueRe = regexp.MustCompile(`^\d{1,4}[/-]\d{1,2}[/-]\d{1,4}$`)

// CSVExtractor handles the delimited-text family.
type CSVExtractor struct{}

// ExtractText returns the file content decoded to UTF-8.
func (CSVExtractor) ExtractText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read csv: %w", err)
	}
	text, _ := decodeBytes(raw)
	return text, nil
}

// ExtractStructured parses the file into a table, cleans it and
// computes per-column statistics, the semantic data type, and mapped
// records when a known type is detected.
func (CSVExtractor) ExtractStructured(path string) (*models.TableData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	text, encodingName := decodeBytes(raw)
	delimiter := detectDelimiter(text)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}
	columns := make([]string, len(header))
	for i, c := range header {
		columns[i] = strings.TrimSpace(c)
	}

	var rows []map[string]string
	truncated := false
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv row: %w", err)
		}
		if len(rows) >= maxStructuredRows {
			truncated = true
			break
		}
		row := recordToRow(columns, record)
		if row != nil {
			rows = append(rows, row)
		}
	}

	table := buildTable(columns, rows)
	table.Encoding = encodingName
	table.Delimiter = string(delimiter)
	table.Truncated = truncated
	return table, nil
}

// decodeBytes decodes raw file bytes to a UTF-8 string, trying UTF-8
// first and falling through a fixed list of single-byte encodings when
// the content is not valid UTF-8.
func decodeBytes(raw []byte) (text, encodingName string) {
	sample := raw
	if len(sample) > encodingSampleLen {
		sample = sample[:encodingSampleLen]
	}
	if utf8.Valid(sample) {
		return string(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))), "utf-8"
	}

	if decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
		s := string(decoded)
		if !strings.ContainsRune(s, utf8.RuneError) {
			return s, "windows-1252"
		}
	}
	// Latin-1 maps every byte, so this never fails
	decoded, _ := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	return string(decoded), "iso-8859-1"
}

// detectDelimiter tries each candidate against the first two lines of
// the sample and keeps the first one yielding a consistent column
// count above 1. Comma wins when nothing is consistent.
func detectDelimiter(text string) rune {
	sample := text
	if len(sample) > delimiterSampleLen {
		sample = sample[:delimiterSampleLen]
	}
	for _, cand := range delimiterCandidates {
		reader := csv.NewReader(strings.NewReader(sample))
		reader.Comma = cand
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		first, err := reader.Read()
		if err != nil {
			continue
		}
		second, err := reader.Read()
		if err != nil {
			continue
		}
		if len(first) == len(second) && len(first) > 1 {
			return cand
		}
	}
	return ','
}

// recordToRow maps one record onto the header, trimming cells and
// normalizing blanks. Fully empty rows collapse to nil.
func recordToRow(columns, record []string) map[string]string {
	row := make(map[string]string, len(columns))
	empty := true
	for i, col := range columns {
		v := ""
		if i < len(record) {
			v = strings.TrimSpace(record[i])
		}
		if v != "" {
			empty = false
		}
		row[col] = v
	}
	if empty {
		return nil
	}
	return row
}

// buildTable assembles the common structured result for cleaned rows.
// Shared with the spreadsheet extractor, which wraps it per sheet.
func buildTable(columns []string, rows []map[string]string) *models.TableData {
	dataType := classify.DetectDataType(columns)

	columnTypes := make(map[string]string, len(columns))
	stats := make(map[string]models.ColumnStats, len(columns))
	samples := make(map[string][]string, len(columns))
	emptyCells := 0

	for _, col := range columns {
		var nonNull []string
		distinct := map[string]bool{}
		for _, row := range rows {
			v := row[col]
			if v == "" {
				emptyCells++
				continue
			}
			nonNull = append(nonNull, v)
			distinct[v] = true
		}

		colType := inferColumnType(nonNull)
		columnTypes[col] = colType
		stats[col] = models.ColumnStats{
			NonNullCount: len(nonNull),
			NullCount:    len(rows) - len(nonNull),
			UniqueCount:  len(distinct),
			DataType:     colType,
			SampleValues: head(nonNull, statSampleCount),
		}
		samples[col] = distinctHead(nonNull, sampleValueCount)
	}

	totalCells := len(rows) * len(columns)
	fillRate := 0.0
	if totalCells > 0 {
		fillRate = 1 - float64(emptyCells)/float64(totalCells)
	}

	table := &models.TableData{
		DataType:    dataType,
		NumRows:     len(rows),
		NumColumns:  len(columns),
		Columns:     columns,
		ColumnTypes: columnTypes,
		Analysis: models.TableAnalysis{
			TotalCells: totalCells,
			EmptyCells: emptyCells,
			FillRate:   fillRate,
			Columns:    stats,
		},
		PreviewData:  headRows(rows, previewRowCount),
		SampleValues: samples,
	}
	if dataType != models.DataTypeGeneric {
		table.MappedRecords = classify.MapRecords(dataType, columns, rows)
	}
	return table
}

// inferColumnType picks numeric, date or text from the non-null values
func inferColumnType(values []string) string {
	if len(values) == 0 {
		return "text"
	}
	numeric, date := true, true
	for _, v := range values {
		if _, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64); err != nil {
			numeric = false
		}
		if !dateValueRe.MatchString(v) {
			date = false
		}
		if !numeric && !date {
			return "text"
		}
	}
	if numeric {
		return "numeric"
	}
	return "date"
}

func head(v []string, n int) []string {
	if len(v) > n {
		v = v[:n]
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

func distinctHead(values []string, n int) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
		if len(out) == n {
			break
		}
	}
	return out
}

func headRows(rows []map[string]string, n int) []map[string]string {
	if len(rows) > n {
		rows = rows[:n]
	}
	out := make([]map[string]string, len(rows))
	copy(out, rows)
	return out
}
