package models

import (
	"time"
)

// Document processing statuses
const (
	StatusPending    = "pending"    // uploaded, not yet processed
	StatusProcessing = "processing" // extraction in progress
	StatusCompleted  = "completed"  // extraction finished (possibly partial)
	StatusFailed     = "failed"     // extraction could not produce anything
)

// Format families
const (
	FamilyCSV   = "csv"   // delimited text (.csv, .txt)
	FamilyExcel = "excel" // spreadsheet workbooks (.xlsx, .xls)
	FamilyPDF   = "pdf"   // portable documents
	FamilyImage = "image" // raster images (.png, .jpg, .jpeg, .gif, .bmp, .tiff)
)

// Semantic data types detected for tabular documents
const (
	DataTypeClients      = "clients"
	DataTypeProducts     = "products"
	DataTypeTransactions = "transactions"
	DataTypeGeneric      = "generic"
)

// Document represents an uploaded file and its extraction state
type Document struct {
	ID               string    `json:"id"`                         // UUID
	UserID           string    `json:"user_id"`                    // owning user
	Filename         string    `json:"filename"`                   // original upload name
	StoredName       string    `json:"stored_name"`                // uuid-keyed name in storage
	StoragePath      string    `json:"-"`                          // backend-specific location
	FileSize         int64     `json:"file_size"`                  // bytes
	MimeType         string    `json:"mime_type"`                  // sniffed content type
	FileType         string    `json:"file_type"`                  // format family: csv, excel, pdf, image
	ProcessingStatus string    `json:"processing_status"`          // pending, processing, completed, failed
	ErrorMessage     string    `json:"error_message,omitempty"`    // final failure reason, if any
	ExtractedText    string    `json:"extracted_text,omitempty"`   // full plain-text rendition
	StructuredData   []byte    `json:"structured_data,omitempty"`  // JSON blob, shape depends on family
	ConfidenceScore  *float64  `json:"confidence_score,omitempty"` // invoice extraction confidence, 0-100
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Deleted          bool      `json:"-"` // soft delete flag
}

// ValidStatusTransition reports whether a document may move from one
// processing status to another. Any status may return to pending via
// reprocessing.
func ValidStatusTransition(from, to string) bool {
	if to == StatusPending {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

// ColumnStats summarizes one column of a tabular document
type ColumnStats struct {
	NonNullCount int      `json:"non_null_count"`
	NullCount    int      `json:"null_count"`
	UniqueCount  int      `json:"unique_count"`
	DataType     string   `json:"data_type"`     // inferred: numeric, date, text
	SampleValues []string `json:"sample_values"` // up to 3 non-null values
}

// TableAnalysis holds table-level fill statistics plus per-column stats
type TableAnalysis struct {
	TotalCells int                    `json:"total_cells"`
	EmptyCells int                    `json:"empty_cells"`
	FillRate   float64                `json:"fill_rate"`
	Columns    map[string]ColumnStats `json:"columns"`
}

// TableData is the structured result for a delimited-text document
type TableData struct {
	DataType      string              `json:"data_type"` // clients, products, transactions, generic
	Encoding      string              `json:"encoding"`
	Delimiter     string              `json:"delimiter"`
	NumRows       int                 `json:"num_rows"` // rows retained (capped)
	NumColumns    int                 `json:"num_columns"`
	Truncated     bool                `json:"truncated"`
	Columns       []string            `json:"columns"`
	ColumnTypes   map[string]string   `json:"column_types"`
	Analysis      TableAnalysis       `json:"analysis"`
	PreviewData   []map[string]string `json:"preview_data"`  // first 10 rows
	SampleValues  map[string][]string `json:"sample_values"` // first 5 distinct values per column
	MappedRecords *MappedRecords      `json:"mapped_records,omitempty"`
}

// SheetData is the structured result for one worksheet
type SheetData struct {
	Name          string              `json:"name"`
	DataType      string              `json:"data_type"`
	NumRows       int                 `json:"num_rows"`
	NumColumns    int                 `json:"num_columns"`
	Truncated     bool                `json:"truncated"`
	Columns       []string            `json:"columns"`
	ColumnTypes   map[string]string   `json:"column_types"`
	Analysis      TableAnalysis       `json:"analysis"`
	PreviewData   []map[string]string `json:"preview_data"`
	SampleValues  map[string][]string `json:"sample_values"`
	MappedRecords *MappedRecords      `json:"mapped_records,omitempty"`
}

// WorkbookData is the structured result for a spreadsheet document
type WorkbookData struct {
	DataType   string      `json:"data_type"` // majority vote across sheets
	SheetCount int         `json:"sheet_count"`
	Sheets     []SheetData `json:"sheets"`
}

// MappedRecords carries semantically mapped rows for a detected data type
type MappedRecords struct {
	ColumnMapping  map[string]string   `json:"column_mapping"` // canonical field -> source column ("" when unmapped)
	DetectedFields []string            `json:"detected_fields"`
	Records        []map[string]string `json:"records"`
	TotalCount     int                 `json:"total_count"`
}

// LineItem is one detected invoice line
type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// Party is a detected client or supplier block
type Party struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// InvoiceData holds the fields recovered from an invoice-like document
type InvoiceData struct {
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	InvoiceDate   string     `json:"invoice_date,omitempty"` // first date found, as written
	DueDate       string     `json:"due_date,omitempty"`     // last date found, when more than one
	DatesFound    []string   `json:"dates_found,omitempty"`
	Client        *Party     `json:"client,omitempty"`
	Supplier      *Party     `json:"supplier,omitempty"`
	TotalHT       *float64   `json:"total_ht,omitempty"`   // amount before tax
	TVAAmount     *float64   `json:"tva_amount,omitempty"` // tax amount
	TotalTTC      *float64   `json:"total_ttc,omitempty"`  // amount including tax
	AmountsFound  []float64  `json:"amounts_found,omitempty"`
	LineItems     []LineItem `json:"line_items,omitempty"`
	Confidence    int        `json:"confidence_score"` // 0-100
}

// ProcessingMetadata records how a document was processed
type ProcessingMetadata struct {
	ProcessedAt      time.Time `json:"processed_at"`
	ProcessorVersion string    `json:"processor_version"`
	TextLength       int       `json:"text_length"`
	ExtractionMethod string    `json:"extraction_method,omitempty"` // which fallback step produced text
}

// FormatInfo describes one supported format family for the catalog endpoint
type FormatInfo struct {
	Family      string   `json:"family"`
	Description string   `json:"description"`
	MimeTypes   []string `json:"mime_types"`
	Extensions  []string `json:"extensions"`
}

// DocumentStats aggregates a user's documents for the stats endpoint
type DocumentStats struct {
	TotalDocuments int            `json:"total_documents"`
	TotalBytes     int64          `json:"total_bytes"`
	ByType         map[string]int `json:"by_type"`
	ByStatus       map[string]int `json:"by_status"`
}
