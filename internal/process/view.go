package process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

// ErrNotProcessed means the document has no results to project yet.
var ErrNotProcessed = errors.New("document has no extraction results")

// Accounting view types
const (
	ViewInvoice            = "invoice"
	ViewClientsImport      = "clients_import"
	ViewProductsImport     = "products_import"
	ViewTransactionsImport = "transactions_import"
	ViewGeneric            = "generic"
)

// AccountingView is the read-only projection of a processed document
// for import into accounting tools.
type AccountingView struct {
	DocumentID    string              `json:"document_id"`
	ViewType      string              `json:"view_type"`
	Invoice       *models.InvoiceData `json:"invoice,omitempty"`
	ColumnMapping map[string]string   `json:"column_mapping,omitempty"`
	Records       []map[string]string `json:"records,omitempty"`
	TotalCount    int                 `json:"total_count,omitempty"`
}

// storedPayload covers all three structured-data envelopes; absent
// keys simply stay zero.
type storedPayload struct {
	DataType      string                `json:"data_type"`
	InvoiceData   *models.InvoiceData   `json:"invoice_data"`
	MappedRecords *models.MappedRecords `json:"mapped_records"`
	Sheets        []models.SheetData    `json:"sheets"`
}

// ExtractAccountingView projects a completed document's results into
// an invoice, a typed import set, or a generic marker. Tabular
// documents contribute the mapped records of every sheet matching the
// detected type.
func (o *Orchestrator) ExtractAccountingView(ctx context.Context, userID, docID string) (*AccountingView, error) {
	doc, err := o.repo.Get(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if doc.ProcessingStatus != models.StatusCompleted || len(doc.StructuredData) == 0 {
		return nil, ErrNotProcessed
	}

	var payload storedPayload
	if err := json.Unmarshal(doc.StructuredData, &payload); err != nil {
		return nil, fmt.Errorf("decode structured data: %w", err)
	}

	view := &AccountingView{DocumentID: doc.ID, ViewType: ViewGeneric}

	if payload.InvoiceData != nil {
		view.ViewType = ViewInvoice
		view.Invoice = payload.InvoiceData
		return view, nil
	}

	importType, ok := importViewType(payload.DataType)
	if !ok {
		return view, nil
	}

	mapping, records := collectRecords(&payload)
	if len(records) == 0 {
		return view, nil
	}

	view.ViewType = importType
	view.ColumnMapping = mapping
	view.Records = records
	view.TotalCount = len(records)
	return view, nil
}

func importViewType(dataType string) (string, bool) {
	switch dataType {
	case models.DataTypeClients:
		return ViewClientsImport, true
	case models.DataTypeProducts:
		return ViewProductsImport, true
	case models.DataTypeTransactions:
		return ViewTransactionsImport, true
	}
	return "", false
}

func collectRecords(payload *storedPayload) (map[string]string, []map[string]string) {
	if payload.MappedRecords != nil {
		return payload.MappedRecords.ColumnMapping, payload.MappedRecords.Records
	}

	// Workbook: merge records from the sheets that voted for the
	// workbook-level type. The first such sheet's mapping wins.
	var mapping map[string]string
	var records []map[string]string
	for _, sheet := range payload.Sheets {
		if sheet.DataType != payload.DataType || sheet.MappedRecords == nil {
			continue
		}
		if mapping == nil {
			mapping = sheet.MappedRecords.ColumnMapping
		}
		records = append(records, sheet.MappedRecords.Records...)
	}
	return mapping, records
}
