// Package process drives a document from upload to its terminal
// status: pending, processing, then completed or failed. Each document
// runs through at most one extraction at a time; the guard is a
// conditional status update, not a lock.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comptaflow/document-extraction-service/internal/extract"
	"github.com/comptaflow/document-extraction-service/internal/format"
	"github.com/comptaflow/document-extraction-service/internal/invoice"
	"github.com/comptaflow/document-extraction-service/internal/models"
	"github.com/comptaflow/document-extraction-service/internal/storage"
)

const processorVersion = "1.0.0"

var (
	// ErrUnsupportedFormat is returned by Submit before any document
	// row exists.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrTooLarge rejects uploads over the size cap.
	ErrTooLarge = errors.New("file exceeds maximum size")
	// ErrSourceMissing means the stored file is gone; reprocess fails
	// fast and leaves the status untouched.
	ErrSourceMissing = errors.New("stored file missing")
	// ErrConflict means an extraction is already running.
	ErrConflict = errors.New("document is currently processing")
)

type textExtractor interface {
	ExtractText(ctx context.Context, path string) (text, method string, err error)
}

type delimitedExtractor interface {
	ExtractText(path string) (string, error)
	ExtractStructured(path string) (*models.TableData, error)
}

type workbookExtractor interface {
	ExtractText(path string) (string, error)
	ExtractStructured(path string) (*models.WorkbookData, error)
}

// Orchestrator owns the processing pipeline and the status machine.
type Orchestrator struct {
	repo   Repository
	store  storage.Store
	csv    delimitedExtractor
	excel  workbookExtractor
	pdf    textExtractor
	image  textExtractor
	logger *slog.Logger

	wg sync.WaitGroup
}

// New wires the orchestrator with the real extractors.
func New(repo Repository, store storage.Store, ocr models.OCRConfig) *Orchestrator {
	runner := extract.NewRunner()
	return &Orchestrator{
		repo:   repo,
		store:  store,
		csv:    extract.CSVExtractor{},
		excel:  extract.ExcelExtractor{},
		pdf:    extract.NewPDFExtractor(runner, ocr.PdftotextBin),
		image:  extract.NewImageExtractor(runner, ocr.TesseractBin, ocr.Languages),
		logger: slog.Default(),
	}
}

// Wait blocks until all in-flight extractions finish. Used on shutdown.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Submit validates an upload, persists the file and a pending document
// row, and dispatches extraction off the request path. Unsupported
// formats are rejected before anything is written.
func (o *Orchestrator) Submit(ctx context.Context, userID, filename string, r io.Reader, size int64) (*models.Document, error) {
	if size > format.MaxFileSize {
		return nil, ErrTooLarge
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	family, mimeType, ok := format.Sniff(head, filename)
	if !ok {
		return nil, ErrUnsupportedFormat
	}

	storedName := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	body := io.MultiReader(bytes.NewReader(head), r)

	storagePath, err := o.store.Save(ctx, userID, storedName, body, size, mimeType)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	doc := &models.Document{
		ID:               uuid.NewString(),
		UserID:           userID,
		Filename:         filename,
		StoredName:       storedName,
		StoragePath:      storagePath,
		FileSize:         size,
		MimeType:         mimeType,
		FileType:         family,
		ProcessingStatus: models.StatusPending,
	}

	if err := o.repo.Insert(ctx, doc); err != nil {
		if delErr := o.store.Delete(ctx, storagePath); delErr != nil {
			o.logger.Warn("orphaned upload could not be removed", "path", storagePath, "error", delErr)
		}
		return nil, fmt.Errorf("persist document: %w", err)
	}

	o.dispatch(doc)
	return doc, nil
}

// Reprocess returns a document to pending with its previous outputs
// cleared and dispatches a fresh pipeline run. It fails fast when the
// stored file no longer exists and refuses to interrupt a running
// extraction.
func (o *Orchestrator) Reprocess(ctx context.Context, userID, docID string) (*models.Document, error) {
	doc, err := o.repo.Get(ctx, userID, docID)
	if err != nil {
		return nil, err
	}

	exists, err := o.store.Exists(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("check stored file: %w", err)
	}
	if !exists {
		return nil, ErrSourceMissing
	}

	ok, err := o.repo.ResetForReprocess(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	doc.ProcessingStatus = models.StatusPending
	doc.ErrorMessage = ""
	doc.ExtractedText = ""
	doc.StructuredData = nil
	doc.ConfidenceScore = nil

	o.dispatch(doc)
	return doc, nil
}

// Delete soft-deletes the document row and removes the stored file.
func (o *Orchestrator) Delete(ctx context.Context, userID, docID string) error {
	doc, err := o.repo.Get(ctx, userID, docID)
	if err != nil {
		return err
	}

	ok, err := o.repo.SoftDelete(ctx, userID, docID)
	if err != nil {
		return err
	}
	if !ok {
		// Deleted concurrently; the stored file still goes.
		o.logger.Warn("document already deleted", "document_id", docID)
	}

	if err := o.store.Delete(ctx, doc.StoragePath); err != nil {
		o.logger.Warn("stored file could not be removed", "document_id", docID, "error", err)
	}
	return nil
}

// Download streams the stored original.
func (o *Orchestrator) Download(ctx context.Context, userID, docID string) (io.ReadCloser, *models.Document, error) {
	doc, err := o.repo.Get(ctx, userID, docID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := o.store.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, ErrSourceMissing
	}
	return rc, doc, nil
}

// StatusInfo is the light status projection for polling clients.
type StatusInfo struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Confidence   *float64  `json:"confidence_score,omitempty"`
	HasText      bool      `json:"has_text"`
	HasData      bool      `json:"has_data"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GetStatus reports where a document is in the pipeline.
func (o *Orchestrator) GetStatus(ctx context.Context, userID, docID string) (*StatusInfo, error) {
	doc, err := o.repo.Get(ctx, userID, docID)
	if err != nil {
		return nil, err
	}
	return &StatusInfo{
		ID:           doc.ID,
		Status:       doc.ProcessingStatus,
		ErrorMessage: doc.ErrorMessage,
		Confidence:   doc.ConfidenceScore,
		HasText:      doc.ExtractedText != "",
		HasData:      len(doc.StructuredData) > 0,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func (o *Orchestrator) dispatch(doc *models.Document) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(context.Background(), doc)
	}()
}

// run is the pipeline body. Partial results still complete the
// document; only a run that produced neither text nor structured data,
// or could not reach the stored file, fails it.
func (o *Orchestrator) run(ctx context.Context, doc *models.Document) {
	ok, err := o.repo.MarkProcessing(ctx, doc.ID)
	if err != nil {
		o.logger.Error("could not mark document processing", "document_id", doc.ID, "error", err)
		return
	}
	if !ok {
		o.logger.Warn("extraction already running, skipping dispatch", "document_id", doc.ID)
		return
	}

	path, cleanup, err := o.store.LocalPath(ctx, doc.StoragePath)
	if err != nil {
		o.fail(ctx, doc.ID, fmt.Sprintf("stored file unavailable: %v", err))
		return
	}
	defer cleanup()

	result, err := o.extract(ctx, doc.FileType, path)
	if err != nil {
		o.fail(ctx, doc.ID, err.Error())
		return
	}

	structured, err := o.encode(result)
	if err != nil {
		o.fail(ctx, doc.ID, fmt.Sprintf("encode results: %v", err))
		return
	}

	if err := o.repo.SaveResults(ctx, doc.ID, result.text, structured, result.confidence); err != nil {
		o.logger.Error("could not persist extraction results", "document_id", doc.ID, "error", err)
		o.fail(ctx, doc.ID, fmt.Sprintf("persist results: %v", err))
		return
	}

	o.logger.Info("document processed",
		"document_id", doc.ID,
		"family", doc.FileType,
		"text_length", len(result.text),
		"has_data", result.table != nil || result.workbook != nil || result.invoice != nil,
	)
}

type extractionResult struct {
	text       string
	method     string
	table      *models.TableData
	workbook   *models.WorkbookData
	invoice    *models.InvoiceData
	confidence *float64
}

// extract runs the family's text/structured extractor pair. For the
// tabular families the two run independently and either may carry the
// document to completion alone. For documents and images, structured
// data means invoice fields recovered from the text.
func (o *Orchestrator) extract(ctx context.Context, family, path string) (*extractionResult, error) {
	res := &extractionResult{}

	switch family {
	case models.FamilyCSV:
		text, textErr := o.csv.ExtractText(path)
		table, structErr := o.csv.ExtractStructured(path)
		if textErr != nil && structErr != nil {
			return nil, errors.Join(textErr, structErr)
		}
		if textErr != nil {
			o.logger.Warn("text extraction failed, keeping structured data", "path", path, "error", textErr)
		}
		if structErr != nil {
			o.logger.Warn("structured extraction failed, keeping text", "path", path, "error", structErr)
		}
		res.text = text
		res.table = table

	case models.FamilyExcel:
		text, textErr := o.excel.ExtractText(path)
		workbook, structErr := o.excel.ExtractStructured(path)
		if textErr != nil && structErr != nil {
			return nil, errors.Join(textErr, structErr)
		}
		if textErr != nil {
			o.logger.Warn("text extraction failed, keeping structured data", "path", path, "error", textErr)
		}
		if structErr != nil {
			o.logger.Warn("structured extraction failed, keeping text", "path", path, "error", structErr)
		}
		res.text = text
		res.workbook = workbook

	case models.FamilyPDF:
		text, method, err := o.pdf.ExtractText(ctx, path)
		if err != nil {
			return nil, err
		}
		res.text = text
		res.method = method
		o.attachInvoice(res)

	case models.FamilyImage:
		// An image with no legible text completes with empty text
		// rather than failing; only extractor errors are fatal.
		text, method, err := o.image.ExtractText(ctx, path)
		if err != nil {
			return nil, err
		}
		res.text = text
		res.method = method
		o.attachInvoice(res)

	default:
		return nil, fmt.Errorf("unsupported family reached pipeline: %s", family)
	}

	return res, nil
}

func (o *Orchestrator) attachInvoice(res *extractionResult) {
	data := invoice.Extract(res.text)
	if data == nil {
		return
	}
	res.invoice = data
	conf := float64(data.Confidence)
	res.confidence = &conf
}

type tablePayload struct {
	*models.TableData
	ProcessingMetadata models.ProcessingMetadata `json:"processing_metadata"`
}

type workbookPayload struct {
	*models.WorkbookData
	ProcessingMetadata models.ProcessingMetadata `json:"processing_metadata"`
}

type invoicePayload struct {
	DataType           string                    `json:"data_type"`
	InvoiceData        *models.InvoiceData       `json:"invoice_data"`
	ProcessingMetadata models.ProcessingMetadata `json:"processing_metadata"`
}

// encode marshals the structured payload with the processing metadata
// folded in. A run with no structured result encodes to nil so the
// column stays NULL.
func (o *Orchestrator) encode(res *extractionResult) ([]byte, error) {
	meta := models.ProcessingMetadata{
		ProcessedAt:      time.Now().UTC(),
		ProcessorVersion: processorVersion,
		TextLength:       len(res.text),
		ExtractionMethod: res.method,
	}

	switch {
	case res.table != nil:
		return json.Marshal(tablePayload{TableData: res.table, ProcessingMetadata: meta})
	case res.workbook != nil:
		return json.Marshal(workbookPayload{WorkbookData: res.workbook, ProcessingMetadata: meta})
	case res.invoice != nil:
		return json.Marshal(invoicePayload{DataType: "invoice", InvoiceData: res.invoice, ProcessingMetadata: meta})
	}
	return nil, nil
}

func (o *Orchestrator) fail(ctx context.Context, docID, message string) {
	o.logger.Error("document processing failed", "document_id", docID, "error", message)
	if err := o.repo.MarkFailed(ctx, docID, message); err != nil {
		o.logger.Error("could not mark document failed", "document_id", docID, "error", err)
	}
}
