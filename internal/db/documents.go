package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/comptaflow/document-extraction-service/internal/models"
)

var (
	ErrNoDatabase = errors.New("database not available")
	ErrNotFound   = errors.New("document not found")
)

const documentColumns = `
	id, user_id, filename, stored_name, storage_path, file_size,
	COALESCE(mime_type, ''), file_type, processing_status,
	COALESCE(error_message, ''), COALESCE(extracted_text, ''),
	structured_data, confidence_score, created_at, updated_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(
		&doc.ID, &doc.UserID, &doc.Filename, &doc.StoredName, &doc.StoragePath, &doc.FileSize,
		&doc.MimeType, &doc.FileType, &doc.ProcessingStatus,
		&doc.ErrorMessage, &doc.ExtractedText,
		&doc.StructuredData, &doc.ConfidenceScore, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// InsertDocument stores a freshly uploaded document row.
func InsertDocument(ctx context.Context, doc *models.Document) error {
	if Pool == nil {
		return ErrNoDatabase
	}

	query := `
		INSERT INTO documents (
			id, user_id, filename, stored_name, storage_path,
			file_size, mime_type, file_type, processing_status
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	return Pool.QueryRow(ctx, query,
		doc.ID, doc.UserID, doc.Filename, doc.StoredName, doc.StoragePath,
		doc.FileSize, doc.MimeType, doc.FileType, doc.ProcessingStatus,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
}

// GetDocument fetches one document owned by the given user.
// Soft-deleted rows are treated as absent.
func GetDocument(ctx context.Context, userID, docID string) (*models.Document, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id = $1 AND id = $2::uuid AND NOT deleted
	`

	return scanDocument(Pool.QueryRow(ctx, query, userID, docID))
}

// ListDocuments returns one page of a user's documents, newest first.
// fileType and status filter when non-empty.
func ListDocuments(ctx context.Context, userID, fileType, status string, limit, offset int) ([]models.Document, int, error) {
	if Pool == nil {
		return nil, 0, ErrNoDatabase
	}

	where := `WHERE user_id = $1 AND NOT deleted
		AND ($2 = '' OR file_type = $2)
		AND ($3 = '' OR processing_status = $3)`

	var total int
	countQuery := `SELECT COUNT(*) FROM documents ` + where
	if err := Pool.QueryRow(ctx, countQuery, userID, fileType, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + documentColumns + `
		FROM documents ` + where + `
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	rows, err := Pool.Query(ctx, query, userID, fileType, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, *doc)
	}

	return docs, total, rows.Err()
}

// MarkProcessing moves a document into the processing state. The guard
// on the current status makes concurrent dispatches lose cleanly: the
// second caller sees false and must not run the pipeline.
func MarkProcessing(ctx context.Context, docID string) (bool, error) {
	if Pool == nil {
		return false, ErrNoDatabase
	}

	query := `
		UPDATE documents
		SET processing_status = 'processing', updated_at = now()
		WHERE id = $1::uuid AND processing_status != 'processing' AND NOT deleted
	`

	tag, err := Pool.Exec(ctx, query, docID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SaveResults records a successful extraction and completes the document.
// Partial results are still a completion; text and structured may each be
// empty independently.
func SaveResults(ctx context.Context, docID string, text string, structured []byte, confidence *float64) error {
	if Pool == nil {
		return ErrNoDatabase
	}

	query := `
		UPDATE documents
		SET processing_status = 'completed',
		    extracted_text = $2,
		    structured_data = $3,
		    confidence_score = $4,
		    error_message = NULL,
		    updated_at = now()
		WHERE id = $1::uuid
	`

	var structuredArg interface{}
	if len(structured) > 0 {
		structuredArg = structured
	}

	_, err := Pool.Exec(ctx, query, docID, text, structuredArg, confidence)
	return err
}

// MarkFailed records the final failure reason and fails the document.
func MarkFailed(ctx context.Context, docID, message string) error {
	if Pool == nil {
		return ErrNoDatabase
	}

	query := `
		UPDATE documents
		SET processing_status = 'failed', error_message = $2, updated_at = now()
		WHERE id = $1::uuid
	`

	_, err := Pool.Exec(ctx, query, docID, message)
	return err
}

// ResetForReprocess clears previous outputs and returns the document to
// pending. A document currently being processed is left alone and the
// call reports false so the caller can surface the conflict.
func ResetForReprocess(ctx context.Context, userID, docID string) (bool, error) {
	if Pool == nil {
		return false, ErrNoDatabase
	}

	query := `
		UPDATE documents
		SET processing_status = 'pending',
		    error_message = NULL,
		    extracted_text = NULL,
		    structured_data = NULL,
		    confidence_score = NULL,
		    updated_at = now()
		WHERE user_id = $1 AND id = $2::uuid
		  AND processing_status != 'processing' AND NOT deleted
	`

	tag, err := Pool.Exec(ctx, query, userID, docID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SoftDeleteDocument hides a document from all subsequent reads.
func SoftDeleteDocument(ctx context.Context, userID, docID string) (bool, error) {
	if Pool == nil {
		return false, ErrNoDatabase
	}

	query := `
		UPDATE documents
		SET deleted = true, updated_at = now()
		WHERE user_id = $1 AND id = $2::uuid AND NOT deleted
	`

	tag, err := Pool.Exec(ctx, query, userID, docID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GetDocumentStats aggregates a user's documents by family and status.
func GetDocumentStats(ctx context.Context, userID string) (*models.DocumentStats, error) {
	if Pool == nil {
		return nil, ErrNoDatabase
	}

	stats := &models.DocumentStats{
		ByType:   make(map[string]int),
		ByStatus: make(map[string]int),
	}

	summary := `
		SELECT COUNT(*), COALESCE(SUM(file_size), 0)
		FROM documents
		WHERE user_id = $1 AND NOT deleted
	`
	if err := Pool.QueryRow(ctx, summary, userID).Scan(&stats.TotalDocuments, &stats.TotalBytes); err != nil {
		return nil, err
	}

	grouped := `
		SELECT file_type, processing_status, COUNT(*)
		FROM documents
		WHERE user_id = $1 AND NOT deleted
		GROUP BY file_type, processing_status
	`
	rows, err := Pool.Query(ctx, grouped, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var fileType, status string
		var count int
		if err := rows.Scan(&fileType, &status, &count); err != nil {
			return nil, err
		}
		stats.ByType[fileType] += count
		stats.ByStatus[status] += count
	}

	return stats, rows.Err()
}
