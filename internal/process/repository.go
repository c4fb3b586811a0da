package process

import (
	"context"

	"github.com/comptaflow/document-extraction-service/internal/db"
	"github.com/comptaflow/document-extraction-service/internal/models"
)

// Repository is the persistence surface the orchestrator needs. Tests
// substitute an in-memory fake; production delegates to the db package.
type Repository interface {
	Insert(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, userID, docID string) (*models.Document, error)
	List(ctx context.Context, userID, fileType, status string, limit, offset int) ([]models.Document, int, error)
	MarkProcessing(ctx context.Context, docID string) (bool, error)
	SaveResults(ctx context.Context, docID, text string, structured []byte, confidence *float64) error
	MarkFailed(ctx context.Context, docID, message string) error
	ResetForReprocess(ctx context.Context, userID, docID string) (bool, error)
	SoftDelete(ctx context.Context, userID, docID string) (bool, error)
	Stats(ctx context.Context, userID string) (*models.DocumentStats, error)
}

type dbRepository struct{}

// NewRepository returns the pgx-backed repository.
func NewRepository() Repository { return dbRepository{} }

func (dbRepository) Insert(ctx context.Context, doc *models.Document) error {
	return db.InsertDocument(ctx, doc)
}

func (dbRepository) Get(ctx context.Context, userID, docID string) (*models.Document, error) {
	return db.GetDocument(ctx, userID, docID)
}

func (dbRepository) List(ctx context.Context, userID, fileType, status string, limit, offset int) ([]models.Document, int, error) {
	return db.ListDocuments(ctx, userID, fileType, status, limit, offset)
}

func (dbRepository) MarkProcessing(ctx context.Context, docID string) (bool, error) {
	return db.MarkProcessing(ctx, docID)
}

func (dbRepository) SaveResults(ctx context.Context, docID, text string, structured []byte, confidence *float64) error {
	return db.SaveResults(ctx, docID, text, structured, confidence)
}

func (dbRepository) MarkFailed(ctx context.Context, docID, message string) error {
	return db.MarkFailed(ctx, docID, message)
}

func (dbRepository) ResetForReprocess(ctx context.Context, userID, docID string) (bool, error) {
	return db.ResetForReprocess(ctx, userID, docID)
}

func (dbRepository) SoftDelete(ctx context.Context, userID, docID string) (bool, error) {
	return db.SoftDeleteDocument(ctx, userID, docID)
}

func (dbRepository) Stats(ctx context.Context, userID string) (*models.DocumentStats, error) {
	return db.GetDocumentStats(ctx, userID)
}
