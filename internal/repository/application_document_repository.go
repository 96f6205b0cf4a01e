package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-portal/internal/models"
)

const documentColumns = `id, application_id, document_type, stored_name, original_name, mime_type, size_bytes, uploaded_at, deleted_at`

// ApplicationDocumentRepository handles supporting document metadata.
type ApplicationDocumentRepository struct {
	db *sqlx.DB
}

// NewApplicationDocumentRepository constructs the repository.
func NewApplicationDocumentRepository(db *sqlx.DB) *ApplicationDocumentRepository {
	return &ApplicationDocumentRepository{db: db}
}

// Create stores metadata for an uploaded file.
func (r *ApplicationDocumentRepository) Create(ctx context.Context, doc *models.ApplicationDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO application_documents
	(id, application_id, document_type, stored_name, original_name, mime_type, size_bytes, uploaded_at)
	VALUES (:id, :application_id, :document_type, :stored_name, :original_name, :mime_type, :size_bytes, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create application document: %w", err)
	}
	return nil
}

// FindByID returns one live document.
func (r *ApplicationDocumentRepository) FindByID(ctx context.Context, id string) (*models.ApplicationDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM application_documents WHERE id = $1 AND deleted_at IS NULL`
	var doc models.ApplicationDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find application document: %w", err)
	}
	return &doc, nil
}

// ListByApplication returns live documents in insertion order. seq is a BIGSERIAL, so uploads
// sharing a timestamp keep the order they were stored in.
func (r *ApplicationDocumentRepository) ListByApplication(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM application_documents
	WHERE application_id = $1 AND deleted_at IS NULL ORDER BY seq ASC`
	docs := make([]models.ApplicationDocument, 0)
	if err := r.db.SelectContext(ctx, &docs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list application documents: %w", err)
	}
	return docs, nil
}

// SoftDelete marks a document as deleted.
func (r *ApplicationDocumentRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	const query = `UPDATE application_documents SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete application document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check application document delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
