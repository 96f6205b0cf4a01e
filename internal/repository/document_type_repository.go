package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/admissions-portal/internal/models"
)

// DocumentTypeRepository reads the document type catalog.
type DocumentTypeRepository struct {
	db *sqlx.DB
}

// NewDocumentTypeRepository constructs the repository.
func NewDocumentTypeRepository(db *sqlx.DB) *DocumentTypeRepository {
	return &DocumentTypeRepository{db: db}
}

// ListActive returns active document types in display order.
func (r *DocumentTypeRepository) ListActive(ctx context.Context) ([]models.DocumentType, error) {
	const query = `SELECT code, label, sort_order, active FROM document_types WHERE active = TRUE ORDER BY sort_order ASC, code ASC`
	types := make([]models.DocumentType, 0)
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	return types, nil
}
