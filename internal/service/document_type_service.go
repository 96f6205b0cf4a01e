package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-portal/internal/models"
	"github.com/noah-isme/admissions-portal/pkg/admission"
)

const documentTypesCacheKey = "admissions:document-types"

type documentTypeLister interface {
	ListActive(ctx context.Context) ([]models.DocumentType, error)
}

// DocumentTypeService serves the document type catalog from the database through the cache,
// falling back to the built-in list when the table is unavailable or empty.
type DocumentTypeService struct {
	repo    documentTypeLister
	cache   *CacheService
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewDocumentTypeService constructs the catalog service.
func NewDocumentTypeService(repo documentTypeLister, cache *CacheService, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *DocumentTypeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentTypeService{repo: repo, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// List returns the catalog. It never fails.
func (s *DocumentTypeService) List(ctx context.Context) []admission.DocumentTypeDescriptor {
	var cached []admission.DocumentTypeDescriptor
	if hit, err := s.cache.Get(ctx, documentTypesCacheKey, &cached); err == nil && hit && len(cached) > 0 {
		return cached
	}

	rows, err := s.repo.ListActive(ctx)
	if err != nil || len(rows) == 0 {
		if err != nil {
			s.logger.Warn("load document types failed, serving built-in list", zap.Error(err))
		}
		s.metrics.RecordCatalogFallback()
		return admission.FallbackDocumentTypes()
	}

	types := make([]admission.DocumentTypeDescriptor, 0, len(rows))
	for _, row := range rows {
		types = append(types, admission.DocumentTypeDescriptor{Code: row.Code, Label: row.Label})
	}
	_ = s.cache.Set(ctx, documentTypesCacheKey, types, s.ttl)
	return types
}

// Known reports whether code is part of the served catalog.
func (s *DocumentTypeService) Known(ctx context.Context, code string) bool {
	for _, t := range s.List(ctx) {
		if t.Code == code {
			return true
		}
	}
	return false
}

// Invalidate drops the cached catalog so the next List reads the table. It runs at startup so
// rows changed by a migration are served without waiting for the TTL.
func (s *DocumentTypeService) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, documentTypesCacheKey)
}
