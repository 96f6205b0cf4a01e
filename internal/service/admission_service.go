package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-portal/internal/dto"
	"github.com/noah-isme/admissions-portal/internal/models"
	"github.com/noah-isme/admissions-portal/pkg/admission"
	appErrors "github.com/noah-isme/admissions-portal/pkg/errors"
	"github.com/noah-isme/admissions-portal/pkg/export"
)

type applicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ApplicationStatus, reviewer, note string, at time.Time) error
}

type applicationDocumentLister interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error)
}

// AdmissionService implements application submission and back-office review.
type AdmissionService struct {
	repo      applicationStore
	documents applicationDocumentLister
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewAdmissionService constructs the service.
func NewAdmissionService(repo applicationStore, documents applicationDocumentLister, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdmissionService{repo: repo, documents: documents, validator: validate, metrics: metrics, logger: logger}
}

// Submit validates every data stage of the draft and stores it as a new application.
func (s *AdmissionService) Submit(ctx context.Context, draft admission.ApplicationDraft) (*models.Application, error) {
	if _, errs, ok := admission.ValidateAll(draft); !ok {
		s.metrics.RecordSubmissionRejected("validation")
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "please correct the highlighted fields"), errs)
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode application")
	}

	id := uuid.NewString()
	app := &models.Application{
		ID:             id,
		Reference:      newReference(draft.Year, id),
		LearnerSurname: strings.TrimSpace(draft.Surname),
		LearnerName:    strings.TrimSpace(draft.LearnerName),
		GradeApplying:  strings.TrimSpace(draft.GradeApplying),
		AcademicYear:   strings.TrimSpace(draft.Year),
		Status:         models.ApplicationSubmitted,
		Payload:        types.JSONText(payload),
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store application")
	}

	s.metrics.RecordApplicationSubmitted()
	s.logger.Info("application submitted",
		zap.String("application_id", app.ID),
		zap.String("reference", app.Reference),
		zap.String("grade", app.GradeApplying),
	)
	return app, nil
}

// EnsureOpen loads an application that may still receive documents.
func (s *AdmissionService) EnsureOpen(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status.Final() {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "application has already been decided")
	}
	return app, nil
}

// Get returns an application with its live documents.
func (s *AdmissionService) Get(ctx context.Context, id string) (*dto.ApplicationDetail, error) {
	app, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListByApplication(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return &dto.ApplicationDetail{Application: *app, Documents: docs}, nil
}

// List returns a page of applications.
func (s *AdmissionService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error) {
	apps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return apps, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

const (
	exportPageSize = 100
	maxExportRows  = 5000
)

var exportHeaders = []string{"reference", "surname", "name", "grade", "year", "status", "submitted_at", "reviewed_at"}

// Export collects every application matching filter, ignoring its paging, as a CSV ready
// dataset. The export is capped at maxExportRows rows.
func (s *AdmissionService) Export(ctx context.Context, filter models.ApplicationFilter) (export.Dataset, error) {
	data := export.Dataset{Headers: exportHeaders}
	filter.PageSize = exportPageSize
	for filter.Page = 1; len(data.Rows) < maxExportRows; filter.Page++ {
		apps, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export applications")
		}
		for _, app := range apps {
			data.Rows = append(data.Rows, exportRow(app))
		}
		if len(apps) < exportPageSize || len(data.Rows) >= total {
			break
		}
	}
	if len(data.Rows) > maxExportRows {
		data.Rows = data.Rows[:maxExportRows]
	}
	s.logger.Info("applications exported", zap.Int("rows", len(data.Rows)), zap.String("status", string(filter.Status)))
	return data, nil
}

func exportRow(app models.Application) []string {
	reviewed := ""
	if app.ReviewedAt != nil {
		reviewed = app.ReviewedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		app.Reference,
		app.LearnerSurname,
		app.LearnerName,
		app.GradeApplying,
		app.AcademicYear,
		string(app.Status),
		app.SubmittedAt.UTC().Format(time.RFC3339),
		reviewed,
	}
}

// UpdateStatus applies a review decision.
func (s *AdmissionService) UpdateStatus(ctx context.Context, id string, req dto.UpdateApplicationStatusRequest, actor *models.JWTClaims) (*models.Application, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	app, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status.Final() {
		return nil, appErrors.Clone(appErrors.ErrFinalized, "application has already been decided")
	}
	if !app.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move application from %s to %s", app.Status, req.Status))
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, app.Status, req.Status, actor.UserID, strings.TrimSpace(req.Note), now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "application was updated concurrently, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}

	s.metrics.RecordStatusChange(string(req.Status))
	s.logger.Info("application status changed",
		zap.String("application_id", id),
		zap.String("from", string(app.Status)),
		zap.String("to", string(req.Status)),
		zap.String("reviewer", actor.UserID),
	)

	app.Status = req.Status
	app.ReviewedBy = &actor.UserID
	app.ReviewedAt = &now
	app.UpdatedAt = now
	if note := strings.TrimSpace(req.Note); note != "" {
		app.ReviewNote = &note
	}
	return app, nil
}

func (s *AdmissionService) find(ctx context.Context, id string) (*models.Application, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return app, nil
}

// newReference builds the human friendly reference quoted to parents, e.g. ADM-2026-1A2B3C4D.
func newReference(year, id string) string {
	year = strings.TrimSpace(year)
	if _, err := strconv.Atoi(year); err != nil || len(year) != 4 {
		year = strconv.Itoa(time.Now().UTC().Year())
	}
	short := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("ADM-%s-%s", year, short)
}
