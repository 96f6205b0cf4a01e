package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/admissions-portal/internal/dto"
	"github.com/noah-isme/admissions-portal/internal/models"
	appErrors "github.com/noah-isme/admissions-portal/pkg/errors"
	"github.com/noah-isme/admissions-portal/pkg/jobs"
)

// JobTypeRemoveDocumentFile is the jobs queue type used to delete a stored file.
const JobTypeRemoveDocumentFile = "remove_document_file"

type applicationDocumentStore interface {
	Create(ctx context.Context, doc *models.ApplicationDocument) error
	FindByID(ctx context.Context, id string) (*models.ApplicationDocument, error)
	ListByApplication(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error)
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
}

type applicationGate interface {
	EnsureOpen(ctx context.Context, id string) (*models.Application, error)
}

type documentTypeCatalog interface {
	Known(ctx context.Context, code string) bool
}

type documentFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type documentURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string) (id, relPath string, expiresAt time.Time, err error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// DocumentUpload carries upload metadata and the file stream.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// DocumentDownload bundles an open file with the metadata needed to stream it.
type DocumentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// ApplicationDocumentServiceConfig holds validation parameters.
type ApplicationDocumentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// ApplicationDocumentService manages supporting documents for applications.
type ApplicationDocumentService struct {
	repo         applicationDocumentStore
	applications applicationGate
	catalog      documentTypeCatalog
	storage      documentFileStorage
	signer       documentURLSigner
	queue        jobEnqueuer
	validator    *validator.Validate
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          ApplicationDocumentServiceConfig
	mimeSet      map[string]struct{}
}

// NewApplicationDocumentService constructs the service with defaults.
func NewApplicationDocumentService(repo applicationDocumentStore, applications applicationGate, catalog documentTypeCatalog, storage documentFileStorage, signer documentURLSigner, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg ApplicationDocumentServiceConfig) *ApplicationDocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &ApplicationDocumentService{
		repo:         repo,
		applications: applications,
		catalog:      catalog,
		storage:      storage,
		signer:       signer,
		validator:    validate,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
		mimeSet:      mimeSet,
	}
}

// SetRemovalQueue wires the queue used to delete files after a document is removed. Without
// a queue files are deleted inline.
func (s *ApplicationDocumentService) SetRemovalQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Upload stores a file and its metadata for an open application.
func (s *ApplicationDocumentService) Upload(ctx context.Context, req dto.UploadDocumentRequest, upload DocumentUpload) (*models.ApplicationDocument, error) {
	req.ApplicationID = strings.TrimSpace(req.ApplicationID)
	req.DocumentType = strings.TrimSpace(req.DocumentType)
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordUploadRejected("validation")
		return nil, uploadFieldErrors(err)
	}
	if upload.Content == nil || upload.Size <= 0 {
		s.metrics.RecordUploadRejected("empty")
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "file is required"), map[string]string{"file": "Choose a file to upload"})
	}
	if upload.Size > s.cfg.MaxFileSize {
		s.metrics.RecordUploadRejected("size")
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSize))
	}

	if _, err := s.applications.EnsureOpen(ctx, req.ApplicationID); err != nil {
		return nil, err
	}
	if !s.catalog.Known(ctx, req.DocumentType) {
		s.metrics.RecordUploadRejected("document_type")
		return nil, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "unknown document type"), map[string]string{"documentType": "Select a valid document type"})
	}

	mimeType, err := detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[mimeType]; !allowed {
		s.metrics.RecordUploadRejected("mime")
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("file type %s is not allowed", mimeType))
	}

	stored := storedName(req.ApplicationID, req.DocumentType, upload.Filename, mimeType)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if _, err := s.storage.SaveStream(stored, io.LimitReader(upload.Content, s.cfg.MaxFileSize)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	doc := &models.ApplicationDocument{
		ApplicationID: req.ApplicationID,
		DocumentType:  req.DocumentType,
		StoredName:    stored,
		OriginalName:  originalName(upload.Filename),
		MimeType:      mimeType,
		SizeBytes:     upload.Size,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		_ = s.storage.Delete(stored)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}

	s.metrics.RecordDocumentUploaded(doc.DocumentType, doc.SizeBytes)
	s.logger.Info("document uploaded",
		zap.String("application_id", doc.ApplicationID),
		zap.String("document_id", doc.ID),
		zap.String("document_type", doc.DocumentType),
		zap.Int64("size_bytes", doc.SizeBytes),
	)
	return doc, nil
}

// List returns the live documents of an application in upload order.
func (s *ApplicationDocumentService) List(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error) {
	docs, err := s.repo.ListByApplication(ctx, strings.TrimSpace(applicationID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Delete removes exactly one document and returns its id. The stored file is removed in the
// background.
func (s *ApplicationDocumentService) Delete(ctx context.Context, documentID string) (string, error) {
	doc, err := s.find(ctx, documentID)
	if err != nil {
		return "", err
	}
	if _, err := s.applications.EnsureOpen(ctx, doc.ApplicationID); err != nil {
		return "", err
	}
	if err := s.repo.SoftDelete(ctx, doc.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}

	s.removeFile(doc)
	s.metrics.RecordDocumentDeleted()
	s.logger.Info("document deleted", zap.String("application_id", doc.ApplicationID), zap.String("document_id", doc.ID))
	return doc.ID, nil
}

// DownloadURL returns a short-lived signed URL for a document.
func (s *ApplicationDocumentService) DownloadURL(ctx context.Context, documentID string) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.find(ctx, documentID)
	if err != nil {
		return "", err
	}
	token, _, err := s.signer.Generate(doc.ID, doc.StoredName)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/application-documents/files/%s?token=%s", base, url.PathEscape(doc.ID), url.QueryEscape(token)), nil
}

// Open validates a download token and opens the stored file.
func (s *ApplicationDocumentService) Open(ctx context.Context, documentID, token string) (*DocumentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.find(ctx, documentID)
	if err != nil {
		return nil, err
	}
	tokenID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	if tokenID != doc.ID || relPath != doc.StoredName {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link does not match document")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document metadata")
	}
	return &DocumentDownload{
		File:      file,
		Filename:  doc.OriginalName,
		MimeType:  doc.MimeType,
		SizeBytes: info.Size(),
	}, nil
}

// HandleFileRemoval is the jobs queue handler deleting a stored file.
func (s *ApplicationDocumentService) HandleFileRemoval(ctx context.Context, job jobs.Job) error {
	name, ok := job.Payload.(string)
	if !ok || name == "" {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
	if err := s.storage.Delete(name); err != nil {
		return err
	}
	s.logger.Debug("stored file removed", zap.String("job_id", job.ID), zap.String("stored_name", name))
	return nil
}

// FileRemovalAbandoned is called by the queue once a removal job has used up its retries.
func (s *ApplicationDocumentService) FileRemovalAbandoned(job jobs.Job, err error) {
	s.metrics.RecordFileRemovalFailure()
	s.logger.Error("stored file left behind", zap.String("document_id", job.ID), zap.Any("stored_name", job.Payload), zap.Int("attempts", job.Attempt), zap.Error(err))
}

func (s *ApplicationDocumentService) removeFile(doc *models.ApplicationDocument) {
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{ID: doc.ID, Type: JobTypeRemoveDocumentFile, Payload: doc.StoredName})
		if err == nil {
			return
		}
		s.logger.Warn("enqueue file removal failed, deleting inline", zap.String("document_id", doc.ID), zap.Error(err))
	}
	if err := s.storage.Delete(doc.StoredName); err != nil {
		s.metrics.RecordFileRemovalFailure()
		s.logger.Error("delete stored file failed", zap.String("document_id", doc.ID), zap.Error(err))
	}
}

func (s *ApplicationDocumentService) find(ctx context.Context, id string) (*models.ApplicationDocument, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func uploadFieldErrors(err error) *appErrors.Error {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "ApplicationID":
				fields["applicationId"] = "Application id is required"
			case "DocumentType":
				fields["documentType"] = "Select a document type"
			}
		}
	}
	return appErrors.WithFields(appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload"), fields)
}

// detectMime prefers the sniffed type over the declared one so a renamed executable cannot
// pass as a PDF.
func detectMime(upload DocumentUpload) (string, error) {
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "empty file"), map[string]string{"file": "The selected file is empty"})
	}
	sniffed := baseMime(http.DetectContentType(header[:n]))
	if sniffed == "application/octet-stream" || sniffed == "text/plain" {
		if declared := baseMime(upload.MimeType); declared != "" {
			return declared, nil
		}
	}
	return sniffed, nil
}

func baseMime(raw string) string {
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return strings.ToLower(mediaType)
}

func storedName(applicationID, documentType, original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" || len(ext) > 6 {
		ext = mimeExtension(mimeType)
	}
	return path.Join(sanitize(applicationID), fmt.Sprintf("%s_%d_%s%s", sanitize(documentType), time.Now().Unix(), randomSuffix(), ext))
}

func originalName(raw string) string {
	name := filepath.Base(strings.ReplaceAll(raw, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "file"
	}
	return out
}

func mimeExtension(mimeType string) string {
	switch mimeType {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
