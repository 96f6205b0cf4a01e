package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-portal/internal/dto"
	"github.com/noah-isme/admissions-portal/internal/models"
	"github.com/noah-isme/admissions-portal/pkg/admission"
	appErrors "github.com/noah-isme/admissions-portal/pkg/errors"
	"github.com/noah-isme/admissions-portal/pkg/jobs"
	"github.com/noah-isme/admissions-portal/pkg/storage"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

type documentRepoStub struct {
	mu   sync.Mutex
	seq  int
	docs map[string]*models.ApplicationDocument
}

func newDocumentRepoStub() *documentRepoStub {
	return &documentRepoStub{docs: map[string]*models.ApplicationDocument{}}
}

func (r *documentRepoStub) Create(ctx context.Context, doc *models.ApplicationDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	doc.ID = fmt.Sprintf("doc-%d", r.seq)
	doc.UploadedAt = time.Unix(int64(r.seq), 0)
	copy := *doc
	r.docs[doc.ID] = &copy
	return nil
}

func (r *documentRepoStub) FindByID(ctx context.Context, id string) (*models.ApplicationDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.DeletedAt != nil {
		return nil, sql.ErrNoRows
	}
	copy := *doc
	return &copy, nil
}

func (r *documentRepoStub) ListByApplication(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.ApplicationDocument{}
	for _, doc := range r.docs {
		if doc.ApplicationID == applicationID && doc.DeletedAt == nil {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (r *documentRepoStub) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok || doc.DeletedAt != nil {
		return sql.ErrNoRows
	}
	doc.DeletedAt = &deletedAt
	return nil
}

type catalogStub struct{}

func (catalogStub) Known(ctx context.Context, code string) bool {
	for _, dt := range admission.FallbackDocumentTypes() {
		if dt.Code == code {
			return true
		}
	}
	return false
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type documentFixture struct {
	svc     *ApplicationDocumentService
	repo    *documentRepoStub
	apps    *applicationRepoStub
	storage *storage.LocalStorage
	queue   *queueStub
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	apps := newApplicationRepoStub()
	apps.put(models.Application{ID: "app-1", Status: models.ApplicationSubmitted})
	apps.put(models.Application{ID: "app-done", Status: models.ApplicationDeclined})
	admissions := NewAdmissionService(apps, nil, nil, nil, nil)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := newDocumentRepoStub()
	queue := &queueStub{}
	svc := NewApplicationDocumentService(repo, admissions, catalogStub{}, store, storage.NewSignedURLSigner("secret", time.Minute), nil, NewMetricsService(), nil, ApplicationDocumentServiceConfig{
		MaxFileSize:  1024,
		AllowedMIMEs: []string{"application/pdf", "image/png"},
	})
	svc.SetRemovalQueue(queue)
	return &documentFixture{svc: svc, repo: repo, apps: apps, storage: store, queue: queue}
}

func pdfUpload(name string) DocumentUpload {
	return DocumentUpload{Filename: name, Size: int64(len(pdfBytes)), MimeType: "application/pdf", Content: bytes.NewReader(pdfBytes)}
}

func TestDocumentServiceUploadAndList(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: admission.DocBirthCertificate}, pdfUpload("birth.pdf"))
	require.NoError(t, err)
	require.Equal(t, "application/pdf", first.MimeType)
	require.Equal(t, "birth.pdf", first.OriginalName)
	require.True(t, strings.HasPrefix(first.StoredName, "app-1/birth_certificate_"))

	second, err := f.svc.Upload(ctx, dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: admission.DocSchoolReport}, pdfUpload(`C:\docs\report.pdf`))
	require.NoError(t, err)
	require.Equal(t, "report.pdf", second.OriginalName)

	docs, err := f.svc.List(ctx, "app-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, first.ID, docs[0].ID)
	require.Equal(t, second.ID, docs[1].ID)

	again, err := f.svc.List(ctx, "app-1")
	require.NoError(t, err)
	require.Equal(t, docs, again)
}

func TestDocumentServiceUploadValidation(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		req    dto.UploadDocumentRequest
		upload DocumentUpload
		status int
	}{
		{"missing fields", dto.UploadDocumentRequest{}, pdfUpload("a.pdf"), http.StatusBadRequest},
		{"no file", dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: admission.DocOther}, DocumentUpload{}, http.StatusBadRequest},
		{"too large", dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: admission.DocOther}, DocumentUpload{Filename: "a.pdf", Size: 4096, Content: bytes.NewReader(pdfBytes)}, http.StatusRequestEntityTooLarge},
		{"unknown application", dto.UploadDocumentRequest{ApplicationID: "nope", DocumentType: admission.DocOther}, pdfUpload("a.pdf"), http.StatusNotFound},
		{"decided application", dto.UploadDocumentRequest{ApplicationID: "app-done", DocumentType: admission.DocOther}, pdfUpload("a.pdf"), http.StatusConflict},
		{"unknown type", dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: "PASSPORT"}, pdfUpload("a.pdf"), http.StatusBadRequest},
		{"disguised gif", dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: admission.DocOther}, DocumentUpload{Filename: "a.pdf", Size: 10, MimeType: "application/pdf", Content: bytes.NewReader([]byte("GIF89a\x01\x00\x01\x00"))}, http.StatusUnsupportedMediaType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Upload(ctx, tc.req, tc.upload)
			require.Error(t, err)
			require.Equal(t, tc.status, appErrors.FromError(err).Status)
		})
	}

	docs, err := f.svc.List(ctx, "app-1")
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestDocumentServiceUploadReportsFieldErrors(t *testing.T) {
	f := newDocumentFixture(t)
	_, err := f.svc.Upload(context.Background(), dto.UploadDocumentRequest{ApplicationID: " "}, pdfUpload("a.pdf"))
	appErr := appErrors.FromError(err)
	fields := map[string]bool{}
	for _, fe := range appErr.Fields {
		fields[fe.Field] = true
	}
	require.True(t, fields["applicationId"])
	require.True(t, fields["documentType"])
}

func TestDocumentServiceDeleteIsPrecise(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	req := dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: admission.DocBirthCertificate}

	keep, err := f.svc.Upload(ctx, req, pdfUpload("a.pdf"))
	require.NoError(t, err)
	drop, err := f.svc.Upload(ctx, req, pdfUpload("b.pdf"))
	require.NoError(t, err)

	id, err := f.svc.Delete(ctx, drop.ID)
	require.NoError(t, err)
	require.Equal(t, drop.ID, id)

	docs, err := f.svc.List(ctx, "app-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, keep.ID, docs[0].ID)

	require.Len(t, f.queue.jobs, 1)
	require.Equal(t, JobTypeRemoveDocumentFile, f.queue.jobs[0].Type)
	require.Equal(t, drop.StoredName, f.queue.jobs[0].Payload)

	_, err = f.svc.Delete(ctx, drop.ID)
	require.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestDocumentServiceFileRemoval(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Upload(ctx, dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: admission.DocOther}, pdfUpload("a.pdf"))
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleFileRemoval(ctx, jobs.Job{ID: doc.ID, Type: JobTypeRemoveDocumentFile, Payload: doc.StoredName}))
	_, err = f.storage.Open(doc.StoredName)
	require.Error(t, err)

	require.Error(t, f.svc.HandleFileRemoval(ctx, jobs.Job{ID: "bad", Payload: 42}))
}

func TestDocumentServiceFileRemovalAbandoned(t *testing.T) {
	f := newDocumentFixture(t)
	f.svc.FileRemovalAbandoned(jobs.Job{ID: "doc-1", Payload: "app-1/x.pdf", Attempt: 4}, errors.New("permission denied"))
	require.Equal(t, float64(1), testutil.ToFloat64(f.svc.metrics.fileRemovalFailures))
}

func TestDocumentServiceDeletesInlineWhenQueueFails(t *testing.T) {
	f := newDocumentFixture(t)
	f.queue.err = errors.New("queue stopped")
	ctx := context.Background()
	doc, err := f.svc.Upload(ctx, dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: admission.DocOther}, pdfUpload("a.pdf"))
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, doc.ID)
	require.NoError(t, err)
	_, err = f.storage.Open(doc.StoredName)
	require.Error(t, err)
}

func TestDocumentServiceSignedDownload(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	doc, err := f.svc.Upload(ctx, dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: admission.DocOther}, pdfUpload("a.pdf"))
	require.NoError(t, err)

	link, err := f.svc.DownloadURL(ctx, doc.ID)
	require.NoError(t, err)
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "/api/v1/application-documents/files/"+doc.ID, parsed.Path)

	dl, err := f.svc.Open(ctx, doc.ID, parsed.Query().Get("token"))
	require.NoError(t, err)
	defer dl.File.Close()
	data, err := io.ReadAll(dl.File)
	require.NoError(t, err)
	require.Equal(t, pdfBytes, data)
	require.Equal(t, "a.pdf", dl.Filename)

	_, err = f.svc.Open(ctx, doc.ID, "bogus")
	require.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	other, err := f.svc.Upload(ctx, dto.UploadDocumentRequest{ApplicationID: "app-1", DocumentType: admission.DocOther}, pdfUpload("b.pdf"))
	require.NoError(t, err)
	_, err = f.svc.Open(ctx, other.ID, parsed.Query().Get("token"))
	require.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}
