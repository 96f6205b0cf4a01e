package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-portal/internal/dto"
	"github.com/noah-isme/admissions-portal/internal/models"
	"github.com/noah-isme/admissions-portal/internal/service"
	"github.com/noah-isme/admissions-portal/pkg/admission"
	appErrors "github.com/noah-isme/admissions-portal/pkg/errors"
	"github.com/noah-isme/admissions-portal/pkg/response"
)

// multipart overhead allowed on top of the file size limit
const uploadFormSlack = 1 << 20

type applicationDocumentService interface {
	Upload(ctx context.Context, req dto.UploadDocumentRequest, upload service.DocumentUpload) (*models.ApplicationDocument, error)
	List(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error)
	Delete(ctx context.Context, documentID string) (string, error)
	DownloadURL(ctx context.Context, documentID string) (string, error)
	Open(ctx context.Context, documentID, token string) (*service.DocumentDownload, error)
}

type documentTypeProvider interface {
	List(ctx context.Context) []admission.DocumentTypeDescriptor
}

// ApplicationDocumentHandler serves supporting document endpoints.
type ApplicationDocumentHandler struct {
	service     applicationDocumentService
	types       documentTypeProvider
	maxFileSize int64
}

// NewApplicationDocumentHandler creates a new handler.
func NewApplicationDocumentHandler(svc applicationDocumentService, types documentTypeProvider, maxFileSize int64) *ApplicationDocumentHandler {
	return &ApplicationDocumentHandler{service: svc, types: types, maxFileSize: maxFileSize}
}

// Types godoc
// @Summary List document types
// @Tags Documents
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /application-documents/types [get]
func (h *ApplicationDocumentHandler) Types(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.types.List(c.Request.Context()), nil)
}

// Upload godoc
// @Summary Upload a supporting document
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param applicationId formData string true "Application ID"
// @Param documentType formData string true "Document type code"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /application-documents/upload [post]
func (h *ApplicationDocumentHandler) Upload(c *gin.Context) {
	if h.maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileSize+uploadFormSlack)
	}

	var req dto.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, uploadError(err, "invalid upload payload"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			response.Error(c, appErrors.WithFields(appErrors.Clone(appErrors.ErrValidation, "file is required"), map[string]string{"file": "Choose a file to upload"}))
			return
		}
		response.Error(c, uploadError(err, "invalid upload payload"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	doc, err := h.service.Upload(c.Request.Context(), req, service.DocumentUpload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// List godoc
// @Summary List an application's documents
// @Tags Documents
// @Produce json
// @Param applicationId path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /application-documents/{applicationId} [get]
func (h *ApplicationDocumentHandler) List(c *gin.Context) {
	docs, err := h.service.List(c.Request.Context(), c.Param("applicationId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Delete godoc
// @Summary Delete a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /application-documents/{id} [delete]
func (h *ApplicationDocumentHandler) Delete(c *gin.Context) {
	id, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DeletedDocument{ID: id}, nil)
}

// Download godoc
// @Summary Redirect to a signed download link
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 302
// @Failure 404 {object} response.Envelope
// @Router /application-documents/download/{id} [get]
func (h *ApplicationDocumentHandler) Download(c *gin.Context) {
	link, err := h.service.DownloadURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, link)
}

// File godoc
// @Summary Stream a document through a signed link
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /application-documents/files/{id} [get]
func (h *ApplicationDocumentHandler) File(c *gin.Context) {
	dl, err := h.service.Open(c.Request.Context(), c.Param("id"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer dl.File.Close() //nolint:errcheck

	c.Header("Cache-Control", "private, no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.DataFromReader(http.StatusOK, dl.SizeBytes, dl.MimeType, dl.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%s", strconv.Quote(dl.Filename)),
	})
}

func uploadError(err error, message string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("upload exceeds the %d byte limit", maxErr.Limit-uploadFormSlack))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
