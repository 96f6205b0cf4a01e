package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/admissions-portal/internal/dto"
	"github.com/noah-isme/admissions-portal/internal/models"
	"github.com/noah-isme/admissions-portal/pkg/admission"
	appErrors "github.com/noah-isme/admissions-portal/pkg/errors"
	"github.com/noah-isme/admissions-portal/pkg/export"
	"github.com/noah-isme/admissions-portal/pkg/response"
)

type admissionService interface {
	Submit(ctx context.Context, draft admission.ApplicationDraft) (*models.Application, error)
	Get(ctx context.Context, id string) (*dto.ApplicationDetail, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error)
	Export(ctx context.Context, filter models.ApplicationFilter) (export.Dataset, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateApplicationStatusRequest, actor *models.JWTClaims) (*models.Application, error)
}

// AdmissionHandler exposes application submission and the review back office.
type AdmissionHandler struct {
	service admissionService
}

// NewAdmissionHandler creates a new handler.
func NewAdmissionHandler(svc admissionService) *AdmissionHandler {
	return &AdmissionHandler{service: svc}
}

// Submit godoc
// @Summary Submit an admission application
// @Description Validates every data stage of the draft and records the application
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body admission.ApplicationDraft true "Application draft"
// @Success 201 {object} response.SubmitEnvelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /admissions/submit [post]
func (h *AdmissionHandler) Submit(c *gin.Context) {
	var draft admission.ApplicationDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}

	app, err := h.service.Submit(c.Request.Context(), draft)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Submitted(c, app.ID)
}

// List godoc
// @Summary List applications
// @Tags Admissions
// @Produce json
// @Param status query string false "Review status"
// @Param grade query string false "Grade applied for"
// @Param year query string false "Academic year"
// @Param search query string false "Learner name or reference"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /admissions [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	filter := applicationFilterFromQuery(c)
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	apps, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Export godoc
// @Summary Export applications as CSV
// @Tags Admissions
// @Produce text/csv
// @Param status query string false "Review status"
// @Param grade query string false "Grade applied for"
// @Param year query string false "Academic year"
// @Param search query string false "Learner name or reference"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /admissions/export [get]
func (h *AdmissionHandler) Export(c *gin.Context) {
	data, err := h.service.Export(c.Request.Context(), applicationFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="applications.csv"`)
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, data); err != nil {
		_ = c.Error(err)
	}
}

func applicationFilterFromQuery(c *gin.Context) models.ApplicationFilter {
	return models.ApplicationFilter{
		Status: models.ApplicationStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Grade:  strings.TrimSpace(c.Query("grade")),
		Year:   strings.TrimSpace(c.Query("year")),
		Search: strings.TrimSpace(c.Query("search")),
	}
}

// Get godoc
// @Summary Get application
// @Tags Admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admissions/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Record a review decision
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.UpdateApplicationStatusRequest true "Status change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /admissions/{id}/status [patch]
func (h *AdmissionHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateApplicationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	req.Status = models.ApplicationStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))

	app, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}
