package dto

import "github.com/noah-isme/admissions-portal/internal/models"

// UploadDocumentRequest carries the multipart fields sent alongside a document.
type UploadDocumentRequest struct {
	ApplicationID string `form:"applicationId" validate:"required"`
	DocumentType  string `form:"documentType" validate:"required"`
}

// UpdateApplicationStatusRequest moves an application through review.
type UpdateApplicationStatusRequest struct {
	Status models.ApplicationStatus `json:"status" validate:"required,oneof=UNDER_REVIEW ACCEPTED DECLINED WAITLISTED"`
	Note   string                   `json:"note" validate:"max=1000"`
}

// ApplicationDetail bundles an application with its live documents.
type ApplicationDetail struct {
	models.Application
	Documents []models.ApplicationDocument `json:"documents"`
}

// DeletedDocument echoes the id removed by a delete call.
type DeletedDocument struct {
	ID string `json:"id"`
}
