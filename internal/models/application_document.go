package models

import "time"

// ApplicationDocument is a supporting document attached to an application.
type ApplicationDocument struct {
	ID            string     `db:"id" json:"id"`
	ApplicationID string     `db:"application_id" json:"applicationId"`
	DocumentType  string     `db:"document_type" json:"documentType"`
	StoredName    string     `db:"stored_name" json:"storedName"`
	OriginalName  string     `db:"original_name" json:"originalName"`
	MimeType      string     `db:"mime_type" json:"mimeType"`
	SizeBytes     int64      `db:"size_bytes" json:"sizeBytes"`
	UploadedAt    time.Time  `db:"uploaded_at" json:"uploadedAt"`
	DeletedAt     *time.Time `db:"deleted_at" json:"-"`
}
