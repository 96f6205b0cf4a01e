package workflow

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-portal/pkg/admission"
	"github.com/noah-isme/admissions-portal/pkg/admission/client"
)

// Documents returns the cached list from the most recent successful refresh.
func (c *Controller) Documents() []admission.SupportingDocument {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]admission.SupportingDocument, len(c.documents))
	copy(out, c.documents)
	return out
}

// DocumentTypes loads the catalog once per session. The flag reports that the built-in list
// is shown because the server catalog was unavailable.
func (c *Controller) DocumentTypes(ctx context.Context) ([]admission.DocumentTypeDescriptor, bool) {
	c.mu.Lock()
	if c.docTypes != nil {
		out := append([]admission.DocumentTypeDescriptor(nil), c.docTypes...)
		c.mu.Unlock()
		return out, false
	}
	c.mu.Unlock()

	types, fallback := c.backend.DocumentTypesOrFallback(ctx)
	if fallback {
		c.logger.Warn("document type catalog unavailable, using built-in list")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Only a server catalog is cached so a later call can pick it up once the service is back.
	if !fallback {
		c.docTypes = append([]admission.DocumentTypeDescriptor(nil), types...)
	}
	return types, fallback
}

// RefreshDocuments re-fetches the list for the current application. Concurrent refreshes
// may complete out of order; the cache keeps the result of the latest one started.
func (c *Controller) RefreshDocuments(ctx context.Context) ([]admission.SupportingDocument, error) {
	c.mu.Lock()
	id, ok := documentsState(c.state)
	if !ok {
		c.mu.Unlock()
		return nil, ErrWrongState
	}
	c.listSeq++
	seq := c.listSeq
	c.mu.Unlock()

	docs, err := c.backend.ListDocuments(ctx, id)
	if err != nil {
		appErr := admission.AsError(err)
		c.fail("list documents", appErr)
		return nil, appErr
	}

	c.mu.Lock()
	if current, ok := documentsState(c.state); ok && current == id && seq > c.appliedSeq {
		c.appliedSeq = seq
		c.documents = append([]admission.SupportingDocument(nil), docs...)
	}
	c.mu.Unlock()
	return docs, nil
}

// Upload attaches a file to the current application and refreshes the list. Uploads are
// independent and may run concurrently. A failed refresh does not undo a confirmed upload;
// the banner reports it instead.
func (c *Controller) Upload(ctx context.Context, documentType string, file client.UploadFile, opts ...client.UploadOption) (*admission.SupportingDocument, error) {
	c.mu.Lock()
	id, ok := documentsState(c.state)
	c.mu.Unlock()
	if !ok {
		return nil, ErrWrongState
	}
	if strings.TrimSpace(documentType) == "" {
		errs := admission.StageErrors{"documentType": "Select a document type"}
		c.mu.Lock()
		c.errs = errs
		c.mu.Unlock()
		return nil, admission.NewValidationError(errs)
	}

	doc, err := c.backend.UploadDocument(ctx, id, documentType, file, opts...)
	if err != nil {
		appErr := admission.AsError(err)
		c.fail("upload document", appErr)
		return nil, appErr
	}
	c.logger.Info("document uploaded",
		zap.String("application_id", id),
		zap.String("document_id", doc.ID),
		zap.String("document_type", doc.DocumentType),
	)

	c.mu.Lock()
	c.errs = c.errs.Without("documentType").Without("file")
	c.banner = ""
	c.mu.Unlock()

	if _, err := c.RefreshDocuments(ctx); err != nil {
		c.mu.Lock()
		c.banner = "Your document was uploaded but the list could not be refreshed. " + admission.AsError(err).Message
		c.mu.Unlock()
	}
	return doc, nil
}

// Delete removes one document after the user confirmed it. The deleted entry is dropped from
// the cache at once and the list is then re-fetched.
func (c *Controller) Delete(ctx context.Context, documentID string, confirmed bool) error {
	c.mu.Lock()
	_, ok := documentsState(c.state)
	c.mu.Unlock()
	if !ok {
		return ErrWrongState
	}
	if !confirmed {
		return ErrNotConfirmed
	}

	deleted, err := c.backend.DeleteDocument(ctx, documentID)
	if err != nil {
		appErr := admission.AsError(err)
		c.fail("delete document", appErr)
		return appErr
	}

	c.mu.Lock()
	kept := c.documents[:0:0]
	for _, d := range c.documents {
		if d.ID != deleted {
			kept = append(kept, d)
		}
	}
	c.documents = kept
	// A list requested before the delete may still contain the document.
	c.appliedSeq = c.listSeq
	c.banner = ""
	c.mu.Unlock()

	if _, err := c.RefreshDocuments(ctx); err != nil {
		c.mu.Lock()
		c.banner = "The document was removed but the list could not be refreshed. " + admission.AsError(err).Message
		c.mu.Unlock()
	}
	return nil
}

// DownloadReference returns the download URL for a document of the current application.
func (c *Controller) DownloadReference(documentID string) (string, error) {
	c.mu.Lock()
	_, ok := documentsState(c.state)
	c.mu.Unlock()
	if !ok {
		return "", ErrWrongState
	}
	return c.backend.DownloadReference(documentID), nil
}

func (c *Controller) fail(action string, err *admission.Error) {
	c.mu.Lock()
	c.banner = err.Message
	c.mu.Unlock()
	c.logFailure(action, err)
}
