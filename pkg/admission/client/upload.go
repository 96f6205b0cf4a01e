package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"

	"github.com/noah-isme/admissions-portal/pkg/admission"
)

// UploadFile is the file handed to UploadDocument.
type UploadFile struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// UploadOption tweaks a single upload.
type UploadOption func(*uploadOptions)

type uploadOptions struct {
	progress chan<- int
}

// WithProgress streams percentages (0 to 100) into ch. Values only increase and 100 is sent
// only after the server confirmed the upload. Sends never block: a full channel drops the
// update, so size the buffer to taste.
func WithProgress(ch chan<- int) UploadOption {
	return func(o *uploadOptions) {
		o.progress = ch
	}
}

// UploadDocument attaches one file of the given type to an application.
func (c *Client) UploadDocument(ctx context.Context, applicationID, documentType string, file UploadFile, opts ...UploadOption) (*admission.SupportingDocument, error) {
	fields := admission.StageErrors{}
	if strings.TrimSpace(applicationID) == "" {
		fields["applicationId"] = "Application id is required"
	}
	if strings.TrimSpace(documentType) == "" {
		fields["documentType"] = "Select a document type"
	}
	if file.Content == nil {
		fields["file"] = "Choose a file to upload"
	}
	if len(fields) > 0 {
		return nil, admission.NewValidationError(fields)
	}

	var o uploadOptions
	for _, opt := range opts {
		opt(&o)
	}
	progress := &progressReporter{ch: o.progress, last: -1}
	defer progress.stop()
	progress.report(0)

	body, contentType, err := encodeUpload(applicationID, documentType, file)
	if err != nil {
		return nil, admission.NewUnknownError(0, err)
	}
	reader := &progressReader{r: bytes.NewReader(body), total: int64(len(body)), progress: progress}

	var env envelope
	if err := c.do(ctx, http.MethodPost, documentsPath+"/upload", contentType, reader, &env); err != nil {
		return nil, err
	}
	var doc admission.SupportingDocument
	if err := env.decodeData(&doc); err != nil {
		return nil, admission.NewUnknownError(http.StatusOK, fmt.Errorf("decode uploaded document: %w", err))
	}
	if doc.ID == "" {
		return nil, admission.NewUnknownError(http.StatusOK, errors.New("upload response carried no document"))
	}
	progress.report(100)
	return &doc, nil
}

func encodeUpload(applicationID, documentType string, file UploadFile) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("applicationId", applicationID); err != nil {
		return nil, "", fmt.Errorf("write applicationId: %w", err)
	}
	if err := w.WriteField("documentType", documentType); err != nil {
		return nil, "", fmt.Errorf("write documentType: %w", err)
	}

	name := file.Name
	if name == "" {
		name = "document"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if file.ContentType != "" {
		header.Set("Content-Type", file.ContentType)
	} else {
		header.Set("Content-Type", "application/octet-stream")
	}
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

type progressReporter struct {
	mu   sync.Mutex
	ch   chan<- int
	last int
}

func (p *progressReporter) report(pct int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || pct <= p.last {
		return
	}
	p.last = pct
	select {
	case p.ch <- pct:
	default:
	}
}

// stop detaches the channel so a transport still draining the body cannot send after the
// call returned.
func (p *progressReporter) stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.ch = nil
	p.mu.Unlock()
}

// progressReader reports at most 99 while bytes move; only a confirmed upload reaches 100.
type progressReader struct {
	r        io.Reader
	read     int64
	total    int64
	progress *progressReporter
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 && r.total > 0 {
		r.read += int64(n)
		pct := int(r.read * 99 / r.total)
		r.progress.report(pct)
	}
	return n, err
}
