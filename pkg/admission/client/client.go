// Package client talks to the admissions API: it creates applications, manages their
// supporting documents and loads the document type catalog. Every exported call returns an
// *admission.Error on failure and never retries on its own.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/admissions-portal/pkg/admission"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20

	submitPath    = "/admissions/submit"
	documentsPath = "/application-documents"
)

// Config configures the client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// New builds a client. A zero Timeout falls back to 30 seconds.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		httpClient: httpClient,
	}
}

// SubmitApplication performs the phase-one create call and returns the new application id.
func (c *Client) SubmitApplication(ctx context.Context, draft admission.ApplicationDraft) (string, error) {
	payload, err := json.Marshal(draft)
	if err != nil {
		return "", admission.NewUnknownError(0, fmt.Errorf("encode draft: %w", err))
	}
	var env envelope
	if err := c.do(ctx, http.MethodPost, submitPath, "application/json", bytes.NewReader(payload), &env); err != nil {
		return "", err
	}
	if env.ApplicationID == "" {
		return "", admission.NewUnknownError(http.StatusOK, errors.New("response carried no applicationId"))
	}
	return env.ApplicationID, nil
}

// ListDocuments returns the documents attached to an application in upload order.
func (c *Client) ListDocuments(ctx context.Context, applicationID string) ([]admission.SupportingDocument, error) {
	if strings.TrimSpace(applicationID) == "" {
		return nil, admission.NewValidationError(admission.StageErrors{"applicationId": "Application id is required"})
	}
	var env envelope
	if err := c.do(ctx, http.MethodGet, documentsPath+"/"+url.PathEscape(applicationID), "", nil, &env); err != nil {
		return nil, err
	}
	docs := make([]admission.SupportingDocument, 0)
	if err := env.decodeData(&docs); err != nil {
		return nil, admission.NewUnknownError(http.StatusOK, err)
	}
	return docs, nil
}

// DeleteDocument removes one document and returns its id. Deletion is irreversible, so
// callers must have the user's confirmation before calling it.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) (string, error) {
	if strings.TrimSpace(documentID) == "" {
		return "", admission.NewValidationError(admission.StageErrors{"documentId": "Document id is required"})
	}
	var env envelope
	if err := c.do(ctx, http.MethodDelete, documentsPath+"/"+url.PathEscape(documentID), "", nil, &env); err != nil {
		return "", err
	}
	var deleted struct {
		ID string `json:"id"`
	}
	if err := env.decodeData(&deleted); err != nil || deleted.ID == "" {
		return documentID, nil
	}
	return deleted.ID, nil
}

// DownloadReference builds the link a browser follows to download a document. It performs
// no I/O.
func (c *Client) DownloadReference(documentID string) string {
	return fmt.Sprintf("%s%s/download/%s", c.baseURL, documentsPath, url.PathEscape(documentID))
}

// FetchDocumentTypes loads the remote document type catalog.
func (c *Client) FetchDocumentTypes(ctx context.Context) ([]admission.DocumentTypeDescriptor, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, documentsPath+"/types", "", nil, &env); err != nil {
		return nil, err
	}
	types := make([]admission.DocumentTypeDescriptor, 0)
	if err := env.decodeData(&types); err != nil {
		return nil, admission.NewUnknownError(http.StatusOK, err)
	}
	return types, nil
}

// DocumentTypesOrFallback never fails: when the catalog is unreachable or empty the built-in
// list is returned and fallback is true.
func (c *Client) DocumentTypesOrFallback(ctx context.Context) (types []admission.DocumentTypeDescriptor, fallback bool) {
	types, err := c.FetchDocumentTypes(ctx)
	if err != nil || len(types) == 0 {
		return admission.FallbackDocumentTypes(), true
	}
	return types, false
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out *envelope) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return admission.NewUnknownError(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return admission.NewTransportError(0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return admission.NewTransportError(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	return classify(resp.StatusCode, raw, out)
}

// classify maps a response onto the failure taxonomy. out is filled whenever the body is a
// well formed envelope.
func classify(status int, raw []byte, out *envelope) error {
	decodeErr := json.Unmarshal(raw, out)
	structured := decodeErr == nil && out.hasFailureDetail()

	switch {
	case status >= 200 && status < 300:
		if decodeErr != nil {
			return admission.NewUnknownError(status, fmt.Errorf("decode response: %w", decodeErr))
		}
		if !out.Success {
			if structured {
				return admission.NewRejectedError(status, out.message(), out.fieldErrors())
			}
			return admission.NewUnknownError(status, errors.New("server reported failure without detail"))
		}
		return nil
	case status >= 500, status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return admission.NewTransportError(status, fmt.Errorf("server responded %d", status))
	case status >= 400 && structured:
		return admission.NewRejectedError(status, out.message(), out.fieldErrors())
	case status == http.StatusNotFound:
		return admission.NewTransportError(status, errors.New("endpoint not found"))
	default:
		return admission.NewUnknownError(status, fmt.Errorf("unexpected response %d", status))
	}
}
