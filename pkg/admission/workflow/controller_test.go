package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-portal/pkg/admission"
	"github.com/noah-isme/admissions-portal/pkg/admission/client"
)

type fakeBackend struct {
	mu          sync.Mutex
	submits     int
	submitErr   error
	submitGate  chan struct{}
	uploadErr   error
	listErr     error
	listHold    chan struct{}
	listStarted chan struct{}
	deleteErr   error
	typesDown   bool
	docs        []admission.SupportingDocument
	nextDoc     int
	listCalls   int
	deleteCalls []string
}

func (f *fakeBackend) SubmitApplication(ctx context.Context, draft admission.ApplicationDraft) (string, error) {
	if f.submitGate != nil {
		<-f.submitGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return fmt.Sprintf("app-%d", f.submits), nil
}

func (f *fakeBackend) UploadDocument(ctx context.Context, applicationID, documentType string, file client.UploadFile, opts ...client.UploadOption) (*admission.SupportingDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.nextDoc++
	doc := admission.SupportingDocument{
		ID:            fmt.Sprintf("doc-%d", f.nextDoc),
		ApplicationID: applicationID,
		DocumentType:  documentType,
		OriginalName:  file.Name,
		UploadedAt:    time.Now().UTC(),
	}
	f.docs = append(f.docs, doc)
	return &doc, nil
}

func (f *fakeBackend) ListDocuments(ctx context.Context, applicationID string) ([]admission.SupportingDocument, error) {
	f.mu.Lock()
	f.listCalls++
	if f.listErr != nil {
		err := f.listErr
		f.mu.Unlock()
		return nil, err
	}
	out := []admission.SupportingDocument{}
	for _, d := range f.docs {
		if d.ApplicationID == applicationID {
			out = append(out, d)
		}
	}
	hold, started := f.listHold, f.listStarted
	f.listHold, f.listStarted = nil, nil
	f.mu.Unlock()

	// A held call answers with the snapshot taken above, after the test releases it.
	if hold != nil {
		close(started)
		<-hold
	}
	return out, nil
}

func (f *fakeBackend) DeleteDocument(ctx context.Context, documentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, documentID)
	if f.deleteErr != nil {
		return "", f.deleteErr
	}
	for i, d := range f.docs {
		if d.ID == documentID {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return documentID, nil
		}
	}
	return "", admission.NewRejectedError(404, "Document not found", nil)
}

func (f *fakeBackend) DownloadReference(documentID string) string {
	return "http://admissions.test/application-documents/download/" + documentID
}

func (f *fakeBackend) DocumentTypesOrFallback(ctx context.Context) ([]admission.DocumentTypeDescriptor, bool) {
	if f.typesDown {
		return admission.FallbackDocumentTypes(), true
	}
	return []admission.DocumentTypeDescriptor{{Code: admission.DocBirthCertificate, Label: "Birth Certificate"}}, false
}

func fillDraft(d *admission.ApplicationDraft) {
	d.Surname = "Doe"
	d.LearnerName = "Jane"
	d.DateOfBirth = "2018-02-01"
	d.PlaceOfBirth = "Cape Town"
	d.GradeApplying = "Grade R"
	d.Year = "2026"
	d.MotherName = "Mary Doe"
	d.MotherCell = "0821234567"
	d.MotherAddress = "1 Main Road, Cape Town"
	d.CurrentSchoolTel = "0215550101"
	d.CurrentSchoolContact = "Mrs Smith"
	d.PaymentMethod = "Cash Deposit"
	d.ConsentTerms = true
	d.ConsentPrivacy = true
}

// advanceTo walks a filled-in controller up to target.
func advanceTo(t *testing.T, c *Controller, target admission.Stage) {
	t.Helper()
	for {
		st, ok := c.State().(Editing)
		require.True(t, ok)
		if st.Stage == target {
			return
		}
		_, err := c.Advance(context.Background())
		require.NoError(t, err)
	}
}

func submitted(t *testing.T, backend *fakeBackend) *Controller {
	t.Helper()
	c := New(backend)
	require.NoError(t, c.Update(admission.FieldSurname, fillDraft))
	advanceTo(t, c, admission.LastDataStage)
	st, err := c.Advance(context.Background())
	require.NoError(t, err)
	require.IsType(t, AttachingDocuments{}, st)
	return c
}

func TestAdvanceBlocksOnInvalidStage(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend)

	st, err := c.Advance(context.Background())
	require.Error(t, err)
	require.Equal(t, admission.KindValidation, admission.KindOf(err))
	require.Equal(t, Editing{Stage: admission.StageLearner}, st)
	require.Len(t, c.Errors(), 6)
	require.NotEmpty(t, c.Banner())
	require.Zero(t, backend.submits)
}

func TestUpdateClearsOnlyTouchedField(t *testing.T) {
	c := New(&fakeBackend{})
	_, err := c.Advance(context.Background())
	require.Error(t, err)

	require.NoError(t, c.Update(admission.FieldSurname, func(d *admission.ApplicationDraft) { d.Surname = "Doe" }))
	errs := c.Errors()
	require.False(t, errs.Has(admission.FieldSurname))
	require.True(t, errs.Has(admission.FieldLearnerName))
	require.Len(t, errs, 5)
}

func TestInformationalStagesNeverBlock(t *testing.T) {
	c := New(&fakeBackend{})
	require.NoError(t, c.Update(admission.FieldSurname, fillDraft))

	advanceTo(t, c, admission.StageFamily)
	st, err := c.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, Editing{Stage: admission.StageEmployment}, st)
	st, err = c.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, Editing{Stage: admission.StageCurrentSchool}, st)
}

func TestRetreatKeepsDraft(t *testing.T) {
	c := New(&fakeBackend{})
	require.NoError(t, c.Update(admission.FieldSurname, fillDraft))
	advanceTo(t, c, admission.StageFamily)

	st, err := c.Retreat()
	require.NoError(t, err)
	require.Equal(t, Editing{Stage: admission.StageGuardians}, st)
	require.Equal(t, "Doe", c.Draft().Surname)

	advanceTo(t, c, admission.StageGuardians)
	_, err = c.Retreat()
	require.NoError(t, err)
	_, err = c.Retreat()
	require.ErrorIs(t, err, ErrWrongState)
}

func TestSubmitMovesToAttachingDocuments(t *testing.T) {
	backend := &fakeBackend{}
	var transitions []string
	c := New(backend, WithObserver(func(from, to State) { transitions = append(transitions, to.String()) }))
	require.NoError(t, c.Update(admission.FieldSurname, fillDraft))
	advanceTo(t, c, admission.LastDataStage)

	st, err := c.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, AttachingDocuments{ApplicationID: "app-1"}, st)
	require.Equal(t, 1, backend.submits)

	id, ok := c.ApplicationID()
	require.True(t, ok)
	require.Equal(t, "app-1", id)
	require.Contains(t, transitions, "Submitting")

	require.ErrorIs(t, c.Update(admission.FieldSurname, func(d *admission.ApplicationDraft) { d.Surname = "X" }), ErrWrongState)
}

func TestSubmitRevalidatesEarlierStages(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend)
	require.NoError(t, c.Update(admission.FieldSurname, fillDraft))
	advanceTo(t, c, admission.LastDataStage)

	require.NoError(t, c.Update(admission.FieldMotherCell, func(d *admission.ApplicationDraft) { d.MotherCell = "  " }))

	st, err := c.Advance(context.Background())
	require.Error(t, err)
	require.Equal(t, Editing{Stage: admission.StageGuardians}, st)
	require.True(t, c.Errors().Has(admission.FieldMotherCell))
	require.Zero(t, backend.submits)
}

func TestSubmitFailureReturnsToPaymentStage(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		banner    string
	}{
		{"transport", admission.NewTransportError(502, errors.New("bad gateway")), true, admission.MessageTryAgain},
		{"rejected", admission.NewRejectedError(400, "Year is closed for applications", admission.StageErrors{admission.FieldYear: "closed"}), false, "Year is closed for applications"},
		{"unknown", errors.New("boom"), false, admission.MessageUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{submitErr: tc.err}
			c := New(backend)
			require.NoError(t, c.Update(admission.FieldSurname, fillDraft))
			advanceTo(t, c, admission.LastDataStage)

			st, err := c.Advance(context.Background())
			require.Error(t, err)
			require.Equal(t, Editing{Stage: admission.LastDataStage}, st)
			require.Equal(t, tc.retryable, admission.AsError(err).Retryable())
			require.Equal(t, tc.banner, c.Banner())
			_, ok := c.ApplicationID()
			require.False(t, ok)
			require.Equal(t, "Doe", c.Draft().Surname)
		})
	}
}

func TestAdvanceWhileSubmittingIsBusy(t *testing.T) {
	backend := &fakeBackend{submitGate: make(chan struct{})}
	c := New(backend)
	require.NoError(t, c.Update(admission.FieldSurname, fillDraft))
	advanceTo(t, c, admission.LastDataStage)

	done := make(chan error, 1)
	go func() {
		_, err := c.Advance(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, ok := c.State().(Submitting)
		return ok
	}, time.Second, 5*time.Millisecond)

	_, err := c.Advance(context.Background())
	require.ErrorIs(t, err, ErrBusy)
	_, err = c.Retreat()
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, c.Update(admission.FieldSurname, func(*admission.ApplicationDraft) {}), ErrBusy)

	close(backend.submitGate)
	require.NoError(t, <-done)
	require.Equal(t, 1, backend.submits)
}

func TestUploadRefreshesList(t *testing.T) {
	backend := &fakeBackend{}
	c := submitted(t, backend)

	doc, err := c.Upload(context.Background(), admission.DocBirthCertificate, client.UploadFile{Name: "birth.pdf", Content: strings.NewReader("%PDF")})
	require.NoError(t, err)
	require.Equal(t, "app-1", doc.ApplicationID)

	docs := c.Documents()
	require.Len(t, docs, 1)
	require.Equal(t, doc.ID, docs[0].ID)
	require.Equal(t, 1, backend.listCalls)
}

func TestUploadFailureKeepsList(t *testing.T) {
	backend := &fakeBackend{}
	c := submitted(t, backend)
	_, err := c.Upload(context.Background(), admission.DocBirthCertificate, client.UploadFile{Name: "a.pdf", Content: strings.NewReader("x")})
	require.NoError(t, err)

	backend.uploadErr = admission.NewRejectedError(415, "File type not allowed", nil)
	_, err = c.Upload(context.Background(), admission.DocOther, client.UploadFile{Name: "a.exe", Content: strings.NewReader("MZ")})
	require.Error(t, err)
	require.Equal(t, admission.KindRejected, admission.KindOf(err))
	require.Equal(t, "File type not allowed", c.Banner())
	require.Len(t, c.Documents(), 1)

	_, err = c.Upload(context.Background(), " ", client.UploadFile{Name: "a.pdf", Content: strings.NewReader("x")})
	require.Equal(t, admission.KindValidation, admission.KindOf(err))
}

func TestUploadWithFailedRefreshStillSucceeds(t *testing.T) {
	backend := &fakeBackend{}
	c := submitted(t, backend)
	backend.listErr = admission.NewTransportError(503, errors.New("unavailable"))

	doc, err := c.Upload(context.Background(), admission.DocBirthCertificate, client.UploadFile{Name: "a.pdf", Content: strings.NewReader("x")})
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Contains(t, c.Banner(), "uploaded")
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	backend := &fakeBackend{}
	c := submitted(t, backend)
	doc, err := c.Upload(context.Background(), admission.DocBirthCertificate, client.UploadFile{Name: "a.pdf", Content: strings.NewReader("x")})
	require.NoError(t, err)

	require.ErrorIs(t, c.Delete(context.Background(), doc.ID, false), ErrNotConfirmed)
	require.Empty(t, backend.deleteCalls)

	require.NoError(t, c.Delete(context.Background(), doc.ID, true))
	require.Equal(t, []string{doc.ID}, backend.deleteCalls)
	require.Empty(t, c.Documents())
}

func TestDeleteFailureKeepsCache(t *testing.T) {
	backend := &fakeBackend{}
	c := submitted(t, backend)
	doc, err := c.Upload(context.Background(), admission.DocBirthCertificate, client.UploadFile{Name: "a.pdf", Content: strings.NewReader("x")})
	require.NoError(t, err)

	backend.deleteErr = admission.NewTransportError(0, errors.New("connection refused"))
	err = c.Delete(context.Background(), doc.ID, true)
	require.Error(t, err)
	require.True(t, admission.AsError(err).Retryable())
	require.Len(t, c.Documents(), 1)
}

func TestDeleteIgnoresOlderRefresh(t *testing.T) {
	backend := &fakeBackend{}
	c := submitted(t, backend)
	doc, err := c.Upload(context.Background(), admission.DocBirthCertificate, client.UploadFile{Name: "a.pdf", Content: strings.NewReader("x")})
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	backend.mu.Lock()
	backend.listHold, backend.listStarted = release, started
	backend.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.RefreshDocuments(context.Background())
	}()
	<-started

	backend.mu.Lock()
	backend.listErr = admission.NewTransportError(0, errors.New("connection reset"))
	backend.mu.Unlock()
	require.NoError(t, c.Delete(context.Background(), doc.ID, true))
	require.Contains(t, c.Banner(), "could not be refreshed")

	close(release)
	<-done
	require.Empty(t, c.Documents())
}

func TestDocumentOpsNeedApplication(t *testing.T) {
	c := New(&fakeBackend{})

	_, err := c.Upload(context.Background(), admission.DocOther, client.UploadFile{Content: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrWrongState)
	require.ErrorIs(t, c.Delete(context.Background(), "doc-1", true), ErrWrongState)
	_, err = c.RefreshDocuments(context.Background())
	require.ErrorIs(t, err, ErrWrongState)
	_, err = c.DownloadReference("doc-1")
	require.ErrorIs(t, err, ErrWrongState)
}

func TestDocumentTypesFallback(t *testing.T) {
	backend := &fakeBackend{typesDown: true}
	c := New(backend)

	types, fallback := c.DocumentTypes(context.Background())
	require.True(t, fallback)
	require.Len(t, types, len(admission.FallbackDocumentTypes()))

	backend.typesDown = false
	types, fallback = c.DocumentTypes(context.Background())
	require.False(t, fallback)
	require.Len(t, types, 1)
}

func TestReviewAndFinalize(t *testing.T) {
	backend := &fakeBackend{}
	var seen []State
	c := New(backend, WithObserver(func(_, to State) { seen = append(seen, to) }))
	require.NoError(t, c.Update(admission.FieldSurname, fillDraft))
	advanceTo(t, c, admission.LastDataStage)
	_, err := c.Advance(context.Background())
	require.NoError(t, err)

	_, err = c.Finalize()
	require.ErrorIs(t, err, ErrWrongState)

	st, err := c.Advance(context.Background())
	require.NoError(t, err)
	require.Equal(t, Reviewing{ApplicationID: "app-1"}, st)

	st, err = c.Retreat()
	require.NoError(t, err)
	require.Equal(t, AttachingDocuments{ApplicationID: "app-1"}, st)
	_, err = c.Advance(context.Background())
	require.NoError(t, err)

	ack, err := c.Finalize()
	require.NoError(t, err)
	require.Equal(t, "app-1", ack.ApplicationID)
	require.Equal(t, "Jane Doe", ack.LearnerName)
	require.Equal(t, 1, backend.submits)

	require.Equal(t, Editing{Stage: admission.StageLearner}, c.State())
	require.Equal(t, admission.ApplicationDraft{}, c.Draft())
	_, ok := c.ApplicationID()
	require.False(t, ok)
	require.Contains(t, seen, State(Completed{ApplicationID: "app-1"}))

	_, err = c.Finalize()
	require.ErrorIs(t, err, ErrWrongState)
	require.Equal(t, 1, backend.submits)
}
