package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admissions-portal/pkg/admission"
	"github.com/noah-isme/admissions-portal/pkg/admission/client"
)

var (
	// ErrBusy is returned while a submission is in flight.
	ErrBusy = errors.New("workflow: submission in progress")
	// ErrWrongState is returned when an action does not apply to the current state.
	ErrWrongState = errors.New("workflow: action not allowed in current state")
	// ErrNotConfirmed is returned when a delete was not confirmed by the user.
	ErrNotConfirmed = errors.New("workflow: deletion must be confirmed")
)

// Backend is the network side used by the controller. *client.Client satisfies it.
type Backend interface {
	SubmitApplication(ctx context.Context, draft admission.ApplicationDraft) (string, error)
	UploadDocument(ctx context.Context, applicationID, documentType string, file client.UploadFile, opts ...client.UploadOption) (*admission.SupportingDocument, error)
	ListDocuments(ctx context.Context, applicationID string) ([]admission.SupportingDocument, error)
	DeleteDocument(ctx context.Context, documentID string) (string, error)
	DownloadReference(documentID string) string
	DocumentTypesOrFallback(ctx context.Context) ([]admission.DocumentTypeDescriptor, bool)
}

// Acknowledgement is returned by Finalize.
type Acknowledgement struct {
	ApplicationID string
	LearnerName   string
	Documents     int
	CompletedAt   time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for unexpected failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers a callback invoked after every state change. It runs without the
// controller lock held.
func WithObserver(fn func(from, to State)) Option {
	return func(c *Controller) {
		c.observer = fn
	}
}

// Controller owns the draft, the current state and the cached document list for one
// applicant session. It is safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	backend  Backend
	logger   *zap.Logger
	observer func(from, to State)

	state  State
	draft  admission.ApplicationDraft
	errs   admission.StageErrors
	banner string

	documents  []admission.SupportingDocument
	listSeq    uint64
	appliedSeq uint64
	docTypes   []admission.DocumentTypeDescriptor
}

// New starts a session at the first stage with an empty draft.
func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		logger:  zap.NewNop(),
		state:   Editing{Stage: admission.StageLearner},
		errs:    admission.StageErrors{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ApplicationID returns the id created by phase one, if any.
func (c *Controller) ApplicationID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return applicationID(c.state)
}

// Draft returns a copy of the form snapshot.
func (c *Controller) Draft() admission.ApplicationDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Errors returns a copy of the current stage's field errors.
func (c *Controller) Errors() admission.StageErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(admission.StageErrors, len(c.errs))
	for k, v := range c.errs {
		out[k] = v
	}
	return out
}

// Banner returns the stage level message for the last failed action, or "".
func (c *Controller) Banner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

// Update edits the draft and clears the error of field only. Editing is allowed while the
// form is being filled in.
func (c *Controller) Update(field string, mutate func(*admission.ApplicationDraft)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state.(type) {
	case Editing:
	case Submitting:
		return ErrBusy
	default:
		return ErrWrongState
	}
	mutate(&c.draft)
	c.errs = c.errs.Without(field)
	return nil
}

// Advance moves forward. From the last data stage it submits the application.
func (c *Controller) Advance(ctx context.Context) (State, error) {
	c.mu.Lock()
	switch st := c.state.(type) {
	case Submitting:
		c.mu.Unlock()
		return st, ErrBusy
	case AttachingDocuments:
		from := c.state
		c.setStateLocked(Reviewing{ApplicationID: st.ApplicationID})
		to := c.state
		c.mu.Unlock()
		c.notify(from, to)
		return to, nil
	case Editing:
		return c.advanceEditing(ctx, st)
	default:
		c.mu.Unlock()
		return st, ErrWrongState
	}
}

// advanceEditing is entered with c.mu held and releases it.
func (c *Controller) advanceEditing(ctx context.Context, st Editing) (State, error) {
	if errs := admission.Validate(st.Stage, c.draft); !errs.OK() {
		c.errs = errs
		c.banner = "Please complete the highlighted fields before continuing."
		c.mu.Unlock()
		return st, admission.NewValidationError(errs)
	}

	if st.Stage < admission.LastDataStage {
		from := c.state
		c.setStateLocked(Editing{Stage: st.Stage + 1})
		to := c.state
		c.mu.Unlock()
		c.notify(from, to)
		return to, nil
	}

	// Earlier stages may have been edited after they were passed; gate on all of them.
	if failed, errs, ok := admission.ValidateAll(c.draft); !ok {
		from := c.state
		c.setStateLocked(Editing{Stage: failed})
		c.errs = errs
		c.banner = "Some earlier information is incomplete. Please review the " + failed.String() + " section."
		to := c.state
		c.mu.Unlock()
		c.notify(from, to)
		return to, admission.NewValidationError(errs)
	}

	draft := c.draft
	from := c.state
	c.setStateLocked(Submitting{})
	c.mu.Unlock()
	c.notify(from, Submitting{})

	id, err := c.backend.SubmitApplication(ctx, draft)

	c.mu.Lock()
	if err != nil || id == "" {
		if err == nil {
			err = admission.NewUnknownError(0, errors.New("empty application id"))
		}
		appErr := admission.AsError(err)
		c.setStateLocked(Editing{Stage: admission.LastDataStage})
		c.errs = appErr.Fields
		if c.errs == nil {
			c.errs = admission.StageErrors{}
		}
		c.banner = appErr.Message
		c.mu.Unlock()
		c.logFailure("submit application", appErr)
		c.notify(Submitting{}, Editing{Stage: admission.LastDataStage})
		return Editing{Stage: admission.LastDataStage}, appErr
	}
	to := AttachingDocuments{ApplicationID: id}
	c.setStateLocked(to)
	c.documents = nil
	c.mu.Unlock()
	c.logger.Info("application submitted", zap.String("application_id", id))
	c.notify(Submitting{}, to)
	return to, nil
}

// Retreat moves back one stage without validating. From Reviewing it returns to the
// document stage so uploads can be resumed.
func (c *Controller) Retreat() (State, error) {
	c.mu.Lock()
	from := c.state
	switch st := c.state.(type) {
	case Editing:
		if st.Stage == admission.StageLearner {
			c.mu.Unlock()
			return st, ErrWrongState
		}
		c.setStateLocked(Editing{Stage: st.Stage - 1})
	case Reviewing:
		c.setStateLocked(AttachingDocuments{ApplicationID: st.ApplicationID})
	case Submitting:
		c.mu.Unlock()
		return st, ErrBusy
	default:
		c.mu.Unlock()
		return st, ErrWrongState
	}
	to := c.state
	c.mu.Unlock()
	c.notify(from, to)
	return to, nil
}

// Finalize completes a reviewed application. It never creates the application again; it
// acknowledges the existing one, resets the draft and starts a fresh session.
func (c *Controller) Finalize() (*Acknowledgement, error) {
	c.mu.Lock()
	st, ok := c.state.(Reviewing)
	if !ok {
		current := c.state
		c.mu.Unlock()
		if _, busy := current.(Submitting); busy {
			return nil, ErrBusy
		}
		return nil, ErrWrongState
	}
	ack := &Acknowledgement{
		ApplicationID: st.ApplicationID,
		LearnerName:   c.draft.LearnerFullName(),
		Documents:     len(c.documents),
		CompletedAt:   time.Now().UTC(),
	}
	completed := Completed{ApplicationID: st.ApplicationID}
	c.setStateLocked(completed)

	c.draft = admission.ApplicationDraft{}
	c.documents = nil
	c.setStateLocked(Editing{Stage: admission.StageLearner})
	c.mu.Unlock()

	c.logger.Info("application completed", zap.String("application_id", st.ApplicationID), zap.Int("documents", ack.Documents))
	c.notify(st, completed)
	c.notify(completed, Editing{Stage: admission.StageLearner})
	return ack, nil
}

// setStateLocked changes state and drops the previous stage's errors.
func (c *Controller) setStateLocked(s State) {
	c.state = s
	c.errs = admission.StageErrors{}
	c.banner = ""
}

func (c *Controller) notify(from, to State) {
	if c.observer != nil {
		c.observer(from, to)
	}
}

func (c *Controller) logFailure(action string, err *admission.Error) {
	switch err.Kind {
	case admission.KindUnknown:
		c.logger.Error(action+" failed", zap.Error(err), zap.Int("status", err.Status))
	case admission.KindTransport:
		c.logger.Warn(action+" failed", zap.Error(err), zap.Int("status", err.Status))
	default:
		c.logger.Debug(action+" rejected", zap.String("message", err.Message), zap.Int("status", err.Status))
	}
}
