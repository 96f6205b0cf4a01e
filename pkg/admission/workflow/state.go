// Package workflow drives an applicant through the admission form: stage by stage validation,
// the phase-one create call and the document attachment phase that follows it.
package workflow

import (
	"fmt"

	"github.com/noah-isme/admissions-portal/pkg/admission"
)

// State is one of Editing, Submitting, AttachingDocuments, Reviewing or Completed.
// The application id only exists on the states that may use it.
type State interface {
	isState()
	fmt.Stringer
}

// Editing collects draft fields for one stage.
type Editing struct {
	Stage admission.Stage
}

// Submitting waits for the phase-one create call.
type Submitting struct{}

// AttachingDocuments manages supporting documents for a created application.
type AttachingDocuments struct {
	ApplicationID string
}

// Reviewing shows the submitted data and documents before finishing.
type Reviewing struct {
	ApplicationID string
}

// Completed is entered by Finalize just before the controller resets.
type Completed struct {
	ApplicationID string
}

func (Editing) isState() {}

func (Submitting) isState() {}

func (AttachingDocuments) isState() {}

func (Reviewing) isState() {}

func (Completed) isState() {}

func (s Editing) String() string { return fmt.Sprintf("Editing(%s)", s.Stage) }

func (Submitting) String() string { return "Submitting" }

func (s AttachingDocuments) String() string {
	return fmt.Sprintf("AttachingDocuments(%s)", s.ApplicationID)
}

func (s Reviewing) String() string { return fmt.Sprintf("Reviewing(%s)", s.ApplicationID) }

func (s Completed) String() string { return fmt.Sprintf("Completed(%s)", s.ApplicationID) }

// applicationID extracts the id from states that carry one.
func applicationID(s State) (string, bool) {
	switch st := s.(type) {
	case AttachingDocuments:
		return st.ApplicationID, true
	case Reviewing:
		return st.ApplicationID, true
	case Completed:
		return st.ApplicationID, true
	default:
		return "", false
	}
}

// documentsState reports the id when document operations are allowed.
func documentsState(s State) (string, bool) {
	switch st := s.(type) {
	case AttachingDocuments:
		return st.ApplicationID, true
	case Reviewing:
		return st.ApplicationID, true
	default:
		return "", false
	}
}
