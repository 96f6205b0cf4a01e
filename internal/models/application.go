package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ApplicationStatus tracks the back-office review of a submitted application.
type ApplicationStatus string

const (
	ApplicationSubmitted   ApplicationStatus = "SUBMITTED"
	ApplicationUnderReview ApplicationStatus = "UNDER_REVIEW"
	ApplicationAccepted    ApplicationStatus = "ACCEPTED"
	ApplicationDeclined    ApplicationStatus = "DECLINED"
	ApplicationWaitlisted  ApplicationStatus = "WAITLISTED"
)

// Final reports whether no further review transition is possible.
func (s ApplicationStatus) Final() bool {
	switch s {
	case ApplicationAccepted, ApplicationDeclined, ApplicationWaitlisted:
		return true
	default:
		return false
	}
}

// CanTransitionTo validates the review lifecycle.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	switch s {
	case ApplicationSubmitted:
		return next == ApplicationUnderReview || next.Final()
	case ApplicationUnderReview:
		return next.Final()
	default:
		return false
	}
}

// Application is one admission application. The full draft is kept in Payload; the
// searchable columns are copied out of it at submission time.
type Application struct {
	ID             string            `db:"id" json:"id"`
	Reference      string            `db:"reference" json:"reference"`
	LearnerSurname string            `db:"learner_surname" json:"learnerSurname"`
	LearnerName    string            `db:"learner_name" json:"learnerName"`
	GradeApplying  string            `db:"grade_applying" json:"gradeApplying"`
	AcademicYear   string            `db:"academic_year" json:"year"`
	Status         ApplicationStatus `db:"status" json:"status"`
	Payload        types.JSONText    `db:"payload" json:"payload"`
	SubmittedAt    time.Time         `db:"submitted_at" json:"submittedAt"`
	ReviewedBy     *string           `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time        `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewNote     *string           `db:"review_note" json:"reviewNote,omitempty"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
}

// ApplicationFilter captures back-office listing criteria.
type ApplicationFilter struct {
	Status   ApplicationStatus
	Grade    string
	Year     string
	Search   string
	Page     int
	PageSize int
}
