package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admissions-portal/internal/models"
)

var applicationRowColumns = []string{"id", "reference", "learner_surname", "learner_name", "grade_applying", "academic_year", "status", "payload", "submitted_at", "reviewed_by", "reviewed_at", "review_note", "updated_at"}

func TestApplicationRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO admission_applications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	app := &models.Application{
		Reference:      "ADM-2026-ABC123",
		LearnerSurname: "Doe",
		LearnerName:    "Jane",
		GradeApplying:  "Grade R",
		AcademicYear:   "2026",
		Payload:        types.JSONText(`{"surname":"Doe"}`),
	}
	require.NoError(t, repo.Create(context.Background(), app))
	require.NotEmpty(t, app.ID)
	require.Equal(t, models.ApplicationSubmitted, app.Status)
	require.False(t, app.SubmittedAt.IsZero())

	now := time.Now()
	rows := sqlmock.NewRows(applicationRowColumns).
		AddRow(app.ID, app.Reference, "Doe", "Jane", "Grade R", "2026", "SUBMITTED", []byte(`{"surname":"Doe"}`), now, nil, nil, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM admission_applications WHERE id = $1")).
		WithArgs(app.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	require.Equal(t, app.Reference, found.Reference)
	require.JSONEq(t, `{"surname":"Doe"}`, string(found.Payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFindMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM admission_applications WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestApplicationRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(applicationRowColumns).
		AddRow("app-1", "ADM-2026-1", "Doe", "Jane", "Grade 1", "2026", "UNDER_REVIEW", []byte(`{}`), now, "admin-1", now, "call parents", now)
	mock.ExpectQuery(`(?s)SELECT .* FROM admission_applications WHERE 1=1 AND status = \$1 AND grade_applying = \$2 AND \(LOWER\(learner_surname\) LIKE \$3.* ORDER BY submitted_at DESC LIMIT 10 OFFSET 10`).
		WithArgs(models.ApplicationUnderReview, "Grade 1", "%doe%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM admission_applications WHERE 1=1")).
		WithArgs(models.ApplicationUnderReview, "Grade 1", "%doe%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	apps, total, err := repo.List(context.Background(), models.ApplicationFilter{
		Status:   models.ApplicationUnderReview,
		Grade:    "Grade 1",
		Search:   "Doe",
		Page:     2,
		PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.Equal(t, 11, total)
	require.NotNil(t, apps[0].ReviewNote)
	require.Equal(t, "call parents", *apps[0].ReviewNote)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE admission_applications")).
		WithArgs("app-1", models.ApplicationSubmitted, models.ApplicationUnderReview, "admin-1", now, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "app-1", models.ApplicationSubmitted, models.ApplicationUnderReview, "admin-1", "", now))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE admission_applications")).
		WithArgs("app-1", models.ApplicationSubmitted, models.ApplicationAccepted, "admin-1", now, "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), "app-1", models.ApplicationSubmitted, models.ApplicationAccepted, "admin-1", "", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
