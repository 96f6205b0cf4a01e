package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("lookup: %w", Clone(ErrNotFound, "application not found"))
	got := FromError(wrapped)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "application not found", got.Message)

	internal := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, internal.Code)
	assert.ErrorIs(t, internal, sql.ErrConnDone)
}

func TestCloneLeavesOriginalUntouched(t *testing.T) {
	clone := Clone(ErrConflict, "already reviewed")
	assert.Equal(t, "already reviewed", clone.Message)
	assert.Equal(t, "conflict", ErrConflict.Message)
	assert.Nil(t, Clone(nil, "x"))
}

func TestWithFieldsSortsByField(t *testing.T) {
	err := WithFields(ErrValidation, map[string]string{"year": "Year is required", "surname": "Surname is required"})
	require.Len(t, err.Fields, 2)
	assert.Equal(t, "surname", err.Fields[0].Field)
	assert.Equal(t, "year", err.Fields[1].Field)
	assert.Empty(t, ErrValidation.Fields)
}
