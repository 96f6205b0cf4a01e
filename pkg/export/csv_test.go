package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, Dataset{
		Headers: []string{"reference", "surname", "grade"},
		Rows: [][]string{
			{"ADM-2026-AAAA", "Doe, Jr", "Grade R"},
			{"ADM-2026-BBBB"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "reference,surname,grade\nADM-2026-AAAA,\"Doe, Jr\",Grade R\nADM-2026-BBBB,,\n", buf.String())
}

func TestWriteCSVRequiresHeaders(t *testing.T) {
	assert.ErrorIs(t, WriteCSV(&bytes.Buffer{}, Dataset{}), ErrNoHeaders)
}
