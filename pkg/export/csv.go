package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ErrNoHeaders is returned when a dataset has no columns.
var ErrNoHeaders = errors.New("csv requires at least one header")

// Dataset is a table ready for export. Each row is aligned with Headers; short rows are
// padded with empty cells.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// WriteCSV streams the dataset to w.
func WriteCSV(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return ErrNoHeaders
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(data.Headers); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	record := make([]string, len(data.Headers))
	for i, row := range data.Rows {
		for j := range record {
			record[j] = ""
			if j < len(row) {
				record[j] = row[j]
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
