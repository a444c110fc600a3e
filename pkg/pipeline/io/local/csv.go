package local

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes header followed by rows. Every row must have len(header) columns.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range rows {
		if len(rec) != len(header) {
			return fmt.Errorf("row %d has %d columns, want %d", i, len(rec), len(header))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
