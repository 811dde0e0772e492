package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrMalformedCSV marks input that cannot be parsed as a header-first CSV
var ErrMalformedCSV = errors.New("failed to parse csv")

// ReadCSV loads a header-first CSV stream. Every column enters as raw text;
// empty cells become absent. Typing is left to the normalizer. The header is
// kept exactly as written, duplicate and blank names included.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCSV, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedCSV)
	}

	table := NewTable(records[0])
	if len(records) == 1 {
		return table, nil
	}

	df := loadFrame(records[0], records[1:])
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCSV, df.Err)
	}

	for _, rec := range df.Records()[1:] {
		row := make([]Cell, len(rec))
		for i, v := range rec {
			if v == "" {
				row[i] = Absent()
				continue
			}
			row[i] = String(v)
		}
		if err := table.Append(row); err != nil {
			return nil, err
		}
	}

	return table, nil
}

// loadFrame builds a text-only frame from data rows. Columns are named by
// position because gota rewrites duplicate and blank header names.
func loadFrame(header []string, rows [][]string) dataframe.DataFrame {
	names := make([]string, len(header))
	for i := range header {
		names[i] = fmt.Sprintf("c%d", i)
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, names)
	records = append(records, rows...)

	return dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
}

// ReadCSVFile opens path and reads it with ReadCSV
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// WriteCSV writes the table with its header
func WriteCSV(w io.Writer, t *Table) error {
	records := t.Records()

	cw := csv.NewWriter(w)
	if err := cw.Write(records[0]); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	// gota refuses to build a frame without data rows
	if t.Len() == 0 {
		return nil
	}

	df := loadFrame(records[0], records[1:])
	if df.Err != nil {
		return fmt.Errorf("failed to build frame: %w", df.Err)
	}

	if err := df.WriteCSV(w, dataframe.WriteHeader(false)); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}

	return nil
}

// WriteCSVFile writes the table to path, creating parent directories
func WriteCSVFile(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
