// Package normalizer cleans and typecasts a raw job postings table.
//
// Row-level data problems never produce errors: a value that cannot be
// coerced is marked absent, and absent values of fields listed in the fill
// map are replaced by their fallback.
package normalizer

import (
	"github.com/cuongbtq/postings-report/internal/dataset"
)

// Options selects the fields each normalization step applies to
type Options struct {
	CompanyField  string
	DateFields    []string
	NumericFields []string
	FillValues    map[string]float64
}

// DefaultOptions returns the field setup of the Lightcast postings export
func DefaultOptions() Options {
	return Options{
		CompanyField:  "COMPANY_NAME",
		DateFields:    []string{"POSTED", "EXPIRED", "LAST_UPDATED_DATE"},
		NumericFields: []string{"SALARY_FROM", "SALARY_TO", "MIN_YEARS_EXPERIENCE"},
		FillValues: map[string]float64{
			"SALARY_FROM":          0,
			"SALARY_TO":            0,
			"MIN_YEARS_EXPERIENCE": 0,
		},
	}
}

// Stats counts what normalization did, per field
type Stats struct {
	Rows           int            `json:"rows"`
	Coerced        map[string]int `json:"coerced"`
	Absent         map[string]int `json:"absent"`
	Filled         map[string]int `json:"filled"`
	MissingColumns []string       `json:"missing_columns,omitempty"`
}

// Normalizer applies the configured cleaning steps to a table
type Normalizer struct {
	opts Options
}

// New creates a Normalizer
func New(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Normalize cleans t in place and returns it together with the step counts.
// Steps whose column is missing from t are skipped.
func (n *Normalizer) Normalize(t *dataset.Table) (*dataset.Table, Stats) {
	stats := Stats{
		Rows:    t.Len(),
		Coerced: make(map[string]int),
		Absent:  make(map[string]int),
		Filled:  make(map[string]int),
	}

	if n.opts.CompanyField != "" {
		n.apply(t, n.opts.CompanyField, TrimName, &stats)
	}

	for _, field := range n.opts.DateFields {
		n.apply(t, field, CoerceDate, &stats)
	}

	for _, field := range n.opts.NumericFields {
		n.apply(t, field, CoerceNumber, &stats)
	}

	for field, fallback := range n.opts.FillValues {
		if !t.HasColumn(field) {
			continue
		}
		for row := 0; row < t.Len(); row++ {
			if t.Get(row, field).IsAbsent() {
				t.Set(row, field, dataset.Number(fallback))
				stats.Filled[field]++
			}
		}
	}

	return t, stats
}

func (n *Normalizer) apply(t *dataset.Table, field string, coerce func(dataset.Cell) dataset.Cell, stats *Stats) {
	if !t.HasColumn(field) {
		stats.MissingColumns = append(stats.MissingColumns, field)
		return
	}

	for row := 0; row < t.Len(); row++ {
		out := coerce(t.Get(row, field))
		t.Set(row, field, out)
		if out.IsAbsent() {
			stats.Absent[field]++
		} else {
			stats.Coerced[field]++
		}
	}
}
