// Package analysis computes the aggregate views behind the report charts.
// Every helper returns an ordered slice rather than a map so callers never
// depend on iteration order.
package analysis

import (
	"sort"
	"strings"

	"github.com/cuongbtq/postings-report/internal/dataset"
)

// Count is one group key with its number of rows
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CountBy groups rows by the text of field. Absent and blank keys are not
// counted. Results are sorted by count descending, then key ascending.
func CountBy(t *dataset.Table, field string) []Count {
	if !t.HasColumn(field) {
		return nil
	}

	counts := make(map[string]int)
	for row := 0; row < t.Len(); row++ {
		key, ok := keyOf(t.Get(row, field))
		if !ok {
			continue
		}
		counts[key]++
	}

	return sortCounts(counts)
}

// TopN returns the first n entries; n <= 0 keeps everything
func TopN(counts []Count, n int) []Count {
	if n <= 0 || n >= len(counts) {
		return counts
	}
	return counts[:n]
}

// FilterEqual keeps rows whose trimmed text in field equals value
func FilterEqual(t *dataset.Table, field, value string) *dataset.Table {
	want := strings.TrimSpace(value)
	return t.Filter(func(row int) bool {
		key, ok := keyOf(t.Get(row, field))
		return ok && key == want
	})
}

// CompanyStats summarizes company names across postings
type CompanyStats struct {
	Unique int     `json:"unique"`
	Top    []Count `json:"top"`
}

// CompanySummary counts distinct company names and returns the top n by
// postings. Blank values and "nan" are excluded.
func CompanySummary(t *dataset.Table, field string, n int) CompanyStats {
	counts := CountBy(t, field)

	filtered := make([]Count, 0, len(counts))
	for _, c := range counts {
		if strings.EqualFold(c.Key, "nan") {
			continue
		}
		filtered = append(filtered, c)
	}

	return CompanyStats{
		Unique: len(filtered),
		Top:    TopN(filtered, n),
	}
}

// keyOf renders a cell as a grouping key
func keyOf(c dataset.Cell) (string, bool) {
	if c.IsAbsent() {
		return "", false
	}

	key := strings.TrimSpace(c.Format())
	if key == "" {
		return "", false
	}

	return key, true
}

func sortCounts(counts map[string]int) []Count {
	out := make([]Count, 0, len(counts))
	for k, v := range counts {
		out = append(out, Count{Key: k, Count: v})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})

	return out
}
