package analysis

import (
	"fmt"
	"time"

	"github.com/cuongbtq/postings-report/internal/dataset"
)

// MonthLayout is the text form of a month bucket
const MonthLayout = "2006-01"

// Change compares an entity's postings in two month buckets. Percent is
// only meaningful when Defined is true; it is undefined when Before is 0.
type Change struct {
	Entity  string  `json:"entity"`
	Before  int     `json:"before"`
	After   int     `json:"after"`
	Percent float64 `json:"percent"`
	Defined bool    `json:"defined"`
}

// Bucket truncates a timestamp to the first instant of its month (UTC)
func Bucket(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParseMonth parses a "2006-01" month string into its bucket
func ParseMonth(s string) (time.Time, error) {
	ts, err := time.Parse(MonthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q (want YYYY-MM): %w", s, err)
	}
	return ts, nil
}

// PercentChange returns (after - before) / before * 100. The second result
// is false when before is 0.
func PercentChange(before, after int) (float64, bool) {
	if before == 0 {
		return 0, false
	}
	return float64(after-before) / float64(before) * 100, true
}

// MonthlyChange counts rows per (entity, month) and compares the before and
// after buckets for each requested entity, in the order given. Rows with an
// absent entity or date are ignored.
func MonthlyChange(t *dataset.Table, entityField, dateField string, entities []string, before, after time.Time) []Change {
	before, after = Bucket(before), Bucket(after)

	wanted := make(map[string]*Change, len(entities))
	out := make([]Change, len(entities))
	for i, e := range entities {
		out[i] = Change{Entity: e}
		wanted[e] = &out[i]
	}

	if t.HasColumn(entityField) && t.HasColumn(dateField) {
		for row := 0; row < t.Len(); row++ {
			entity, ok := keyOf(t.Get(row, entityField))
			if !ok {
				continue
			}
			ch, ok := wanted[entity]
			if !ok {
				continue
			}
			ts, ok := t.Get(row, dateField).Timestamp()
			if !ok {
				continue
			}

			// Equal months count a row on both sides, giving a 0% change
			bucket := Bucket(ts)
			if bucket.Equal(before) {
				ch.Before++
			}
			if bucket.Equal(after) {
				ch.After++
			}
		}
	}

	for i := range out {
		out[i].Percent, out[i].Defined = PercentChange(out[i].Before, out[i].After)
	}

	return out
}

// DefinedChanges drops the entries whose percent change is undefined
func DefinedChanges(changes []Change) []Change {
	out := make([]Change, 0, len(changes))
	for _, c := range changes {
		if c.Defined {
			out = append(out, c)
		}
	}
	return out
}

// MonthRange returns the earliest and latest month buckets of dateField.
// ok is false when no row has a timestamp.
func MonthRange(t *dataset.Table, dateField string) (first, last time.Time, ok bool) {
	if !t.HasColumn(dateField) {
		return time.Time{}, time.Time{}, false
	}

	for row := 0; row < t.Len(); row++ {
		ts, has := t.Get(row, dateField).Timestamp()
		if !has {
			continue
		}
		b := Bucket(ts)
		if !ok || b.Before(first) {
			first = b
		}
		if !ok || b.After(last) {
			last = b
		}
		ok = true
	}

	return first, last, ok
}
