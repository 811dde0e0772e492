package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/postings-report/internal/dataset"
)

// nonNumeric matches every character that cannot be part of a plain decimal
var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// dateLayouts are tried in order; the first successful parse wins
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// missingMarkers are textual spellings of a missing value
var missingMarkers = []string{"nan", "none"}

// TrimName trims surrounding whitespace from a text cell. Blank values and
// missing markers become absent.
func TrimName(c dataset.Cell) dataset.Cell {
	s, ok := c.Text()
	if !ok {
		return c
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return dataset.Absent()
	}
	for _, m := range missingMarkers {
		if strings.EqualFold(s, m) {
			return dataset.Absent()
		}
	}

	return dataset.String(s)
}

// CoerceDate turns a text cell into a UTC timestamp. Anything that does not
// parse becomes absent.
func CoerceDate(c dataset.Cell) dataset.Cell {
	switch c.Kind() {
	case dataset.KindTime:
		ts, _ := c.Timestamp()
		return dataset.Time(ts.UTC())
	case dataset.KindString:
		s, _ := c.Text()
		if ts, ok := ParseDate(s); ok {
			return dataset.Time(ts)
		}
		return dataset.Absent()
	default:
		return dataset.Absent()
	}
}

// ParseDate parses s with the accepted layouts
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}

	return time.Time{}, false
}

// CoerceNumber strips everything but digits, '.' and '-' from a text cell
// and parses the rest. Unparseable results become absent.
func CoerceNumber(c dataset.Cell) dataset.Cell {
	switch c.Kind() {
	case dataset.KindNumber:
		v, _ := c.Float()
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return dataset.Absent()
		}
		return c
	case dataset.KindString:
		s, _ := c.Text()
		if v, ok := ParseNumber(s); ok {
			return dataset.Number(v)
		}
		return dataset.Absent()
	default:
		return dataset.Absent()
	}
}

// ParseNumber cleans and parses s. "$45,000" yields 45000.
func ParseNumber(s string) (float64, bool) {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	return v, true
}
