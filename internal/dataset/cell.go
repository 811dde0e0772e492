package dataset

import (
	"strconv"
	"time"
)

// Kind identifies what a Cell holds
type Kind int

const (
	KindAbsent Kind = iota
	KindString
	KindNumber
	KindTime
)

const (
	// DateLayout is used for timestamps that fall exactly on midnight
	DateLayout = "2006-01-02"
	// DateTimeLayout is used for every other timestamp
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Cell is a single typed value of a Table. The zero value is absent.
type Cell struct {
	kind Kind
	str  string
	num  float64
	ts   time.Time
}

// Absent returns a cell explicitly marked as missing
func Absent() Cell {
	return Cell{}
}

// String returns a raw text cell
func String(s string) Cell {
	return Cell{kind: KindString, str: s}
}

// Number returns a numeric cell
func Number(v float64) Cell {
	return Cell{kind: KindNumber, num: v}
}

// Time returns a timestamp cell
func Time(t time.Time) Cell {
	return Cell{kind: KindTime, ts: t}
}

func (c Cell) Kind() Kind {
	return c.kind
}

func (c Cell) IsAbsent() bool {
	return c.kind == KindAbsent
}

// Text returns the raw text of a string cell and false for any other kind
func (c Cell) Text() (string, bool) {
	if c.kind != KindString {
		return "", false
	}
	return c.str, true
}

// Float returns the value of a numeric cell
func (c Cell) Float() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.num, true
}

// Timestamp returns the value of a timestamp cell
func (c Cell) Timestamp() (time.Time, bool) {
	if c.kind != KindTime {
		return time.Time{}, false
	}
	return c.ts, true
}

// Format renders the cell the way it is written to the cleaned file
func (c Cell) Format() string {
	switch c.kind {
	case KindString:
		return c.str
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	case KindTime:
		h, m, s := c.ts.Clock()
		if h == 0 && m == 0 && s == 0 && c.ts.Nanosecond() == 0 {
			return c.ts.Format(DateLayout)
		}
		return c.ts.Format(DateTimeLayout)
	default:
		return ""
	}
}

// Equal reports whether two cells hold the same kind and value
func (c Cell) Equal(other Cell) bool {
	if c.kind != other.kind {
		return false
	}
	switch c.kind {
	case KindString:
		return c.str == other.str
	case KindNumber:
		return c.num == other.num
	case KindTime:
		return c.ts.Equal(other.ts)
	default:
		return true
	}
}
