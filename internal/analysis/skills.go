package analysis

import (
	"strings"

	"github.com/cuongbtq/postings-report/internal/dataset"
)

// tokenCutset is stripped from both ends of every skill token. Exports
// sometimes wrap the list in JSON-style brackets and quotes.
const tokenCutset = " \t\r\n[]\"'"

// Tokenize splits a comma-delimited value into trimmed, non-blank tokens
func Tokenize(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, tokenCutset)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SkillFrequency counts every token of the multi-value field across rows,
// sorted like CountBy
func SkillFrequency(t *dataset.Table, field string) []Count {
	if !t.HasColumn(field) {
		return nil
	}

	counts := make(map[string]int)
	for row := 0; row < t.Len(); row++ {
		s, ok := t.Get(row, field).Text()
		if !ok {
			continue
		}
		for _, token := range Tokenize(s) {
			counts[token]++
		}
	}

	return sortCounts(counts)
}
