package analysis

import (
	"sort"

	"github.com/cuongbtq/postings-report/internal/dataset"
	"github.com/shopspring/decimal"
)

// SalaryStat holds mean salary bounds for one group
type SalaryStat struct {
	Group    string  `json:"group"`
	Postings int     `json:"postings"`
	MeanFrom float64 `json:"mean_from"`
	MeanTo   float64 `json:"mean_to"`
	Midpoint float64 `json:"midpoint"`
}

type salaryAcc struct {
	n        int
	from, to decimal.Decimal
}

// SalaryByGroup averages fromField and toField per groupField value. A row
// counts only if at least one of the two numbers is positive. Results are
// rounded to cents and sorted by midpoint descending.
func SalaryByGroup(t *dataset.Table, groupField, fromField, toField string) []SalaryStat {
	if !t.HasColumn(groupField) {
		return nil
	}

	groups := make(map[string]*salaryAcc)
	for row := 0; row < t.Len(); row++ {
		key, ok := keyOf(t.Get(row, groupField))
		if !ok {
			continue
		}

		from := positive(t.Get(row, fromField))
		to := positive(t.Get(row, toField))
		if from.IsZero() && to.IsZero() {
			continue
		}

		acc, ok := groups[key]
		if !ok {
			acc = &salaryAcc{}
			groups[key] = acc
		}
		acc.n++
		acc.from = acc.from.Add(from)
		acc.to = acc.to.Add(to)
	}

	two := decimal.NewFromInt(2)
	out := make([]SalaryStat, 0, len(groups))
	for key, acc := range groups {
		n := decimal.NewFromInt(int64(acc.n))
		meanFrom := acc.from.Div(n)
		meanTo := acc.to.Div(n)
		mid := meanFrom.Add(meanTo).Div(two)

		out = append(out, SalaryStat{
			Group:    key,
			Postings: acc.n,
			MeanFrom: meanFrom.Round(2).InexactFloat64(),
			MeanTo:   meanTo.Round(2).InexactFloat64(),
			Midpoint: mid.Round(2).InexactFloat64(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Midpoint != out[j].Midpoint {
			return out[i].Midpoint > out[j].Midpoint
		}
		return out[i].Group < out[j].Group
	})

	return out
}

// positive returns the cell's number when it is greater than zero, else zero
func positive(c dataset.Cell) decimal.Decimal {
	v, ok := c.Float()
	if !ok || v <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
