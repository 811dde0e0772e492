package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/cuongbtq/postings-report/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textTable(t *testing.T, columns []string, rows ...[]string) *dataset.Table {
	t.Helper()
	table := dataset.NewTable(columns)
	for _, r := range rows {
		cells := make([]dataset.Cell, len(r))
		for i, v := range r {
			if v == "" {
				cells[i] = dataset.Absent()
				continue
			}
			cells[i] = dataset.String(v)
		}
		require.NoError(t, table.Append(cells))
	}
	return table
}

func TestCountBy(t *testing.T) {
	table := textTable(t, []string{"STATE_NAME"},
		[]string{"Texas"},
		[]string{"Ohio"},
		[]string{"Texas"},
		[]string{""},
		[]string{"Alaska"},
		[]string{"Ohio"},
		[]string{"Texas"},
	)

	got := CountBy(table, "STATE_NAME")
	assert.Equal(t, []Count{
		{Key: "Texas", Count: 3},
		{Key: "Ohio", Count: 2},
		{Key: "Alaska", Count: 1},
	}, got)

	assert.Equal(t, []Count{{Key: "Texas", Count: 3}}, TopN(got, 1))
	assert.Len(t, TopN(got, 0), 3)
	assert.Len(t, TopN(got, 20), 3)
	assert.Nil(t, CountBy(table, "MISSING"))
}

func TestFilterEqual(t *testing.T) {
	table := textTable(t, []string{"NAICS2_NAME", "STATE_NAME"},
		[]string{"Retail Trade ", "Texas"},
		[]string{"Finance and Insurance", "Ohio"},
		[]string{" Retail Trade", "Ohio"},
		[]string{"", "Ohio"},
	)

	retail := FilterEqual(table, "NAICS2_NAME", "Retail Trade")
	assert.Equal(t, 2, retail.Len())
	assert.Equal(t, []Count{{Key: "Ohio", Count: 1}, {Key: "Texas", Count: 1}}, CountBy(retail, "STATE_NAME"))
}

func TestCompanySummary(t *testing.T) {
	table := textTable(t, []string{"COMPANY_NAME"},
		[]string{"Acme"},
		[]string{"nan"},
		[]string{""},
		[]string{"Globex"},
		[]string{"Acme"},
	)

	stats := CompanySummary(table, "COMPANY_NAME", 1)
	assert.Equal(t, 2, stats.Unique)
	assert.Equal(t, []Count{{Key: "Acme", Count: 2}}, stats.Top)
}

func TestPercentChange(t *testing.T) {
	pct, ok := PercentChange(10, 15)
	require.True(t, ok)
	assert.InDelta(t, 50.0, pct, 1e-9)

	pct, ok = PercentChange(20, 5)
	require.True(t, ok)
	assert.InDelta(t, -75.0, pct, 1e-9)

	_, ok = PercentChange(0, 7)
	assert.False(t, ok)
}

func TestMonthlyChange(t *testing.T) {
	table := dataset.NewTable([]string{"COMPANY_NAME", "POSTED"})
	add := func(company string, month time.Month, n int) {
		for i := 0; i < n; i++ {
			ts := time.Date(2024, month, 1+i%28, 9, 0, 0, 0, time.UTC)
			require.NoError(t, table.Append([]dataset.Cell{dataset.String(company), dataset.Time(ts)}))
		}
	}

	add("Acme", time.May, 10)
	add("Acme", time.September, 15)
	add("Globex", time.September, 4)
	add("Initech", time.May, 2)
	add("Initech", time.July, 9)
	require.NoError(t, table.Append([]dataset.Cell{dataset.String("Acme"), dataset.Absent()}))
	require.NoError(t, table.Append([]dataset.Cell{dataset.Absent(), dataset.Time(time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC))}))

	before, err := ParseMonth("2024-05")
	require.NoError(t, err)
	after, err := ParseMonth("2024-09")
	require.NoError(t, err)

	changes := MonthlyChange(table, "COMPANY_NAME", "POSTED", []string{"Acme", "Globex", "Initech"}, before, after)
	require.Len(t, changes, 3)

	assert.Equal(t, "Acme", changes[0].Entity)
	assert.Equal(t, 10, changes[0].Before)
	assert.Equal(t, 15, changes[0].After)
	assert.True(t, changes[0].Defined)
	assert.InDelta(t, 50.0, changes[0].Percent, 1e-9)

	assert.Equal(t, 0, changes[1].Before)
	assert.Equal(t, 4, changes[1].After)
	assert.False(t, changes[1].Defined)

	assert.Equal(t, 2, changes[2].Before)
	assert.Equal(t, 0, changes[2].After)
	assert.InDelta(t, -100.0, changes[2].Percent, 1e-9)

	defined := DefinedChanges(changes)
	require.Len(t, defined, 2)
	assert.Equal(t, "Acme", defined[0].Entity)
	assert.Equal(t, "Initech", defined[1].Entity)
}

func TestMonthlyChange_SameMonth(t *testing.T) {
	table := dataset.NewTable([]string{"COMPANY_NAME", "POSTED"})
	for i := 0; i < 10; i++ {
		ts := time.Date(2024, time.May, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, table.Append([]dataset.Cell{dataset.String("Acme"), dataset.Time(ts)}))
	}

	may, err := ParseMonth("2024-05")
	require.NoError(t, err)

	changes := MonthlyChange(table, "COMPANY_NAME", "POSTED", []string{"Acme"}, may, may)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Entity: "Acme", Before: 10, After: 10, Percent: 0, Defined: true}, changes[0])
}

func TestParseMonth_Invalid(t *testing.T) {
	_, err := ParseMonth("September")
	require.Error(t, err)
}

func TestSalaryByGroup(t *testing.T) {
	table := dataset.NewTable([]string{"NAICS2_NAME", "SALARY_FROM", "SALARY_TO"})
	rows := []struct {
		group    string
		from, to float64
	}{
		{"Finance", 100000, 140000},
		{"Finance", 80000, 100000},
		{"Retail Trade", 30000, 40000},
		{"Retail Trade", 0, 0},
		{"Retail Trade", 0, 50000},
		{"Unpaid", 0, 0},
		{"Unpaid", -5, 0},
	}
	for _, r := range rows {
		require.NoError(t, table.Append([]dataset.Cell{
			dataset.String(r.group), dataset.Number(r.from), dataset.Number(r.to),
		}))
	}

	got := SalaryByGroup(table, "NAICS2_NAME", "SALARY_FROM", "SALARY_TO")
	require.Len(t, got, 2)

	assert.Equal(t, SalaryStat{
		Group: "Finance", Postings: 2, MeanFrom: 90000, MeanTo: 120000, Midpoint: 105000,
	}, got[0])

	assert.Equal(t, "Retail Trade", got[1].Group)
	assert.Equal(t, 2, got[1].Postings)
	assert.InDelta(t, 15000, got[1].MeanFrom, 0.001)
	assert.InDelta(t, 45000, got[1].MeanTo, 0.001)
	assert.InDelta(t, 30000, got[1].Midpoint, 0.001)
}

func TestSalaryByGroup_NonPositiveBounds(t *testing.T) {
	table := dataset.NewTable([]string{"G", "F", "T"})
	rows := [][2]float64{
		{100, 0},
		{0, 0},    // dropped, both bounds non-positive
		{-40, 60}, // negative bound counts as 0
	}
	for _, r := range rows {
		require.NoError(t, table.Append([]dataset.Cell{
			dataset.String("g"), dataset.Number(r[0]), dataset.Number(r[1]),
		}))
	}

	got := SalaryByGroup(table, "G", "F", "T")
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Postings)
	assert.Equal(t, 50.0, got[0].MeanFrom)
	assert.Equal(t, 30.0, got[0].MeanTo)
	assert.Equal(t, 40.0, got[0].Midpoint)
}

func TestSalaryByGroup_RoundsToCents(t *testing.T) {
	table := dataset.NewTable([]string{"G", "F", "T"})
	for _, v := range []float64{10, 10, 11} {
		require.NoError(t, table.Append([]dataset.Cell{dataset.String("g"), dataset.Number(v), dataset.Absent()}))
	}

	got := SalaryByGroup(table, "G", "F", "T")
	require.Len(t, got, 1)
	assert.Equal(t, 10.33, got[0].MeanFrom)
	assert.Equal(t, 0.0, got[0].MeanTo)
	assert.Equal(t, 5.17, got[0].Midpoint)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Python, SQL, Python", []string{"Python", "SQL", "Python"}},
		{" , ,", []string{}},
		{`["Merchandising", "Math"]`, []string{"Merchandising", "Math"}},
		{"[\n  \"Sales\",\n  \"Excel\"\n]", []string{"Sales", "Excel"}},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestSkillFrequency(t *testing.T) {
	table := textTable(t, []string{"SKILLS_NAME"},
		[]string{"Python, SQL, Python"},
	)

	got := SkillFrequency(table, "SKILLS_NAME")
	assert.Equal(t, []Count{{Key: "Python", Count: 2}, {Key: "SQL", Count: 1}}, got)
}

func TestSkillFrequency_AcrossRows(t *testing.T) {
	table := textTable(t, []string{"SKILLS_NAME"},
		[]string{"Go, SQL"},
		[]string{""},
		[]string{"SQL, Excel , "},
	)

	got := SkillFrequency(table, "SKILLS_NAME")
	assert.Equal(t, []Count{
		{Key: "SQL", Count: 2},
		{Key: "Excel", Count: 1},
		{Key: "Go", Count: 1},
	}, got)
}

func TestMonthRange(t *testing.T) {
	table := dataset.NewTable([]string{"POSTED"})
	for _, c := range []dataset.Cell{
		dataset.Time(time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)),
		dataset.Absent(),
		dataset.Time(time.Date(2024, 5, 30, 8, 0, 0, 0, time.UTC)),
		dataset.Time(time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)),
	} {
		require.NoError(t, table.Append([]dataset.Cell{c}))
	}

	first, last, ok := MonthRange(table, "POSTED")
	require.True(t, ok)
	assert.Equal(t, "2024-05", first.Format(MonthLayout))
	assert.Equal(t, "2024-09", last.Format(MonthLayout))

	_, _, ok = MonthRange(dataset.NewTable([]string{"POSTED"}), "POSTED")
	assert.False(t, ok)
}
