package report

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/cuongbtq/postings-report/internal/analysis"
)

// Chart file names, one per analysis question
const (
	ChartStateCounts    = "q1_job_count_by_state.png"
	ChartPercentChange  = "q3_percent_change_by_company.png"
	ChartSalaryIndustry = "q4_average_salary_by_industry.png"
)

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses every run of other characters into "_"
func Slug(s string) string {
	s = slugInvalid.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(s, "_")
}

// IndustryChartName is the q2 file name for an industry
func IndustryChartName(industry string) string {
	slug := Slug(industry)
	if slug == "" {
		slug = "unknown"
	}
	return fmt.Sprintf("q2_job_count_by_state_%s.png", slug)
}

// SkillsChartName is the q5 file name for the top n skills
func SkillsChartName(n int) string {
	return fmt.Sprintf("q5_top_%d_skills.png", n)
}

// Chart is a rendered chart file
type Chart struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

// barChart describes one bar plot. Horizontal charts put labels on the Y
// axis, which keeps long category names readable.
type barChart struct {
	title      string
	xLabel     string
	yLabel     string
	labels     []string
	values     []float64
	horizontal bool
}

func countChart(title, xLabel, yLabel string, counts []analysis.Count) barChart {
	c := barChart{title: title, xLabel: xLabel, yLabel: yLabel}
	for _, cnt := range counts {
		c.labels = append(c.labels, cnt.Key)
		c.values = append(c.values, float64(cnt.Count))
	}
	return c
}

// render draws c as a PNG at path. An empty chart keeps its title and axes.
func (c barChart) render(path string, width, height vg.Length) error {
	p := plot.New()
	p.Title.Text = c.title
	p.X.Label.Text = c.xLabel
	p.Y.Label.Text = c.yLabel

	if len(c.values) > 0 {
		bars, err := plotter.NewBarChart(plotter.Values(c.values), barWidth(len(c.values), width, height, c.horizontal))
		if err != nil {
			return fmt.Errorf("failed to build bars for %q: %w", c.title, err)
		}
		bars.Color = plotutil.Color(0)
		bars.LineStyle.Width = vg.Length(0)
		bars.Horizontal = c.horizontal
		p.Add(bars)

		if c.horizontal {
			p.NominalY(reversed(c.labels)...)
			bars.Values = reversedValues(bars.Values)
		} else {
			p.NominalX(c.labels...)
			p.X.Tick.Label.Rotation = math.Pi / 2.4
			p.X.Tick.Label.XAlign = text.XRight
			p.X.Tick.Label.YAlign = text.YCenter
		}
	}

	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save chart %s: %w", path, err)
	}
	return nil
}

// barWidth spreads bars over roughly 70% of the category axis
func barWidth(n int, width, height vg.Length, horizontal bool) vg.Length {
	axis := width
	if horizontal {
		axis = height
	}
	w := axis * 0.7 / vg.Length(n+1)
	if w < 1 {
		w = 1
	}
	return w
}

// reversed flips label order so the largest value of a horizontal chart
// is drawn at the top
func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}

func reversedValues(in plotter.Values) plotter.Values {
	out := make(plotter.Values, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
