// Package report runs the postings report end to end: it loads the raw
// dataset, normalizes it, writes the cleaned copy, computes the aggregate
// views and renders one chart per analysis question.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot/vg"

	"github.com/cuongbtq/postings-report/internal/analysis"
	"github.com/cuongbtq/postings-report/internal/dataset"
	"github.com/cuongbtq/postings-report/internal/normalizer"
)

// defaultCompanyPicks is how many top companies are compared when no
// companies are configured
const defaultCompanyPicks = 3

// Options controls which columns feed each view and how charts look
type Options struct {
	Normalizer normalizer.Options

	StateField      string
	IndustryField   string
	PostedField     string
	SalaryFromField string
	SalaryToField   string
	SkillsField     string

	Industry    string
	Companies   []string
	BeforeMonth string
	AfterMonth  string

	TopStates    int
	TopSkills    int
	TopCompanies int

	CleanedFile string
	ChartWidth  float64 // inches
	ChartHeight float64 // inches
}

// DefaultOptions matches the column names of the Lightcast postings export
func DefaultOptions() Options {
	return Options{
		Normalizer:      normalizer.DefaultOptions(),
		StateField:      "STATE_NAME",
		IndustryField:   "NAICS2_NAME",
		PostedField:     "POSTED",
		SalaryFromField: "SALARY_FROM",
		SalaryToField:   "SALARY_TO",
		SkillsField:     "SKILLS_NAME",
		Industry:        "Retail Trade",
		TopStates:       20,
		TopSkills:       10,
		TopCompanies:    50,
		CleanedFile:     "lightcast_cleaned.csv",
		ChartWidth:      12,
		ChartHeight:     6,
	}
}

// withDefaults fills the zero-valued file and chart settings
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.CleanedFile == "" {
		o.CleanedFile = def.CleanedFile
	}
	if o.ChartWidth <= 0 {
		o.ChartWidth = def.ChartWidth
	}
	if o.ChartHeight <= 0 {
		o.ChartHeight = def.ChartHeight
	}
	if o.TopSkills <= 0 {
		o.TopSkills = def.TopSkills
	}
	return o
}

// Request is one pipeline run
type Request struct {
	InputPath string
	OutputDir string
	Options   Options
}

// Summary is the JSON-serialisable outcome of a run
type Summary struct {
	InputPath           string                `json:"input_path"`
	CleanedPath         string                `json:"cleaned_path"`
	Normalization       normalizer.Stats      `json:"normalization"`
	Companies           analysis.CompanyStats `json:"companies"`
	StateCounts         []analysis.Count      `json:"state_counts"`
	Industry            string                `json:"industry"`
	IndustryStateCounts []analysis.Count      `json:"industry_state_counts"`
	BeforeMonth         string                `json:"before_month"`
	AfterMonth          string                `json:"after_month"`
	Changes             []analysis.Change     `json:"changes"`
	UndefinedChanges    []string              `json:"undefined_changes,omitempty"`
	Salaries            []analysis.SalaryStat `json:"salaries"`
	Skills              []analysis.Count      `json:"skills"`
	Charts              []Chart               `json:"charts"`
	Duration            string                `json:"duration"`
}

// ChartPath returns the file of the named chart, if it was rendered
func (s *Summary) ChartPath(name string) (string, bool) {
	for _, c := range s.Charts {
		if c.Name == name {
			return c.Path, true
		}
	}
	return "", false
}

// Pipeline runs report requests
type Pipeline struct {
	logger *slog.Logger
}

// NewPipeline creates a Pipeline
func NewPipeline(logger *slog.Logger) *Pipeline {
	return &Pipeline{logger: logger}
}

// Run executes every stage of req synchronously. The context is checked
// between stages; a stage already started runs to completion.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Summary, error) {
	start := time.Now()
	opts := req.Options.withDefaults()

	// Step 1: Load and normalize
	table, err := dataset.ReadCSVFile(req.InputPath)
	if err != nil {
		return nil, err
	}

	table, stats := normalizer.New(opts.Normalizer).Normalize(table)
	p.logger.Info("Dataset normalized",
		slog.String("input", req.InputPath),
		slog.Int("rows", stats.Rows),
		slog.Any("filled", stats.Filled),
		slog.Any("missing_columns", stats.MissingColumns),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 2: Cleaned copy
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	cleanedPath := filepath.Join(req.OutputDir, opts.CleanedFile)
	if err := dataset.WriteCSVFile(cleanedPath, table); err != nil {
		return nil, err
	}
	p.logger.Info("Cleaned dataset written", slog.String("path", cleanedPath))

	// Step 3: Views
	summary := &Summary{
		InputPath:     req.InputPath,
		CleanedPath:   cleanedPath,
		Normalization: stats,
		Industry:      opts.Industry,
	}

	summary.Companies = analysis.CompanySummary(table, opts.Normalizer.CompanyField, opts.TopCompanies)
	summary.StateCounts = analysis.TopN(analysis.CountBy(table, opts.StateField), opts.TopStates)

	industryRows := analysis.FilterEqual(table, opts.IndustryField, opts.Industry)
	summary.IndustryStateCounts = analysis.TopN(analysis.CountBy(industryRows, opts.StateField), opts.TopStates)

	before, after, err := p.months(table, opts)
	if err != nil {
		return nil, err
	}
	summary.BeforeMonth = before.Format(analysis.MonthLayout)
	summary.AfterMonth = after.Format(analysis.MonthLayout)

	companies := opts.Companies
	if len(companies) == 0 {
		for _, c := range analysis.TopN(summary.Companies.Top, defaultCompanyPicks) {
			companies = append(companies, c.Key)
		}
	}
	summary.Changes = analysis.MonthlyChange(table, opts.Normalizer.CompanyField, opts.PostedField, companies, before, after)
	for _, c := range summary.Changes {
		if !c.Defined {
			summary.UndefinedChanges = append(summary.UndefinedChanges, c.Entity)
		}
	}
	if len(summary.UndefinedChanges) > 0 {
		p.logger.Warn("Percent change undefined for companies without postings in the before month",
			slog.String("before_month", summary.BeforeMonth),
			slog.Any("companies", summary.UndefinedChanges),
		)
	}

	summary.Salaries = analysis.SalaryByGroup(table, opts.IndustryField, opts.SalaryFromField, opts.SalaryToField)
	summary.Skills = analysis.TopN(analysis.SkillFrequency(table, opts.SkillsField), opts.TopSkills)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 4: Charts
	charts, err := p.renderCharts(ctx, req.OutputDir, opts, summary)
	if err != nil {
		return nil, err
	}
	summary.Charts = charts
	summary.Duration = time.Since(start).Round(time.Millisecond).String()

	p.logger.Info("Report generated",
		slog.String("output_dir", req.OutputDir),
		slog.Int("charts", len(charts)),
		slog.String("duration", summary.Duration),
	)

	return summary, nil
}

// months resolves the compared buckets. Unset months fall back to the first
// and last month present in the posted-date column.
func (p *Pipeline) months(table *dataset.Table, opts Options) (time.Time, time.Time, error) {
	first, last, _ := analysis.MonthRange(table, opts.PostedField)

	before, after := first, last
	if opts.BeforeMonth != "" {
		m, err := analysis.ParseMonth(opts.BeforeMonth)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("before month: %w", err)
		}
		before = m
	}
	if opts.AfterMonth != "" {
		m, err := analysis.ParseMonth(opts.AfterMonth)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("after month: %w", err)
		}
		after = m
	}

	if before.Equal(after) {
		p.logger.Warn("Before and after months are the same, percent changes will be 0",
			slog.String("month", before.Format(analysis.MonthLayout)),
		)
	}

	return before, after, nil
}

func (p *Pipeline) renderCharts(ctx context.Context, dir string, opts Options, s *Summary) ([]Chart, error) {
	defined := analysis.DefinedChanges(s.Changes)
	change := barChart{
		title:  fmt.Sprintf("Percent Change in Postings (%s vs %s)", s.AfterMonth, s.BeforeMonth),
		xLabel: "Company",
		yLabel: "Percent Change (%)",
	}
	for _, c := range defined {
		change.labels = append(change.labels, c.Entity)
		change.values = append(change.values, c.Percent)
	}

	salary := barChart{
		title:      "Average Salary Midpoint by Industry",
		xLabel:     "Average Salary Midpoint",
		yLabel:     "Industry",
		horizontal: true,
	}
	for _, st := range s.Salaries {
		salary.labels = append(salary.labels, st.Group)
		salary.values = append(salary.values, st.Midpoint)
	}

	skills := countChart(fmt.Sprintf("Top %d Mentioned Skills", opts.TopSkills), "Mentions", "Skill", s.Skills)
	skills.horizontal = true

	planned := []struct {
		name  string
		chart barChart
	}{
		{ChartStateCounts, countChart(fmt.Sprintf("Job Count by State (Top %d)", opts.TopStates), "State", "Number of Jobs", s.StateCounts)},
		{IndustryChartName(opts.Industry), countChart(fmt.Sprintf("Job Count by State - %s (Top %d)", opts.Industry, opts.TopStates), "State", "Number of Jobs", s.IndustryStateCounts)},
		{ChartPercentChange, change},
		{ChartSalaryIndustry, salary},
		{SkillsChartName(opts.TopSkills), skills},
	}

	width := vg.Length(opts.ChartWidth) * vg.Inch
	height := vg.Length(opts.ChartHeight) * vg.Inch

	charts := make([]Chart, 0, len(planned))
	for _, pc := range planned {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(dir, pc.name)
		if err := pc.chart.render(path, width, height); err != nil {
			return nil, err
		}
		p.logger.Debug("Chart saved", slog.String("path", path))

		charts = append(charts, Chart{Name: pc.name, Title: pc.chart.title, Path: path})
	}

	return charts, nil
}
