package report

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/postings-report/internal/analysis"
	"github.com/cuongbtq/postings-report/internal/config"
	"github.com/cuongbtq/postings-report/internal/normalizer"
)

// NewOptions builds pipeline options from the analysis config section
func NewOptions(a config.AnalysisConfig) Options {
	fill := make(map[string]float64, len(a.FillValues))
	for k, v := range a.FillValues {
		fill[k] = v
	}

	return Options{
		Normalizer: normalizer.Options{
			CompanyField:  a.Columns.Company,
			DateFields:    append([]string(nil), a.DateFields...),
			NumericFields: append([]string(nil), a.NumericFields...),
			FillValues:    fill,
		},
		StateField:      a.Columns.State,
		IndustryField:   a.Columns.Industry,
		PostedField:     a.Columns.Posted,
		SalaryFromField: a.Columns.SalaryFrom,
		SalaryToField:   a.Columns.SalaryTo,
		SkillsField:     a.Columns.Skills,
		Industry:        a.Industry,
		Companies:       append([]string(nil), a.Companies...),
		BeforeMonth:     a.BeforeMonth,
		AfterMonth:      a.AfterMonth,
		TopStates:       a.TopStates,
		TopSkills:       a.TopSkills,
		TopCompanies:    a.TopCompanies,
		CleanedFile:     a.CleanedFile,
		ChartWidth:      a.Chart.Width,
		ChartHeight:     a.Chart.Height,
	}
}

// Params are the per-request overrides submitted through the API. InputPath
// is relative to the worker's data directory.
type Params struct {
	InputPath   string   `json:"input_path"`
	Industry    string   `json:"industry,omitempty"`
	Companies   []string `json:"companies,omitempty"`
	BeforeMonth string   `json:"before_month,omitempty"`
	AfterMonth  string   `json:"after_month,omitempty"`
}

// Validate rejects params a worker could never run
func (p Params) Validate() error {
	if p.InputPath == "" {
		return errors.New("input_path is required")
	}

	if filepath.IsAbs(p.InputPath) {
		return fmt.Errorf("input_path must be relative: %q", p.InputPath)
	}

	clean := filepath.ToSlash(filepath.Clean(p.InputPath))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("input_path escapes the data directory: %q", p.InputPath)
	}

	for _, m := range []string{p.BeforeMonth, p.AfterMonth} {
		if m == "" {
			continue
		}
		if _, err := analysis.ParseMonth(m); err != nil {
			return err
		}
	}

	for _, c := range p.Companies {
		if strings.TrimSpace(c) == "" {
			return errors.New("companies must not contain blank names")
		}
	}

	return nil
}

// Apply overlays the non-empty params on opts
func (p Params) Apply(opts Options) Options {
	if p.Industry != "" {
		opts.Industry = p.Industry
	}
	if len(p.Companies) > 0 {
		opts.Companies = p.Companies
	}
	if p.BeforeMonth != "" {
		opts.BeforeMonth = p.BeforeMonth
	}
	if p.AfterMonth != "" {
		opts.AfterMonth = p.AfterMonth
	}
	return opts
}

// ResolveInput joins the validated input path onto dataDir
func (p Params) ResolveInput(dataDir string) string {
	return filepath.Join(dataDir, filepath.Clean(p.InputPath))
}
