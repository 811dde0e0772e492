package report

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/postings-report/internal/config"
)

func TestNewOptions(t *testing.T) {
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Analysis.Companies = []string{"Deloitte"}
	cfg.Analysis.BeforeMonth = "2024-05"

	opts := NewOptions(cfg.Analysis)
	assert.Equal(t, "COMPANY_NAME", opts.Normalizer.CompanyField)
	assert.Equal(t, []string{"POSTED", "EXPIRED", "LAST_UPDATED_DATE"}, opts.Normalizer.DateFields)
	assert.Equal(t, "NAICS2_NAME", opts.IndustryField)
	assert.Equal(t, []string{"Deloitte"}, opts.Companies)
	assert.Equal(t, "2024-05", opts.BeforeMonth)
	assert.Equal(t, 12.0, opts.ChartWidth)

	// Options own their maps
	opts.Normalizer.FillValues["SALARY_FROM"] = 1
	assert.Equal(t, 0.0, cfg.Analysis.FillValues["SALARY_FROM"])
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name      string
		params    Params
		errString string
	}{
		{name: "valid", params: Params{InputPath: "lightcast/2024.csv", BeforeMonth: "2024-05"}},
		{name: "missing input", params: Params{}, errString: "input_path is required"},
		{name: "absolute input", params: Params{InputPath: "/etc/passwd"}, errString: "must be relative"},
		{name: "escaping input", params: Params{InputPath: "a/../../secret.csv"}, errString: "escapes the data directory"},
		{name: "bad month", params: Params{InputPath: "x.csv", AfterMonth: "09/2024"}, errString: "invalid month"},
		{name: "blank company", params: Params{InputPath: "x.csv", Companies: []string{"Acme", " "}}, errString: "blank names"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestParams_Apply(t *testing.T) {
	base := DefaultOptions()
	base.Companies = []string{"Acme"}

	opts := Params{InputPath: "x.csv", Industry: "Finance and Insurance"}.Apply(base)
	assert.Equal(t, "Finance and Insurance", opts.Industry)
	assert.Equal(t, []string{"Acme"}, opts.Companies)

	opts = Params{Companies: []string{"Globex"}, AfterMonth: "2024-09"}.Apply(base)
	assert.Equal(t, "Retail Trade", opts.Industry)
	assert.Equal(t, []string{"Globex"}, opts.Companies)
	assert.Equal(t, "2024-09", opts.AfterMonth)

	assert.Equal(t, filepath.Join("data", "lightcast", "2024.csv"), Params{InputPath: "lightcast/./2024.csv"}.ResolveInput("data"))
}
