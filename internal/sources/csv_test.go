package sources_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/config"
	"tally/internal/money"
	"tally/internal/sources"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func csvConfig(path string) config.SourceConfig {
	return config.SourceConfig{
		Name:              "bank-csv",
		Type:              "csv",
		Path:              path,
		DateColumn:        "Date",
		DescriptionColumn: "Details",
		AmountColumn:      "Amount",
	}
}

func TestCSV_Fetch(t *testing.T) {
	path := writeFile(t, "export.csv", `Date,Details,Amount
2025-11-03,TESCO STORE,-12.34
04/11/2025,Acme Corp,"2,500.00"
`)

	src := sources.NewCSV(csvConfig(path))
	assert.Equal(t, "bank-csv", src.Name())

	candidates, rowErrs, err := src.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, candidates, 2)

	assert.Equal(t, "2025-11-03", candidates[0].Date.Format("2006-01-02"))
	assert.Equal(t, "TESCO STORE", candidates[0].Description)
	assert.Equal(t, money.Money(-1234), candidates[0].Amount)

	assert.Equal(t, "2025-11-04", candidates[1].Date.Format("2006-01-02"))
	assert.Equal(t, money.Money(250000), candidates[1].Amount)
}

func TestCSV_ExpensesPositive(t *testing.T) {
	path := writeFile(t, "export.csv", `Date,Details,Amount
2025-11-03,Tesco,12.34
`)

	cfg := csvConfig(path)
	cfg.ExpensesPositive = true
	src := sources.NewCSV(cfg)

	candidates, rowErrs, err := src.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, candidates, 1)
	assert.Equal(t, money.Money(-1234), candidates[0].Amount)
}

func TestCSV_MalformedRows(t *testing.T) {
	path := writeFile(t, "export.csv", `Date,Details,Amount
not-a-date,Tesco,-12.34
2025-11-03,Boots,not-money
2025-11-04,Fine,-5.00
`)

	src := sources.NewCSV(csvConfig(path))
	candidates, rowErrs, err := src.Fetch(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "Fine", candidates[0].Description)

	require.Len(t, rowErrs, 2)
	assert.Equal(t, 1, rowErrs[0].Row)
	assert.Equal(t, "Date", rowErrs[0].Field)
	assert.Equal(t, 2, rowErrs[1].Row)
	assert.Equal(t, "Amount", rowErrs[1].Field)
}

func TestCSV_MissingFile(t *testing.T) {
	src := sources.NewCSV(csvConfig(filepath.Join(t.TempDir(), "nope.csv")))

	_, _, err := src.Fetch(context.Background(), nil)
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		sourceType string
		wantErr    bool
	}{
		{"starling", false},
		{"csv", false},
		{"camt", false},
		{"ofx", true},
	}

	for _, tt := range tests {
		t.Run(tt.sourceType, func(t *testing.T) {
			src, err := sources.FromConfig(config.SourceConfig{Name: "x", Type: tt.sourceType})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", src.Name())
		})
	}
}
