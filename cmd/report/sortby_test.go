package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tally/internal/report"
)

func TestParseSortBy(t *testing.T) {
	tests := []struct {
		input   string
		want    report.SortBy
		wantErr bool
	}{
		{input: "value", want: report.SortByValue},
		{input: "alpha", want: report.SortByAlpha},
		{input: "", wantErr: true},
		{input: "amount", wantErr: true},
		{input: "Value", wantErr: true},
	}

	for _, tc := range tests {
		t.Run("input "+tc.input, func(t *testing.T) {
			got, err := parseSortBy(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				assert.Equal(t, report.SortBy(""), got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
