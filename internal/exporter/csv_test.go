package exporter

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	content = bytes.TrimPrefix(content, utf8BOM)
	return strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	tests := []struct {
		name     string
		options  WriteOptions
		validate func(t *testing.T, filePath string)
	}{
		{
			name: "basic write with headers",
			options: WriteOptions{
				Headers: []string{"Purpose", "Count", "Percentage"},
				Records: [][]string{
					{"Hydropower", "3", "42.9"},
					{"Agriculture", "2", "28.6"},
				},
			},
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)
				assert.False(t, bytes.HasPrefix(content, utf8BOM))

				lines := readLines(t, filePath)
				assert.Equal(t, []string{"Purpose,Count,Percentage", "Hydropower,3,42.9", "Agriculture,2,28.6"}, lines)
			},
		},
		{
			name: "write with BOM prefix",
			options: WriteOptions{
				Headers:   []string{"Year_Range", "Count"},
				Records:   [][]string{{"2000–2004", "1"}},
				BOMPrefix: true,
			},
			validate: func(t *testing.T, filePath string) {
				content, err := os.ReadFile(filePath)
				require.NoError(t, err)
				assert.True(t, bytes.HasPrefix(content, []byte{0xEF, 0xBB, 0xBF}))
				assert.Equal(t, []string{"Year_Range,Count", "2000–2004,1"}, readLines(t, filePath))
			},
		},
		{
			name: "fields with commas and quotes are quoted",
			options: WriteOptions{
				Headers: []string{"Statistic", "Value"},
				Records: [][]string{{"Maximum data points, single paper", `2 (ID: "P1")`}},
			},
			validate: func(t *testing.T, filePath string) {
				assert.Equal(t, `"Maximum data points, single paper","2 (ID: ""P1"")"`, readLines(t, filePath)[1])
			},
		},
		{
			name: "empty records",
			options: WriteOptions{
				Headers: []string{"Col1", "Col2"},
				Records: [][]string{},
			},
			validate: func(t *testing.T, filePath string) {
				assert.Equal(t, []string{"Col1,Col2"}, readLines(t, filePath))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "out.csv")

			err := NewCSVWriter(quietLogger()).WriteCSV(path, tt.options)

			require.NoError(t, err)
			tt.validate(t, path)
		})
	}
}

func TestCSVWriter_WriteCSV_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w := NewCSVWriter(nil)

	require.NoError(t, w.WriteSimpleCSV(path, []string{"A"}, [][]string{{"1"}, {"2"}, {"3"}}))
	require.NoError(t, w.WriteSimpleCSV(path, []string{"A"}, [][]string{{"9"}}))

	assert.Equal(t, []string{"A", "9"}, readLines(t, path))
}

func TestCSVWriter_WriteTable(t *testing.T) {
	table := domain.NewTable("screening", []string{"ID", "Year"}, []domain.Row{
		{domain.Text("S1"), domain.Text("1998")},
		{domain.Text("S2"), domain.Null()},
	})
	path := filepath.Join(t.TempDir(), "screening.csv")

	require.NoError(t, NewCSVWriter(quietLogger()).WriteTable(path, table))

	assert.Equal(t, []string{"ID,Year", "S1,1998", "S2,"}, readLines(t, path))
}

func TestCSVWriter_WriteSummaryTable(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(quietLogger())

	path, err := w.WriteSummaryTable(dir, &domain.SummaryTable{
		ID:      "table_2_methods",
		Headers: []string{"Method", "Count", "Percentage"},
		Rows:    [][]string{{"SDP", "2", "66.7"}, {"Not specified", "1", "33.3"}},
		Total:   []string{"Total", "3", "100.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "table_2_methods.csv"), path)
	assert.Equal(t, []string{
		"Method,Count,Percentage",
		"SDP,2,66.7",
		"Not specified,1,33.3",
		"Total,3,100.0",
	}, readLines(t, path))

	_, err = w.WriteSummaryTable(dir, &domain.SummaryTable{ID: "table_3_regions", Error: "missing column"})
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "table_3_regions.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCSVWriter_StreamWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.csv")

	stream, err := NewCSVWriter(quietLogger()).CreateStreamWriter(path, []string{"Table", "Row"})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"screening", "4"}))
	require.NoError(t, stream.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, utf8BOM))
	assert.Equal(t, []string{"Table,Row", "screening,4"}, readLines(t, path))
}
