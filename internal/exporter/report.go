package exporter

import (
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// ReportFile is the file name of the combined text report
const ReportFile = "all_tables_formatted.txt"

const ruleWidth = 72

// RenderReport formats the summary tables as plain text: a caption and a
// box-drawn table per computed table, and the error for each failed one.
// The output carries no timestamps, so equal inputs render equal text.
func RenderReport(title string, tables []*domain.SummaryTable) string {
	// Ascii profile: no escape sequences in the file
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)

	var sb strings.Builder
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n\n")

	for i, t := range tables {
		heading := "Table " + strconv.Itoa(i+1) + ". " + t.Title
		sb.WriteString(heading + "\n")

		if t.Failed() {
			sb.WriteString("FAILED: " + t.Error + "\n\n")
		} else {
			if t.Caption != "" {
				sb.WriteString(t.Caption + "\n")
			}
			sb.WriteString("\n")
			sb.WriteString(renderTable(r, t))
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.Repeat("─", ruleWidth) + "\n\n")
	}
	return sb.String()
}

func renderTable(r *lipgloss.Renderer, t *domain.SummaryTable) string {
	numeric := numericColumns(t)
	cell := r.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle()).
		Headers(t.Headers...).
		Rows(t.Records()...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row != table.HeaderRow && col < len(numeric) && numeric[col] {
				return cell.Align(lipgloss.Right)
			}
			return cell
		}).
		Render()
}

// numericColumns marks columns whose non-empty body cells are all numbers
func numericColumns(t *domain.SummaryTable) []bool {
	out := make([]bool, len(t.Headers))
	for c := range t.Headers {
		seen := false
		numeric := true
		for _, row := range t.Rows {
			if c >= len(row) || row[c] == "" {
				continue
			}
			seen = true
			if _, err := strconv.ParseFloat(row[c], 64); err != nil {
				numeric = false
				break
			}
		}
		out[c] = seen && numeric
	}
	return out
}
