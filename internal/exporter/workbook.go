package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

// WorkbookFile is the file name of the summary workbook
const WorkbookFile = "summary_tables.xlsx"

// WriteWorkbook writes every computed table to its own sheet of an xlsx
// workbook at path. Failed tables are skipped. Cells that parse as numbers
// are stored as numbers.
func WriteWorkbook(path string, tables []*domain.SummaryTable) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	written := 0
	for _, t := range tables {
		if t.Failed() {
			continue
		}
		if _, err := f.NewSheet(t.ID); err != nil {
			return fmt.Errorf("create sheet %s: %w", t.ID, err)
		}
		if err := writeSheet(f, t, bold); err != nil {
			return fmt.Errorf("write sheet %s: %w", t.ID, err)
		}
		written++
	}
	if written == 0 {
		return fmt.Errorf("no summary tables to write")
	}

	// NewFile starts with a default sheet
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, t *domain.SummaryTable, headerStyle int) error {
	sheet := t.ID

	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len([]rune(h))
	}

	for r, record := range t.Records() {
		row := make([]interface{}, len(record))
		for i, cell := range record {
			row[i] = cellValue(cell)
			if i < len(widths) && len([]rune(cell)) > widths[i] {
				widths[i] = len([]rune(cell))
			}
		}
		cellName, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellName, &row); err != nil {
			return err
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, float64(min(w+2, 80))); err != nil {
			return err
		}
	}
	return nil
}

// cellValue stores numeric text as a number and blanks as empty cells
func cellValue(s string) interface{} {
	if s == "" {
		return nil
	}
	if f := domain.ParseNumber(s); f != nil {
		return *f
	}
	return s
}
