package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes reports as one workbook, a sheet per report.
func WriteXLSX(reports []*Report, path string) error {
	if len(reports) == 0 {
		return fmt.Errorf("no reports to write")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, report := range reports {
		var sheet string
		if i == 0 {
			sheet = f.GetSheetName(0)
			if err := f.SetSheetName(sheet, report.Name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", report.Name, err)
			}
			sheet = report.Name
		} else {
			sheet = report.Name
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
			}
		}

		for col, h := range report.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(sheet, cell, h); err != nil {
				return fmt.Errorf("failed to write header: %w", err)
			}
		}
		for r, row := range report.Rows {
			for col, v := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return fmt.Errorf("failed to write cell %s: %w", cell, err)
				}
			}
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return f.SaveAs(path)
}
