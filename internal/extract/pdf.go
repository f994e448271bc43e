package extract

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/ledgervet/ledgervet/internal/model"
)

// columnGap is the horizontal distance, in PDF points, that separates two
// words into different cells. Statement layouts keep columns well apart, so
// a modest threshold splits columns without splitting multi-word labels.
const columnGap = 15.0

// extractPDF reads a PDF and builds one table per page: each text row
// becomes a grid row, split into cells at column-sized horizontal gaps.
func extractPDF(file string) (grid *model.TableGrid, err error) {
	// The pdf library panics on some malformed documents.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parsing crashed: %v", r)
		}
	}()

	f, r, err := pdf.Open(file)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	numPages := r.NumPage()
	var tables []model.Table
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		table := model.Table{Page: i}
		for _, row := range rows {
			cells := splitCells(row.Content)
			if len(cells) > 0 {
				table.Rows = append(table.Rows, cells)
			}
		}
		if len(table.Rows) > 0 {
			tables = append(tables, table)
		}
	}

	if !readableTables(tables) {
		return nil, fmt.Errorf("no readable text extracted, the document may be image-based or use custom font encodings")
	}

	return model.NewTableGrid(tables, numPages)
}

// splitCells joins a row's positioned words into cells, starting a new cell
// whenever the gap to the previous word exceeds columnGap.
func splitCells(words pdf.TextHorizontal) []string {
	var cells []string
	var current strings.Builder
	var prevEnd float64
	for i, w := range words {
		text := strings.TrimSpace(w.S)
		if text == "" {
			continue
		}
		if i > 0 && current.Len() > 0 && w.X-prevEnd > columnGap {
			cells = append(cells, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(text)
		prevEnd = w.X + w.W
	}
	if current.Len() > 0 {
		cells = append(cells, current.String())
	}
	return cells
}

// readableTables guards against garbage output from identity-encoded fonts:
// enough text, mostly plain ASCII.
func readableTables(tables []model.Table) bool {
	total := 0
	readable := 0
	for _, t := range tables {
		for _, row := range t.Rows {
			for _, cell := range row {
				for _, r := range cell {
					total++
					if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
						(r >= '0' && r <= '9') || unicode.IsSpace(r) ||
						strings.ContainsRune(".,-/:;()'\"£$€%&@#!?+=*", r) {
						readable++
					}
				}
			}
		}
	}
	if total <= 50 {
		return false
	}
	return float64(readable)/float64(total) > 0.6
}
