// Package model defines the core data types shared across the application.
package model

import (
	"errors"
	"strings"
)

// ErrExtractionEmpty indicates the upstream extractor produced no tables for a
// document. It is fatal to that document only.
var ErrExtractionEmpty = errors.New("no tables extracted from document")

// Table is one extracted table: an ordered sequence of rows of cell text.
// Cells may be missing (short rows); missing cells are treated as absent.
type Table struct {
	Page int
	Rows [][]string
}

// TableGrid is an immutable, read-only view over one document's extracted
// tables. It is scoped to a single document and owned by a single worker.
type TableGrid struct {
	tables    []Table
	pageCount int
}

// NewTableGrid builds a grid from extraction output. It fails only when the
// extractor produced zero tables.
func NewTableGrid(tables []Table, pageCount int) (*TableGrid, error) {
	if len(tables) == 0 {
		return nil, ErrExtractionEmpty
	}
	return &TableGrid{tables: tables, pageCount: pageCount}, nil
}

// TableCount returns the number of tables in the grid.
func (g *TableGrid) TableCount() int {
	return len(g.tables)
}

// PageCount returns the page count of the source document.
func (g *TableGrid) PageCount() int {
	return g.pageCount
}

// Cell returns the text of one cell. Out-of-range indices report absence,
// never an error; absent candidates are simply skipped downstream.
func (g *TableGrid) Cell(table, row, col int) (string, bool) {
	if table < 0 || table >= len(g.tables) {
		return "", false
	}
	rows := g.tables[table].Rows
	if row < 0 || row >= len(rows) {
		return "", false
	}
	cells := rows[row]
	if col < 0 || col >= len(cells) {
		return "", false
	}
	return cells[col], true
}

// RowText returns the space-joined text of one row, or absence when the row
// does not exist.
func (g *TableGrid) RowText(table, row int) (string, bool) {
	if table < 0 || table >= len(g.tables) {
		return "", false
	}
	rows := g.tables[table].Rows
	if row < 0 || row >= len(rows) {
		return "", false
	}
	return strings.Join(rows[row], " "), true
}

// TableText returns the text of a whole table, rows joined by newlines.
func (g *TableGrid) TableText(table int) (string, bool) {
	if table < 0 || table >= len(g.tables) {
		return "", false
	}
	lines := make([]string, 0, len(g.tables[table].Rows))
	for _, row := range g.tables[table].Rows {
		lines = append(lines, strings.Join(row, " "))
	}
	return strings.Join(lines, "\n"), true
}

// PageText returns the concatenated text of every table attributed to the
// given 1-based page. Page 0 (or any non-positive page) means the whole
// document.
func (g *TableGrid) PageText(page int) string {
	var b strings.Builder
	for i, t := range g.tables {
		if page > 0 && t.Page != page {
			continue
		}
		text, _ := g.TableText(i)
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}
	return b.String()
}
