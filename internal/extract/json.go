package extract

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ledgervet/ledgervet/internal/model"
)

// gridDocument is the JSON shape for pre-extracted documents: the output of
// an upstream extractor, or a hand-written test fixture.
type gridDocument struct {
	Pages  int         `json:"pages"`
	Tables []gridTable `json:"tables"`
}

type gridTable struct {
	Page int        `json:"page"`
	Rows [][]string `json:"rows"`
}

// loadGridJSON reads a pre-extracted table grid from a JSON document.
func loadGridJSON(file string) (*model.TableGrid, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var doc gridDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid grid document: %w", err)
	}

	tables := make([]model.Table, 0, len(doc.Tables))
	for _, t := range doc.Tables {
		page := t.Page
		if page <= 0 {
			page = 1
		}
		tables = append(tables, model.Table{Page: page, Rows: t.Rows})
	}

	pages := doc.Pages
	if pages <= 0 {
		for _, t := range tables {
			if t.Page > pages {
				pages = t.Page
			}
		}
	}

	return model.NewTableGrid(tables, pages)
}
