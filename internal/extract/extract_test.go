package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgervet/ledgervet/internal/model"
)

func TestService_LoadGridJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.json")
	doc := `{
		"pages": 2,
		"tables": [
			{"page": 1, "rows": [["Acme Bank plc"], ["Sort code", "12-34-56"]]},
			{"page": 2, "rows": [["Your transactions"]]}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	grid, err := NewService(nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, grid.TableCount())
	assert.Equal(t, 2, grid.PageCount())

	cell, ok := grid.Cell(0, 1, 1)
	require.True(t, ok)
	assert.Equal(t, "12-34-56", cell)
}

func TestLoadGridJSON_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.json")
	// No explicit page count or page attribution.
	doc := `{"tables": [{"rows": [["a"]]}, {"page": 3, "rows": [["b"]]}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	grid, err := loadGridJSON(path)
	require.NoError(t, err)
	assert.Equal(t, 3, grid.PageCount())
	assert.Contains(t, grid.PageText(1), "a")
	assert.Contains(t, grid.PageText(3), "b")
}

func TestLoadGridJSON_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tables": []}`), 0o644))

	_, err := loadGridJSON(path)
	assert.ErrorIs(t, err, model.ErrExtractionEmpty)
}

func TestService_UnsupportedExtension(t *testing.T) {
	_, err := NewService(nil).Extract(context.Background(), "statement.docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docx")
}

func TestReadableTables(t *testing.T) {
	readable := []model.Table{{Page: 1, Rows: [][]string{
		{"Acme Bank plc Statement of Account for March 2024"},
		{"Opening balance", "£1,234.56"},
	}}}
	assert.True(t, readableTables(readable))

	garbage := []model.Table{{Page: 1, Rows: [][]string{
		{"\x01\x02\x03ÿþýüûúùø÷ö\x04\x05\x06\x07\x08ñòóôõ"},
		{"\x0e\x0f\x10\x11\x12\x13ÿþýüûúùø÷ö\x14\x15\x16\x17"},
		{"\x18\x19\x1a\x1b\x1c\x1dÿþýüûúùø÷ö\x1e\x1f"},
	}}}
	assert.False(t, readableTables(garbage))

	assert.False(t, readableTables(nil))
}
