package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgervet/ledgervet/internal/common"
	"github.com/ledgervet/ledgervet/internal/model"
)

const validRules = `
rules:
  - id: acme_current
    name: Acme Current Account
    company: acme
    account_type: current
    template: acme_current_v1
    match_policy: ALL
    markers:
      - Acme Bank plc
      - Business Current Account

templates:
  acme_current_v1:
    fields:
      - name: sort_code
        ref_type: ROW_SEARCH
        candidates:
          - {table: 0, row: 7, pattern: '\d{2}-\d{2}-\d{2}'}
      - name: account_name
        ref_type: CELL_VALUE
        candidates:
          - {table: 0, row: 0, cell: 0, pattern: 'Acme'}
      - name: opening_balance
        ref_type: ROW_SEARCH
        numeric: true
        candidates:
          - {table: 0, row: 3, pattern: '£?[\d,]+\.\d{2}'}
        substitutions:
          - {pattern: '£', replacement: ''}
          - {pattern: ',', replacement: ''}
      - name: closing_balance
        ref_type: ROW_SEARCH
        numeric: true
        debit_suffix: D
        candidates:
          - {table: 0, row: 6, pattern: '£?[\d,]+\.\d{2}( D)?'}
      - name: payments_in
        ref_type: ROW_SEARCH
        numeric: true
        candidates:
          - {table: 0, row: 4, pattern: '£?[\d,]+\.\d{2}'}
      - name: payments_out
        ref_type: ROW_SEARCH
        numeric: true
        candidates:
          - {table: 0, row: 5, pattern: '£?[\d,]+\.\d{2}'}
    lines:
      table: 1
      start_row: 1
      date: {cell: 0, pattern: '\d{2}/\d{2}/\d{4}'}
      description: {cell: 1}
      payment_in: {cell: 2, pattern: '[\d,]+\.\d{2}'}
      payment_out: {cell: 3, pattern: '[\d,]+\.\d{2}'}
      balance: {cell: 4, pattern: '[\d,]+\.\d{2}'}
`

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeRules(t, validRules))
	require.NoError(t, err)

	require.Len(t, cfg.Rules, 1)
	rule := cfg.Rules[0]
	assert.Equal(t, "acme_current", rule.ID)
	assert.Equal(t, model.MatchAll, rule.MatchPolicy)
	assert.Equal(t, "acme_current_v1", rule.TemplateID)

	tmpl, ok := cfg.Template("acme_current_v1")
	require.True(t, ok)
	assert.Len(t, tmpl.Fields, 6)

	opening := tmpl.Fields["opening_balance"]
	assert.True(t, opening.Numeric)
	require.Len(t, opening.Substitutions, 2)
	assert.Equal(t, "£", opening.Substitutions[0].Pattern)

	closing := tmpl.Fields["closing_balance"]
	assert.Equal(t, "D", closing.DebitSuffix)

	require.NotNil(t, tmpl.Lines)
	assert.Equal(t, 1, tmpl.Lines.StartRow)
	assert.Equal(t, `\d{2}/\d{2}/\d{4}`, tmpl.Lines.Date.Pattern)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantMsg string
	}{
		{
			name:    "unknown template reference",
			mutate:  func(s string) string { return replaceOnce(s, "template: acme_current_v1", "template: missing_v1") },
			wantMsg: "unknown template",
		},
		{
			name:    "bad match policy",
			mutate:  func(s string) string { return replaceOnce(s, "match_policy: ALL", "match_policy: SOME") },
			wantMsg: "unknown match policy",
		},
		{
			name:    "bad ref type",
			mutate:  func(s string) string { return replaceOnce(s, "ref_type: CELL_VALUE", "ref_type: COLUMN_SCAN") },
			wantMsg: "unknown ref type",
		},
		{
			name:    "missing reconciliation field",
			mutate:  func(s string) string { return replaceOnce(s, "name: payments_out", "name: payments_misc") },
			wantMsg: "missing required field payments_out",
		},
		{
			name:    "uncompilable candidate pattern",
			mutate:  func(s string) string { return replaceOnce(s, `pattern: 'Acme'`, `pattern: '(['`) },
			wantMsg: "candidate 0",
		},
		{
			name:    "line spec without date pattern",
			mutate:  func(s string) string { return replaceOnce(s, `date: {cell: 0, pattern: '\d{2}/\d{2}/\d{4}'}`, `date: {cell: 0}`) },
			wantMsg: "date pattern is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeRules(t, tt.mutate(validRules)))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func replaceOnce(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}

func TestLoad_NoRules(t *testing.T) {
	_, err := Load(writeRules(t, "templates: {}\n"))
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestWriteDefault(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteDefault(dir, false)
	require.NoError(t, err)

	// The starter config must itself load cleanly.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Rules)
	assert.NotEmpty(t, cfg.Templates)

	// A second call leaves the existing file alone.
	require.NoError(t, os.WriteFile(path, []byte("rules: []"), 0o644))
	path2, err := WriteDefault(dir, false)
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "rules: []", string(data))
}

func TestExpandPath(t *testing.T) {
	t.Setenv("LEDGERVET_TEST_DIR", "/tmp/ledgervet")
	assert.Equal(t, "/tmp/ledgervet/db", ExpandPath("$LEDGERVET_TEST_DIR/db"))

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), ExpandPath("~/x"))
}
