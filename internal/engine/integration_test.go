package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgervet/ledgervet/internal/config"
	"github.com/ledgervet/ledgervet/internal/model"
	"github.com/ledgervet/ledgervet/internal/storage"
)

// shippedConfigGrid matches the layout the starter configuration expects:
// balance summary rows in table 0, account identity rows in table 1.
func shippedConfigGrid(t *testing.T, date, opening, in, out, closing string) *model.TableGrid {
	t.Helper()
	summary := model.Table{Page: 1, Rows: [][]string{
		{"Your account summary"},
		{}, {}, {}, {}, {}, {},
		{opening},
		{in},
		{out},
		{closing},
	}}
	identity := model.Table{Page: 1, Rows: [][]string{
		{"EXAMPLE TRADING LTD"},
		{date},
		{}, {}, {}, {}, {}, {},
		{"12-34-56 AccountNumber 12345678 87654321"},
	}}
	grid, err := model.NewTableGrid([]model.Table{summary, identity}, 1)
	require.NoError(t, err)
	return grid
}

func loadShippedConfig(t *testing.T) *config.Config {
	t.Helper()
	path, err := config.WriteDefault(t.TempDir(), false)
	require.NoError(t, err)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestShippedConfiguration_EndToEnd(t *testing.T) {
	extractor := &mockExtractor{
		grids: map[string]*model.TableGrid{
			"march.pdf": shippedConfigGrid(t, "31 March 2024",
				"£1,234.56", "£100.00", "£50.00", "£1,284.56"),
		},
	}
	store := &mockStore{}
	c, err := NewCoordinator(loadShippedConfig(t), extractor, nil, store, Options{})
	require.NoError(t, err)

	summary, err := c.ProcessBatch(context.Background(), []string{"march.pdf"})
	require.NoError(t, err)

	res := summary.Results[0]
	require.Equal(t, model.StatusOK, res.Status, "unexpected result: %+v", res)

	assert.Equal(t, "12-34-56", res.Field(model.FieldSortCode).Normalized)
	// The first 8-digit run wins, not the trailing one.
	assert.Equal(t, "12345678", res.Field(model.FieldAccountNumber).Normalized)
	assert.InDelta(t, 1234.56, res.Field(model.FieldOpeningBalance).Value, 0.001)
	assert.InDelta(t, 1284.56, res.Field(model.FieldClosingBalance).Value, 0.001)

	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.ArithmeticOK)
	assert.Equal(t, "example_bank_current_12345678", res.AccountID)
}

func TestContinuitySeries_AgainstStorage(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(func() { _ = db.Close() })

	// Three consecutive months where each closing balance meets the next
	// opening balance, processed in one batch against a live store.
	extractor := &mockExtractor{grids: map[string]*model.TableGrid{
		"jan.pdf": shippedConfigGrid(t, "31 January 2024", "£1,000.00", "£100.00", "£50.00", "£1,050.00"),
		"feb.pdf": shippedConfigGrid(t, "29 February 2024", "£1,050.00", "£0.00", "£200.00", "£850.00"),
		"mar.pdf": shippedConfigGrid(t, "31 March 2024", "£850.00", "£400.00", "£0.00", "£1,250.00"),
	}}

	c, err := NewCoordinator(loadShippedConfig(t), extractor, db, db, Options{})
	require.NoError(t, err)

	summary, err := c.ProcessBatch(context.Background(), []string{"jan.pdf", "feb.pdf", "mar.pdf"})
	require.NoError(t, err)
	for i, res := range summary.Results {
		assert.Equal(t, model.StatusOK, res.Status, "document %d: %+v", i, res)
	}

	gaps, err := db.ListGaps(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gaps)

	// A later statement whose opening balance does not meet March's closing
	// produces exactly one gap, bounded by the two adjacent dates.
	extractor.grids["apr.pdf"] = shippedConfigGrid(t, "30 April 2024",
		"£1,300.00", "£0.00", "£0.00", "£1,300.00")
	summary, err = c.ProcessBatch(context.Background(), []string{"apr.pdf"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartial, summary.Results[0].Status)

	gaps, err = db.ListGaps(context.Background())
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, model.GapBalanceMismatch, gaps[0].Kind)
	assert.Equal(t, "2024-03-31", gaps[0].PrevDate.Format("2006-01-02"))
	assert.Equal(t, "2024-04-30", gaps[0].NextDate.Format("2006-01-02"))
	assert.InDelta(t, 1250.00, gaps[0].PrevClosing, 0.001)
	assert.InDelta(t, 1300.00, gaps[0].NextOpening, 0.001)
}
