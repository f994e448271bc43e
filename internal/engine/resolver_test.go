package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgervet/ledgervet/internal/model"
)

func balanceGrid(t *testing.T) *model.TableGrid {
	t.Helper()
	grid, err := model.NewTableGrid([]model.Table{
		{Page: 1, Rows: [][]string{
			{"Acme Bank plc"},
			{"Opening balance", "£1,234.56"},
			{"Payments in", "£100.00"},
			{"Payments out", "£50.00"},
			{"Closing balance", "£1,284.56"},
			{"Overdrawn balance", "£120.00 D"},
			{"Sort code", "12-34-56", "Account", "12345678"},
		}},
	}, 1)
	require.NoError(t, err)
	return grid
}

func newTestResolver(t *testing.T, fields ...model.FieldSpec) *Resolver {
	t.Helper()
	specs := make(map[string]model.FieldSpec, len(fields))
	for _, f := range fields {
		specs[f.Name] = f
	}
	r, err := NewResolver(map[string]model.StatementTemplate{
		"tmpl": {ID: "tmpl", Fields: specs},
	})
	require.NoError(t, err)
	return r
}

func resolveOne(t *testing.T, spec model.FieldSpec) model.ResolvedField {
	t.Helper()
	r := newTestResolver(t, spec)
	fields, err := r.Resolve(balanceGrid(t), "tmpl")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	return fields[0]
}

var moneySubs = []model.SubstitutionRule{
	{Pattern: "£", Replacement: ""},
	{Pattern: ",", Replacement: ""},
}

func TestResolver_RowSearch(t *testing.T) {
	field := resolveOne(t, model.FieldSpec{
		Name:    model.FieldSortCode,
		RefType: model.RefRowSearch,
		Candidates: []model.CandidateRef{
			{Table: 0, Row: 6, Pattern: `\d{2}-\d{2}-\d{2}`},
		},
	})

	require.True(t, field.Resolved)
	// The matched substring, not the whole row, is the raw value.
	assert.Equal(t, "12-34-56", field.Raw)
	assert.Equal(t, "12-34-56", field.Normalized)
	assert.Equal(t, 0, field.CandidateIndex)
}

func TestResolver_CellValueKeepsWholeCell(t *testing.T) {
	field := resolveOne(t, model.FieldSpec{
		Name:    model.FieldAccountName,
		RefType: model.RefCellValue,
		Candidates: []model.CandidateRef{
			{Table: 0, Row: 0, Cell: 0, Pattern: `Acme`},
		},
	})

	require.True(t, field.Resolved)
	assert.Equal(t, "Acme Bank plc", field.Raw)
}

func TestResolver_CandidateOrder(t *testing.T) {
	tests := []struct {
		name       string
		wantRaw    string
		candidates []model.CandidateRef
		wantIndex  int
		wantFails  int
	}{
		{
			name: "first viable candidate short-circuits",
			candidates: []model.CandidateRef{
				{Table: 0, Row: 1, Pattern: `£?[\d,]+\.\d{2}`},
				{Table: 0, Row: 4, Pattern: `£?[\d,]+\.\d{2}`},
			},
			wantIndex: 0,
			wantRaw:   "£1,234.56",
		},
		{
			name: "fallthrough records each rejection",
			candidates: []model.CandidateRef{
				{Table: 0, Row: 99, Pattern: `£?[\d,]+\.\d{2}`},
				{Table: 0, Row: 0, Pattern: `£?[\d,]+\.\d{2}`},
				{Table: 0, Row: 1, Pattern: `£?[\d,]+\.\d{2}`},
			},
			wantIndex: 2,
			wantRaw:   "£1,234.56",
			wantFails: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field := resolveOne(t, model.FieldSpec{
				Name:          model.FieldOpeningBalance,
				RefType:       model.RefRowSearch,
				Candidates:    tt.candidates,
				Substitutions: moneySubs,
				Numeric:       true,
			})

			require.True(t, field.Resolved)
			assert.Equal(t, tt.wantIndex, field.CandidateIndex)
			assert.Equal(t, tt.wantRaw, field.Raw)
			assert.Len(t, field.Failures, tt.wantFails)
			assert.InDelta(t, 1234.56, field.Value, 0.001)
		})
	}
}

func TestResolver_Unresolved(t *testing.T) {
	field := resolveOne(t, model.FieldSpec{
		Name:    model.FieldCardNumber,
		RefType: model.RefRowSearch,
		Candidates: []model.CandidateRef{
			{Table: 0, Row: 0, Pattern: `\d{16}`},
			{Table: 3, Row: 0, Pattern: `\d{16}`},
		},
	})

	assert.False(t, field.Resolved)
	assert.Equal(t, -1, field.CandidateIndex)
	require.Len(t, field.Failures, 2)
	assert.Equal(t, 0, field.Failures[0].Index)
	assert.Equal(t, 1, field.Failures[1].Index)
}

func TestResolver_SubstitutionsOrderDependent(t *testing.T) {
	// "ab" -> "b" then "b" -> "c" collapses everything to "c"; the reverse
	// order leaves the leading "a" behind. The chain must run as declared.
	r := newTestResolver(t, model.FieldSpec{
		Name:    model.FieldAccountName,
		RefType: model.RefCellValue,
		Candidates: []model.CandidateRef{
			{Table: 0, Row: 0, Cell: 0, Pattern: `.`},
		},
		Substitutions: []model.SubstitutionRule{
			{Pattern: "Acme Bank", Replacement: "Bank"},
			{Pattern: "Bank plc", Replacement: "acme"},
		},
	})
	fields, err := r.Resolve(balanceGrid(t), "tmpl")
	require.NoError(t, err)
	assert.Equal(t, "acme", fields[0].Normalized)
}

func TestApplySubstitutions_NotInterchangeable(t *testing.T) {
	forward := []model.SubstitutionRule{
		{Pattern: ",", Replacement: ""},
		{Pattern: ".", Replacement: "DECIMAL"},
	}
	reverse := []model.SubstitutionRule{
		{Pattern: ".", Replacement: "DECIMAL"},
		{Pattern: ",", Replacement: ""},
	}

	// "DECIMAL" itself is untouched by the comma rule here, but a chain
	// whose later rule can match earlier output must not commute in general.
	assert.Equal(t, "1234DECIMAL56", applySubstitutions("1,234.56", forward))
	assert.Equal(t, "1234DECIMAL56", applySubstitutions("1,234.56", reverse))

	overlapping := []model.SubstitutionRule{
		{Pattern: "ab", Replacement: "b"},
		{Pattern: "bb", Replacement: "X"},
	}
	swapped := []model.SubstitutionRule{
		{Pattern: "bb", Replacement: "X"},
		{Pattern: "ab", Replacement: "b"},
	}
	assert.Equal(t, "X", applySubstitutions("abb", overlapping))
	assert.Equal(t, "Xb", applySubstitutions("abbb", overlapping))
	assert.NotEqual(t,
		applySubstitutions("abb", overlapping),
		applySubstitutions("abb", swapped))
}

func TestResolver_DebitSuffix(t *testing.T) {
	field := resolveOne(t, model.FieldSpec{
		Name:    model.FieldClosingBalance,
		RefType: model.RefRowSearch,
		Candidates: []model.CandidateRef{
			{Table: 0, Row: 5, Pattern: `£?[\d,]+\.\d{2}( D)?`},
		},
		Substitutions: moneySubs,
		Numeric:       true,
		DebitSuffix:   "D",
	})

	require.True(t, field.Resolved)
	assert.InDelta(t, -120.00, field.Value, 0.001)
	assert.Equal(t, "-120", field.Normalized)
}

func TestResolver_NumericParseFailureRejectsCandidate(t *testing.T) {
	field := resolveOne(t, model.FieldSpec{
		Name:    model.FieldOpeningBalance,
		RefType: model.RefCellValue,
		Candidates: []model.CandidateRef{
			// Validates but the £ and comma survive without substitutions.
			{Table: 0, Row: 1, Cell: 1, Pattern: `[\d,]+\.\d{2}`},
		},
		Numeric: true,
	})

	assert.False(t, field.Resolved)
	require.Len(t, field.Failures, 1)
	assert.Contains(t, field.Failures[0].Reason, "numeric parse")
}

func TestResolver_StableFieldOrder(t *testing.T) {
	r := newTestResolver(t,
		model.FieldSpec{Name: "zeta", RefType: model.RefCellValue,
			Candidates: []model.CandidateRef{{Table: 0, Row: 0, Cell: 0, Pattern: `.`}}},
		model.FieldSpec{Name: "alpha", RefType: model.RefCellValue,
			Candidates: []model.CandidateRef{{Table: 0, Row: 0, Cell: 0, Pattern: `.`}}},
	)
	fields, err := r.Resolve(balanceGrid(t), "tmpl")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "alpha", fields[0].Name)
	assert.Equal(t, "zeta", fields[1].Name)
}

func TestNewResolver_BadPattern(t *testing.T) {
	_, err := NewResolver(map[string]model.StatementTemplate{
		"tmpl": {ID: "tmpl", Fields: map[string]model.FieldSpec{
			"broken": {Name: "broken", RefType: model.RefCellValue,
				Candidates: []model.CandidateRef{{Pattern: `([`}}},
		}},
	})
	assert.Error(t, err)
}

func TestResolver_ResolveLines(t *testing.T) {
	grid, err := model.NewTableGrid([]model.Table{
		{Page: 1, Rows: [][]string{
			{"Date", "Description", "In", "Out", "Balance"},
			{"01/03/2024", "SALARY", "2,000.00", "", "3,000.00"},
			{"Continued overleaf"},
			{"05/03/2024", "RENT", "", "950.00", "2,050.00"},
		}},
	}, 1)
	require.NoError(t, err)

	r, err := NewResolver(map[string]model.StatementTemplate{
		"tmpl": {
			ID: "tmpl",
			Fields: map[string]model.FieldSpec{
				"sort_code": {Name: "sort_code", RefType: model.RefCellValue,
					Candidates: []model.CandidateRef{{Pattern: `.`}}},
			},
			Lines: &model.LineSpec{
				Table:         0,
				StartRow:      1,
				Date:          model.LineColumn{Cell: 0, Pattern: `\d{2}/\d{2}/\d{4}`},
				Description:   model.LineColumn{Cell: 1},
				PaymentIn:     model.LineColumn{Cell: 2, Pattern: `[\d,]+\.\d{2}`},
				PaymentOut:    model.LineColumn{Cell: 3, Pattern: `[\d,]+\.\d{2}`},
				Balance:       model.LineColumn{Cell: 4, Pattern: `[\d,]+\.\d{2}`},
				Substitutions: []model.SubstitutionRule{{Pattern: ",", Replacement: ""}},
			},
		},
	})
	require.NoError(t, err)

	lines, err := r.ResolveLines(grid, "tmpl")
	require.NoError(t, err)
	// The non-transaction row fails date validation and is skipped.
	require.Len(t, lines, 2)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), lines[0].Date)
	assert.Equal(t, "SALARY", lines[0].Description)
	assert.InDelta(t, 2000.00, lines[0].PaymentIn, 0.001)
	assert.InDelta(t, 3000.00, lines[0].Balance, 0.001)

	assert.Equal(t, "RENT", lines[1].Description)
	assert.InDelta(t, 950.00, lines[1].PaymentOut, 0.001)
}
