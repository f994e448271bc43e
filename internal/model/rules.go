package model

import "fmt"

// MatchPolicy controls how an identification rule's markers are combined.
type MatchPolicy string

// Marker match policies.
const (
	MatchAll MatchPolicy = "ALL"
	MatchAny MatchPolicy = "ANY"
)

// RefType selects how a candidate reference addresses the grid.
type RefType string

// Candidate reference types.
const (
	RefCellValue   RefType = "CELL_VALUE"
	RefTableSearch RefType = "TABLE_SEARCH"
	RefRowSearch   RefType = "ROW_SEARCH"
)

// Standard field names every statement template must be able to produce for
// reconciliation to run.
const (
	FieldSortCode       = "sort_code"
	FieldCardNumber     = "card_number"
	FieldAccountName    = "account_name"
	FieldAccountNumber  = "account_number"
	FieldStatementDate  = "statement_date"
	FieldOpeningBalance = "opening_balance"
	FieldClosingBalance = "closing_balance"
	FieldPaymentsIn     = "payments_in"
	FieldPaymentsOut    = "payments_out"
)

// IdentificationRule decides whether a document belongs to one configured
// account/statement layout. Rules are evaluated in configured order and the
// first match wins, so later, more specific rules should be listed first.
type IdentificationRule struct {
	ID                  string      `mapstructure:"id"`
	AccountType         string      `mapstructure:"account_type"`
	Company             string      `mapstructure:"company"`
	TemplateID          string      `mapstructure:"template"`
	FriendlyName        string      `mapstructure:"name"`
	Markers             []string    `mapstructure:"markers"`
	MatchPolicy         MatchPolicy `mapstructure:"match_policy"`
	TargetPage          int         `mapstructure:"target_page"`
	NormalizeWhitespace bool        `mapstructure:"normalize_whitespace"`
}

// CandidateRef is one configured grid location plus a validating pattern.
// Row and Cell semantics depend on the owning FieldSpec's RefType: exact cell
// for CELL_VALUE, a row to scan for ROW_SEARCH, ignored for TABLE_SEARCH.
type CandidateRef struct {
	Table   int    `mapstructure:"table"`
	Row     int    `mapstructure:"row"`
	Cell    int    `mapstructure:"cell"`
	Pattern string `mapstructure:"pattern"`
}

// SubstitutionRule replaces every occurrence of Pattern with Replacement.
// Rules are applied in declared order, each to the output of the previous.
type SubstitutionRule struct {
	Pattern     string `mapstructure:"pattern"`
	Replacement string `mapstructure:"replacement"`
}

// FieldSpec describes how one logical field is resolved from a grid:
// candidates are tried in order and the first viable one wins.
type FieldSpec struct {
	Name          string             `mapstructure:"name"`
	RefType       RefType            `mapstructure:"ref_type"`
	Candidates    []CandidateRef     `mapstructure:"candidates"`
	Substitutions []SubstitutionRule `mapstructure:"substitutions"`
	// Numeric fields are parsed to a float after substitution. A non-empty
	// DebitSuffix marks values whose sign must be flipped when the suffix
	// trails the decimal value.
	Numeric     bool   `mapstructure:"numeric"`
	DebitSuffix string `mapstructure:"debit_suffix"`
	Required    bool   `mapstructure:"required"`
}

// LineColumn addresses one column of a transaction line row, with a
// validating pattern applied the same way as a CandidateRef's.
type LineColumn struct {
	Cell    int    `mapstructure:"cell"`
	Pattern string `mapstructure:"pattern"`
}

// LineSpec describes how per-transaction line items are resolved from a
// table: rows are scanned from StartRow and a row whose date column
// validates becomes a line. Amount columns share the field substitution and
// debit-suffix conventions.
type LineSpec struct {
	Table         int                `mapstructure:"table"`
	StartRow      int                `mapstructure:"start_row"`
	MaxRows       int                `mapstructure:"max_rows"`
	Date          LineColumn         `mapstructure:"date"`
	DateFormat    string             `mapstructure:"date_format"`
	Description   LineColumn         `mapstructure:"description"`
	PaymentIn     LineColumn         `mapstructure:"payment_in"`
	PaymentOut    LineColumn         `mapstructure:"payment_out"`
	Balance       LineColumn         `mapstructure:"balance"`
	Substitutions []SubstitutionRule `mapstructure:"substitutions"`
	DebitSuffix   string             `mapstructure:"debit_suffix"`
}

// StatementTemplate is the field-by-field extraction rule set for one
// statement layout, keyed by field name. Lines is optional: header-only
// layouts omit it.
type StatementTemplate struct {
	ID     string
	Fields map[string]FieldSpec
	Lines  *LineSpec
}

// reconciliationFields are the fields a template must define for the
// arithmetic and continuity checks to run.
var reconciliationFields = []string{
	FieldAccountName,
	FieldOpeningBalance,
	FieldClosingBalance,
	FieldPaymentsIn,
	FieldPaymentsOut,
}

// Validate checks the template defines the minimum field set required for
// reconciliation: sort_code or card_number, plus the balance fields.
func (t StatementTemplate) Validate() error {
	_, hasSort := t.Fields[FieldSortCode]
	_, hasCard := t.Fields[FieldCardNumber]
	if !hasSort && !hasCard {
		return fmt.Errorf("template %q: must define %s or %s", t.ID, FieldSortCode, FieldCardNumber)
	}
	for _, name := range reconciliationFields {
		if _, ok := t.Fields[name]; !ok {
			return fmt.Errorf("template %q: missing required field %s", t.ID, name)
		}
	}
	return nil
}

// NumericFields returns the names of fields declared numeric, in no
// particular order.
func (t StatementTemplate) NumericFields() []string {
	var names []string
	for name, spec := range t.Fields {
		if spec.Numeric {
			names = append(names, name)
		}
	}
	return names
}
