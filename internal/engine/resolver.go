package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ledgervet/ledgervet/internal/model"
)

// Resolver resolves every configured field of a statement template against a
// TableGrid. Patterns are compiled once at construction; the resolver is
// read-only afterwards and safe for concurrent use across workers.
type Resolver struct {
	templates map[string]model.StatementTemplate
	patterns  map[string]*regexp.Regexp
}

// NewResolver precompiles every candidate pattern in the given templates.
func NewResolver(templates map[string]model.StatementTemplate) (*Resolver, error) {
	r := &Resolver{
		templates: templates,
		patterns:  make(map[string]*regexp.Regexp),
	}
	for id, tmpl := range templates {
		for name, spec := range tmpl.Fields {
			for _, cand := range spec.Candidates {
				if err := r.compile(cand.Pattern); err != nil {
					return nil, fmt.Errorf("template %q field %q: %w", id, name, err)
				}
			}
		}
		if lines := tmpl.Lines; lines != nil {
			cols := []model.LineColumn{lines.Date, lines.Description, lines.PaymentIn, lines.PaymentOut, lines.Balance}
			for _, col := range cols {
				if col.Pattern == "" {
					continue
				}
				if err := r.compile(col.Pattern); err != nil {
					return nil, fmt.Errorf("template %q lines: %w", id, err)
				}
			}
		}
	}
	return r, nil
}

func (r *Resolver) compile(pattern string) error {
	if _, ok := r.patterns[pattern]; ok {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compiling %q: %w", pattern, err)
	}
	r.patterns[pattern] = re
	return nil
}

// Resolve produces one ResolvedField per FieldSpec in the template, in a
// stable order (template field names sorted lexically). An unresolved field
// never aborts the document; remaining fields are still resolved so partial
// results stay available for diagnostics.
func (r *Resolver) Resolve(grid *model.TableGrid, templateID string) ([]model.ResolvedField, error) {
	tmpl, ok := r.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", templateID)
	}

	names := make([]string, 0, len(tmpl.Fields))
	for name := range tmpl.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]model.ResolvedField, 0, len(names))
	for _, name := range names {
		fields = append(fields, r.resolveField(grid, tmpl.Fields[name]))
	}
	return fields, nil
}

// resolveField tries the spec's candidates in declared order and
// short-circuits on the first one that yields validated text. It is not a
// search for a best match: order is the only priority.
func (r *Resolver) resolveField(grid *model.TableGrid, spec model.FieldSpec) model.ResolvedField {
	field := model.ResolvedField{
		Name:           spec.Name,
		Numeric:        spec.Numeric,
		CandidateIndex: -1,
	}

	for i, cand := range spec.Candidates {
		raw, reason := r.fetchCandidate(grid, spec.RefType, cand)
		if reason != "" {
			field.Failures = append(field.Failures, model.CandidateFailure{Index: i, Reason: reason})
			continue
		}

		normalized := applySubstitutions(raw, spec.Substitutions)
		value := 0.0
		if spec.Numeric {
			var err error
			normalized, value, err = normalizeNumeric(normalized, spec.DebitSuffix)
			if err != nil {
				field.Failures = append(field.Failures, model.CandidateFailure{
					Index:  i,
					Reason: fmt.Sprintf("numeric parse of %q: %v", raw, err),
				})
				continue
			}
		}

		field.Raw = raw
		field.Normalized = normalized
		field.Value = value
		field.CandidateIndex = i
		field.Resolved = true
		return field
	}
	return field
}

// fetchCandidate returns the candidate's raw text, or a rejection reason.
// The validation pattern is a search, not a full match: it need only occur
// somewhere in the candidate text. For the search ref types the matched
// substring itself becomes the raw value.
func (r *Resolver) fetchCandidate(grid *model.TableGrid, refType model.RefType, cand model.CandidateRef) (string, string) {
	re := r.patterns[cand.Pattern]

	switch refType {
	case model.RefCellValue:
		text, ok := grid.Cell(cand.Table, cand.Row, cand.Cell)
		if !ok {
			return "", fmt.Sprintf("cell [%d,%d,%d] absent", cand.Table, cand.Row, cand.Cell)
		}
		if !re.MatchString(text) {
			return "", fmt.Sprintf("cell text %q failed pattern %q", text, cand.Pattern)
		}
		return text, ""

	case model.RefRowSearch:
		text, ok := grid.RowText(cand.Table, cand.Row)
		if !ok {
			return "", fmt.Sprintf("row [%d,%d] absent", cand.Table, cand.Row)
		}
		match := re.FindString(text)
		if match == "" {
			return "", fmt.Sprintf("pattern %q not found in row [%d,%d]", cand.Pattern, cand.Table, cand.Row)
		}
		return match, ""

	case model.RefTableSearch:
		text, ok := grid.TableText(cand.Table)
		if !ok {
			return "", fmt.Sprintf("table %d absent", cand.Table)
		}
		match := re.FindString(text)
		if match == "" {
			return "", fmt.Sprintf("pattern %q not found in table %d", cand.Pattern, cand.Table)
		}
		return match, ""

	default:
		return "", fmt.Sprintf("unknown ref type %q", refType)
	}
}

// applySubstitutions runs the chain in declared order, each rule replacing
// every occurrence in the cumulative output of the previous one. An empty
// chain leaves the value untouched.
func applySubstitutions(value string, subs []model.SubstitutionRule) string {
	for _, sub := range subs {
		value = strings.ReplaceAll(value, sub.Pattern, sub.Replacement)
	}
	return value
}

// normalizeNumeric parses a substituted value to a float. A trailing debit
// suffix after the decimal value flips the sign before the value reaches the
// reconciler.
func normalizeNumeric(value, debitSuffix string) (string, float64, error) {
	value = strings.TrimSpace(value)
	sign := 1.0
	if debitSuffix != "" && strings.HasSuffix(value, debitSuffix) {
		value = strings.TrimSpace(strings.TrimSuffix(value, debitSuffix))
		sign = -1.0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value, 0, err
	}
	f *= sign
	if sign < 0 {
		value = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return value, f, nil
}

// ResolveLines resolves per-transaction line items with the same candidate
// mechanics as header fields: cell fetch, pattern validation, substitution
// chain, debit-suffix sign flip. Rows are scanned from the configured start
// row; a row whose date column fails to validate is skipped, and scanning
// stops at the end of the table or after MaxRows lines.
func (r *Resolver) ResolveLines(grid *model.TableGrid, templateID string) ([]model.TransactionLine, error) {
	tmpl, ok := r.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", templateID)
	}
	spec := tmpl.Lines
	if spec == nil {
		return nil, nil
	}

	dateFormat := spec.DateFormat
	if dateFormat == "" {
		dateFormat = "02/01/2006"
	}

	var lines []model.TransactionLine
	for row := spec.StartRow; ; row++ {
		if _, ok := grid.RowText(spec.Table, row); !ok {
			break
		}
		if spec.MaxRows > 0 && len(lines) >= spec.MaxRows {
			break
		}

		rawDate, ok := r.lineCell(grid, spec.Table, row, spec.Date)
		if !ok {
			continue
		}
		date, err := time.Parse(dateFormat, strings.TrimSpace(rawDate))
		if err != nil {
			continue
		}

		line := model.TransactionLine{Date: date}
		if desc, ok := r.lineCell(grid, spec.Table, row, spec.Description); ok {
			line.Description = strings.TrimSpace(desc)
		}
		line.PaymentIn = r.lineAmount(grid, spec, row, spec.PaymentIn)
		line.PaymentOut = r.lineAmount(grid, spec, row, spec.PaymentOut)
		line.Balance = r.lineAmount(grid, spec, row, spec.Balance)
		lines = append(lines, line)
	}
	return lines, nil
}

// lineCell fetches one line column, applying its validation pattern the same
// way a CandidateRef's is applied: a search whose match becomes the value.
func (r *Resolver) lineCell(grid *model.TableGrid, table, row int, col model.LineColumn) (string, bool) {
	text, ok := grid.Cell(table, row, col.Cell)
	if !ok || text == "" {
		return "", false
	}
	if col.Pattern == "" {
		return text, true
	}
	match := r.patterns[col.Pattern].FindString(text)
	if match == "" {
		return "", false
	}
	return match, true
}

func (r *Resolver) lineAmount(grid *model.TableGrid, spec *model.LineSpec, row int, col model.LineColumn) float64 {
	text, ok := r.lineCell(grid, spec.Table, row, col)
	if !ok {
		return 0
	}
	_, value, err := normalizeNumeric(applySubstitutions(text, spec.Substitutions), spec.DebitSuffix)
	if err != nil {
		return 0
	}
	return value
}
