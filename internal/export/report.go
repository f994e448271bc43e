// Package export renders standardized statements and continuity gaps as
// reports (csv, xlsx) and as OFX bank statement responses.
package export

import (
	"fmt"
	"time"

	"github.com/ledgervet/ledgervet/internal/model"
)

// Report is a rectangular report: a sheet name, a header row and data rows.
type Report struct {
	Name    string
	Headers []string
	Rows    [][]any
}

const dateLayout = "2006-01-02"

// StatementReport builds the per-statement facts report. Statements that
// bound a recorded continuity gap carry a GAP flag so an account's sequence
// can be audited in date order.
func StatementReport(statements []model.StatementRecord, gaps []model.GapRecord) *Report {
	gapped := make(map[string]bool)
	for _, g := range gaps {
		gapped[g.AccountID+"|"+g.PrevDate.Format(dateLayout)] = true
		gapped[g.AccountID+"|"+g.NextDate.Format(dateLayout)] = true
	}

	report := &Report{
		Name: "Statements",
		Headers: []string{
			"account_id", "company", "account_type", "account_name",
			"account_number", "sort_code", "card_number", "statement_date",
			"opening_balance", "closing_balance", "payments_in", "payments_out",
			"status", "gap",
		},
	}
	for _, s := range statements {
		flag := ""
		if gapped[s.AccountID+"|"+s.StatementDate.Format(dateLayout)] {
			flag = "GAP"
		}
		report.Rows = append(report.Rows, []any{
			s.AccountID, s.Company, s.AccountType, s.AccountName,
			s.AccountNumber, s.SortCode, s.CardNumber, formatDate(s.StatementDate),
			s.Opening, s.Closing, s.PaymentsIn, s.PaymentsOut,
			string(s.Status), flag,
		})
	}
	return report
}

// TransactionReport builds the per-line facts report across all statements.
func TransactionReport(statements []model.StatementRecord) *Report {
	report := &Report{
		Name: "Transactions",
		Headers: []string{
			"account_id", "statement_date", "line_no", "transaction_date",
			"description", "payment_in", "payment_out", "balance",
		},
	}
	for _, s := range statements {
		for i, line := range s.Lines {
			report.Rows = append(report.Rows, []any{
				s.AccountID, formatDate(s.StatementDate), i + 1,
				formatDate(line.Date), line.Description,
				line.PaymentIn, line.PaymentOut, line.Balance,
			})
		}
	}
	return report
}

// GapReport builds the continuity gap report.
func GapReport(gaps []model.GapRecord) *Report {
	report := &Report{
		Name: "Gaps",
		Headers: []string{
			"account_id", "kind", "prev_date", "next_date",
			"prev_closing", "next_opening", "detail",
		},
	}
	for _, g := range gaps {
		report.Rows = append(report.Rows, []any{
			g.AccountID, string(g.Kind), formatDate(g.PrevDate),
			formatDate(g.NextDate), g.PrevClosing, g.NextOpening, g.Detail,
		})
	}
	return report
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%.2f", x)
	case int:
		return fmt.Sprintf("%d", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
