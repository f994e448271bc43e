package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ledgervet/ledgervet/internal/model"
)

// BalanceTolerance absorbs floating rounding when comparing balances. Any
// deviation beyond it is a real discrepancy.
const BalanceTolerance = 0.005

// DefaultMaxPeriodGap is the largest span between consecutive statement
// dates before a missing period is suspected; monthly statements drift a few
// days either way.
const DefaultMaxPeriodGap = 45 * 24 * time.Hour

// Reconciler validates arithmetic balance invariants within one statement
// and balance continuity across the statement history of an account.
type Reconciler struct {
	history      History
	maxPeriodGap time.Duration
}

// NewReconciler creates a reconciler reading prior statements through the
// injected history collaborator.
func NewReconciler(history History) *Reconciler {
	return &Reconciler{history: history, maxPeriodGap: DefaultMaxPeriodGap}
}

// Reconcile runs both checks. Neither failure is fatal: discrepancies and
// gaps are recorded on the outcome so the document persists with a degraded
// status instead of aborting. The returned error covers only history-read
// failures.
func (rc *Reconciler) Reconcile(ctx context.Context, stmt *model.StatementRecord) (model.ReconciliationOutcome, error) {
	outcome := model.ReconciliationOutcome{
		StatementID:  stmt.ID,
		ContinuityOK: true,
	}

	// opening + in - out must equal closing.
	diff := stmt.Opening + stmt.PaymentsIn - stmt.PaymentsOut - stmt.Closing
	outcome.Discrepancy = math.Round(diff*100) / 100
	outcome.ArithmeticOK = math.Abs(diff) <= BalanceTolerance
	if !outcome.ArithmeticOK {
		slog.Warn("arithmetic balance check failed",
			"statement", stmt.ID,
			"account", stmt.AccountID,
			"discrepancy", outcome.Discrepancy)
	}

	if rc.history == nil || stmt.AccountID == "" || stmt.StatementDate.IsZero() {
		return outcome, nil
	}

	prev, next, err := rc.history.AdjacentStatements(ctx, stmt.AccountID, stmt.StatementDate)
	if err != nil {
		return outcome, fmt.Errorf("failed to read statement history: %w", err)
	}

	// The closing balance of statement N must equal the opening balance of
	// statement N+1.
	if prev != nil {
		if math.Abs(prev.Closing-stmt.Opening) > BalanceTolerance {
			outcome.Gaps = append(outcome.Gaps, model.GapRecord{
				AccountID:   stmt.AccountID,
				Kind:        model.GapBalanceMismatch,
				PrevDate:    prev.StatementDate,
				NextDate:    stmt.StatementDate,
				PrevClosing: prev.Closing,
				NextOpening: stmt.Opening,
				Detail: fmt.Sprintf("closing balance %.2f on %s does not meet opening balance %.2f on %s",
					prev.Closing, prev.StatementDate.Format("2006-01-02"),
					stmt.Opening, stmt.StatementDate.Format("2006-01-02")),
			})
		} else if stmt.StatementDate.Sub(prev.StatementDate) > rc.maxPeriodGap {
			outcome.Gaps = append(outcome.Gaps, model.GapRecord{
				AccountID:   stmt.AccountID,
				Kind:        model.GapMissingPeriod,
				PrevDate:    prev.StatementDate,
				NextDate:    stmt.StatementDate,
				PrevClosing: prev.Closing,
				NextOpening: stmt.Opening,
				Detail: fmt.Sprintf("no statement covers %s to %s",
					prev.StatementDate.Format("2006-01-02"),
					stmt.StatementDate.Format("2006-01-02")),
			})
		}
	}

	// A statement inserted into the middle of an existing history must also
	// meet its successor.
	if next != nil && math.Abs(stmt.Closing-next.Opening) > BalanceTolerance {
		outcome.Gaps = append(outcome.Gaps, model.GapRecord{
			AccountID:   stmt.AccountID,
			Kind:        model.GapBalanceMismatch,
			PrevDate:    stmt.StatementDate,
			NextDate:    next.StatementDate,
			PrevClosing: stmt.Closing,
			NextOpening: next.Opening,
			Detail: fmt.Sprintf("closing balance %.2f on %s does not meet opening balance %.2f on %s",
				stmt.Closing, stmt.StatementDate.Format("2006-01-02"),
				next.Opening, next.StatementDate.Format("2006-01-02")),
		})
	}

	outcome.ContinuityOK = len(outcome.Gaps) == 0
	return outcome, nil
}
