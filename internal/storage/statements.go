package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ledgervet/ledgervet/internal/common"
	"github.com/ledgervet/ledgervet/internal/model"
)

// SaveDocumentResult persists everything produced for one document in a
// single transaction: the standardized statement, its line items, the
// per-field resolution detail and any continuity gaps. The upsert is
// idempotent by (account, statement date): reprocessing a document replaces
// the prior logical record instead of duplicating it.
func (s *SQLiteStorage) SaveDocumentResult(ctx context.Context, res *model.DocumentResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if res.Statement != nil {
		if err := saveStatementTx(ctx, tx, res.Statement); err != nil {
			return err
		}
	}
	if res.DocumentID != "" {
		if err := saveFieldsTx(ctx, tx, res.DocumentID, res.Fields); err != nil {
			return err
		}
	}
	if res.Outcome != nil {
		for _, gap := range res.Outcome.Gaps {
			if err := saveGapTx(ctx, tx, gap); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func saveStatementTx(ctx context.Context, tx *sql.Tx, stmt *model.StatementRecord) error {
	// Replace-by-identity: at most one logical record per (account,
	// statement period), even when the document fingerprint changed.
	if stmt.AccountID != "" && !stmt.StatementDate.IsZero() {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM statements WHERE account_id = ? AND statement_date = ? AND id != ?`,
			stmt.AccountID, stmt.StatementDate, stmt.ID); err != nil {
			return fmt.Errorf("failed to clear superseded statement: %w", err)
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO statements (
			id, account_id, company, account_type, account_name, account_number,
			sort_code, card_number, statement_date,
			opening_balance, closing_balance, payments_in, payments_out, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			company = excluded.company,
			account_type = excluded.account_type,
			account_name = excluded.account_name,
			account_number = excluded.account_number,
			sort_code = excluded.sort_code,
			card_number = excluded.card_number,
			statement_date = excluded.statement_date,
			opening_balance = excluded.opening_balance,
			closing_balance = excluded.closing_balance,
			payments_in = excluded.payments_in,
			payments_out = excluded.payments_out,
			status = excluded.status
	`, stmt.ID, stmt.AccountID, stmt.Company, stmt.AccountType, stmt.AccountName,
		stmt.AccountNumber, stmt.SortCode, stmt.CardNumber, nullableTime(stmt.StatementDate),
		stmt.Opening, stmt.Closing, stmt.PaymentsIn, stmt.PaymentsOut, string(stmt.Status))
	if err != nil {
		return fmt.Errorf("failed to save statement: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM statement_lines WHERE statement_id = ?`, stmt.ID); err != nil {
		return fmt.Errorf("failed to clear statement lines: %w", err)
	}
	for i, line := range stmt.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO statement_lines (
				statement_id, line_no, transaction_date, description,
				payment_in, payment_out, balance
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, stmt.ID, i+1, line.Date, line.Description, line.PaymentIn, line.PaymentOut, line.Balance); err != nil {
			return fmt.Errorf("failed to save statement line %d: %w", i+1, err)
		}
	}
	return nil
}

func saveFieldsTx(ctx context.Context, tx *sql.Tx, documentID string, fields []model.ResolvedField) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM resolved_fields WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to clear resolved fields: %w", err)
	}
	for _, f := range fields {
		var failures []byte
		if len(f.Failures) > 0 {
			var err error
			failures, err = json.Marshal(f.Failures)
			if err != nil {
				return fmt.Errorf("failed to encode candidate failures: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resolved_fields (
				document_id, field_name, raw_value, normalized_value,
				numeric_value, candidate_index, resolved, failures
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, documentID, f.Name, f.Raw, f.Normalized, f.Value, f.CandidateIndex, f.Resolved, string(failures)); err != nil {
			return fmt.Errorf("failed to save resolved field %s: %w", f.Name, err)
		}
	}
	return nil
}

func saveGapTx(ctx context.Context, tx *sql.Tx, gap model.GapRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO gaps (account_id, kind, prev_date, next_date, prev_closing, next_opening, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, gap.AccountID, string(gap.Kind), gap.PrevDate, gap.NextDate, gap.PrevClosing, gap.NextOpening, gap.Detail)
	if err != nil {
		return fmt.Errorf("failed to save gap record: %w", err)
	}
	return nil
}

// SaveBatch persists batch bookkeeping: the batch head and one line per
// processed document, in input order.
func (s *SQLiteStorage) SaveBatch(ctx context.Context, batch *model.BatchSummary) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO batches (id, started_at, duration_secs, processed, errored)
		VALUES (?, ?, ?, ?, ?)
	`, batch.BatchID, batch.StartedAt, batch.Duration.Seconds(), batch.Processed, batch.Errored); err != nil {
		return fmt.Errorf("failed to save batch: %w", err)
	}

	for i, res := range batch.Results {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO batch_lines (
				batch_id, line_no, file, document_id, account_id,
				stage, status, duration_secs, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, batch.BatchID, i+1, res.File, res.DocumentID, res.AccountID,
			string(res.Stage), string(res.Status), res.Duration.Seconds(), res.Err); err != nil {
			return fmt.Errorf("failed to save batch line %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// AdjacentStatements returns the statements immediately before and after the
// given date for one account, implementing the engine's history read.
func (s *SQLiteStorage) AdjacentStatements(ctx context.Context, accountID string, date time.Time) (*model.StatementRecord, *model.StatementRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, nil, err
	}

	prev, err := s.statementQuery(ctx, `
		SELECT `+statementColumns+` FROM statements
		WHERE account_id = ? AND statement_date < ?
		ORDER BY statement_date DESC LIMIT 1
	`, accountID, date)
	if err != nil {
		return nil, nil, err
	}
	next, err := s.statementQuery(ctx, `
		SELECT `+statementColumns+` FROM statements
		WHERE account_id = ? AND statement_date > ?
		ORDER BY statement_date ASC LIMIT 1
	`, accountID, date)
	if err != nil {
		return nil, nil, err
	}
	return prev, next, nil
}

const statementColumns = `id, account_id, company, account_type, account_name,
	account_number, sort_code, card_number, statement_date,
	opening_balance, closing_balance, payments_in, payments_out, status`

func (s *SQLiteStorage) statementQuery(ctx context.Context, query string, args ...any) (*model.StatementRecord, error) {
	stmt, err := scanStatement(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (*model.StatementRecord, error) {
	var stmt model.StatementRecord
	var date sql.NullTime
	var status string
	err := row.Scan(&stmt.ID, &stmt.AccountID, &stmt.Company, &stmt.AccountType,
		&stmt.AccountName, &stmt.AccountNumber, &stmt.SortCode, &stmt.CardNumber,
		&date, &stmt.Opening, &stmt.Closing, &stmt.PaymentsIn, &stmt.PaymentsOut, &status)
	if err != nil {
		return nil, err
	}
	if date.Valid {
		stmt.StatementDate = date.Time
	}
	stmt.Status = model.DocumentStatus(status)
	return &stmt, nil
}

// GetStatement returns one statement by document id.
func (s *SQLiteStorage) GetStatement(ctx context.Context, id string) (*model.StatementRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	stmt, err := s.statementQuery(ctx, `SELECT `+statementColumns+` FROM statements WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, fmt.Errorf("statement %s: %w", id, common.ErrNotFound)
	}
	lines, err := s.statementLines(ctx, id)
	if err != nil {
		return nil, err
	}
	stmt.Lines = lines
	return stmt, nil
}

// ListStatements returns every stored statement ordered by account then
// statement date, optionally filtered to one account.
func (s *SQLiteStorage) ListStatements(ctx context.Context, accountID string) ([]model.StatementRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + statementColumns + ` FROM statements`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY account_id, statement_date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var statements []model.StatementRecord
	for rows.Next() {
		stmt, err := scanStatement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		statements = append(statements, *stmt)
	}
	return statements, rows.Err()
}

func (s *SQLiteStorage) statementLines(ctx context.Context, statementID string) ([]model.TransactionLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_date, description, payment_in, payment_out, balance
		FROM statement_lines WHERE statement_id = ? ORDER BY line_no
	`, statementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statement lines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []model.TransactionLine
	for rows.Next() {
		var line model.TransactionLine
		var date sql.NullTime
		if err := rows.Scan(&date, &line.Description, &line.PaymentIn, &line.PaymentOut, &line.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan statement line: %w", err)
		}
		if date.Valid {
			line.Date = date.Time
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ListGaps returns every recorded continuity gap ordered by account and
// period.
func (s *SQLiteStorage) ListGaps(ctx context.Context) ([]model.GapRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, kind, prev_date, next_date, prev_closing, next_opening, detail
		FROM gaps ORDER BY account_id, prev_date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var gaps []model.GapRecord
	for rows.Next() {
		var gap model.GapRecord
		var kind string
		var prevDate, nextDate sql.NullTime
		if err := rows.Scan(&gap.AccountID, &kind, &prevDate, &nextDate,
			&gap.PrevClosing, &gap.NextOpening, &gap.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan gap: %w", err)
		}
		gap.Kind = model.GapKind(kind)
		if prevDate.Valid {
			gap.PrevDate = prevDate.Time
		}
		if nextDate.Valid {
			gap.NextDate = nextDate.Time
		}
		gaps = append(gaps, gap)
	}
	return gaps, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
