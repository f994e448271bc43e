package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version the application expects.
const ExpectedSchemaVersion = 1

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS statements (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL DEFAULT '',
					company TEXT,
					account_type TEXT,
					account_name TEXT,
					account_number TEXT,
					sort_code TEXT,
					card_number TEXT,
					statement_date DATETIME,
					opening_balance REAL NOT NULL DEFAULT 0,
					closing_balance REAL NOT NULL DEFAULT 0,
					payments_in REAL NOT NULL DEFAULT 0,
					payments_out REAL NOT NULL DEFAULT 0,
					status TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE UNIQUE INDEX idx_statements_identity
					ON statements(account_id, statement_date)
					WHERE account_id != ''`,
				`CREATE INDEX idx_statements_account ON statements(account_id)`,

				`CREATE TABLE IF NOT EXISTS statement_lines (
					statement_id TEXT NOT NULL,
					line_no INTEGER NOT NULL,
					transaction_date DATETIME,
					description TEXT,
					payment_in REAL NOT NULL DEFAULT 0,
					payment_out REAL NOT NULL DEFAULT 0,
					balance REAL NOT NULL DEFAULT 0,
					PRIMARY KEY (statement_id, line_no),
					FOREIGN KEY (statement_id) REFERENCES statements(id)
				)`,

				`CREATE TABLE IF NOT EXISTS resolved_fields (
					document_id TEXT NOT NULL,
					field_name TEXT NOT NULL,
					raw_value TEXT,
					normalized_value TEXT,
					numeric_value REAL,
					candidate_index INTEGER,
					resolved INTEGER NOT NULL,
					failures TEXT,
					PRIMARY KEY (document_id, field_name)
				)`,

				`CREATE TABLE IF NOT EXISTS gaps (
					account_id TEXT NOT NULL,
					kind TEXT NOT NULL,
					prev_date DATETIME,
					next_date DATETIME,
					prev_closing REAL,
					next_opening REAL,
					detail TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (account_id, prev_date, next_date, kind) ON CONFLICT REPLACE
				)`,

				`CREATE TABLE IF NOT EXISTS batches (
					id TEXT PRIMARY KEY,
					started_at DATETIME NOT NULL,
					duration_secs REAL NOT NULL,
					processed INTEGER NOT NULL,
					errored INTEGER NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS batch_lines (
					batch_id TEXT NOT NULL,
					line_no INTEGER NOT NULL,
					file TEXT NOT NULL,
					document_id TEXT,
					account_id TEXT,
					stage TEXT NOT NULL,
					status TEXT NOT NULL,
					duration_secs REAL NOT NULL,
					error TEXT,
					PRIMARY KEY (batch_id, line_no),
					FOREIGN KEY (batch_id) REFERENCES batches(id)
				)`,
			}

			for _, q := range queries {
				if _, err := tx.Exec(q); err != nil {
					return fmt.Errorf("migration query failed: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate applies any outstanding migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		slog.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
		current = m.Version
	}

	if current != ExpectedSchemaVersion {
		return fmt.Errorf("schema version %d does not match expected %d", current, ExpectedSchemaVersion)
	}
	return nil
}
