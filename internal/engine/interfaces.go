// Package engine implements the field-resolution and reconciliation engine
// that turns extracted statement tables into verified standardized records.
package engine

import (
	"context"
	"time"

	"github.com/ledgervet/ledgervet/internal/model"
)

// Extractor supplies the engine's only input: an addressable grid of table
// text per document, plus the document's page count.
type Extractor interface {
	Extract(ctx context.Context, file string) (*model.TableGrid, error)
}

// History supplies previously persisted statements for continuity checking.
// The engine defines the comparison rule; the collaborator supplies the
// ordered prior statements.
type History interface {
	AdjacentStatements(ctx context.Context, accountID string, date time.Time) (prev, next *model.StatementRecord, err error)
}

// ResultStore receives finalized results. Upserts must be idempotent by
// document/account/statement identity; the engine assumes at most one logical
// record per (account, statement period) and lets the store enforce that.
type ResultStore interface {
	SaveDocumentResult(ctx context.Context, result *model.DocumentResult) error
	SaveBatch(ctx context.Context, batch *model.BatchSummary) error
}
