package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgervet/ledgervet/internal/config"
	"github.com/ledgervet/ledgervet/internal/model"
)

// Options holds batch processing options.
type Options struct {
	// Workers caps the turbo worker pool; 0 means one worker per CPU.
	Workers int
	// Turbo processes documents on parallel workers instead of sequentially.
	Turbo bool
	// SmartRename renames processed files to {account_id}_{date} after a
	// successful run.
	SmartRename bool
	// OnDocument, when set, is called once per completed document.
	OnDocument func()
}

// Coordinator fans work across documents, isolates per-document failure and
// aggregates results deterministically by input order.
type Coordinator struct {
	identifier *Identifier
	resolver   *Resolver
	reconciler *Reconciler
	extractor  Extractor
	store      ResultStore
	opts       Options
}

// NewCoordinator wires the pipeline. The configuration is shared read-only
// across all workers; every worker builds its own grid and result.
func NewCoordinator(cfg *config.Config, extractor Extractor, history History, store ResultStore, opts Options) (*Coordinator, error) {
	resolver, err := NewResolver(cfg.Templates)
	if err != nil {
		return nil, fmt.Errorf("failed to build resolver: %w", err)
	}
	return &Coordinator{
		identifier: NewIdentifier(cfg.Rules),
		resolver:   resolver,
		reconciler: NewReconciler(history),
		extractor:  extractor,
		store:      store,
		opts:       opts,
	}, nil
}

// ProcessBatch runs the pipeline over the given files. Extraction,
// identification and field resolution run per worker; reconciliation and
// persistence run afterwards in input order, so continuity checks observe
// earlier statements of the same batch and the aggregate is stable
// regardless of worker completion order.
func (c *Coordinator) ProcessBatch(ctx context.Context, files []string) (*model.BatchSummary, error) {
	batch := &model.BatchSummary{
		BatchID:   uuid.NewString(),
		StartedAt: time.Now(),
		Processed: len(files),
		Results:   make([]model.DocumentResult, len(files)),
	}
	slog.Info("processing batch",
		"batch", batch.BatchID,
		"documents", len(files),
		"turbo", c.opts.Turbo)

	if c.opts.Turbo {
		c.resolveParallel(ctx, files, batch.Results)
	} else {
		for i, file := range files {
			batch.Results[i] = c.resolveDocument(ctx, file)
			if c.opts.OnDocument != nil {
				c.opts.OnDocument()
			}
		}
	}

	for i := range batch.Results {
		res := &batch.Results[i]
		c.finalize(ctx, res)
		if res.Stage == model.StageErrored {
			batch.Errored++
		}
	}

	batch.Duration = time.Since(batch.StartedAt)
	if c.store != nil {
		if err := c.store.SaveBatch(ctx, batch); err != nil {
			return batch, fmt.Errorf("failed to save batch: %w", err)
		}
	}

	slog.Info("batch complete",
		"batch", batch.BatchID,
		"documents", batch.Processed,
		"errored", batch.Errored,
		"duration", batch.Duration)
	return batch, nil
}

func (c *Coordinator) resolveParallel(ctx context.Context, files []string, results []model.DocumentResult) {
	workers := c.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = c.resolveDocument(ctx, files[idx])
				if c.opts.OnDocument != nil {
					c.opts.OnDocument()
				}
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// resolveDocument runs extraction, identification and field resolution for
// one document. Failures here never propagate to sibling documents: the
// result carries the error and the batch moves on.
func (c *Coordinator) resolveDocument(ctx context.Context, file string) model.DocumentResult {
	start := time.Now()
	res := model.DocumentResult{
		File:  file,
		Stage: model.StagePending,
	}
	defer func() { res.Duration = time.Since(start) }()

	grid, err := c.extractor.Extract(ctx, file)
	if err != nil {
		res.Stage = model.StageErrored
		res.Status = model.StatusFailed
		res.Err = err.Error()
		slog.Warn("extraction failed", "file", file, "error", err)
		return res
	}
	res.DocumentID = model.FingerprintID(grid.PageText(1))

	rule, err := c.identifier.Identify(grid)
	if err != nil {
		res.Stage = model.StageErrored
		res.Status = model.StatusFailed
		res.Err = err.Error()
		slog.Warn("identification failed", "file", file, "error", err)
		return res
	}
	res.RuleID = rule.ID
	res.TemplateID = rule.TemplateID
	res.Stage = model.StageIdentified

	fields, err := c.resolver.Resolve(grid, rule.TemplateID)
	if err != nil {
		res.Stage = model.StageErrored
		res.Status = model.StatusFailed
		res.Err = err.Error()
		return res
	}
	res.Fields = fields
	res.Stage = model.StageFieldsResolved

	lines, err := c.resolver.ResolveLines(grid, rule.TemplateID)
	if err == nil {
		res.Statement = buildStatement(&res, rule, lines)
	}
	if res.Statement != nil {
		res.AccountID = res.Statement.AccountID
	}
	return res
}

// finalize reconciles and persists one result. Field and reconciliation
// failures degrade status but still reach DONE; only extraction and
// identification failures are terminal.
func (c *Coordinator) finalize(ctx context.Context, res *model.DocumentResult) {
	start := time.Now()
	defer func() { res.Duration += time.Since(start) }()

	if res.Stage != model.StageErrored {
		if res.Statement != nil && reconcilable(res) {
			outcome, err := c.reconciler.Reconcile(ctx, res.Statement)
			if err != nil {
				slog.Warn("reconciliation history read failed", "file", res.File, "error", err)
				res.Err = err.Error()
			} else {
				res.Outcome = &outcome
			}
		}
		res.Stage = model.StageReconciled
		res.Status = documentStatus(res)
		if res.Statement != nil {
			res.Statement.Status = res.Status
		}
		res.Stage = model.StageDone
	}

	if c.store != nil {
		if err := c.store.SaveDocumentResult(ctx, res); err != nil {
			slog.Error("failed to persist document result", "file", res.File, "error", err)
			if res.Err == "" {
				res.Err = err.Error()
			}
		}
	}

	if c.opts.SmartRename && res.Status == model.StatusOK && res.Statement != nil {
		c.rename(res)
	}
}

// reconcilable reports whether every field the arithmetic check needs was
// resolved.
func reconcilable(res *model.DocumentResult) bool {
	for _, name := range []string{
		model.FieldOpeningBalance,
		model.FieldClosingBalance,
		model.FieldPaymentsIn,
		model.FieldPaymentsOut,
	} {
		f := res.Field(name)
		if f == nil || !f.Resolved {
			return false
		}
	}
	return true
}

func documentStatus(res *model.DocumentResult) model.DocumentStatus {
	if res.Outcome == nil {
		// Reconciliation could not run at all.
		return model.StatusFailed
	}
	if !res.Outcome.ArithmeticOK {
		return model.StatusFailed
	}
	if len(res.UnresolvedFields()) > 0 || !res.Outcome.ContinuityOK {
		return model.StatusPartial
	}
	return model.StatusOK
}

func (c *Coordinator) rename(res *model.DocumentResult) {
	dir := filepath.Dir(res.File)
	newName := res.Statement.RenamedFile(filepath.Ext(res.File))
	newPath := filepath.Join(dir, newName)
	if newPath == res.File {
		return
	}
	if err := os.Rename(res.File, newPath); err != nil {
		slog.Warn("smart rename failed", "file", res.File, "error", err)
		return
	}
	slog.Info("renamed statement", "from", filepath.Base(res.File), "to", newName)
}

// statementDateLayouts are tried in order when parsing the resolved
// statement date.
var statementDateLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
}

func parseStatementDate(value string) time.Time {
	for _, layout := range statementDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// buildStatement shapes resolved fields into the standardized record handed
// to persistence.
func buildStatement(res *model.DocumentResult, rule *model.IdentificationRule, lines []model.TransactionLine) *model.StatementRecord {
	stmt := &model.StatementRecord{
		ID:          res.DocumentID,
		Company:     rule.Company,
		AccountType: rule.AccountType,
		Lines:       lines,
	}

	fieldValue := func(name string) string {
		if f := res.Field(name); f != nil && f.Resolved {
			return f.Normalized
		}
		return ""
	}
	numericValue := func(name string) float64 {
		if f := res.Field(name); f != nil && f.Resolved {
			return f.Value
		}
		return 0
	}

	stmt.AccountName = fieldValue(model.FieldAccountName)
	stmt.AccountNumber = fieldValue(model.FieldAccountNumber)
	stmt.SortCode = fieldValue(model.FieldSortCode)
	stmt.CardNumber = fieldValue(model.FieldCardNumber)
	stmt.Opening = numericValue(model.FieldOpeningBalance)
	stmt.Closing = numericValue(model.FieldClosingBalance)
	stmt.PaymentsIn = numericValue(model.FieldPaymentsIn)
	stmt.PaymentsOut = numericValue(model.FieldPaymentsOut)
	if date := fieldValue(model.FieldStatementDate); date != "" {
		stmt.StatementDate = parseStatementDate(date)
	}
	if stmt.AccountNumber != "" {
		stmt.AccountID = model.BuildAccountID(rule.Company, rule.AccountType, stmt.AccountNumber)
	}
	return stmt
}
