package model

import (
	"time"
)

// Stage is the per-document processing state.
type Stage string

// Document pipeline stages. ERRORED is terminal and reachable only from
// extraction or identification failures; field and reconciliation failures
// degrade status but still reach DONE.
const (
	StagePending        Stage = "PENDING"
	StageIdentified     Stage = "IDENTIFIED"
	StageFieldsResolved Stage = "FIELDS_RESOLVED"
	StageReconciled     Stage = "RECONCILED"
	StageDone           Stage = "DONE"
	StageErrored        Stage = "ERRORED"
)

// DocumentStatus is the overall outcome for one document.
type DocumentStatus string

// Document statuses.
const (
	StatusOK      DocumentStatus = "OK"
	StatusPartial DocumentStatus = "PARTIAL"
	StatusFailed  DocumentStatus = "FAILED"
)

// CandidateFailure records why one candidate ref was rejected, so a
// misconfigured template can be diagnosed without re-running.
type CandidateFailure struct {
	Index  int
	Reason string
}

// ResolvedField is the outcome of resolving one logical field for one
// document. Immutable once produced.
type ResolvedField struct {
	Name           string
	Raw            string
	Normalized     string
	Value          float64
	CandidateIndex int
	Resolved       bool
	Numeric        bool
	Failures       []CandidateFailure
}

// GapKind classifies a continuity gap.
type GapKind string

// Gap kinds.
const (
	GapBalanceMismatch GapKind = "BALANCE_MISMATCH"
	GapMissingPeriod   GapKind = "MISSING_PERIOD"
)

// GapRecord describes a suspected missing or inconsistent statement period,
// bounded by the two adjacent statement dates.
type GapRecord struct {
	AccountID   string
	Kind        GapKind
	PrevDate    time.Time
	NextDate    time.Time
	PrevClosing float64
	NextOpening float64
	Detail      string
}

// ReconciliationOutcome reports the arithmetic and continuity checks for one
// statement.
type ReconciliationOutcome struct {
	StatementID  string
	ArithmeticOK bool
	Discrepancy  float64
	ContinuityOK bool
	Gaps         []GapRecord
}

// DocumentResult aggregates everything produced for one input document. It is
// created when processing starts, finalized when reconciliation completes or a
// fatal resolution error occurs, and never mutated afterwards.
type DocumentResult struct {
	DocumentID string
	File       string
	RuleID     string
	TemplateID string
	AccountID  string
	Fields     []ResolvedField
	Statement  *StatementRecord
	Outcome    *ReconciliationOutcome
	Stage      Stage
	Status     DocumentStatus
	Err        string
	Duration   time.Duration
}

// Field returns the resolved field with the given name, or nil.
func (r *DocumentResult) Field(name string) *ResolvedField {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			return &r.Fields[i]
		}
	}
	return nil
}

// UnresolvedFields returns the names of fields that exhausted all candidates.
func (r *DocumentResult) UnresolvedFields() []string {
	var names []string
	for _, f := range r.Fields {
		if !f.Resolved {
			names = append(names, f.Name)
		}
	}
	return names
}

// BatchSummary is the batch-level aggregate handed to orchestration: enough
// to drive exit codes and diagnostics without re-deriving engine internals.
type BatchSummary struct {
	BatchID   string
	StartedAt time.Time
	Duration  time.Duration
	Processed int
	Errored   int
	Results   []DocumentResult
}

// StatusCounts tallies per-document statuses, with ERRORED documents counted
// under FAILED.
func (b *BatchSummary) StatusCounts() map[DocumentStatus]int {
	counts := make(map[DocumentStatus]int)
	for _, r := range b.Results {
		counts[r.Status]++
	}
	return counts
}
