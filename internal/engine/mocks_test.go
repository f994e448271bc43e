package engine

import (
	"context"
	"sync"
	"time"

	"github.com/ledgervet/ledgervet/internal/model"
)

// mockExtractor serves pre-built grids keyed by file name.
type mockExtractor struct {
	grids map[string]*model.TableGrid
	errs  map[string]error
}

func (m *mockExtractor) Extract(_ context.Context, file string) (*model.TableGrid, error) {
	if err, ok := m.errs[file]; ok {
		return nil, err
	}
	return m.grids[file], nil
}

// mockHistory returns canned adjacent statements per account.
type mockHistory struct {
	prev map[string]*model.StatementRecord
	next map[string]*model.StatementRecord
	err  error
}

func (m *mockHistory) AdjacentStatements(_ context.Context, accountID string, _ time.Time) (*model.StatementRecord, *model.StatementRecord, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.prev[accountID], m.next[accountID], nil
}

// mockStore records everything saved, in order.
type mockStore struct {
	mu      sync.Mutex
	results []*model.DocumentResult
	batches []*model.BatchSummary
}

func (m *mockStore) SaveDocumentResult(_ context.Context, res *model.DocumentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

func (m *mockStore) SaveBatch(_ context.Context, batch *model.BatchSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return nil
}
