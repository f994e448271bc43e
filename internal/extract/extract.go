// Package extract turns input documents into the addressable table grids the
// engine consumes. PDFs are extracted in-process; pre-extracted grids can be
// supplied as JSON.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledgervet/ledgervet/internal/common"
	"github.com/ledgervet/ledgervet/internal/model"
)

// Service dispatches extraction by file extension.
type Service struct {
	logger *slog.Logger
}

// NewService creates an extraction service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Extract reads one document and returns its table grid.
func (s *Service) Extract(ctx context.Context, file string) (*model.TableGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".pdf":
		grid, err := extractPDF(file)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", filepath.Base(file), err)
		}
		s.logger.Debug("extracted document",
			"file", filepath.Base(file),
			"tables", grid.TableCount(),
			"pages", grid.PageCount())
		return grid, nil
	case ".json":
		grid, err := loadGridJSON(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(file), err)
		}
		return grid, nil
	default:
		return nil, common.NewUserError(
			fmt.Sprintf("Cannot process %s: only .pdf and .json files are supported", filepath.Base(file)),
			fmt.Errorf("unsupported file type %q", filepath.Ext(file)),
		)
	}
}
