package syncer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/repository"
)

// ErrWrite marks a failed bulk insert.
var ErrWrite = errors.New("bulk insert failed")

// BatchWriter submits the surviving rows of one application id as a single insert
type BatchWriter struct {
	repository repository.InstallRepository
	log        *zap.Logger
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(repo repository.InstallRepository, log *zap.Logger) *BatchWriter {
	return &BatchWriter{
		repository: repo,
		log:        log,
	}
}

// Write inserts rows under columns. An empty row list writes nothing and returns 0.
func (w *BatchWriter) Write(ctx context.Context, columns []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("%w: row %d has %d values for %d columns", ErrWrite, i, len(row), len(columns))
		}
	}

	insertedCount, err := w.repository.InsertBatch(ctx, columns, rows)
	if err != nil {
		w.log.Error("Failed to insert batch",
			zap.Error(err),
			zap.Int("row_count", len(rows)))
		return 0, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	if insertedCount != len(rows) {
		w.log.Warn("Insert count differs from submitted rows",
			zap.Int("inserted", insertedCount),
			zap.Int("expected", len(rows)))
	}

	return insertedCount, nil
}
