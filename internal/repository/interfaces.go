package repository

import (
	"context"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/domain"
)

// InstallRepository defines the sink operations used by a sync run
type InstallRepository interface {
	// ExistingKeys returns the natural keys already stored with install_time inside [window.From, window.To]
	ExistingKeys(ctx context.Context, window domain.TimeWindow) (map[string]struct{}, error)

	// InsertBatch writes all rows in one bulk insert naming columns in the given order
	InsertBatch(ctx context.Context, columns []string, rows [][]any) (int, error)

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error
}
