package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/domain"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/mapping"
)

// Repository implements InstallRepository for ClickHouse
type Repository struct {
	conn  driver.Conn
	table string
	close func() error
	log   *zap.Logger
}

// NewRepository creates a new ClickHouse repository writing to the client's install table
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		conn:  client.Conn(),
		table: client.Table(),
		close: client.Close,
		log:   log,
	}
}

// ExistingKeys selects the natural keys stored within the window, bounds inclusive.
// Keys are converted to a non-null String server-side so any key column type scans into a Go string.
func (r *Repository) ExistingKeys(ctx context.Context, window domain.TimeWindow) (map[string]struct{}, error) {
	query := fmt.Sprintf("SELECT ifNull(toString(%s), '') FROM %s WHERE %s >= ? AND %s <= ?",
		quoteIdentifier(mapping.KeyColumn),
		quoteTable(r.table),
		quoteIdentifier(mapping.TimeColumn),
		quoteIdentifier(mapping.TimeColumn))

	rows, err := r.conn.Query(ctx, query, window.FromString(), window.ToString())
	if err != nil {
		return nil, fmt.Errorf("failed to query existing keys: %w", err)
	}
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error("Failed to close existing keys rows", zap.Error(err))
		}
	}(rows)

	keys := make(map[string]struct{})
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan existing key: %w", err)
		}
		if key == "" {
			continue
		}
		keys[key] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating existing keys: %w", err)
	}

	r.log.Debug("Loaded existing keys",
		zap.String("from", window.FromString()),
		zap.String("to", window.ToString()),
		zap.Int("count", len(keys)))

	return keys, nil
}

// InsertBatch sends all rows as one batch with an explicit column list
func (r *Repository) InsertBatch(ctx context.Context, columns []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("no columns given for %d rows", len(rows))
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdentifier(c)
	}
	statement := fmt.Sprintf("INSERT INTO %s (%s)", quoteTable(r.table), strings.Join(quoted, ", "))

	batch, err := r.conn.PrepareBatch(ctx, statement)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	for i, row := range rows {
		if len(row) != len(columns) {
			_ = batch.Abort()
			return 0, fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(columns))
		}
		if err := batch.Append(row...); err != nil {
			_ = batch.Abort()
			return 0, fmt.Errorf("failed to append row %d to batch: %w", i, err)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	return len(rows), nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	if r.close != nil {
		return r.close()
	}
	return r.conn.Close()
}

func quoteIdentifier(name string) string {
	return "`" + name + "`"
}

func quoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = quoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}
