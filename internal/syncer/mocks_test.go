package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/domain"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/normalizer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/report"
)

// MockInstallRepository is a mock implementation of repository.InstallRepository
type MockInstallRepository struct {
	mock.Mock
}

func (m *MockInstallRepository) ExistingKeys(ctx context.Context, window domain.TimeWindow) (map[string]struct{}, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockInstallRepository) InsertBatch(ctx context.Context, columns []string, rows [][]any) (int, error) {
	args := m.Called(ctx, columns, rows)
	return args.Int(0), args.Error(1)
}

func (m *MockInstallRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockInstallRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockExporter is a mock implementation of Exporter
type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) Export(ctx context.Context, appID string, window domain.TimeWindow) ([]byte, error) {
	args := m.Called(ctx, appID, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockReporter is a mock implementation of report.Reporter
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) FetchFailed(ctx context.Context, appID string, err error) {
	m.Called(ctx, appID, err)
}

func (m *MockReporter) Warning(ctx context.Context, appID string, w normalizer.Warning) {
	m.Called(ctx, appID, w)
}

func (m *MockReporter) AppSynced(ctx context.Context, result report.AppResult) {
	m.Called(ctx, result)
}

func (m *MockReporter) Fatal(ctx context.Context, appID string, err error) {
	m.Called(ctx, appID, err)
}

// memoryRepository is an append-only in-memory sink keyed by appsflyer_id
type memoryRepository struct {
	mu      sync.Mutex
	rows    []map[string]any
	inserts int
}

func (r *memoryRepository) ExistingKeys(_ context.Context, w domain.TimeWindow) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make(map[string]struct{})
	for _, row := range r.rows {
		installTime, ok := row["install_time"].(string)
		if !ok || installTime < w.FromString() || installTime > w.ToString() {
			continue
		}
		if key, ok := row["appsflyer_id"].(string); ok && key != "" {
			keys[key] = struct{}{}
		}
	}
	return keys, nil
}

func (r *memoryRepository) InsertBatch(_ context.Context, columns []string, rows [][]any) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inserts++
	for _, values := range rows {
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			row[c] = values[i]
		}
		r.rows = append(r.rows, row)
	}
	return len(rows), nil
}

func (r *memoryRepository) Ping(context.Context) error { return nil }

func (r *memoryRepository) Close() error { return nil }

// staticPlanner always returns the same window
type staticPlanner struct {
	window domain.TimeWindow
}

func (p staticPlanner) Plan() domain.TimeWindow { return p.window }

var ict = time.FixedZone("Asia/Ho_Chi_Minh", 7*3600)

func testWindow() domain.TimeWindow {
	return domain.TimeWindow{
		From:     time.Date(2024, 1, 1, 8, 0, 0, 0, ict),
		To:       time.Date(2024, 1, 1, 10, 0, 0, 0, ict),
		Location: ict,
	}
}

func record(key string, values ...any) domain.AttributionRecord {
	return domain.AttributionRecord{AppsFlyerID: key, Values: append([]any{key}, values...)}
}
