package clickhouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/domain"
)

// MockConn is a mock implementation of driver.Conn; methods not overridden panic
type MockConn struct {
	driver.Conn
	mock.Mock
}

func (m *MockConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	ret := m.Called(ctx, query, args)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(driver.Rows), ret.Error(1)
}

func (m *MockConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	ret := m.Called(ctx, query)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(driver.Batch), ret.Error(1)
}

func (m *MockConn) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return m.Called(ctx, query).Get(0).(driver.Row)
}

func (m *MockConn) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConn) Close() error {
	return m.Called().Error(0)
}

// fakeRows yields one string per row
type fakeRows struct {
	driver.Rows
	values  []string
	pos     int
	scanErr error
	iterErr error
	closed  bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	*(dest[0].(*string)) = r.values[r.pos-1]
	return nil
}

func (r *fakeRows) Err() error { return r.iterErr }

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

// fakeRow yields a single UInt8 result
type fakeRow struct {
	driver.Row
	value uint8
	err   error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*uint8)) = r.value
	return nil
}

// MockBatch is a mock implementation of driver.Batch
type MockBatch struct {
	driver.Batch
	mock.Mock
}

func (b *MockBatch) Append(v ...any) error {
	return b.Called(v).Error(0)
}

func (b *MockBatch) Abort() error {
	return b.Called().Error(0)
}

func (b *MockBatch) Send() error {
	return b.Called().Error(0)
}

func testWindow() domain.TimeWindow {
	loc := time.FixedZone("ICT", 7*3600)
	return domain.TimeWindow{
		From:     time.Date(2024, 1, 1, 8, 0, 0, 0, loc),
		To:       time.Date(2024, 1, 1, 10, 0, 0, 0, loc),
		Location: loc,
	}
}

func newTestRepository(conn driver.Conn, table string) *Repository {
	return &Repository{conn: conn, table: table, log: zap.NewNop()}
}

func TestRepository_ExistingKeys(t *testing.T) {
	conn := new(MockConn)
	rows := &fakeRows{values: []string{"abc123", "", "def456", "abc123"}}

	conn.On("Query", mock.Anything,
		"SELECT ifNull(toString(`appsflyer_id`), '') FROM `install` WHERE `install_time` >= ? AND `install_time` <= ?",
		[]any{"2024-01-01 08:00:00", "2024-01-01 10:00:00"},
	).Return(rows, nil)

	keys, err := newTestRepository(conn, "install").ExistingKeys(context.Background(), testWindow())

	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"abc123": {}, "def456": {}}, keys)
	assert.True(t, rows.closed)
	conn.AssertExpectations(t)
}

func TestRepository_ExistingKeys_QualifiedTable(t *testing.T) {
	conn := new(MockConn)
	conn.On("Query", mock.Anything,
		"SELECT ifNull(toString(`appsflyer_id`), '') FROM `analytics`.`install` WHERE `install_time` >= ? AND `install_time` <= ?",
		mock.Anything,
	).Return(&fakeRows{}, nil)

	keys, err := newTestRepository(conn, "analytics.install").ExistingKeys(context.Background(), testWindow())

	require.NoError(t, err)
	assert.Empty(t, keys)
	conn.AssertExpectations(t)
}

func TestRepository_ExistingKeys_Errors(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		conn := new(MockConn)
		conn.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := newTestRepository(conn, "install").ExistingKeys(context.Background(), testWindow())

		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("scan", func(t *testing.T) {
		conn := new(MockConn)
		rows := &fakeRows{values: []string{"a"}, scanErr: errors.New("bad type")}
		conn.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)

		_, err := newTestRepository(conn, "install").ExistingKeys(context.Background(), testWindow())

		assert.ErrorContains(t, err, "bad type")
		assert.True(t, rows.closed)
	})

	t.Run("iteration", func(t *testing.T) {
		conn := new(MockConn)
		conn.On("Query", mock.Anything, mock.Anything, mock.Anything).
			Return(&fakeRows{iterErr: errors.New("stream reset")}, nil)

		_, err := newTestRepository(conn, "install").ExistingKeys(context.Background(), testWindow())

		assert.ErrorContains(t, err, "stream reset")
	})
}

func TestRepository_InsertBatch(t *testing.T) {
	conn := new(MockConn)
	batch := new(MockBatch)

	conn.On("PrepareBatch", mock.Anything, "INSERT INTO `install` (`appsflyer_id`, `install_time`)").Return(batch, nil)
	batch.On("Append", []any{"abc123", "2024-01-01 09:05:03"}).Return(nil).Once()
	batch.On("Append", []any{"def456", nil}).Return(nil).Once()
	batch.On("Send").Return(nil)

	n, err := newTestRepository(conn, "install").InsertBatch(context.Background(),
		[]string{"appsflyer_id", "install_time"},
		[][]any{{"abc123", "2024-01-01 09:05:03"}, {"def456", nil}})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	conn.AssertExpectations(t)
	batch.AssertExpectations(t)
}

func TestRepository_InsertBatch_Empty(t *testing.T) {
	conn := new(MockConn)

	n, err := newTestRepository(conn, "install").InsertBatch(context.Background(), []string{"appsflyer_id"}, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, n)
	conn.AssertNotCalled(t, "PrepareBatch", mock.Anything, mock.Anything)
}

func TestRepository_InsertBatch_Errors(t *testing.T) {
	cols := []string{"appsflyer_id", "city"}

	t.Run("prepare", func(t *testing.T) {
		conn := new(MockConn)
		conn.On("PrepareBatch", mock.Anything, mock.Anything).Return(nil, errors.New("table missing"))

		_, err := newTestRepository(conn, "install").InsertBatch(context.Background(), cols, [][]any{{"a", "b"}})

		assert.ErrorContains(t, err, "table missing")
	})

	t.Run("misaligned row", func(t *testing.T) {
		conn := new(MockConn)
		batch := new(MockBatch)
		conn.On("PrepareBatch", mock.Anything, mock.Anything).Return(batch, nil)
		batch.On("Abort").Return(nil)

		_, err := newTestRepository(conn, "install").InsertBatch(context.Background(), cols, [][]any{{"a"}})

		assert.ErrorContains(t, err, "1 values for 2 columns")
		batch.AssertCalled(t, "Abort")
		batch.AssertNotCalled(t, "Send")
	})

	t.Run("append", func(t *testing.T) {
		conn := new(MockConn)
		batch := new(MockBatch)
		conn.On("PrepareBatch", mock.Anything, mock.Anything).Return(batch, nil)
		batch.On("Append", mock.Anything).Return(errors.New("converting <nil> to String is unsupported"))
		batch.On("Abort").Return(nil)

		_, err := newTestRepository(conn, "install").InsertBatch(context.Background(), cols, [][]any{{"a", nil}})

		assert.ErrorContains(t, err, "unsupported")
		batch.AssertNotCalled(t, "Send")
	})

	t.Run("send", func(t *testing.T) {
		conn := new(MockConn)
		batch := new(MockBatch)
		conn.On("PrepareBatch", mock.Anything, mock.Anything).Return(batch, nil)
		batch.On("Append", mock.Anything).Return(nil)
		batch.On("Send").Return(errors.New("timeout"))

		n, err := newTestRepository(conn, "install").InsertBatch(context.Background(), cols, [][]any{{"a", "b"}})

		assert.Equal(t, 0, n)
		assert.ErrorContains(t, err, "timeout")
	})
}

func TestRepository_PingAndClose(t *testing.T) {
	conn := new(MockConn)
	conn.On("Ping", mock.Anything).Return(nil)
	conn.On("Close").Return(nil)

	repo := newTestRepository(conn, "install")

	assert.NoError(t, repo.Ping(context.Background()))
	assert.NoError(t, repo.Close())
	conn.AssertExpectations(t)
}
