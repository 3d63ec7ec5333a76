package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/appsflyer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/config"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/normalizer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/report"
)

func newTestReporter(url string) *Reporter {
	return NewReporter(config.Metrics{PushgatewayURL: url, JobName: "appsflyer_install_sync"}, zap.NewNop())
}

func TestReporter_AppSynced(t *testing.T) {
	r := newTestReporter("")

	r.AppSynced(context.Background(), report.AppResult{
		AppID:      "id1203171490",
		Fetched:    10,
		MissingKey: 1,
		Duplicates: 4,
		Inserted:   5,
		Duration:   2 * time.Second,
	})

	assert.Equal(t, float64(10), testutil.ToFloat64(r.RowsFetched.WithLabelValues("id1203171490")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.RowsMissingKey.WithLabelValues("id1203171490")))
	assert.Equal(t, float64(4), testutil.ToFloat64(r.RowsDuplicate.WithLabelValues("id1203171490")))
	assert.Equal(t, float64(5), testutil.ToFloat64(r.RowsInserted.WithLabelValues("id1203171490")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.SyncDuration))
	assert.Greater(t, testutil.ToFloat64(r.LastSuccess.WithLabelValues("id1203171490")), float64(0))
}

func TestReporter_DryRunDoesNotMarkSuccess(t *testing.T) {
	r := newTestReporter("")

	r.AppSynced(context.Background(), report.AppResult{AppID: "app", Candidates: 3, DryRun: true})

	assert.Equal(t, 0, testutil.CollectAndCount(r.LastSuccess))
}

func TestReporter_FetchFailed(t *testing.T) {
	r := newTestReporter("")
	ctx := context.Background()

	r.FetchFailed(ctx, "app", &appsflyer.FetchError{AppID: "app", StatusCode: http.StatusForbidden})
	r.FetchFailed(ctx, "app", &appsflyer.FetchError{AppID: "app", Err: errors.New("connection refused")})
	r.FetchFailed(ctx, "app", normalizer.ErrMalformedExport)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.FetchFailures.WithLabelValues("app", "403")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.FetchFailures.WithLabelValues("app", "transport")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.FetchFailures.WithLabelValues("app", "malformed")))
}

func TestReporter_WarningAndFatal(t *testing.T) {
	r := newTestReporter("")
	ctx := context.Background()

	r.Warning(ctx, "app", normalizer.Warning{Kind: normalizer.WarningDatetime, Line: 2, Column: "install_time"})
	r.Warning(ctx, "app", normalizer.Warning{Kind: normalizer.WarningMissingKey, Line: 3})
	r.Fatal(ctx, "app", errors.New("sink down"))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.DatetimeWarnings.WithLabelValues("app")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.FatalErrors.WithLabelValues("app")))
}

func TestReporter_Push(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := newTestReporter(server.URL)
	r.AppSynced(context.Background(), report.AppResult{AppID: "app", Inserted: 1})

	err := r.Push(context.Background())

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/appsflyer_install_sync", path)
}

func TestReporter_PushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := newTestReporter(server.URL).Push(context.Background())

	assert.Error(t, err)
}

func TestReporter_PushDisabled(t *testing.T) {
	assert.NoError(t, newTestReporter("").Push(context.Background()))
}
