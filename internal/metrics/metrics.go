// Package metrics exposes per-run Prometheus counters for the install sync.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/appsflyer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/config"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/normalizer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/report"
)

const namespace = "appsflyer_sync"

var _ report.Reporter = (*Reporter)(nil)

// Reporter records sync events as Prometheus metrics on its own registry
type Reporter struct {
	registry *prometheus.Registry
	config   config.Metrics
	log      *zap.Logger

	RowsFetched      *prometheus.CounterVec
	RowsInserted     *prometheus.CounterVec
	RowsDuplicate    *prometheus.CounterVec
	RowsMissingKey   *prometheus.CounterVec
	DatetimeWarnings *prometheus.CounterVec
	FetchFailures    *prometheus.CounterVec
	FatalErrors      *prometheus.CounterVec
	SyncDuration     *prometheus.HistogramVec
	LastSuccess      *prometheus.GaugeVec
}

// NewReporter creates a reporter with every metric registered
func NewReporter(cfg config.Metrics, log *zap.Logger) *Reporter {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Reporter{
		registry: registry,
		config:   cfg,
		log:      log,

		RowsFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rows",
				Name:      "fetched_total",
				Help:      "Rows read from the export, including rows dropped for a missing key",
			},
			[]string{"app_id"},
		),
		RowsInserted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rows",
				Name:      "inserted_total",
				Help:      "Rows written to ClickHouse",
			},
			[]string{"app_id"},
		),
		RowsDuplicate: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rows",
				Name:      "duplicate_total",
				Help:      "Rows skipped because their appsflyer_id was already stored",
			},
			[]string{"app_id"},
		),
		RowsMissingKey: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rows",
				Name:      "missing_key_total",
				Help:      "Rows dropped because appsflyer_id was empty",
			},
			[]string{"app_id"},
		),
		DatetimeWarnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rows",
				Name:      "invalid_datetime_total",
				Help:      "Datetime cells replaced with null",
			},
			[]string{"app_id"},
		),
		FetchFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "export",
				Name:      "failures_total",
				Help:      "Application ids skipped because the export could not be used",
			},
			[]string{"app_id", "status_code"},
		),
		FatalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "run",
				Name:      "fatal_total",
				Help:      "Runs aborted by a sink error",
			},
			[]string{"app_id"},
		),
		SyncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "app",
				Name:      "duration_seconds",
				Help:      "Duration of one application id sync in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"app_id"},
		),
		LastSuccess: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "app",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last completed sync",
			},
			[]string{"app_id"},
		),
	}
}

func (r *Reporter) FetchFailed(_ context.Context, appID string, err error) {
	status := "transport"
	var fetchErr *appsflyer.FetchError
	switch {
	case errors.As(err, &fetchErr) && fetchErr.StatusCode != 0:
		status = strconv.Itoa(fetchErr.StatusCode)
	case errors.Is(err, normalizer.ErrMalformedExport):
		status = "malformed"
	}
	r.FetchFailures.WithLabelValues(appID, status).Inc()
}

func (r *Reporter) Warning(_ context.Context, appID string, w normalizer.Warning) {
	if w.Kind == normalizer.WarningDatetime {
		r.DatetimeWarnings.WithLabelValues(appID).Inc()
	}
}

func (r *Reporter) AppSynced(_ context.Context, result report.AppResult) {
	r.RowsFetched.WithLabelValues(result.AppID).Add(float64(result.Fetched))
	r.RowsMissingKey.WithLabelValues(result.AppID).Add(float64(result.MissingKey))
	r.RowsDuplicate.WithLabelValues(result.AppID).Add(float64(result.Duplicates))
	r.RowsInserted.WithLabelValues(result.AppID).Add(float64(result.Inserted))
	r.SyncDuration.WithLabelValues(result.AppID).Observe(result.Duration.Seconds())
	if !result.DryRun {
		r.LastSuccess.WithLabelValues(result.AppID).SetToCurrentTime()
	}
}

func (r *Reporter) Fatal(_ context.Context, appID string, _ error) {
	r.FatalErrors.WithLabelValues(appID).Inc()
}

// Push sends the collected metrics to the configured Pushgateway.
// It is a no-op when no Pushgateway URL is configured.
func (r *Reporter) Push(ctx context.Context) error {
	if r.config.PushgatewayURL == "" {
		return nil
	}

	err := push.New(r.config.PushgatewayURL, r.config.JobName).
		Gatherer(r.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}

	r.log.Info("Metrics pushed", zap.String("url", r.config.PushgatewayURL), zap.String("job", r.config.JobName))
	return nil
}
