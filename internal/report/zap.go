package report

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/appsflyer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/mapping"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/normalizer"
)

// ZapReporter writes every event to a zap logger
type ZapReporter struct {
	log *zap.Logger
}

// NewZapReporter creates a new logging reporter
func NewZapReporter(log *zap.Logger) *ZapReporter {
	return &ZapReporter{log: log}
}

func (z *ZapReporter) FetchFailed(_ context.Context, appID string, err error) {
	fields := []zap.Field{zap.String("app_id", appID), zap.Error(err)}

	var fetchErr *appsflyer.FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		fields = append(fields,
			zap.Int("status_code", fetchErr.StatusCode),
			zap.String("body", fetchErr.Body))
	}

	z.log.Error("Export failed, skipping application", fields...)
}

func (z *ZapReporter) Warning(_ context.Context, appID string, w normalizer.Warning) {
	switch w.Kind {
	case normalizer.WarningMissingKey:
		z.log.Warn("Row without appsflyer_id dropped",
			zap.String("app_id", appID),
			zap.Int("line", w.Line))
	default:
		fields := []zap.Field{
			zap.String("app_id", appID),
			zap.Int("line", w.Line),
			zap.String("column", w.Column),
			zap.String("value", w.Value),
		}
		if header, ok := mapping.SourceHeader(w.Column); ok {
			fields = append(fields, zap.String("header", header))
		}
		z.log.Warn("Invalid datetime replaced with null", fields...)
	}
}

func (z *ZapReporter) AppSynced(_ context.Context, r AppResult) {
	fields := []zap.Field{
		zap.String("app_id", r.AppID),
		zap.String("from", r.From),
		zap.String("to", r.To),
		zap.Int("fetched", r.Fetched),
		zap.Int("missing_key", r.MissingKey),
		zap.Int("datetime_warnings", r.DatetimeWarnings),
		zap.Int("duplicates", r.Duplicates),
		zap.Int("inserted", r.Inserted),
		zap.Duration("duration", r.Duration),
	}

	switch {
	case r.DryRun:
		z.log.Info("Dry run, rows not inserted", append(fields, zap.Int("candidates", r.Candidates))...)
	case r.Inserted == 0:
		z.log.Info("No new rows to insert", fields...)
	default:
		z.log.Info("Inserted new rows", fields...)
	}
}

func (z *ZapReporter) Fatal(_ context.Context, appID string, err error) {
	z.log.Error("Sync aborted", zap.String("app_id", appID), zap.Error(err))
}
