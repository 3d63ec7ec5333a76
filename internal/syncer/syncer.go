package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/appsflyer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/domain"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/logger"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/normalizer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/report"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/repository"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/window"
)

// Exporter retrieves the CSV export of one application id
type Exporter interface {
	Export(ctx context.Context, appID string, window domain.TimeWindow) ([]byte, error)
}

// Options configures a Syncer
type Options struct {
	AppIDs []string
	DryRun bool
}

// Summary is the outcome of a whole run
type Summary struct {
	Window  domain.TimeWindow
	Results []report.AppResult
	Skipped []string
}

// Inserted returns the rows written across all application ids.
func (s *Summary) Inserted() int {
	total := 0
	for _, r := range s.Results {
		total += r.Inserted
	}
	return total
}

// AllSkipped reports whether no application id could be fetched.
func (s *Summary) AllSkipped() bool {
	return len(s.Results) == 0 && len(s.Skipped) > 0
}

// Syncer runs export, normalization, dedup and insert for each application id in turn
type Syncer struct {
	exporter Exporter
	gate     *DedupGate
	writer   *BatchWriter
	planner  window.Planner
	reporter report.Reporter
	options  Options
	log      *zap.Logger
}

// New creates a new syncer
func New(exporter Exporter, repo repository.InstallRepository, planner window.Planner, reporter report.Reporter, options Options, log *zap.Logger) *Syncer {
	return &Syncer{
		exporter: exporter,
		gate:     NewDedupGate(repo, log),
		writer:   NewBatchWriter(repo, log),
		planner:  planner,
		reporter: reporter,
		options:  options,
		log:      log,
	}
}

// Run plans one window and syncs every configured application id sequentially.
// An unusable export skips its application id; a sink failure aborts the run and is returned.
func (s *Syncer) Run(ctx context.Context) (*Summary, error) {
	w := s.planner.Plan()
	summary := &Summary{Window: w}

	s.log.Info("Starting sync run",
		zap.String("from", w.FromString()),
		zap.String("to", w.ToString()),
		zap.Strings("app_ids", s.options.AppIDs),
		zap.Bool("dry_run", s.options.DryRun))

	for _, appID := range s.options.AppIDs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		result, err := s.SyncApp(ctx, appID, w)
		if err != nil {
			if isSkippable(err) && ctx.Err() == nil {
				s.reporter.FetchFailed(ctx, appID, err)
				summary.Skipped = append(summary.Skipped, appID)
				continue
			}
			s.reporter.Fatal(ctx, appID, err)
			return summary, fmt.Errorf("sync of %s failed: %w", appID, err)
		}

		s.reporter.AppSynced(ctx, result)
		summary.Results = append(summary.Results, result)
	}

	return summary, nil
}

// SyncApp runs the pipeline for one application id over w.
func (s *Syncer) SyncApp(ctx context.Context, appID string, w domain.TimeWindow) (report.AppResult, error) {
	start := time.Now()
	result := report.AppResult{
		AppID:  appID,
		From:   w.FromString(),
		To:     w.ToString(),
		DryRun: s.options.DryRun,
	}
	log := logger.ForApp(s.log, appID)

	log.Info("Processing application")

	raw, err := s.exporter.Export(ctx, appID, w)
	if err != nil {
		return result, err
	}

	set, warnings, err := normalizer.Normalize(raw)
	if err != nil {
		return result, err
	}
	for _, warning := range warnings {
		switch warning.Kind {
		case normalizer.WarningMissingKey:
			result.MissingKey++
		case normalizer.WarningDatetime:
			result.DatetimeWarnings++
		}
		s.reporter.Warning(ctx, appID, warning)
	}
	result.Fetched = set.Len() + result.MissingKey

	fresh, duplicates, err := s.gate.Filter(ctx, w, set)
	if err != nil {
		return result, err
	}
	result.Duplicates = duplicates
	result.Candidates = fresh.Len()

	log.Info("New rows ready",
		zap.Int("count", fresh.Len()),
		zap.Int("columns", len(fresh.Columns)))

	if s.options.DryRun {
		result.Duration = time.Since(start)
		return result, nil
	}

	inserted, err := s.writer.Write(ctx, fresh.Columns, fresh.Rows())
	if err != nil {
		return result, err
	}
	result.Inserted = inserted
	result.Duration = time.Since(start)

	return result, nil
}

func isSkippable(err error) bool {
	var fetchErr *appsflyer.FetchError
	return errors.As(err, &fetchErr) || errors.Is(err, normalizer.ErrMalformedExport)
}
