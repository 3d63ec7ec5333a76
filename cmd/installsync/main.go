package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/appsflyer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/config"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/logger"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/metrics"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/queue/sqs"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/report"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/repository/clickhouse"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/syncer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/window"
)

// errAllSkipped is returned when no configured application id could be fetched
var errAllSkipped = errors.New("every application id was skipped")

type options struct {
	envFile   string
	overrides config.Overrides
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "installsync",
		Short: "Sync AppsFlyer install exports into ClickHouse",
		Long: `Fetches the raw installs export of every configured AppsFlyer application id for a time window,
normalizes it to the install table schema and inserts only rows whose appsflyer_id is not already stored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().StringSliceVar(&opts.overrides.AppIDs, "app-id", nil, "application id to sync (repeatable, overrides APPSFLYER_APP_IDS)")
	cmd.Flags().IntVar(&opts.overrides.LookbackHours, "lookback-hours", 0, "rolling window size in hours (overrides SYNC_LOOKBACK_HOURS)")
	cmd.Flags().StringVar(&opts.overrides.Window, "window", "", "window strategy: rolling or day (overrides SYNC_WINDOW)")
	cmd.Flags().StringVar(&opts.overrides.Day, "day", "", "calendar day to sync with --window=day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.overrides.DryRun, "dry-run", false, "fetch and deduplicate without inserting")

	return cmd
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.envFile, opts.overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return err
	}

	baseLog, err := logger.New(cfg.Service.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return err
	}
	defer func() {
		_ = baseLog.Sync()
	}()

	runID := uuid.New().String()[:8]
	log := logger.ForRun(baseLog, runID)

	log.Info("Starting install sync",
		zap.String("environment", cfg.Service.Environment),
		zap.String("window", cfg.Sync.Window),
		zap.Bool("dry_run", cfg.Sync.DryRun))

	planner, err := window.FromConfig(cfg.Sync, time.Now)
	if err != nil {
		log.Error("Failed to plan window", zap.Error(err))
		return err
	}

	// Initialize ClickHouse client
	chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Error("Failed to create ClickHouse client", zap.Error(err))
		return err
	}
	repo := clickhouse.NewRepository(chClient, log)
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}()

	metricsReporter := metrics.NewReporter(cfg.Metrics, log)
	reporters := report.Multi{report.NewZapReporter(log), metricsReporter}

	if cfg.SQS.QueueURL != "" {
		sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
		if err != nil {
			log.Error("Failed to create SQS client", zap.Error(err))
			return err
		}
		reporters = append(reporters, sqs.NewNotifier(sqsClient, runID, log))
	}

	exporter := appsflyer.NewClient(cfg.AppsFlyer, cfg.Sync.Timezone, log)

	s := syncer.New(exporter, repo, planner, reporters, syncer.Options{
		AppIDs: cfg.AppsFlyer.AppIDs,
		DryRun: cfg.Sync.DryRun,
	}, log)

	summary, runErr := s.Run(ctx)

	// Metrics are pushed even for an aborted run
	if err := metricsReporter.Push(context.WithoutCancel(ctx)); err != nil {
		log.Warn("Metrics not pushed", zap.Error(err))
	}

	if summary != nil {
		log.Info("Install sync finished",
			zap.String("from", summary.Window.FromString()),
			zap.String("to", summary.Window.ToString()),
			zap.Int("synced", len(summary.Results)),
			zap.Strings("skipped", summary.Skipped),
			zap.Int("inserted", summary.Inserted()),
			zap.Error(runErr))
	}

	if runErr != nil {
		return runErr
	}
	if summary.AllSkipped() {
		log.Error("No application id could be synced")
		return errAllSkipped
	}

	return nil
}
