package sqs

import (
	"context"

	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/normalizer"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/queue"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/report"
)

var _ report.Reporter = (*Notifier)(nil)

// Notifier publishes one queue message per finished application id.
// Publish failures are logged and never abort the run.
type Notifier struct {
	publisher queue.SyncPublisher
	runID     string
	log       *zap.Logger
}

// NewNotifier creates a new notifier
func NewNotifier(publisher queue.SyncPublisher, runID string, log *zap.Logger) *Notifier {
	return &Notifier{publisher: publisher, runID: runID, log: log}
}

func (n *Notifier) FetchFailed(ctx context.Context, appID string, err error) {
	n.publish(ctx, &queue.SyncEvent{
		Event: queue.EventSyncSkipped,
		AppID: appID,
		Error: err.Error(),
	})
}

func (n *Notifier) Warning(context.Context, string, normalizer.Warning) {}

func (n *Notifier) AppSynced(ctx context.Context, result report.AppResult) {
	if result.DryRun {
		return
	}
	n.publish(ctx, &queue.SyncEvent{
		Event:      queue.EventSyncCompleted,
		AppID:      result.AppID,
		From:       result.From,
		To:         result.To,
		Fetched:    result.Fetched,
		Duplicates: result.Duplicates,
		Inserted:   result.Inserted,
	})
}

func (n *Notifier) Fatal(ctx context.Context, appID string, err error) {
	n.publish(ctx, &queue.SyncEvent{
		Event: queue.EventSyncFailed,
		AppID: appID,
		Error: err.Error(),
	})
}

func (n *Notifier) publish(ctx context.Context, event *queue.SyncEvent) {
	event.RunID = n.runID
	if err := n.publisher.PublishSyncEvent(ctx, event); err != nil {
		n.log.Warn("Sync notification not delivered",
			zap.String("event", event.Event),
			zap.String("app_id", event.AppID),
			zap.Error(err))
	}
}
