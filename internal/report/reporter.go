package report

import (
	"context"
	"time"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/normalizer"
)

// AppResult is the outcome of syncing one application id.
type AppResult struct {
	AppID            string
	From             string
	To               string
	Fetched          int
	MissingKey       int
	DatetimeWarnings int
	Duplicates       int
	Candidates       int
	Inserted         int
	DryRun           bool
	Duration         time.Duration
}

// Reporter receives the events of a sync run. Implementations must not fail the run.
type Reporter interface {
	// FetchFailed is called when an application id is skipped because its export was unusable
	FetchFailed(ctx context.Context, appID string, err error)

	// Warning is called for every recovered row problem
	Warning(ctx context.Context, appID string, w normalizer.Warning)

	// AppSynced is called once an application id completed
	AppSynced(ctx context.Context, result AppResult)

	// Fatal is called before an unrecoverable sink error aborts the run
	Fatal(ctx context.Context, appID string, err error)
}

// Multi fans every event out to all reporters in order.
type Multi []Reporter

func (m Multi) FetchFailed(ctx context.Context, appID string, err error) {
	for _, r := range m {
		r.FetchFailed(ctx, appID, err)
	}
}

func (m Multi) Warning(ctx context.Context, appID string, w normalizer.Warning) {
	for _, r := range m {
		r.Warning(ctx, appID, w)
	}
}

func (m Multi) AppSynced(ctx context.Context, result AppResult) {
	for _, r := range m {
		r.AppSynced(ctx, result)
	}
}

func (m Multi) Fatal(ctx context.Context, appID string, err error) {
	for _, r := range m {
		r.Fatal(ctx, appID, err)
	}
}
