package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// MessageSender defines the interface for sending raw messages to a queue
type MessageSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SyncPublisher defines the interface for publishing sync lifecycle events
type SyncPublisher interface {
	PublishSyncEvent(ctx context.Context, event *SyncEvent) error
}

// Event types carried in SyncEvent.Event
const (
	EventSyncCompleted = "install_sync_completed"
	EventSyncSkipped   = "install_sync_skipped"
	EventSyncFailed    = "install_sync_failed"
)

// SyncEvent is the JSON body of a sync notification
type SyncEvent struct {
	Event      string `json:"event"`
	RunID      string `json:"run_id"`
	AppID      string `json:"app_id"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Fetched    int    `json:"fetched"`
	Duplicates int    `json:"duplicates"`
	Inserted   int    `json:"inserted"`
	Error      string `json:"error,omitempty"`
}
