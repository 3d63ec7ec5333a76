package sqs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	envConfig "github.com/phamtuthu/appsflyer-to-clickhouse/internal/config"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/queue"
)

// Client represents an SQS client
type Client struct {
	sender queue.MessageSender
	config envConfig.SQS
	log    *zap.Logger
}

// NewClient creates a new SQS client
func NewClient(ctx context.Context, SQSConfig envConfig.SQS, log *zap.Logger) (*Client, error) {
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(SQSConfig.Region),
	}

	var clientOpts []func(*sqs.Options)

	// Local development against ElasticMQ
	if SQSConfig.Endpoint != "" {
		log.Info("Configuring SQS for local development",
			zap.String("endpoint", SQSConfig.Endpoint))
		configOpts = append(configOpts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))

		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(SQSConfig.Endpoint)
		})
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("SQS client created",
		zap.String("region", SQSConfig.Region),
		zap.String("queue_url", SQSConfig.QueueURL))

	return NewClientWithSender(sqs.NewFromConfig(cfg, clientOpts...), SQSConfig, log), nil
}

// NewClientWithSender creates a client on top of an existing sender
func NewClientWithSender(sender queue.MessageSender, SQSConfig envConfig.SQS, log *zap.Logger) *Client {
	return &Client{
		sender: sender,
		config: SQSConfig,
		log:    log,
	}
}

// PublishSyncEvent publishes a sync event to SQS
func (c *Client) PublishSyncEvent(ctx context.Context, event *queue.SyncEvent) error {
	bodyJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sync event: %w", err)
	}

	_, err = c.sender.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.config.QueueURL),
		MessageBody: aws.String(string(bodyJSON)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"Event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.Event),
			},
			"AppID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.AppID),
			},
		},
	})
	if err != nil {
		c.log.Error("Failed to send message to SQS",
			zap.String("event", event.Event),
			zap.String("app_id", event.AppID),
			zap.Error(err))
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	c.log.Debug("Sync event published to SQS",
		zap.String("event", event.Event),
		zap.String("app_id", event.AppID))

	return nil
}
