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

	envConfig "github.com/BarkinBalci/capi-relay-service/internal/config"
	"github.com/BarkinBalci/capi-relay-service/internal/domain"
)

// Client represents an SQS client
type Client struct {
	client sqsAPI
	config envConfig.SQS
	log    *zap.Logger
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// NewClient builds an SQS client for the export queue. A non-empty endpoint
// points the client at a local ElasticMQ with static credentials.
func NewClient(ctx context.Context, queueCfg envConfig.SQS, log *zap.Logger) (*Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOptions(queueCfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	api := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if queueCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(queueCfg.Endpoint)
		}
	})

	log.Info("Export queue client ready",
		zap.String("region", queueCfg.Region),
		zap.String("endpoint", queueCfg.Endpoint),
		zap.String("queue_url", queueCfg.QueueURL))

	return newClient(api, queueCfg, log), nil
}

func loadOptions(queueCfg envConfig.SQS) []func(*config.LoadOptions) error {
	opts := []func(*config.LoadOptions) error{config.WithRegion(queueCfg.Region)}
	if queueCfg.Endpoint != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", "")))
	}
	return opts
}

func newClient(api sqsAPI, cfg envConfig.SQS, log *zap.Logger) *Client {
	return &Client{
		client: api,
		config: cfg,
		log:    log,
	}
}

// ReceiveMessages receives messages from SQS
func (c *Client) ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	return c.client.ReceiveMessage(ctx, input)
}

// DeleteMessage deletes a message from SQS
func (c *Client) DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	return c.client.DeleteMessage(ctx, input)
}

// ChangeMessageVisibility makes a received message visible again after the given timeout
func (c *Client) ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error) {
	return c.client.ChangeMessageVisibility(ctx, input)
}

// QueueURL returns the configured queue URL
func (c *Client) QueueURL() string {
	return c.config.QueueURL
}

// ExportEvent publishes a persisted event for archiving
func (c *Client) ExportEvent(ctx context.Context, event *domain.TrackedEvent) error {
	bodyJSON, err := json.Marshal(event)
	if err != nil {
		c.log.Error("Failed to marshal event",
			zap.String("event_id", event.ID),
			zap.String("event_name", event.EventName),
			zap.Error(err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.config.QueueURL),
		MessageBody: aws.String(string(bodyJSON)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"EventName": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.EventName),
			},
			"AppID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.AppID),
			},
		},
	})
	if err != nil {
		c.log.Error("Failed to send message to SQS",
			zap.String("event_id", event.ID),
			zap.String("event_name", event.EventName),
			zap.Error(err))
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	c.log.Debug("Event exported to SQS",
		zap.String("event_id", event.ID),
		zap.String("app_id", event.AppID))

	return nil
}
