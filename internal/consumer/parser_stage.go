package consumer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/queue"
)

// ParserStage decodes queue messages into envelopes. Undecodable messages
// are dropped from the queue since redelivery cannot fix them.
type ParserStage struct {
	consumer   queue.QueueConsumer
	parser     MessageParser
	retryDelay int32
	log        *zap.Logger
}

// NewParserStage creates a new parser stage. retryDelaySec is the visibility
// timeout applied when a message is nacked.
func NewParserStage(consumer queue.QueueConsumer, parser MessageParser, retryDelaySec int32, log *zap.Logger) *ParserStage {
	return &ParserStage{
		consumer:   consumer,
		parser:     parser,
		retryDelay: retryDelaySec,
		log:        log,
	}
}

// Start parses messages from in until it closes or ctx is done, then closes out
func (p *ParserStage) Start(ctx context.Context, in <-chan types.Message, out chan<- *Envelope) {
	defer close(out)

	for {
		var (
			msg types.Message
			ok  bool
		)
		select {
		case <-ctx.Done():
			p.log.Info("Parser stage shutting down")
			return
		case msg, ok = <-in:
		}
		if !ok {
			p.log.Info("Parser stage input channel closed")
			return
		}

		envelope, err := p.toEnvelope(msg)
		if err != nil {
			p.log.Warn("Dropping malformed message",
				zap.String("message_id", aws.ToString(msg.MessageId)),
				zap.Error(err))
			if err := p.delete(ctx, msg); err != nil {
				p.log.Error("Failed to delete malformed message",
					zap.String("message_id", aws.ToString(msg.MessageId)),
					zap.Error(err))
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case out <- envelope:
		}
	}
}

func (p *ParserStage) toEnvelope(msg types.Message) (*Envelope, error) {
	event, err := p.parser.Parse([]byte(aws.ToString(msg.Body)))
	if err != nil {
		return nil, err
	}

	ack := func(ctx context.Context) error {
		return p.delete(ctx, msg)
	}
	nack := func(ctx context.Context) error {
		_, err := p.consumer.ChangeMessageVisibility(ctx, &awssqs.ChangeMessageVisibilityInput{
			QueueUrl:          aws.String(p.consumer.QueueURL()),
			ReceiptHandle:     msg.ReceiptHandle,
			VisibilityTimeout: p.retryDelay,
		})
		if err != nil {
			return fmt.Errorf("failed to release message: %w", err)
		}
		return nil
	}

	return NewEnvelope(aws.ToString(msg.MessageId), event, ack, nack), nil
}

func (p *ParserStage) delete(ctx context.Context, msg types.Message) error {
	_, err := p.consumer.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.consumer.QueueURL()),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
