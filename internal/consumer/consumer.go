package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/config"
	"github.com/BarkinBalci/capi-relay-service/internal/queue"
	"github.com/BarkinBalci/capi-relay-service/internal/repository"
)

const (
	stageBuffer        = 100
	nackRetryDelaySec  = 30
	receiveWaitSeconds = 20
)

// Consumer moves exported events from the queue into the archive through
// three stages: receive, parse, batch-write
type Consumer struct {
	receiver    *Receiver
	parser      *ParserStage
	batchWriter *BatchWriter
}

// NewConsumer wires the pipeline stages from configuration
func NewConsumer(cfg config.Consumer, queueConsumer queue.QueueConsumer, repo repository.ArchiveRepository, log *zap.Logger) *Consumer {
	receiver := NewReceiver(queueConsumer, ReceiverConfig{
		MaxMessages:     10,
		WaitTimeSeconds: receiveWaitSeconds,
		MinBackoff:      time.Second,
		MaxBackoff:      30 * time.Second,
	}, log)

	parser := NewParserStage(queueConsumer, NewTrackedEventParser(), nackRetryDelaySec, log)

	batchWriter := NewBatchWriter(repo, BatchWriterConfig{
		MaxBatchSize: cfg.BatchSizeMax,
		FlushTimeout: time.Duration(cfg.BatchTimeoutSec) * time.Second,
	}, log)

	return &Consumer{
		receiver:    receiver,
		parser:      parser,
		batchWriter: batchWriter,
	}
}

// Start runs the pipeline until ctx is done and every stage has exited
func (c *Consumer) Start(ctx context.Context) error {
	messages := make(chan types.Message, stageBuffer)
	envelopes := make(chan *Envelope, stageBuffer)

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { c.receiver.Start(ctx, messages) })
	run(func() { c.parser.Start(ctx, messages, envelopes) })
	run(func() { c.batchWriter.Start(ctx, envelopes) })

	wg.Wait()
	return nil
}
