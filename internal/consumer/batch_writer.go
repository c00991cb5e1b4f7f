package consumer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/capi-relay-service/internal/domain"
	"github.com/BarkinBalci/capi-relay-service/internal/repository"
)

// BatchWriterConfig configures the batch writer
type BatchWriterConfig struct {
	MaxBatchSize int
	FlushTimeout time.Duration
}

// BatchWriter accumulates envelopes and writes them to the archive in batches.
// A batch is acked only when every event in it was inserted.
type BatchWriter struct {
	repository repository.ArchiveRepository
	config     BatchWriterConfig
	log        *zap.Logger
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(repo repository.ArchiveRepository, config BatchWriterConfig, log *zap.Logger) *BatchWriter {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 1
	}
	if config.FlushTimeout <= 0 {
		config.FlushTimeout = time.Second
	}
	return &BatchWriter{
		repository: repo,
		config:     config,
		log:        log,
	}
}

// Start consumes envelopes until in closes or ctx is done, flushing what is pending on exit
func (w *BatchWriter) Start(ctx context.Context, in <-chan *Envelope) {
	ticker := time.NewTicker(w.config.FlushTimeout)
	defer ticker.Stop()

	pending := make([]*Envelope, 0, w.config.MaxBatchSize)
	flush := func(ctx context.Context, reason string) {
		if len(pending) == 0 {
			return
		}
		w.log.Debug("Flushing batch",
			zap.String("reason", reason),
			zap.Int("envelope_count", len(pending)))
		w.write(ctx, pending)
		pending = make([]*Envelope, 0, w.config.MaxBatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			// settle the final batch on a fresh context so acks are not cancelled
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			flush(shutdownCtx, "shutdown")
			cancel()
			w.log.Info("Batch writer shutting down")
			return

		case envelope, ok := <-in:
			if !ok {
				flush(ctx, "input_closed")
				w.log.Info("Batch writer input channel closed")
				return
			}
			pending = append(pending, envelope)
			if len(pending) >= w.config.MaxBatchSize {
				flush(ctx, "size")
				ticker.Reset(w.config.FlushTimeout)
			}

		case <-ticker.C:
			flush(ctx, "timeout")
		}
	}
}

func (w *BatchWriter) write(ctx context.Context, envelopes []*Envelope) {
	events := make([]*domain.ArchivedEvent, len(envelopes))
	for i, env := range envelopes {
		events[i] = env.Event
	}

	inserted, err := w.repository.InsertBatch(ctx, events)
	switch {
	case err != nil:
		w.log.Error("Failed to insert batch",
			zap.Error(err),
			zap.Int("event_count", len(events)))
		w.settle(ctx, envelopes, (*Envelope).Nack)
	case inserted != len(events):
		w.log.Warn("Partial insert, releasing batch for retry",
			zap.Int("inserted", inserted),
			zap.Int("expected", len(events)))
		w.settle(ctx, envelopes, (*Envelope).Nack)
	default:
		w.log.Info("Archived events", zap.Int("count", inserted))
		w.settle(ctx, envelopes, (*Envelope).Ack)
	}
}

func (w *BatchWriter) settle(ctx context.Context, envelopes []*Envelope, fn func(*Envelope, context.Context) error) {
	for _, env := range envelopes {
		if err := fn(env, ctx); err != nil {
			w.log.Error("Failed to settle message",
				zap.String("message_id", env.MessageID),
				zap.Error(err))
		}
	}
}
