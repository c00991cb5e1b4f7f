package capi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AsyncForwarder runs each submission on its own goroutine, detached from
// the caller's context, and swallows every failure after logging it.
type AsyncForwarder struct {
	next    Forwarder
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewAsyncForwarder wraps next with fire-and-forget semantics
func NewAsyncForwarder(next Forwarder, timeout time.Duration, log *zap.Logger) *AsyncForwarder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AsyncForwarder{
		next:    next,
		timeout: timeout,
		log:     log,
	}
}

// Forward schedules the submission and always returns nil
func (f *AsyncForwarder) Forward(_ context.Context, target Target, event Event) error {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				f.log.Error("Conversion forwarding panicked",
					zap.String("app_id", target.AppID),
					zap.String("event_name", event.Name),
					zap.String("reason", fmt.Sprint(r)))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()

		if err := f.next.Forward(ctx, target, event); err != nil {
			f.log.Warn("Conversion forwarding failed",
				zap.String("app_id", target.AppID),
				zap.String("event_name", event.Name),
				zap.String("event_id", event.ID),
				zap.String("reason", err.Error()))
			return
		}

		f.log.Info("Conversion forwarded",
			zap.String("app_id", target.AppID),
			zap.String("event_name", event.Name),
			zap.String("event_id", event.ID))
	}()

	return nil
}

// Wait blocks until in-flight submissions finish or ctx is done
func (f *AsyncForwarder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to drain conversion forwarder: %w", ctx.Err())
	}
}
