// Package notify delivers workflow events to external sinks after commit.
package notify

import (
	"context"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/worker"

	"go.uber.org/zap"
)

// Sink is one destination for events. Send may block up to the context deadline.
type Sink interface {
	Name() string
	Send(ctx context.Context, event domain.Event) error
}

// Dispatcher fans every event out to all sinks through the worker pool.
// Delivery failures are logged and never reach the caller.
type Dispatcher struct {
	pool   *worker.WorkerPool
	sinks  []Sink
	logger *zap.Logger
}

func NewDispatcher(pool *worker.WorkerPool, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{pool: pool, sinks: sinks, logger: logger}
}

func (d *Dispatcher) Emit(event domain.Event) {
	for _, sink := range d.sinks {
		accepted := d.pool.Submit(func(ctx context.Context) error {
			if err := sink.Send(ctx, event); err != nil {
				d.logger.Warn("event delivery failed",
					zap.String("sink", sink.Name()),
					zap.String("event", event.Type),
					zap.String("document_id", event.DocumentID.String()),
					zap.Error(err),
				)
			}
			return nil
		})
		if !accepted {
			d.logger.Warn("event dropped",
				zap.String("sink", sink.Name()),
				zap.String("event", event.Type),
				zap.String("document_id", event.DocumentID.String()),
			)
		}
	}
}
