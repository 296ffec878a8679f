// Package worker consumes queued webhook tasks and executes them under
// the retry policy.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/queue"
	"github.com/ferdiga/subgate/internal/tasks"
	"github.com/ferdiga/subgate/internal/telemetry"
)

// Worker drains the broker and runs one task at a time. Retries happen
// in-process; the broker never redelivers.
type Worker struct {
	broker   queue.Broker
	handlers *tasks.Handlers
	policy   tasks.RetryPolicy
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

func New(broker queue.Broker, handlers *tasks.Handlers, policy tasks.RetryPolicy, logger *slog.Logger, metrics *telemetry.Metrics) *Worker {
	return &Worker{
		broker:   broker,
		handlers: handlers,
		policy:   policy,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start blocks consuming tasks until ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("task worker started")
	return w.broker.Consume(ctx, w.Process)
}

// Process executes one task under the retry policy. The returned error is
// terminal: either the task name is unknown or every attempt failed.
func (w *Worker) Process(ctx context.Context, task string, payload []byte) error {
	kind, ok := domain.ParseEventKind(task)
	if !ok {
		w.logger.Error("unknown task on queue", "task", task)
		return domain.Invalid("worker.Process", "unknown task")
	}
	handler, ok := w.handlers.For(kind)
	if !ok {
		w.logger.Error("no handler for task", "task", task)
		return domain.Invalid("worker.Process", "no handler for task")
	}

	w.metrics.TaskStarted.WithLabelValues(task).Inc()
	started := time.Now()

	err := w.policy.Run(ctx, func() error {
		return handler(ctx, payload)
	}, func(attemptErr error, delay time.Duration) {
		w.metrics.TaskRetried.WithLabelValues(task).Inc()
		w.logger.Warn("task attempt failed, retrying",
			"task", task,
			"delay", delay,
			"error", attemptErr,
		)
	})

	w.metrics.TaskDuration.WithLabelValues(task).Observe(time.Since(started).Seconds())

	if err != nil {
		w.metrics.TaskExhausted.WithLabelValues(task).Inc()
		w.logger.Error("task failed permanently", "task", task, "error", err)
		return err
	}

	w.metrics.TaskSucceeded.WithLabelValues(task).Inc()
	return nil
}
