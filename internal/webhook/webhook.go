// Package webhook routes verified provider events onto the task queue.
// The receiver stays fast: parse the envelope, recognize the type,
// enqueue, acknowledge.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/queue"
	"github.com/ferdiga/subgate/internal/telemetry"
)

// Router dispatches webhook event bodies to the broker, one task per
// recognized event.
type Router struct {
	broker  queue.Broker
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

func NewRouter(broker queue.Broker, logger *slog.Logger, metrics *telemetry.Metrics) *Router {
	return &Router{
		broker:  broker,
		logger:  logger,
		metrics: metrics,
	}
}

// envelope is the outer provider event shape. Only the type tag and the
// inner object are consulted; tasks decode the object themselves.
type envelope struct {
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Dispatch parses an already signature-verified event body and enqueues a
// task for it. Malformed envelopes fail with EINVALID before any queueing.
// Unrecognized event types are acknowledged without a task so the
// provider's event catalog can grow without breaking the receiver.
func (r *Router) Dispatch(ctx context.Context, body []byte) error {
	var ev envelope
	if err := json.Unmarshal(body, &ev); err != nil {
		r.metrics.WebhookRejected.WithLabelValues("malformed").Inc()
		return domain.Invalid("webhook.Dispatch", "invalid event payload")
	}
	if ev.Type == "" || len(ev.Data.Object) == 0 || bytes.Equal(ev.Data.Object, []byte("null")) {
		r.metrics.WebhookRejected.WithLabelValues("malformed").Inc()
		return domain.Invalid("webhook.Dispatch", "invalid event payload")
	}

	kind, ok := domain.ParseEventKind(ev.Type)
	// the enrollment task is internal and never accepted off the wire
	if !ok || kind == domain.EventEnrollFreeTier {
		r.metrics.WebhookIgnored.WithLabelValues(ev.Type).Inc()
		r.logger.Debug("ignoring unhandled event type", "type", ev.Type)
		return nil
	}

	if err := r.broker.Enqueue(ctx, string(kind), ev.Data.Object); err != nil {
		return domain.Internal(err, "webhook.Dispatch", "enqueueing webhook task")
	}

	r.metrics.WebhookReceived.WithLabelValues(string(kind)).Inc()
	r.logger.Info("webhook event enqueued", "type", ev.Type)
	return nil
}
