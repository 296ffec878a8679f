package handler

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ferdiga/subgate/internal/billing"
	"github.com/ferdiga/subgate/internal/domain"
	"github.com/ferdiga/subgate/internal/telemetry"
	"github.com/ferdiga/subgate/internal/webhook"
)

// WebhookHandler receives provider events. It verifies the signature,
// hands the body to the dispatch router and acknowledges; execution
// outcome is the worker's problem, so the provider never re-sends events
// the queue already holds.
type WebhookHandler struct {
	provider   billing.Provider
	dispatcher *webhook.Router
	logger     *slog.Logger
	metrics    *telemetry.Metrics
}

func NewWebhookHandler(provider billing.Provider, dispatcher *webhook.Router, logger *slog.Logger, metrics *telemetry.Metrics) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		provider:   provider,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// Receive handles POST /webhooks/.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.metrics.WebhookRejected.WithLabelValues("body_read").Inc()
		ErrorResponse(w, r, domain.Invalid("handler.Webhook", "error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.metrics.WebhookRejected.WithLabelValues("missing_signature").Inc()
		ErrorResponse(w, r, domain.Invalid("handler.Webhook", "Stripe-Signature header missing"))
		return
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature); err != nil {
		h.metrics.WebhookRejected.WithLabelValues("bad_signature").Inc()
		ErrorResponse(w, r, domain.Invalid("handler.Webhook", "webhook signature verification failed"))
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), payload); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	h.metrics.WebhookLatency.Observe(time.Since(started).Seconds())
	RespondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
