package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/tundex/cinemarket/internal/purchase"
)

// Webhook delivery results recorded in the audit log and metrics.
const (
	webhookResultProcessed = "processed"
	webhookResultIgnored   = "ignored"
	webhookResultFailed    = "failed"
)

// WebhookHandlers holds dependencies for the gateway webhook endpoint.
type WebhookHandlers struct {
	webhookSecret string
	reconciler    *purchase.Reconciler
	deliveries    purchase.WebhookLog
	metrics       *purchase.Metrics
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
// deliveries and metrics may be nil.
func NewWebhookHandlers(
	webhookSecret string,
	reconciler *purchase.Reconciler,
	deliveries purchase.WebhookLog,
	metrics *purchase.Metrics,
) *WebhookHandlers {
	return &WebhookHandlers{
		webhookSecret: webhookSecret,
		reconciler:    reconciler,
		deliveries:    deliveries,
		metrics:       metrics,
	}
}

// webhookPayload mirrors the fields of a Flutterwave webhook event this
// service consumes.
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID       int64   `json:"id"`
		TxRef    string  `json:"tx_ref"`
		Status   string  `json:"status"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
		Meta struct {
			MovieID string `json:"movieId"`
		} `json:"meta"`
	} `json:"data"`
}

// HandleFlutterwaveWebhook processes gateway webhook events.
// POST /flutterwave/webhook
//
// The verif-hash header must equal the configured webhook secret. Events
// other than a successful charge.completed are acknowledged and ignored;
// duplicate deliveries for an already-paid reference are acknowledged as
// no-ops by the reconciler.
func (h *WebhookHandlers) HandleFlutterwaveWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	signature := r.Header.Get("verif-hash")
	if subtle.ConstantTimeCompare([]byte(signature), []byte(h.webhookSecret)) != 1 {
		slog.WarnContext(ctx, "webhook signature verification failed")
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeInvalidSignature, "invalid signature")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.WarnContext(ctx, "webhook payload parse failed", "error", err)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "malformed payload")
		return
	}

	// Log minimal event info, never the full payload
	slog.InfoContext(ctx, "webhook event received",
		"event_type", payload.Event, "tx_ref", payload.Data.TxRef, "status", payload.Data.Status)

	if payload.Event != "charge.completed" || payload.Data.Status != "successful" || payload.Data.TxRef == "" {
		h.record(ctx, payload, webhookResultIgnored)
		w.WriteHeader(http.StatusOK)
		return
	}

	outcome, err := h.reconciler.MarkPaid(ctx, purchase.PaidSignal{
		TxRef:      payload.Data.TxRef,
		MovieID:    payload.Data.Meta.MovieID,
		Email:      payload.Data.Customer.Email,
		AmountKobo: int64(math.Round(payload.Data.Amount * 100)),
	})
	if err != nil {
		slog.ErrorContext(ctx, "webhook reconciliation failed",
			"tx_ref", payload.Data.TxRef, "error", err)
		h.record(ctx, payload, webhookResultFailed)
		// Non-2xx so the gateway redelivers
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}

	h.record(ctx, payload, webhookResultProcessed)
	slog.InfoContext(ctx, "webhook event processed",
		"tx_ref", payload.Data.TxRef, "outcome", string(outcome))
	w.WriteHeader(http.StatusOK)
}

// record appends the delivery to the audit log and bumps the counter.
// Audit failures are logged and never affect the response.
func (h *WebhookHandlers) record(ctx context.Context, payload webhookPayload, result string) {
	if h.metrics != nil {
		h.metrics.IncWebhookEvent(result)
	}
	if h.deliveries == nil {
		return
	}
	err := h.deliveries.Record(ctx, &purchase.WebhookDelivery{
		TxRef:     payload.Data.TxRef,
		EventType: payload.Event,
		Result:    result,
	})
	if err != nil {
		slog.WarnContext(ctx, "webhook delivery audit record failed",
			"tx_ref", payload.Data.TxRef, "error", err)
	}
}
