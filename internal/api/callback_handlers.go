package api

import (
	"log/slog"
	"net/http"

	"github.com/tundex/cinemarket/internal/gateway"
	"github.com/tundex/cinemarket/internal/purchase"
)

// CallbackHandlers holds dependencies for the browser redirect-back endpoint.
type CallbackHandlers struct {
	gateway    gateway.Client
	reconciler *purchase.Reconciler
	successURL string
	failureURL string
}

// NewCallbackHandlers creates a new CallbackHandlers instance.
func NewCallbackHandlers(gw gateway.Client, reconciler *purchase.Reconciler, successURL, failureURL string) *CallbackHandlers {
	return &CallbackHandlers{
		gateway:    gw,
		reconciler: reconciler,
		successURL: successURL,
		failureURL: failureURL,
	}
}

// HandleCallback lands the buyer's browser after the hosted checkout.
// GET|POST /flutterwave/callback?transaction_id=&tx_ref=&movieId=&status=
//
// Nothing in the query string is trusted, including status: the handler
// always re-verifies the transaction server-side before reconciling, and the
// browser only ever gets a redirect to the success or failure page.
func (h *CallbackHandlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	transactionID := q.Get("transaction_id")
	txRef := q.Get("tx_ref")
	movieID := q.Get("movieId")

	if transactionID == "" {
		// Cancelled or abandoned checkouts come back without a
		// transaction id.
		slog.InfoContext(ctx, "callback without transaction id", "tx_ref", txRef)
		http.Redirect(w, r, h.failureURL, http.StatusSeeOther)
		return
	}

	v, err := h.gateway.VerifyTransaction(ctx, transactionID)
	if err != nil {
		slog.WarnContext(ctx, "callback verification failed",
			"transaction_id", transactionID, "tx_ref", txRef, "error", err)
		http.Redirect(w, r, h.failureURL, http.StatusSeeOther)
		return
	}

	if !v.Successful() {
		slog.InfoContext(ctx, "callback for unsuccessful transaction",
			"transaction_id", transactionID, "tx_ref", v.TxRef, "status", v.Status)
		http.Redirect(w, r, h.failureURL, http.StatusSeeOther)
		return
	}

	if txRef != "" && v.TxRef != txRef {
		// The verified reference wins; a mismatched query parameter is
		// either tampering or a stale link.
		slog.WarnContext(ctx, "callback tx_ref mismatch",
			"query_tx_ref", txRef, "verified_tx_ref", v.TxRef)
		http.Redirect(w, r, h.failureURL, http.StatusSeeOther)
		return
	}

	sigMovieID := v.MovieID
	if sigMovieID == "" {
		sigMovieID = movieID
	}

	// Past this point the payment is verified, so the buyer always lands on
	// the success page. Ledger trouble is an internal matter: the webhook
	// redelivers and the sweeper re-verifies, never the browser.
	outcome, err := h.reconciler.MarkPaid(ctx, purchase.PaidSignal{
		TxRef:      v.TxRef,
		MovieID:    sigMovieID,
		Email:      v.CustomerEmail,
		AmountKobo: v.AmountKobo,
	})
	switch {
	case err != nil:
		slog.ErrorContext(ctx, "callback reconciliation failed",
			"tx_ref", v.TxRef, "error", err)
	case outcome == purchase.OutcomeConflict:
		slog.WarnContext(ctx, "callback hit rejected purchase", "tx_ref", v.TxRef)
	default:
		slog.InfoContext(ctx, "callback reconciled", "tx_ref", v.TxRef, "outcome", string(outcome))
	}
	http.Redirect(w, r, h.successURL, http.StatusSeeOther)
}
