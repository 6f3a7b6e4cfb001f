package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tundex/cinemarket/internal/gateway"
	"github.com/tundex/cinemarket/internal/middleware"
	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/profile"
	"github.com/tundex/cinemarket/internal/purchase"
	"github.com/tundex/cinemarket/internal/validate"
)

// CheckoutHandlers holds dependencies for the checkout initiation endpoint.
type CheckoutHandlers struct {
	movies    movie.Repository
	profiles  profile.Repository
	purchases purchase.Repository
	gateway   gateway.Client
	metrics   *purchase.Metrics
	baseURL   string
}

// NewCheckoutHandlers creates a new CheckoutHandlers instance.
// metrics may be nil.
func NewCheckoutHandlers(
	movies movie.Repository,
	profiles profile.Repository,
	purchases purchase.Repository,
	gw gateway.Client,
	metrics *purchase.Metrics,
	baseURL string,
) *CheckoutHandlers {
	return &CheckoutHandlers{
		movies:    movies,
		profiles:  profiles,
		purchases: purchases,
		gateway:   gw,
		metrics:   metrics,
		baseURL:   baseURL,
	}
}

// HandleCheckout initializes a hosted checkout for a movie and redirects the
// browser to the gateway's payment page.
// GET /flutterwave/checkout?movieId={uuid}
//
// The pending ledger record is written only after the gateway accepts the
// initialization, so a gateway failure leaves no trace. A lost insert after a
// successful initialization is recovered later by the reconciliation
// fallback path.
func (h *CheckoutHandlers) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user := middleware.GetUser(ctx)
	if user.ID == "" {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "authentication required")
		return
	}

	movieID, err := validate.UUID(r.URL.Query().Get("movieId"))
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "movieId must be a valid UUID")
		return
	}

	m, err := h.movies.GetByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, movie.ErrNotFound) {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "movie not found")
			return
		}
		slog.ErrorContext(ctx, "checkout: movie lookup failed", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load movie")
		return
	}

	paid, err := h.purchases.HasPaid(ctx, user.ID, movieID)
	if err != nil {
		slog.ErrorContext(ctx, "checkout: ownership check failed", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to check existing purchases")
		return
	}
	if paid {
		WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "movie already purchased")
		return
	}

	email := user.Email
	name := ""
	if prof, err := h.profiles.GetByID(ctx, user.ID); err == nil {
		if prof.Email != "" {
			email = prof.Email
		}
		name = prof.FullName
	}

	txRef := validate.BuildTxRef(movieID, user.ID, time.Now())
	link, err := h.gateway.InitializePayment(ctx, gateway.InitRequest{
		TxRef:         txRef,
		AmountKobo:    m.PriceKobo,
		Currency:      "NGN",
		RedirectURL:   h.callbackURL(movieID, txRef),
		CustomerEmail: email,
		CustomerName:  name,
		Title:         "Movie purchase",
		Description:   m.Title,
		MovieID:       movieID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "checkout: payment initialization failed",
			"tx_ref", txRef, "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeGatewayError, "payment gateway is unavailable, try again later")
		return
	}

	p := &purchase.Purchase{
		UserID:     &user.ID,
		MovieID:    &movieID,
		AmountKobo: m.PriceKobo,
		Provider:   purchase.ProviderFlutterwave,
		TxRef:      &txRef,
		Status:     purchase.StatusPending,
	}
	if err := h.purchases.Insert(ctx, p); err != nil {
		// The hosted checkout link is already live. Do not fail the
		// redirect; the webhook-side fallback insert recovers the record.
		slog.WarnContext(ctx, "checkout: pending insert failed, relying on fallback",
			"tx_ref", txRef, "movie_id", movieID, "error", err)
	}

	if h.metrics != nil {
		h.metrics.IncCheckoutInitiated()
	}
	slog.InfoContext(ctx, "checkout initiated",
		"tx_ref", txRef, "movie_id", movieID, "amount_kobo", m.PriceKobo)

	http.Redirect(w, r, link, http.StatusSeeOther)
}

// callbackURL builds the redirect-back URL embedded in the gateway
// initialization.
func (h *CheckoutHandlers) callbackURL(movieID, txRef string) string {
	q := url.Values{}
	q.Set("movieId", movieID)
	q.Set("tx_ref", txRef)
	return fmt.Sprintf("%s/flutterwave/callback?%s", h.baseURL, q.Encode())
}
