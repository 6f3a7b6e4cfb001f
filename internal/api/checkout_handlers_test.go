package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/tundex/cinemarket/internal/gateway"
	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/profile"
	"github.com/tundex/cinemarket/internal/purchase"
)

const checkoutBaseURL = "https://api.cinemarket.example"

type checkoutFixture struct {
	handlers  *CheckoutHandlers
	movies    *movie.InMemoryRepository
	profiles  *profile.InMemoryRepository
	purchases *purchase.InMemoryRepository
	gateway   *mockGateway
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		movies:    movie.NewInMemoryRepository(),
		profiles:  profile.NewInMemoryRepository(),
		purchases: purchase.NewInMemoryRepository(),
		gateway: &mockGateway{
			initFn: func(ctx context.Context, req gateway.InitRequest) (string, error) {
				return "https://checkout.flutterwave.com/pay/abc", nil
			},
		},
	}
	f.handlers = NewCheckoutHandlers(f.movies, f.profiles, f.purchases, f.gateway, nil, checkoutBaseURL)

	if err := f.movies.Insert(context.Background(), &movie.Movie{
		ID:        testMovieID,
		Title:     "The Long Heist",
		PriceKobo: 150000,
	}); err != nil {
		t.Fatalf("insert movie: %v", err)
	}
	return f
}

func (f *checkoutFixture) get(movieID string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/flutterwave/checkout?movieId="+movieID, nil)
	if authed {
		req = authedRequest(req, testUserID, "buyer@example.com")
	}
	rec := httptest.NewRecorder()
	f.handlers.HandleCheckout(rec, req)
	return rec
}

func TestCheckoutRequiresAuth(t *testing.T) {
	f := newCheckoutFixture(t)

	rec := f.get(testMovieID, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCheckoutInvalidMovieID(t *testing.T) {
	f := newCheckoutFixture(t)

	rec := f.get("not-a-uuid", true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != ErrCodeValidation {
		t.Errorf("code = %q, want %q", detail.Code, ErrCodeValidation)
	}
}

func TestCheckoutUnknownMovie(t *testing.T) {
	f := newCheckoutFixture(t)

	rec := f.get("cccccccc-cccc-4ccc-8ccc-cccccccccccc", true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCheckoutAlreadyPurchased(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	userID, movieID := testUserID, testMovieID
	if err := f.purchases.Insert(ctx, &purchase.Purchase{
		UserID:  &userID,
		MovieID: &movieID,
		Status:  purchase.StatusPaid,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec := f.get(testMovieID, true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCheckoutSuccess(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	var captured gateway.InitRequest
	f.gateway.initFn = func(ctx context.Context, req gateway.InitRequest) (string, error) {
		captured = req
		return "https://checkout.flutterwave.com/pay/abc", nil
	}
	f.profiles.Put(&profile.Profile{ID: testUserID, Email: "profile@example.com", FullName: "Ada Buyer"})

	rec := f.get(testMovieID, true)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "https://checkout.flutterwave.com/pay/abc" {
		t.Errorf("Location = %q", got)
	}

	if captured.AmountKobo != 150000 || captured.Currency != "NGN" {
		t.Errorf("init request = %+v", captured)
	}
	// Profile email wins over the token email.
	if captured.CustomerEmail != "profile@example.com" || captured.CustomerName != "Ada Buyer" {
		t.Errorf("customer = %q / %q", captured.CustomerEmail, captured.CustomerName)
	}
	if !strings.HasPrefix(captured.RedirectURL, checkoutBaseURL+"/flutterwave/callback?") {
		t.Errorf("redirect URL = %q", captured.RedirectURL)
	}
	u, err := url.Parse(captured.RedirectURL)
	if err != nil {
		t.Fatalf("parse redirect URL: %v", err)
	}
	if u.Query().Get("movieId") != testMovieID || u.Query().Get("tx_ref") != captured.TxRef {
		t.Errorf("redirect query = %q", u.RawQuery)
	}

	// A pending ledger record exists, keyed by the generated reference.
	pendingRecord, err := f.purchases.GetByTxRef(ctx, captured.TxRef)
	if err != nil {
		t.Fatalf("GetByTxRef(%q): %v", captured.TxRef, err)
	}
	if pendingRecord.Status != purchase.StatusPending {
		t.Errorf("status = %q, want pending", pendingRecord.Status)
	}
	if pendingRecord.UserID == nil || *pendingRecord.UserID != testUserID {
		t.Errorf("owner = %v, want %s", pendingRecord.UserID, testUserID)
	}
	if pendingRecord.AmountKobo != 150000 {
		t.Errorf("amount = %d, want 150000", pendingRecord.AmountKobo)
	}
}

func TestCheckoutGatewayFailureLeavesNoRecord(t *testing.T) {
	f := newCheckoutFixture(t)

	f.gateway.initFn = func(ctx context.Context, req gateway.InitRequest) (string, error) {
		return "", gateway.ErrUnavailable
	}

	rec := f.get(testMovieID, true)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != ErrCodeGatewayError {
		t.Errorf("code = %q, want %q", detail.Code, ErrCodeGatewayError)
	}

	all, _ := f.purchases.List(context.Background(), "")
	if len(all) != 0 {
		t.Errorf("ledger records = %d, want none after init failure", len(all))
	}
}

func TestCheckoutInsertFailureStillRedirects(t *testing.T) {
	f := newCheckoutFixture(t)

	// The hosted checkout link is already live once the insert runs, so a
	// failed insert must not fail the redirect; the reconciliation
	// fallback recovers the record.
	dup := &duplicateOnInsert{InMemoryRepository: f.purchases}
	f.handlers = NewCheckoutHandlers(f.movies, f.profiles, dup, f.gateway, nil, checkoutBaseURL)

	rec := f.get(testMovieID, true)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 despite insert failure", rec.Code)
	}
}

// duplicateOnInsert fails every insert with the uniqueness error.
type duplicateOnInsert struct {
	*purchase.InMemoryRepository
}

func (d *duplicateOnInsert) Insert(ctx context.Context, p *purchase.Purchase) error {
	return purchase.ErrDuplicateTxRef
}
