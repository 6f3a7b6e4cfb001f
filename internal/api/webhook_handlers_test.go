package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/profile"
	"github.com/tundex/cinemarket/internal/purchase"
)

const webhookSecret = "whsec-test"

func newWebhookFixture() (*WebhookHandlers, *purchase.InMemoryRepository, *purchase.InMemoryWebhookLog) {
	purchases := purchase.NewInMemoryRepository()
	deliveries := purchase.NewInMemoryWebhookLog()
	reconciler := newTestReconciler(purchases, profile.NewInMemoryRepository(), movie.NewInMemoryRepository())
	h := NewWebhookHandlers(webhookSecret, reconciler, deliveries, nil)
	return h, purchases, deliveries
}

func postWebhook(h *WebhookHandlers, signature, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/flutterwave/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set("verif-hash", signature)
	}
	rec := httptest.NewRecorder()
	h.HandleFlutterwaveWebhook(rec, req)
	return rec
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	h, _, _ := newWebhookFixture()

	rec := postWebhook(h, "", `{"event":"charge.completed"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != ErrCodeInvalidSignature {
		t.Errorf("code = %q, want %q", detail.Code, ErrCodeInvalidSignature)
	}
}

func TestWebhookRejectsWrongSignature(t *testing.T) {
	h, _, _ := newWebhookFixture()

	rec := postWebhook(h, "wrong-secret", `{"event":"charge.completed"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	h, _, _ := newWebhookFixture()

	req := httptest.NewRequest(http.MethodGet, "/flutterwave/webhook", nil)
	rec := httptest.NewRecorder()
	h.HandleFlutterwaveWebhook(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	h, _, _ := newWebhookFixture()

	rec := postWebhook(h, webhookSecret, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookIgnoresIrrelevantEvents(t *testing.T) {
	h, purchases, deliveries := newWebhookFixture()

	tests := []struct {
		name string
		body string
	}{
		{"other event", `{"event":"transfer.completed","data":{"tx_ref":"ref-1","status":"successful"}}`},
		{"failed charge", `{"event":"charge.completed","data":{"tx_ref":"ref-1","status":"failed"}}`},
		{"missing tx_ref", `{"event":"charge.completed","data":{"status":"successful"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(h, webhookSecret, tt.body)
			// Always acknowledged so the gateway stops redelivering.
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
		})
	}

	if all, _ := purchases.List(context.Background(), ""); len(all) != 0 {
		t.Errorf("ledger records = %d, want 0", len(all))
	}
	logged, _ := deliveries.ListByTxRef(context.Background(), "ref-1")
	for _, d := range logged {
		if d.Result != "ignored" {
			t.Errorf("delivery result = %q, want ignored", d.Result)
		}
	}
}

func TestWebhookProcessesSuccessfulCharge(t *testing.T) {
	h, purchases, deliveries := newWebhookFixture()
	ctx := context.Background()

	txRef := "movie-ref-1"
	pending := &purchase.Purchase{
		UserID:   strPtr(testUserID),
		Provider: purchase.ProviderFlutterwave,
		TxRef:    &txRef,
		Status:   purchase.StatusPending,
	}
	if err := purchases.Insert(ctx, pending); err != nil {
		t.Fatalf("insert: %v", err)
	}

	body := `{"event":"charge.completed","data":{"id":12345,"tx_ref":"movie-ref-1","status":"successful","amount":1500.50,"currency":"NGN","customer":{"email":"buyer@example.com"},"meta":{"movieId":"m1"}}}`
	rec := postWebhook(h, webhookSecret, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	got, err := purchases.GetByTxRef(ctx, txRef)
	if err != nil {
		t.Fatalf("GetByTxRef: %v", err)
	}
	if got.Status != purchase.StatusPaid {
		t.Errorf("status = %q, want paid", got.Status)
	}

	logged, _ := deliveries.ListByTxRef(ctx, txRef)
	if len(logged) != 1 || logged[0].Result != "processed" {
		t.Errorf("deliveries = %+v, want one processed record", logged)
	}
}

func TestWebhookReplayIsAcknowledged(t *testing.T) {
	h, purchases, _ := newWebhookFixture()
	ctx := context.Background()

	txRef := "replay-ref"
	if err := purchases.Insert(ctx, &purchase.Purchase{Provider: purchase.ProviderFlutterwave, TxRef: &txRef, Status: purchase.StatusPending}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	body := `{"event":"charge.completed","data":{"tx_ref":"replay-ref","status":"successful","amount":900}}`
	for i := 0; i < 3; i++ {
		if rec := postWebhook(h, webhookSecret, body); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want 200", i, rec.Code)
		}
	}

	all, _ := purchases.List(ctx, "")
	if len(all) != 1 {
		t.Errorf("ledger records = %d, want 1", len(all))
	}
	if all[0].Status != purchase.StatusPaid {
		t.Errorf("status = %q, want paid", all[0].Status)
	}
}

// failingRepo errors on every lookup to force a reconciliation failure.
type failingRepo struct {
	purchase.Repository
}

func (f *failingRepo) GetByTxRef(ctx context.Context, txRef string) (*purchase.Purchase, error) {
	return nil, errors.New("connection refused")
}

func TestWebhookReconcileFailureReturns500(t *testing.T) {
	deliveries := purchase.NewInMemoryWebhookLog()
	reconciler := newTestReconciler(
		&failingRepo{Repository: purchase.NewInMemoryRepository()},
		profile.NewInMemoryRepository(),
		movie.NewInMemoryRepository(),
	)
	h := NewWebhookHandlers(webhookSecret, reconciler, deliveries, nil)

	body := `{"event":"charge.completed","data":{"tx_ref":"doomed-ref","status":"successful"}}`
	rec := postWebhook(h, webhookSecret, body)

	// Non-2xx so the gateway redelivers once the store recovers.
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	logged, _ := deliveries.ListByTxRef(context.Background(), "doomed-ref")
	if len(logged) != 1 || logged[0].Result != "failed" {
		t.Errorf("deliveries = %+v, want one failed record", logged)
	}
}
