package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tundex/cinemarket/internal/gateway"
	"github.com/tundex/cinemarket/internal/middleware"
	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/profile"
	"github.com/tundex/cinemarket/internal/purchase"
)

const (
	testMovieID = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	testUserID  = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
)

// mockGateway implements gateway.Client with function fields.
type mockGateway struct {
	initFn      func(ctx context.Context, req gateway.InitRequest) (string, error)
	verifyFn    func(ctx context.Context, transactionID string) (*gateway.Verification, error)
	verifyRefFn func(ctx context.Context, txRef string) (*gateway.Verification, error)
}

func (m *mockGateway) InitializePayment(ctx context.Context, req gateway.InitRequest) (string, error) {
	return m.initFn(ctx, req)
}

func (m *mockGateway) VerifyTransaction(ctx context.Context, transactionID string) (*gateway.Verification, error) {
	return m.verifyFn(ctx, transactionID)
}

func (m *mockGateway) VerifyByReference(ctx context.Context, txRef string) (*gateway.Verification, error) {
	return m.verifyRefFn(ctx, txRef)
}

// authedRequest attaches an authenticated user to the request context.
func authedRequest(r *http.Request, userID, email string) *http.Request {
	ctx := middleware.SetUser(r.Context(), middleware.User{ID: userID, Email: email})
	return r.WithContext(ctx)
}

// decodeError unpacks the standard error envelope.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp.Error
}

func newTestReconciler(purchases purchase.Repository, profiles profile.Repository, movies movie.Repository) *purchase.Reconciler {
	return purchase.NewReconciler(purchases, profiles, movies, nil, nil)
}

func strPtr(s string) *string { return &s }
