package purchase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tundex/cinemarket/internal/gateway"
	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/profile"
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

func insertStalePending(t *testing.T, repo *InMemoryRepository, txRef string) *Purchase {
	t.Helper()
	old := time.Now().Add(-2 * time.Hour)
	p := &Purchase{
		UserID:     strPtr("u1"),
		MovieID:    strPtr("m1"),
		AmountKobo: 120000,
		Provider:   ProviderFlutterwave,
		TxRef:      &txRef,
		Status:     StatusPending,
		CreatedAt:  &old,
		UpdatedAt:  &old,
	}
	if err := repo.Insert(context.Background(), p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return p
}

func newSweepFixture(repo *InMemoryRepository, gw gateway.Client) *Sweeper {
	reconciler := NewReconciler(repo, profile.NewInMemoryRepository(), movie.NewInMemoryRepository(), nil, discardLogger())
	return NewSweeper(repo, gw, reconciler, discardLogger(), 30*time.Minute)
}

func TestSweepMarksVerifiedPaymentPaid(t *testing.T) {
	repo := NewInMemoryRepository()
	p := insertStalePending(t, repo, "stale-paid")

	gw := &mockGateway{
		verifyRefFn: func(ctx context.Context, txRef string) (*gateway.Verification, error) {
			return &gateway.Verification{TxRef: txRef, Status: "successful", AmountKobo: 120000}, nil
		},
	}
	stats, err := newSweepFixture(repo, gw).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.Scanned != 1 || stats.MarkedPaid != 1 {
		t.Errorf("stats = %+v, want 1 scanned, 1 marked paid", stats)
	}

	got, _ := repo.GetByID(context.Background(), p.ID)
	if got.Status != StatusPaid {
		t.Errorf("status = %q, want %q", got.Status, StatusPaid)
	}
}

func TestSweepRejectsFailedPayment(t *testing.T) {
	repo := NewInMemoryRepository()
	p := insertStalePending(t, repo, "stale-failed")

	gw := &mockGateway{
		verifyRefFn: func(ctx context.Context, txRef string) (*gateway.Verification, error) {
			return &gateway.Verification{TxRef: txRef, Status: "failed"}, nil
		},
	}
	stats, err := newSweepFixture(repo, gw).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.Rejected != 1 {
		t.Errorf("stats = %+v, want 1 rejected", stats)
	}

	got, _ := repo.GetByID(context.Background(), p.ID)
	if got.Status != StatusRejected {
		t.Errorf("status = %q, want %q", got.Status, StatusRejected)
	}
}

func TestSweepSkipsUnknownReference(t *testing.T) {
	repo := NewInMemoryRepository()
	p := insertStalePending(t, repo, "stale-unknown")

	gw := &mockGateway{
		verifyRefFn: func(ctx context.Context, txRef string) (*gateway.Verification, error) {
			return nil, gateway.ErrVerifyFailed
		},
	}
	stats, err := newSweepFixture(repo, gw).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.Skipped != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v, want 1 skipped, 0 errors", stats)
	}

	// Unknown references stay pending for manual review.
	got, _ := repo.GetByID(context.Background(), p.ID)
	if got.Status != StatusPending {
		t.Errorf("status = %q, want %q", got.Status, StatusPending)
	}
}

func TestSweepCountsGatewayOutage(t *testing.T) {
	repo := NewInMemoryRepository()
	insertStalePending(t, repo, "stale-outage")

	gw := &mockGateway{
		verifyRefFn: func(ctx context.Context, txRef string) (*gateway.Verification, error) {
			return nil, errors.New("dial tcp: timeout")
		},
	}
	stats, err := newSweepFixture(repo, gw).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.Errors != 1 {
		t.Errorf("stats = %+v, want 1 error", stats)
	}
}

func TestSweepIgnoresFreshAndNonGatewayRecords(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	// Fresh pending gateway record: still in flight, not swept.
	freshRef := "fresh-ref"
	if err := repo.Insert(ctx, &Purchase{Provider: ProviderFlutterwave, TxRef: &freshRef, Status: StatusPending}); err != nil {
		t.Fatalf("insert fresh: %v", err)
	}
	// Bank transfer: never swept, it has no gateway state.
	old := time.Now().Add(-2 * time.Hour)
	if err := repo.Insert(ctx, &Purchase{Provider: ProviderBankTransfer, Status: StatusPending, CreatedAt: &old, UpdatedAt: &old}); err != nil {
		t.Fatalf("insert bank transfer: %v", err)
	}

	gw := &mockGateway{
		verifyRefFn: func(ctx context.Context, txRef string) (*gateway.Verification, error) {
			t.Fatalf("unexpected verify for %s", txRef)
			return nil, nil
		},
	}
	stats, err := newSweepFixture(repo, gw).Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.Scanned != 0 {
		t.Errorf("scanned = %d, want 0", stats.Scanned)
	}
}

func TestSweepStillPendingOnProvider(t *testing.T) {
	repo := NewInMemoryRepository()
	p := insertStalePending(t, repo, "stale-still-pending")

	gw := &mockGateway{
		verifyRefFn: func(ctx context.Context, txRef string) (*gateway.Verification, error) {
			return &gateway.Verification{TxRef: txRef, Status: "pending"}, nil
		},
	}
	stats, err := newSweepFixture(repo, gw).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 1 skipped", stats)
	}

	got, _ := repo.GetByID(context.Background(), p.ID)
	if got.Status != StatusPending {
		t.Errorf("status = %q, want %q", got.Status, StatusPending)
	}
}
