package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Manual bank-transfer review errors.
var (
	// ErrNotPending is returned when approving or rejecting a record that
	// has already reached a terminal state.
	ErrNotPending = errors.New("purchase is not pending")
	// ErrNotReopenable is returned when a reopen is requested for a record
	// that is not a rejected bank-transfer purchase. Gateway records stay
	// terminal once finalized.
	ErrNotReopenable = errors.New("purchase cannot be reopened")
)

// ManualReview applies admin decisions to bank-transfer purchases.
// It shares the ledger's compare-and-swap discipline with the gateway
// reconciler, so a webhook racing an admin decision cannot produce a
// double transition.
type ManualReview struct {
	purchases Repository
	logger    *slog.Logger
}

// NewManualReview creates a new ManualReview.
func NewManualReview(purchases Repository, logger *slog.Logger) *ManualReview {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManualReview{purchases: purchases, logger: logger}
}

// Approve transitions a pending purchase to paid.
func (m *ManualReview) Approve(ctx context.Context, id string) error {
	return m.decide(ctx, id, StatusPaid)
}

// Reject transitions a pending purchase to rejected.
func (m *ManualReview) Reject(ctx context.Context, id string) error {
	return m.decide(ctx, id, StatusRejected)
}

func (m *ManualReview) decide(ctx context.Context, id, to string) error {
	applied, err := m.purchases.CompareAndSetStatus(ctx, id, StatusPending, to)
	if err != nil {
		return fmt.Errorf("manual review: %w", err)
	}
	if !applied {
		return ErrNotPending
	}
	m.logger.InfoContext(ctx, "manual purchase reviewed", "purchase_id", id, "status", to)
	return nil
}

// Reopen moves a rejected bank-transfer purchase back to pending for
// re-review. Only the manual path supports this; rejected gateway
// purchases are terminal.
func (m *ManualReview) Reopen(ctx context.Context, id string) error {
	p, err := m.purchases.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("manual review: %w", err)
	}
	if p.Provider != ProviderBankTransfer || p.Status != StatusRejected {
		return ErrNotReopenable
	}
	applied, err := m.purchases.CompareAndSetStatus(ctx, id, StatusRejected, StatusPending)
	if err != nil {
		return fmt.Errorf("manual review: %w", err)
	}
	if !applied {
		return ErrNotReopenable
	}
	m.logger.InfoContext(ctx, "rejected manual purchase reopened", "purchase_id", id)
	return nil
}
