package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tundex/cinemarket/internal/gateway"
)

// DefaultSweepMinAge is how old a pending record must be before the sweep
// re-verifies it. Fresh records are still in flight through the webhook and
// callback channels.
const DefaultSweepMinAge = 30 * time.Minute

// SweepStats summarizes a single sweep run.
type SweepStats struct {
	Scanned    int
	MarkedPaid int
	Rejected   int
	Skipped    int
	Errors     int
}

// Sweeper re-verifies stale pending gateway purchases against the payment
// provider. It covers the case where both the webhook and the callback were
// lost: the ledger still converges once the sweep runs.
type Sweeper struct {
	purchases  Repository
	gateway    gateway.Client
	reconciler *Reconciler
	logger     *slog.Logger
	minAge     time.Duration
}

// NewSweeper creates a Sweeper. minAge <= 0 uses DefaultSweepMinAge.
func NewSweeper(purchases Repository, gw gateway.Client, reconciler *Reconciler, logger *slog.Logger, minAge time.Duration) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if minAge <= 0 {
		minAge = DefaultSweepMinAge
	}
	return &Sweeper{
		purchases:  purchases,
		gateway:    gw,
		reconciler: reconciler,
		logger:     logger,
		minAge:     minAge,
	}
}

// Sweep scans pending gateway purchases older than minAge and reconciles
// each against the provider's authoritative state. Individual record
// failures are counted and skipped; the sweep keeps going.
func (s *Sweeper) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	pending, err := s.purchases.List(ctx, StatusPending)
	if err != nil {
		return stats, fmt.Errorf("sweep: list pending: %w", err)
	}

	cutoff := time.Now().Add(-s.minAge)
	for _, p := range pending {
		if p.Provider != ProviderFlutterwave || p.TxRef == nil || *p.TxRef == "" {
			continue
		}
		if p.CreatedAt != nil && p.CreatedAt.After(cutoff) {
			continue
		}
		stats.Scanned++

		v, err := s.gateway.VerifyByReference(ctx, *p.TxRef)
		if err != nil {
			if errors.Is(err, gateway.ErrVerifyFailed) {
				// The provider has no record of the reference; the
				// buyer never reached the payment page. Leave it for
				// manual review.
				stats.Skipped++
				continue
			}
			s.logger.WarnContext(ctx, "sweep: verification failed",
				"tx_ref", *p.TxRef, "error", err)
			stats.Errors++
			continue
		}

		switch {
		case v.Successful():
			outcome, err := s.reconciler.MarkPaid(ctx, PaidSignal{
				TxRef:      v.TxRef,
				MovieID:    v.MovieID,
				Email:      v.CustomerEmail,
				AmountKobo: v.AmountKobo,
			})
			if err != nil {
				s.logger.ErrorContext(ctx, "sweep: reconciliation failed",
					"tx_ref", *p.TxRef, "error", err)
				stats.Errors++
				continue
			}
			if outcome == OutcomeMarkedPaid || outcome == OutcomeFallbackInserted {
				stats.MarkedPaid++
			} else {
				stats.Skipped++
			}

		case v.Status == "failed" || v.Status == "cancelled":
			applied, err := s.purchases.CompareAndSetStatus(ctx, p.ID, StatusPending, StatusRejected)
			if err != nil {
				s.logger.ErrorContext(ctx, "sweep: reject transition failed",
					"tx_ref", *p.TxRef, "error", err)
				stats.Errors++
				continue
			}
			if applied {
				s.logger.InfoContext(ctx, "sweep: stale purchase rejected",
					"tx_ref", *p.TxRef, "gateway_status", v.Status)
				stats.Rejected++
			} else {
				stats.Skipped++
			}

		default:
			// Still pending on the provider side too
			stats.Skipped++
		}
	}

	s.logger.InfoContext(ctx, "sweep complete",
		"scanned", stats.Scanned, "marked_paid", stats.MarkedPaid,
		"rejected", stats.Rejected, "skipped", stats.Skipped, "errors", stats.Errors)
	return stats, nil
}
