package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/profile"
)

// Outcome describes how a reconciliation attempt resolved.
type Outcome string

const (
	// OutcomeMarkedPaid means a pending record transitioned to paid.
	OutcomeMarkedPaid Outcome = "marked_paid"
	// OutcomeAlreadyPaid means the record was already paid (duplicate delivery).
	OutcomeAlreadyPaid Outcome = "already_paid"
	// OutcomeConflict means a paid signal arrived for a rejected record.
	// The record is left untouched; the anomaly is logged.
	OutcomeConflict Outcome = "conflict"
	// OutcomeFallbackInserted means no prior record existed and a new paid
	// record was inserted directly.
	OutcomeFallbackInserted Outcome = "fallback_inserted"
)

// PaidSignal carries a verified "payment succeeded" outcome for a payment
// reference. Only TxRef is required; the rest are hints used by the
// fallback-insert path when no pending record exists.
type PaidSignal struct {
	TxRef      string
	MovieID    string // from gateway metadata or callback query, may be empty
	Email      string // customer email, may be empty
	AmountKobo int64  // verified amount in kobo, 0 when unknown
}

// Reconciler applies idempotent state transitions to the purchase ledger.
// It is the only writer of status transitions for gateway payments and is
// safe to invoke concurrently for the same reference from the webhook and
// callback paths: synchronization is delegated to the repository's tx_ref
// uniqueness constraint and status compare-and-swap.
type Reconciler struct {
	purchases Repository
	profiles  profile.Repository
	movies    movie.Repository
	metrics   *Metrics
	logger    *slog.Logger
}

// NewReconciler creates a new Reconciler. metrics may be nil.
func NewReconciler(purchases Repository, profiles profile.Repository, movies movie.Repository, metrics *Metrics, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		purchases: purchases,
		profiles:  profiles,
		movies:    movies,
		metrics:   metrics,
		logger:    logger,
	}
}

// MarkPaid records a verified successful payment for sig.TxRef.
//
//  1. Look up the record by tx_ref.
//  2. Found and pending: compare-and-swap to paid. Found and paid: no-op.
//     Found and rejected: no-op, conflict logged.
//  3. Not found: fallback insert with status paid, resolving the owner from
//     the email hint and the amount from the movie hint where possible.
//  4. If the fallback insert loses a race on the uniqueness constraint,
//     retry once as an update; the other writer created the row.
func (r *Reconciler) MarkPaid(ctx context.Context, sig PaidSignal) (Outcome, error) {
	if sig.TxRef == "" {
		return "", errors.New("mark paid: empty tx_ref")
	}

	existing, err := r.purchases.GetByTxRef(ctx, sig.TxRef)
	if err == nil {
		return r.finalize(ctx, existing, sig)
	}
	if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("mark paid: lookup %s: %w", sig.TxRef, err)
	}

	// No prior pending record. The original checkout-side insert was lost
	// or this reference came through a channel that never created one.
	inserted, err := r.fallbackInsert(ctx, sig)
	if err == nil {
		r.logger.InfoContext(ctx, "purchase fallback-inserted as paid",
			"tx_ref", sig.TxRef, "purchase_id", inserted.ID, "movie_id", sig.MovieID)
		r.count(OutcomeFallbackInserted)
		return OutcomeFallbackInserted, nil
	}
	if !errors.Is(err, ErrDuplicateTxRef) {
		return "", fmt.Errorf("mark paid: fallback insert %s: %w", sig.TxRef, err)
	}

	// Lost the insert race: a concurrent reconciliation created the row
	// between the lookup and the insert. Re-read and finalize it.
	existing, err = r.purchases.GetByTxRef(ctx, sig.TxRef)
	if err != nil {
		return "", fmt.Errorf("mark paid: reread after insert race %s: %w", sig.TxRef, err)
	}
	return r.finalize(ctx, existing, sig)
}

// finalize applies the terminal transition to an existing record.
func (r *Reconciler) finalize(ctx context.Context, p *Purchase, sig PaidSignal) (Outcome, error) {
	switch p.Status {
	case StatusPaid:
		r.logger.DebugContext(ctx, "duplicate paid signal ignored", "tx_ref", sig.TxRef, "purchase_id", p.ID)
		r.count(OutcomeAlreadyPaid)
		return OutcomeAlreadyPaid, nil
	case StatusRejected:
		// A paid notification after a manual rejection is an anomaly worth
		// surfacing, never a silent overwrite.
		r.logger.WarnContext(ctx, "paid signal for rejected purchase",
			"tx_ref", sig.TxRef, "purchase_id", p.ID)
		r.count(OutcomeConflict)
		return OutcomeConflict, nil
	}

	applied, err := r.purchases.CompareAndSetStatus(ctx, p.ID, StatusPending, StatusPaid)
	if err != nil {
		return "", fmt.Errorf("mark paid: transition %s: %w", sig.TxRef, err)
	}
	if !applied {
		// Another writer finalized the row between our read and the swap.
		// Re-read to report the true outcome.
		current, err := r.purchases.GetByTxRef(ctx, sig.TxRef)
		if err != nil {
			return "", fmt.Errorf("mark paid: reread after swap race %s: %w", sig.TxRef, err)
		}
		return r.finalize(ctx, current, sig)
	}

	r.logger.InfoContext(ctx, "purchase marked paid",
		"tx_ref", sig.TxRef, "purchase_id", p.ID, "amount_kobo", p.AmountKobo)
	r.count(OutcomeMarkedPaid)
	return OutcomeMarkedPaid, nil
}

// fallbackInsert creates a paid record directly from the signal's hints.
func (r *Reconciler) fallbackInsert(ctx context.Context, sig PaidSignal) (*Purchase, error) {
	var userID *string
	if sig.Email != "" {
		prof, err := r.profiles.GetByEmail(ctx, sig.Email)
		switch {
		case err == nil:
			userID = &prof.ID
		case errors.Is(err, profile.ErrNotFound):
			r.logger.WarnContext(ctx, "fallback insert: unknown customer email, storing unowned record",
				"tx_ref", sig.TxRef)
		default:
			return nil, fmt.Errorf("resolve customer: %w", err)
		}
	}

	var movieID *string
	amount := sig.AmountKobo
	if sig.MovieID != "" {
		movieID = &sig.MovieID
		m, err := r.movies.GetByID(ctx, sig.MovieID)
		switch {
		case err == nil:
			if amount == 0 {
				amount = m.PriceKobo
			}
		case errors.Is(err, movie.ErrNotFound):
			r.logger.WarnContext(ctx, "fallback insert: movie hint does not resolve",
				"tx_ref", sig.TxRef, "movie_id", sig.MovieID)
		default:
			return nil, fmt.Errorf("resolve movie: %w", err)
		}
	}

	txRef := sig.TxRef
	p := &Purchase{
		UserID:     userID,
		MovieID:    movieID,
		AmountKobo: amount,
		Provider:   ProviderFlutterwave,
		TxRef:      &txRef,
		Status:     StatusPaid,
	}
	if err := r.purchases.Insert(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Reconciler) count(o Outcome) {
	if r.metrics != nil {
		r.metrics.IncReconciliation(string(o))
	}
}
