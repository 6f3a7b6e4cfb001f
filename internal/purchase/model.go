// Package purchase provides the purchase ledger: models, repositories, and
// the reconciliation logic that turns payment-gateway signals into ledger
// state transitions.
package purchase

import "time"

// Purchase status values. Paid and rejected are terminal.
const (
	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusRejected = "rejected"
)

// Payment provider tags.
const (
	ProviderFlutterwave  = "flutterwave"
	ProviderBankTransfer = "bank_transfer"
)

// Purchase represents a single purchase attempt for a movie.
// TxRef is the external correlation key; it is unique across all records
// when non-empty and acts as the idempotency key for reconciliation.
type Purchase struct {
	ID         string     `json:"id"`
	UserID     *string    `json:"user_id"`  // nil only on the fallback-insert path when the owner cannot be resolved
	MovieID    *string    `json:"movie_id"` // nil when gateway metadata carried no movie hint
	AmountKobo int64      `json:"amount_kobo"`
	Provider   string     `json:"provider"`
	TxRef      *string    `json:"tx_ref,omitempty"`    // gateway payments only
	ProofRef   *string    `json:"proof_ref,omitempty"` // bank-transfer payments only
	Status     string     `json:"status"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// IsTerminal reports whether the purchase has reached a terminal status.
func (p *Purchase) IsTerminal() bool {
	return p.Status == StatusPaid || p.Status == StatusRejected
}

// Owns reports whether the purchase belongs to the given user.
// Records without an owner belong to nobody.
func (p *Purchase) Owns(userID string) bool {
	return p.UserID != nil && *p.UserID == userID
}
