package purchase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a purchase record does not exist.
var ErrNotFound = errors.New("purchase not found")

// ErrDuplicateTxRef is returned when an insert violates the tx_ref
// uniqueness constraint. Callers racing on the same reference treat this
// as "someone else already created it" and retry as an update.
var ErrDuplicateTxRef = errors.New("purchase with this tx_ref already exists")

// Repository defines persistence for purchase records.
//
// The two correctness-critical operations are Insert (which must enforce
// tx_ref uniqueness) and UpdateStatusIfPending (a compare-and-swap on the
// status column). All reconciliation concurrency control reduces to these.
type Repository interface {
	Insert(ctx context.Context, p *Purchase) error
	GetByID(ctx context.Context, id string) (*Purchase, error)
	GetByTxRef(ctx context.Context, txRef string) (*Purchase, error)

	// CompareAndSetStatus transitions the record from fromStatus to
	// toStatus atomically. Returns true if the transition was applied,
	// false if the record's status no longer matched fromStatus.
	CompareAndSetStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error)

	// HasPaid reports whether the user has a paid record for the movie.
	HasPaid(ctx context.Context, userID, movieID string) (bool, error)

	ListByUser(ctx context.Context, userID string) ([]*Purchase, error)

	// List returns all records, optionally filtered by status
	// (empty string means no filter). Newest first.
	List(ctx context.Context, status string) ([]*Purchase, error)
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for tests and development without a database.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Purchase // keyed by ID
	byTxRef map[string]string    // tx_ref -> ID, enforces uniqueness
}

// NewInMemoryRepository creates a new in-memory purchase repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*Purchase),
		byTxRef: make(map[string]string),
	}
}

// Insert adds a new purchase record, enforcing tx_ref uniqueness.
func (r *InMemoryRepository) Insert(ctx context.Context, p *Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.TxRef != nil && *p.TxRef != "" {
		if _, exists := r.byTxRef[*p.TxRef]; exists {
			return ErrDuplicateTxRef
		}
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	if p.CreatedAt == nil {
		p.CreatedAt = &now
	}
	if p.UpdatedAt == nil {
		p.UpdatedAt = &now
	}

	copied := *p
	r.records[p.ID] = &copied
	if p.TxRef != nil && *p.TxRef != "" {
		r.byTxRef[*p.TxRef] = p.ID
	}
	return nil
}

// GetByID retrieves a purchase record by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

// GetByTxRef retrieves a purchase record by its payment reference.
func (r *InMemoryRepository) GetByTxRef(ctx context.Context, txRef string) (*Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTxRef[txRef]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *r.records[id]
	return &copied, nil
}

// CompareAndSetStatus transitions the record from fromStatus to toStatus atomically.
func (r *InMemoryRepository) CompareAndSetStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.Status != fromStatus {
		return false, nil
	}
	p.Status = toStatus
	now := time.Now()
	p.UpdatedAt = &now
	return true, nil
}

// HasPaid reports whether the user has a paid record for the movie.
func (r *InMemoryRepository) HasPaid(ctx context.Context, userID, movieID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.records {
		if p.Status == StatusPaid && p.Owns(userID) && p.MovieID != nil && *p.MovieID == movieID {
			return true, nil
		}
	}
	return false, nil
}

// ListByUser returns the user's purchase records, newest first.
func (r *InMemoryRepository) ListByUser(ctx context.Context, userID string) ([]*Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Purchase
	for _, p := range r.records {
		if p.Owns(userID) {
			copied := *p
			out = append(out, &copied)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// List returns all records, optionally filtered by status. Newest first.
func (r *InMemoryRepository) List(ctx context.Context, status string) ([]*Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Purchase
	for _, p := range r.records {
		if status == "" || p.Status == status {
			copied := *p
			out = append(out, &copied)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(ps []*Purchase) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i].CreatedAt, ps[j].CreatedAt
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
}
