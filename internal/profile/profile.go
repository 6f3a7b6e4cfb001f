// Package profile provides lookup of user profiles issued by the external
// identity provider. The reconciliation fallback-insert path uses it to
// resolve a gateway-supplied customer email to an internal user ID.
package profile

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned when no profile matches the lookup.
var ErrNotFound = errors.New("profile not found")

// Profile mirrors the identity provider's user record.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Repository defines profile lookups.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile // keyed by ID
}

// NewInMemoryRepository creates a new in-memory profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{profiles: make(map[string]*Profile)}
}

// Put stores a profile, replacing any existing one with the same ID.
func (r *InMemoryRepository) Put(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *p
	r.profiles[p.ID] = &copied
}

// GetByID retrieves a profile by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

// GetByEmail retrieves a profile by email, case-insensitively.
func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if strings.EqualFold(p.Email, email) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}
