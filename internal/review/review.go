// Package review provides the movie review model and repositories.
package review

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a review does not exist.
var ErrNotFound = errors.New("review not found")

// Review is a user's rating and commentary on a movie.
type Review struct {
	ID        string     `json:"id"`
	MovieID   string     `json:"movie_id"`
	UserID    string     `json:"user_id"`
	Rating    int        `json:"rating"` // 1-5
	Content   string     `json:"content,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Repository is the interface for review storage operations.
type Repository interface {
	Insert(ctx context.Context, rev *Review) error
	ListByMovie(ctx context.Context, movieID string) ([]*Review, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Review, error)
}

// InMemoryRepository is a thread-safe in-memory Repository for development
// and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Review
}

// NewInMemoryRepository creates an empty InMemoryRepository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string]*Review)}
}

// Insert adds a review.
func (r *InMemoryRepository) Insert(ctx context.Context, rev *Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rev.ID == "" {
		rev.ID = uuid.New().String()
	}
	if rev.CreatedAt == nil {
		now := time.Now()
		rev.CreatedAt = &now
	}

	copied := *rev
	r.records[rev.ID] = &copied
	return nil
}

// ListByMovie returns a movie's reviews, newest first.
func (r *InMemoryRepository) ListByMovie(ctx context.Context, movieID string) ([]*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Review
	for _, rev := range r.records {
		if rev.MovieID == movieID {
			copied := *rev
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == nil || out[j].CreatedAt == nil {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(*out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a review by ID.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// GetByID retrieves a review by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rev, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rev
	return &copied, nil
}
