package movie

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a movie does not exist.
var ErrNotFound = errors.New("movie not found")

// Repository defines persistence for the movie catalog.
type Repository interface {
	Insert(ctx context.Context, m *Movie) error
	Update(ctx context.Context, m *Movie) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Movie, error)
	List(ctx context.Context) ([]*Movie, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu     sync.RWMutex
	movies map[string]*Movie
}

// NewInMemoryRepository creates a new in-memory movie repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{movies: make(map[string]*Movie)}
}

// Insert adds a new movie.
func (r *InMemoryRepository) Insert(ctx context.Context, m *Movie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now()
	if m.CreatedAt == nil {
		m.CreatedAt = &now
	}
	if m.UpdatedAt == nil {
		m.UpdatedAt = &now
	}
	copied := *m
	r.movies[m.ID] = &copied
	return nil
}

// Update replaces an existing movie.
func (r *InMemoryRepository) Update(ctx context.Context, m *Movie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.movies[m.ID]; !ok {
		return ErrNotFound
	}
	now := time.Now()
	m.UpdatedAt = &now
	copied := *m
	r.movies[m.ID] = &copied
	return nil
}

// Delete removes a movie.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.movies[id]; !ok {
		return ErrNotFound
	}
	delete(r.movies, id)
	return nil
}

// GetByID retrieves a movie by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Movie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.movies[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m
	return &copied, nil
}

// List returns all movies, newest first.
func (r *InMemoryRepository) List(ctx context.Context) ([]*Movie, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Movie, 0, len(r.movies))
	for _, m := range r.movies {
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	return out, nil
}
