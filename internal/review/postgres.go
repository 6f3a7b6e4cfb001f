package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PostgresRepository is the database-backed Repository implementation.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const reviewColumns = "id, movie_id, user_id, rating, content, created_at"

// Insert adds a review.
func (r *PostgresRepository) Insert(ctx context.Context, rev *Review) error {
	if rev.ID == "" {
		rev.ID = uuid.New().String()
	}

	query := `
		INSERT INTO reviews (id, movie_id, user_id, rating, content, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.db.ExecContext(ctx, query, rev.ID, rev.MovieID, rev.UserID, rev.Rating, rev.Content)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// ListByMovie returns a movie's reviews, newest first.
func (r *PostgresRepository) ListByMovie(ctx context.Context, movieID string) ([]*Review, error) {
	query := fmt.Sprintf("SELECT %s FROM reviews WHERE movie_id = $1 ORDER BY created_at DESC", reviewColumns)
	rows, err := r.db.QueryContext(ctx, query, movieID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		var rev Review
		if err := rows.Scan(&rev.ID, &rev.MovieID, &rev.UserID, &rev.Rating, &rev.Content, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, &rev)
	}
	return out, rows.Err()
}

// Delete removes a review by ID.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a review by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Review, error) {
	query := fmt.Sprintf("SELECT %s FROM reviews WHERE id = $1", reviewColumns)
	var rev Review
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&rev.ID, &rev.MovieID, &rev.UserID, &rev.Rating, &rev.Content, &rev.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return &rev, nil
}
