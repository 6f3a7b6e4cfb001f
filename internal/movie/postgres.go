package movie

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed movie repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const movieColumns = "id, title, description, year, genre, price_kobo, poster_url, file_path, trailer_url, created_at, updated_at"

// Insert adds a new movie.
func (r *PostgresRepository) Insert(ctx context.Context, m *Movie) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO movies (id, title, description, year, genre, price_kobo, poster_url, file_path, trailer_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.Title, m.Description, m.Year, m.Genre, m.PriceKobo, m.PosterURL, m.FilePath, m.TrailerURL)
	if err != nil {
		return fmt.Errorf("insert movie: %w", err)
	}
	return nil
}

// Update replaces an existing movie.
func (r *PostgresRepository) Update(ctx context.Context, m *Movie) error {
	query := `
		UPDATE movies
		SET title = $2, description = $3, year = $4, genre = $5, price_kobo = $6,
		    poster_url = $7, file_path = $8, trailer_url = $9, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		m.ID, m.Title, m.Description, m.Year, m.Genre, m.PriceKobo, m.PosterURL, m.FilePath, m.TrailerURL)
	if err != nil {
		return fmt.Errorf("update movie: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update movie: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a movie.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM movies WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete movie: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a movie by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Movie, error) {
	query := "SELECT " + movieColumns + " FROM movies WHERE id = $1"
	var m Movie
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Title, &m.Description, &m.Year, &m.Genre, &m.PriceKobo,
		&m.PosterURL, &m.FilePath, &m.TrailerURL, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	return &m, nil
}

// List returns all movies, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]*Movie, error) {
	query := "SELECT " + movieColumns + " FROM movies ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	defer rows.Close()

	var out []*Movie
	for rows.Next() {
		var m Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Year, &m.Genre, &m.PriceKobo,
			&m.PosterURL, &m.FilePath, &m.TrailerURL, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}
	return out, nil
}
