package profile

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed profile repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID retrieves a profile by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, full_name FROM profiles WHERE id = $1", id).
		Scan(&p.ID, &p.Email, &p.FullName)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// GetByEmail retrieves a profile by email, case-insensitively.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	var p Profile
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, full_name FROM profiles WHERE LOWER(email) = LOWER($1)", email).
		Scan(&p.ID, &p.Email, &p.FullName)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile by email: %w", err)
	}
	return &p, nil
}
