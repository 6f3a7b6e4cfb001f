package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresRepository implements Repository backed by PostgreSQL.
// The purchases table carries a partial unique index on tx_ref
// (WHERE tx_ref IS NOT NULL); that constraint is the concurrency guard
// for the reconciliation fallback-insert path.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new Postgres-backed purchase repository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

const purchaseColumns = "id, user_id, movie_id, amount_kobo, provider, tx_ref, proof_ref, status, created_at, updated_at"

// Insert adds a new purchase record. Returns ErrDuplicateTxRef when the
// tx_ref uniqueness constraint rejects the row.
func (r *PostgresRepository) Insert(ctx context.Context, p *Purchase) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	query := `
		INSERT INTO purchases (id, user_id, movie_id, amount_kobo, provider, tx_ref, proof_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.MovieID, p.AmountKobo, p.Provider, p.TxRef, p.ProofRef, p.Status)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateTxRef
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// GetByID retrieves a purchase record by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Purchase, error) {
	query := "SELECT " + purchaseColumns + " FROM purchases WHERE id = $1"
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByTxRef retrieves a purchase record by its payment reference.
func (r *PostgresRepository) GetByTxRef(ctx context.Context, txRef string) (*Purchase, error) {
	query := "SELECT " + purchaseColumns + " FROM purchases WHERE tx_ref = $1"
	return r.scanOne(r.db.QueryRowContext(ctx, query, txRef))
}

// CompareAndSetStatus transitions the record from fromStatus to toStatus.
// The WHERE clause makes the update a compare-and-swap: a concurrent writer
// that already finalized the row causes zero rows to be affected here,
// never a lost or overwritten terminal state.
func (r *PostgresRepository) CompareAndSetStatus(ctx context.Context, id, fromStatus, toStatus string) (bool, error) {
	query := `
		UPDATE purchases
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, fromStatus, toStatus)
	if err != nil {
		return false, fmt.Errorf("update purchase status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update purchase status: %w", err)
	}
	if n == 0 {
		// Distinguish "gone" from "already terminal".
		var status string
		err := r.db.QueryRowContext(ctx, "SELECT status FROM purchases WHERE id = $1", id).Scan(&status)
		if err == sql.ErrNoRows {
			return false, ErrNotFound
		}
		if err != nil {
			return false, fmt.Errorf("check purchase status: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// HasPaid reports whether the user has a paid record for the movie.
func (r *PostgresRepository) HasPaid(ctx context.Context, userID, movieID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM purchases
			WHERE user_id = $1 AND movie_id = $2 AND status = $3
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, movieID, StatusPaid).Scan(&exists); err != nil {
		return false, fmt.Errorf("check paid purchase: %w", err)
	}
	return exists, nil
}

// ListByUser returns the user's purchase records, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*Purchase, error) {
	query := "SELECT " + purchaseColumns + " FROM purchases WHERE user_id = $1 ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases by user: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// List returns all records, optionally filtered by status. Newest first.
func (r *PostgresRepository) List(ctx context.Context, status string) ([]*Purchase, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = r.db.QueryContext(ctx,
			"SELECT "+purchaseColumns+" FROM purchases ORDER BY created_at DESC")
	} else {
		rows, err = r.db.QueryContext(ctx,
			"SELECT "+purchaseColumns+" FROM purchases WHERE status = $1 ORDER BY created_at DESC", status)
	}
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.UserID, &p.MovieID, &p.AmountKobo, &p.Provider,
		&p.TxRef, &p.ProofRef, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan purchase: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) scanAll(rows *sql.Rows) ([]*Purchase, error) {
	var out []*Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.MovieID, &p.AmountKobo, &p.Provider,
			&p.TxRef, &p.ProofRef, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return out, nil
}
