package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a thread-safe in-memory Repository for development
// and tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []*Log
}

// NewInMemoryRepository creates an empty InMemoryRepository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Insert stores an audit log record.
func (r *InMemoryRepository) Insert(ctx context.Context, l *Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	copied := *l
	r.records = append(r.records, &copied)
	return nil
}

// ListByEntity returns the audit trail for an entity, oldest first.
func (r *InMemoryRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Log
	for _, l := range r.records {
		if l.EntityType == entityType && l.EntityID == entityID {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out, nil
}

// PostgresRepository is the database-backed Repository implementation.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const auditColumns = "id, user_id, user_email, entity_type, entity_id, action, outcome, request_id, ip_address, created_at"

// Insert stores an audit log record.
func (r *PostgresRepository) Insert(ctx context.Context, l *Log) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}

	query := `
		INSERT INTO audit_logs (id, user_id, user_email, entity_type, entity_id, action, outcome, request_id, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.UserID, l.UserEmail, l.EntityType, l.EntityID, l.Action, l.Outcome, l.RequestID, l.IPAddress)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListByEntity returns the audit trail for an entity, oldest first.
func (r *PostgresRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*Log, error) {
	query := fmt.Sprintf("SELECT %s FROM audit_logs WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at ASC", auditColumns)
	rows, err := r.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var out []*Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.UserID, &l.UserEmail, &l.EntityType, &l.EntityID,
			&l.Action, &l.Outcome, &l.RequestID, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
