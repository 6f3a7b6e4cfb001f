package purchase

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WebhookDelivery records one gateway webhook delivery for audit purposes.
// Reconciliation itself is idempotent on tx_ref, so the log never gates
// processing; it exists so replays and out-of-order deliveries can be
// inspected after the fact.
type WebhookDelivery struct {
	ID         string    `json:"id"`
	TxRef      string    `json:"tx_ref"`
	EventType  string    `json:"event_type"`
	Result     string    `json:"result"` // handled, ignored, conflict
	ReceivedAt time.Time `json:"received_at"`
}

// WebhookLog defines storage for webhook delivery records.
type WebhookLog interface {
	Record(ctx context.Context, d *WebhookDelivery) error
	ListByTxRef(ctx context.Context, txRef string) ([]*WebhookDelivery, error)
}

// InMemoryWebhookLog implements WebhookLog with in-memory storage.
type InMemoryWebhookLog struct {
	mu         sync.RWMutex
	deliveries []*WebhookDelivery
}

// NewInMemoryWebhookLog creates a new in-memory webhook delivery log.
func NewInMemoryWebhookLog() *InMemoryWebhookLog {
	return &InMemoryWebhookLog{}
}

// Record appends a delivery record.
func (l *InMemoryWebhookLog) Record(ctx context.Context, d *WebhookDelivery) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = time.Now()
	}
	copied := *d
	l.deliveries = append(l.deliveries, &copied)
	return nil
}

// ListByTxRef returns all recorded deliveries for a payment reference.
func (l *InMemoryWebhookLog) ListByTxRef(ctx context.Context, txRef string) ([]*WebhookDelivery, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*WebhookDelivery
	for _, d := range l.deliveries {
		if d.TxRef == txRef {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

// PostgresWebhookLog implements WebhookLog backed by PostgreSQL.
type PostgresWebhookLog struct {
	db *sql.DB
}

// NewPostgresWebhookLog creates a new Postgres-backed webhook delivery log.
func NewPostgresWebhookLog(db *sql.DB) *PostgresWebhookLog {
	return &PostgresWebhookLog{db: db}
}

// Record appends a delivery record.
func (l *PostgresWebhookLog) Record(ctx context.Context, d *WebhookDelivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	query := `
		INSERT INTO webhook_deliveries (id, tx_ref, event_type, result, received_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	if _, err := l.db.ExecContext(ctx, query, d.ID, d.TxRef, d.EventType, d.Result); err != nil {
		return fmt.Errorf("record webhook delivery: %w", err)
	}
	return nil
}

// ListByTxRef returns all recorded deliveries for a payment reference.
func (l *PostgresWebhookLog) ListByTxRef(ctx context.Context, txRef string) ([]*WebhookDelivery, error) {
	query := `
		SELECT id, tx_ref, event_type, result, received_at
		FROM webhook_deliveries WHERE tx_ref = $1 ORDER BY received_at
	`
	rows, err := l.db.QueryContext(ctx, query, txRef)
	if err != nil {
		return nil, fmt.Errorf("list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var out []*WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TxRef, &d.EventType, &d.Result, &d.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan webhook delivery: %w", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook deliveries: %w", err)
	}
	return out, nil
}
