// Package audit provides audit logging for administrative actions on the
// ledger and catalog, for compliance and incident response.
package audit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tundex/cinemarket/internal/middleware"
)

// Validation errors.
var (
	ErrInvalidEntityType = errors.New("entity type is not allowed")
	ErrInvalidEntityID   = errors.New("entity ID cannot be empty")
	ErrInvalidAction     = errors.New("action is not allowed")
)

// Entity types recorded in the audit trail.
const (
	EntityPurchase = "purchase"
	EntityMovie    = "movie"
)

// Actions recorded in the audit trail.
const (
	ActionApprovePurchase = "approve_purchase"
	ActionRejectPurchase  = "reject_purchase"
	ActionReopenPurchase  = "reopen_purchase"
	ActionCreateMovie     = "create_movie"
	ActionUpdateMovie     = "update_movie"
	ActionDeleteMovie     = "delete_movie"
)

// Outcomes attached to every entry.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// validEntityTypes defines the allowed entity types.
var validEntityTypes = map[string]bool{
	EntityPurchase: true,
	EntityMovie:    true,
}

// validActions defines the allowed actions.
var validActions = map[string]bool{
	ActionApprovePurchase: true,
	ActionRejectPurchase:  true,
	ActionReopenPurchase:  true,
	ActionCreateMovie:     true,
	ActionUpdateMovie:     true,
	ActionDeleteMovie:     true,
}

// Log represents a single audit event.
type Log struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UserEmail  string    `json:"user_email"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"` // "success" or "failure"
	RequestID  string    `json:"request_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Entry is the input for creating an audit log record.
type Entry struct {
	EntityType string
	EntityID   string
	Action     string
	Outcome    string
}

// Repository stores audit logs.
type Repository interface {
	Insert(ctx context.Context, l *Log) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*Log, error)
}

// Logger writes validated audit entries enriched with request context.
type Logger struct {
	repo Repository
}

// NewLogger creates a Logger. repo may be nil, in which case Record is a
// no-op; callers never need to branch on whether auditing is enabled.
func NewLogger(repo Repository) *Logger {
	return &Logger{repo: repo}
}

// Record validates and stores an audit entry. The acting user, request id
// and client address come from the request.
func (a *Logger) Record(r *http.Request, e Entry) error {
	if a == nil || a.repo == nil {
		return nil
	}
	if e.EntityID == "" {
		return ErrInvalidEntityID
	}
	if !validEntityTypes[e.EntityType] {
		return ErrInvalidEntityType
	}
	if !validActions[e.Action] {
		return ErrInvalidAction
	}

	ctx := r.Context()
	user := middleware.GetUser(ctx)
	return a.repo.Insert(ctx, &Log{
		UserID:     user.ID,
		UserEmail:  user.Email,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Outcome:    e.Outcome,
		RequestID:  middleware.GetRequestID(ctx),
		IPAddress:  extractIPAddress(r),
	})
}

// extractIPAddress extracts the client IP address from an HTTP request.
// It checks X-Forwarded-For, X-Real-IP, and RemoteAddr in that order, with
// the port stripped.
func extractIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		firstIP := xff
		if idx := strings.Index(xff, ","); idx != -1 {
			firstIP = xff[:idx]
		}
		firstIP = strings.TrimSpace(firstIP)
		if firstIP != "" {
			if host, _, err := net.SplitHostPort(firstIP); err == nil {
				return host
			}
			return firstIP
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
