package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tundex/cinemarket/internal/admin"
	"github.com/tundex/cinemarket/internal/audit"
	"github.com/tundex/cinemarket/internal/middleware"
	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/purchase"
	"github.com/tundex/cinemarket/internal/storage"
	"github.com/tundex/cinemarket/internal/validate"
)

// ProofSigner issues presigned PUT URLs for payment-proof uploads.
// *storage.Signer satisfies this interface.
type ProofSigner interface {
	SignProofUpload(ctx context.Context, req storage.ProofUploadRequest) (*storage.SignedURL, error)
}

// PurchaseHandlers holds dependencies for the ledger-facing endpoints.
type PurchaseHandlers struct {
	purchases  purchase.Repository
	movies     movie.Repository
	manual     *purchase.ManualReview
	admins     *admin.Checker
	signer     ProofSigner // nil when object storage is not configured
	auditLog   *audit.Logger
	auditTrail audit.Repository    // nil disables the history endpoint's audit section
	deliveries purchase.WebhookLog // nil disables the history endpoint's delivery section

	// allowUnownedClaims enables the admin unowned-record filter used to
	// surface paid records whose owner could not be resolved.
	allowUnownedClaims bool
}

// NewPurchaseHandlers creates a new PurchaseHandlers instance.
func NewPurchaseHandlers(
	purchases purchase.Repository,
	movies movie.Repository,
	manual *purchase.ManualReview,
	admins *admin.Checker,
	signer ProofSigner,
	auditLog *audit.Logger,
	auditTrail audit.Repository,
	deliveries purchase.WebhookLog,
	allowUnownedClaims bool,
) *PurchaseHandlers {
	return &PurchaseHandlers{
		purchases:          purchases,
		movies:             movies,
		manual:             manual,
		admins:             admins,
		signer:             signer,
		auditLog:           auditLog,
		auditTrail:         auditTrail,
		deliveries:         deliveries,
		allowUnownedClaims: allowUnownedClaims,
	}
}

// HandleListMine returns the caller's ledger records, newest first.
// GET /purchases
func (h *PurchaseHandlers) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	user := middleware.GetUser(ctx)
	if user.ID == "" {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "authentication required")
		return
	}

	records, err := h.purchases.ListByUser(ctx, user.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list purchases", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list purchases")
		return
	}
	WriteJSON(w, ctx, http.StatusOK, map[string]any{"purchases": records})
}

// ProofRequest is the manual bank-transfer submission payload.
type ProofRequest struct {
	MovieID     string `json:"movie_id"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ProofResponse carries the created pending record and the upload URL for
// the proof object.
type ProofResponse struct {
	Purchase *purchase.Purchase `json:"purchase"`
	Upload   *storage.SignedURL `json:"upload"`
}

// HandleSubmitProof creates a pending bank-transfer record and returns a
// presigned PUT URL for the proof object.
// POST /purchases/proof
func (h *PurchaseHandlers) HandleSubmitProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	user := middleware.GetUser(ctx)
	if user.ID == "" {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "authentication required")
		return
	}

	if h.signer == nil {
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeInternal, "proof uploads are not enabled")
		return
	}

	var req ProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON in request body")
		return
	}

	movieID, err := validate.UUID(req.MovieID)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "movie_id must be a valid UUID")
		return
	}

	m, err := h.movies.GetByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, movie.ErrNotFound) {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "movie not found")
			return
		}
		slog.ErrorContext(ctx, "proof: movie lookup failed", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load movie")
		return
	}

	paid, err := h.purchases.HasPaid(ctx, user.ID, movieID)
	if err != nil {
		slog.ErrorContext(ctx, "proof: ownership check failed", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to check existing purchases")
		return
	}
	if paid {
		WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "movie already purchased")
		return
	}

	purchaseID := uuid.New().String()
	signed, err := h.signer.SignProofUpload(ctx, storage.ProofUploadRequest{
		PurchaseID:  purchaseID,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType):
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeUnsupportedType, "content_type is not an accepted proof format")
		case errors.Is(err, storage.ErrFileTooLarge):
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "proof file is too large")
		default:
			slog.ErrorContext(ctx, "proof: presign failed", "movie_id", movieID, "error", err)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to generate upload link")
		}
		return
	}

	p := &purchase.Purchase{
		ID:         purchaseID,
		UserID:     &user.ID,
		MovieID:    &movieID,
		AmountKobo: m.PriceKobo,
		Provider:   purchase.ProviderBankTransfer,
		ProofRef:   &signed.Key,
		Status:     purchase.StatusPending,
	}
	if err := h.purchases.Insert(ctx, p); err != nil {
		slog.ErrorContext(ctx, "proof: insert failed", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to record purchase")
		return
	}

	slog.InfoContext(ctx, "manual purchase submitted",
		"purchase_id", p.ID, "movie_id", movieID, "amount_kobo", p.AmountKobo)
	WriteJSON(w, ctx, http.StatusCreated, ProofResponse{Purchase: p, Upload: signed})
}

// HandleAdminList returns ledger records for review, optionally filtered by
// status.
// GET /admin/purchases?status=pending
func (h *PurchaseHandlers) HandleAdminList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	if !h.requireAdmin(w, r) {
		return
	}

	status := r.URL.Query().Get("status")
	switch status {
	case "", purchase.StatusPending, purchase.StatusPaid, purchase.StatusRejected:
	default:
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "status must be pending, paid, or rejected")
		return
	}

	unowned := r.URL.Query().Get("unowned") == "true"
	if unowned && !h.allowUnownedClaims {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "unowned record review is not enabled")
		return
	}

	records, err := h.purchases.List(ctx, status)
	if err != nil {
		slog.ErrorContext(ctx, "admin: failed to list purchases", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list purchases")
		return
	}
	if unowned {
		claimable := records[:0]
		for _, p := range records {
			if p.UserID == nil {
				claimable = append(claimable, p)
			}
		}
		records = claimable
	}
	WriteJSON(w, ctx, http.StatusOK, map[string]any{"purchases": records})
}

// HandleAdminAction dispatches manual-review transitions and the history
// view.
// POST /admin/purchases/{id}/approve|reject|reopen
// GET  /admin/purchases/{id}/history
func (h *PurchaseHandlers) HandleAdminAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	if !h.requireAdmin(w, r) {
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/admin/purchases/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "unknown admin action")
		return
	}

	id, err := validate.UUID(parts[0])
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "purchase id must be a valid UUID")
		return
	}

	if r.Method == http.MethodGet {
		if parts[1] != "history" {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "unknown admin action")
			return
		}
		h.adminHistory(w, r, id)
		return
	}

	var auditAction string
	switch parts[1] {
	case "approve":
		auditAction = audit.ActionApprovePurchase
		err = h.manual.Approve(ctx, id)
	case "reject":
		auditAction = audit.ActionRejectPurchase
		err = h.manual.Reject(ctx, id)
	case "reopen":
		auditAction = audit.ActionReopenPurchase
		err = h.manual.Reopen(ctx, id)
	default:
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "unknown admin action")
		return
	}

	h.recordAudit(r, id, auditAction, err == nil)

	switch {
	case err == nil:
	case errors.Is(err, purchase.ErrNotFound):
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "purchase not found")
		return
	case errors.Is(err, purchase.ErrNotPending):
		WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "purchase is not pending")
		return
	case errors.Is(err, purchase.ErrNotReopenable):
		WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "purchase cannot be reopened")
		return
	default:
		slog.ErrorContext(ctx, "admin: transition failed", "purchase_id", id, "action", parts[1], "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to update purchase")
		return
	}

	updated, err := h.purchases.GetByID(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "admin: reread failed", "purchase_id", id, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load purchase")
		return
	}

	slog.InfoContext(ctx, "admin transition applied",
		"purchase_id", id, "action", parts[1], "status", updated.Status)
	WriteJSON(w, ctx, http.StatusOK, updated)
}

// AdminHistoryResponse is the support view of a disputed purchase. The
// delivery section is keyed by the record's payment reference and is empty
// for bank transfers.
type AdminHistoryResponse struct {
	Purchase   *purchase.Purchase          `json:"purchase"`
	AuditTrail []*audit.Log                `json:"audit_trail"`
	Deliveries []*purchase.WebhookDelivery `json:"webhook_deliveries"`
}

func (h *PurchaseHandlers) adminHistory(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	p, err := h.purchases.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, purchase.ErrNotFound) {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "purchase not found")
			return
		}
		slog.ErrorContext(ctx, "admin: history lookup failed", "purchase_id", id, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load purchase")
		return
	}

	resp := AdminHistoryResponse{Purchase: p}
	if h.auditTrail != nil {
		trail, err := h.auditTrail.ListByEntity(ctx, audit.EntityPurchase, id)
		if err != nil {
			slog.ErrorContext(ctx, "admin: audit trail lookup failed", "purchase_id", id, "error", err)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load audit trail")
			return
		}
		resp.AuditTrail = trail
	}
	if h.deliveries != nil && p.TxRef != nil {
		dels, err := h.deliveries.ListByTxRef(ctx, *p.TxRef)
		if err != nil {
			slog.ErrorContext(ctx, "admin: delivery log lookup failed", "tx_ref", *p.TxRef, "error", err)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load webhook deliveries")
			return
		}
		resp.Deliveries = dels
	}
	WriteJSON(w, ctx, http.StatusOK, resp)
}

// recordAudit writes an audit entry for an admin transition. Audit failures
// never affect the response.
func (h *PurchaseHandlers) recordAudit(r *http.Request, purchaseID, action string, ok bool) {
	if h.auditLog == nil {
		return
	}
	outcome := audit.OutcomeSuccess
	if !ok {
		outcome = audit.OutcomeFailure
	}
	if err := h.auditLog.Record(r, audit.Entry{
		EntityType: audit.EntityPurchase,
		EntityID:   purchaseID,
		Action:     action,
		Outcome:    outcome,
	}); err != nil {
		slog.WarnContext(r.Context(), "audit: record failed",
			"purchase_id", purchaseID, "action", action, "error", err)
	}
}

// requireAdmin writes a 403 and returns false when the caller is not on the
// allow-list.
func (h *PurchaseHandlers) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	user := middleware.GetUser(ctx)
	if !h.admins.IsAdmin(user.Email) {
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "admin access required")
		return false
	}
	return true
}
