package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tundex/cinemarket/internal/middleware"
	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/purchase"
	"github.com/tundex/cinemarket/internal/storage"
	"github.com/tundex/cinemarket/internal/validate"
)

// DownloadSigner issues presigned GET URLs for stored movie files.
// *storage.Signer satisfies this interface.
type DownloadSigner interface {
	SignDownload(ctx context.Context, key string) (*storage.SignedURL, error)
}

// DownloadHandlers holds dependencies for the paid-download endpoint.
type DownloadHandlers struct {
	movies    movie.Repository
	purchases purchase.Repository
	signer    DownloadSigner
}

// NewDownloadHandlers creates a new DownloadHandlers instance.
func NewDownloadHandlers(movies movie.Repository, purchases purchase.Repository, signer DownloadSigner) *DownloadHandlers {
	return &DownloadHandlers{movies: movies, purchases: purchases, signer: signer}
}

// HandleDownload gates movie file access on a paid ledger record.
// GET /movies/{id}/download
//
// The ledger is the sole authority: no paid record for (caller, movie)
// means no URL, regardless of what any payment channel reported.
func (h *DownloadHandlers) HandleDownload(w http.ResponseWriter, r *http.Request) {
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

	movieID, err := validate.UUID(pathSegment(r.URL.Path, "/movies"))
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "movie id must be a valid UUID")
		return
	}

	m, err := h.movies.GetByID(ctx, movieID)
	if err != nil {
		if errors.Is(err, movie.ErrNotFound) {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "movie not found")
			return
		}
		slog.ErrorContext(ctx, "download: movie lookup failed", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load movie")
		return
	}

	paid, err := h.purchases.HasPaid(ctx, user.ID, movieID)
	if err != nil {
		slog.ErrorContext(ctx, "download: ownership check failed", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to check purchase")
		return
	}
	if !paid {
		WriteError(w, ctx, http.StatusForbidden, ErrCodeNotPurchased, "movie has not been purchased")
		return
	}

	if m.FilePath == "" {
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "movie file is not available")
		return
	}

	signed, err := h.signer.SignDownload(ctx, m.FilePath)
	if err != nil {
		slog.ErrorContext(ctx, "download: presign failed", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to generate download link")
		return
	}

	slog.InfoContext(ctx, "download link issued", "movie_id", movieID)
	WriteJSON(w, ctx, http.StatusOK, signed)
}
