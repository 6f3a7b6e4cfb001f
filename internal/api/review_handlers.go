package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tundex/cinemarket/internal/middleware"
	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/review"
	"github.com/tundex/cinemarket/internal/validate"
)

// ReviewHandlers holds dependencies for the review endpoints.
type ReviewHandlers struct {
	reviews review.Repository
	movies  movie.Repository
}

// NewReviewHandlers creates a new ReviewHandlers instance.
func NewReviewHandlers(reviews review.Repository, movies movie.Repository) *ReviewHandlers {
	return &ReviewHandlers{reviews: reviews, movies: movies}
}

// ReviewRequest is the create payload.
type ReviewRequest struct {
	Rating  int    `json:"rating"`
	Content string `json:"content"`
}

// HandleMovieReviews dispatches review requests for a movie.
// GET /movies/{id}/reviews (public), POST same (authenticated)
func (h *ReviewHandlers) HandleMovieReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	movieID, err := validate.UUID(pathSegment(r.URL.Path, "/movies"))
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "movie id must be a valid UUID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.listReviews(w, r, movieID)
	case http.MethodPost:
		h.createReview(w, r, movieID)
	default:
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	}
}

func (h *ReviewHandlers) listReviews(w http.ResponseWriter, r *http.Request, movieID string) {
	ctx := r.Context()

	reviews, err := h.reviews.ListByMovie(ctx, movieID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list reviews", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list reviews")
		return
	}
	WriteJSON(w, ctx, http.StatusOK, map[string]any{"reviews": reviews})
}

func (h *ReviewHandlers) createReview(w http.ResponseWriter, r *http.Request, movieID string) {
	ctx := r.Context()

	user := middleware.GetUser(ctx)
	if user.ID == "" {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "authentication required")
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON in request body")
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "rating must be between 1 and 5")
		return
	}

	content := ""
	if req.Content != "" {
		c, err := validate.ReviewContent(req.Content)
		if err != nil {
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "content must be 1-2000 characters")
			return
		}
		content = c
	}

	if _, err := h.movies.GetByID(ctx, movieID); err != nil {
		if errors.Is(err, movie.ErrNotFound) {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "movie not found")
			return
		}
		slog.ErrorContext(ctx, "review: movie lookup failed", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load movie")
		return
	}

	rev := &review.Review{
		MovieID: movieID,
		UserID:  user.ID,
		Rating:  req.Rating,
		Content: content,
	}
	if err := h.reviews.Insert(ctx, rev); err != nil {
		slog.ErrorContext(ctx, "failed to create review", "movie_id", movieID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to create review")
		return
	}

	WriteJSON(w, ctx, http.StatusCreated, rev)
}
