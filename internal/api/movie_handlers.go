package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tundex/cinemarket/internal/admin"
	"github.com/tundex/cinemarket/internal/audit"
	"github.com/tundex/cinemarket/internal/middleware"
	"github.com/tundex/cinemarket/internal/movie"
	"github.com/tundex/cinemarket/internal/validate"
)

// MovieHandlers holds dependencies for the catalog endpoints.
type MovieHandlers struct {
	movies   movie.Repository
	admins   *admin.Checker
	auditLog *audit.Logger
}

// NewMovieHandlers creates a new MovieHandlers instance.
func NewMovieHandlers(movies movie.Repository, admins *admin.Checker, auditLog *audit.Logger) *MovieHandlers {
	return &MovieHandlers{movies: movies, admins: admins, auditLog: auditLog}
}

// MovieRequest is the create/update payload for catalog management.
type MovieRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Year        int    `json:"year"`
	Genre       string `json:"genre"`
	PriceKobo   int64  `json:"price_kobo"`
	PosterURL   string `json:"poster_url"`
	FilePath    string `json:"file_path"`
	TrailerURL  string `json:"trailer_url"`
}

// HandleListMovies returns the public catalog.
// GET /movies
func (h *MovieHandlers) HandleListMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	movies, err := h.movies.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list movies", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list movies")
		return
	}
	WriteJSON(w, ctx, http.StatusOK, map[string]any{"movies": movies})
}

// HandleGetMovie returns a single catalog entry.
// GET /movies/{id}
func (h *MovieHandlers) HandleGetMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	id, err := validate.UUID(pathSegment(r.URL.Path, "/movies"))
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "movie id must be a valid UUID")
		return
	}

	m, err := h.movies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, movie.ErrNotFound) {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "movie not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get movie", "movie_id", id, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to get movie")
		return
	}
	WriteJSON(w, ctx, http.StatusOK, m)
}

// HandleAdminMovies dispatches catalog management requests.
// POST /admin/movies, PUT /admin/movies/{id}, DELETE /admin/movies/{id}
func (h *MovieHandlers) HandleAdminMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user := middleware.GetUser(ctx)
	if !h.admins.IsAdmin(user.Email) {
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "admin access required")
		return
	}

	id := pathSegment(r.URL.Path, "/admin/movies")

	switch {
	case r.Method == http.MethodPost && id == "":
		h.createMovie(w, r)
	case r.Method == http.MethodPut && id != "":
		h.updateMovie(w, r, id)
	case r.Method == http.MethodDelete && id != "":
		h.deleteMovie(w, r, id)
	default:
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	}
}

func (h *MovieHandlers) createMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decodeMovieRequest(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	m := &movie.Movie{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Year:        req.Year,
		Genre:       req.Genre,
		PriceKobo:   req.PriceKobo,
		PosterURL:   req.PosterURL,
		FilePath:    req.FilePath,
		TrailerURL:  req.TrailerURL,
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}
	err := h.movies.Insert(ctx, m)
	h.recordAudit(r, m.ID, audit.ActionCreateMovie, err == nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create movie", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to create movie")
		return
	}

	slog.InfoContext(ctx, "movie created", "movie_id", m.ID, "title", m.Title)
	WriteJSON(w, ctx, http.StatusCreated, m)
}

func (h *MovieHandlers) updateMovie(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	id, err := validate.UUID(id)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "movie id must be a valid UUID")
		return
	}

	req, ok := h.decodeMovieRequest(w, r)
	if !ok {
		return
	}

	existing, err := h.movies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, movie.ErrNotFound) {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "movie not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get movie", "movie_id", id, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to get movie")
		return
	}

	now := time.Now().UTC()
	existing.Title = req.Title
	existing.Description = req.Description
	existing.Year = req.Year
	existing.Genre = req.Genre
	existing.PriceKobo = req.PriceKobo
	existing.PosterURL = req.PosterURL
	if req.FilePath != "" {
		existing.FilePath = req.FilePath
	}
	existing.TrailerURL = req.TrailerURL
	existing.UpdatedAt = &now

	err = h.movies.Update(ctx, existing)
	h.recordAudit(r, id, audit.ActionUpdateMovie, err == nil)
	if err != nil {
		if errors.Is(err, movie.ErrNotFound) {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "movie not found")
			return
		}
		slog.ErrorContext(ctx, "failed to update movie", "movie_id", id, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to update movie")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, existing)
}

func (h *MovieHandlers) deleteMovie(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	id, err := validate.UUID(id)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "movie id must be a valid UUID")
		return
	}

	err = h.movies.Delete(ctx, id)
	h.recordAudit(r, id, audit.ActionDeleteMovie, err == nil)
	if err != nil {
		if errors.Is(err, movie.ErrNotFound) {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "movie not found")
			return
		}
		slog.ErrorContext(ctx, "failed to delete movie", "movie_id", id, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to delete movie")
		return
	}

	slog.InfoContext(ctx, "movie deleted", "movie_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// recordAudit writes an audit entry for a catalog mutation. Audit failures
// never affect the response.
func (h *MovieHandlers) recordAudit(r *http.Request, movieID, action string, ok bool) {
	if h.auditLog == nil {
		return
	}
	outcome := audit.OutcomeSuccess
	if !ok {
		outcome = audit.OutcomeFailure
	}
	if err := h.auditLog.Record(r, audit.Entry{
		EntityType: audit.EntityMovie,
		EntityID:   movieID,
		Action:     action,
		Outcome:    outcome,
	}); err != nil {
		slog.WarnContext(r.Context(), "audit: record failed",
			"movie_id", movieID, "action", action, "error", err)
	}
}

// decodeMovieRequest parses and validates the management payload. On failure
// the error response has already been written.
func (h *MovieHandlers) decodeMovieRequest(w http.ResponseWriter, r *http.Request) (*MovieRequest, bool) {
	ctx := r.Context()

	var req MovieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON in request body")
		return nil, false
	}

	title, err := validate.MovieTitle(req.Title)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "title must be 1-200 characters")
		return nil, false
	}
	req.Title = title

	desc, err := validate.Description(req.Description)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "description is too long")
		return nil, false
	}
	req.Description = desc

	if req.Genre != "" {
		genre, err := validate.Genre(req.Genre)
		if err != nil {
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "genre contains invalid characters")
			return nil, false
		}
		req.Genre = genre
	}

	if req.PriceKobo <= 0 {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "price_kobo must be positive")
		return nil, false
	}

	if req.PosterURL != "" {
		if _, err := validate.PosterURL(req.PosterURL); err != nil {
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "poster_url is not an acceptable URL")
			return nil, false
		}
	}
	if req.TrailerURL != "" {
		if _, err := validate.TrailerURL(req.TrailerURL); err != nil {
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "trailer_url is not an acceptable URL")
			return nil, false
		}
	}

	return &req, true
}

// pathSegment extracts the first path segment after prefix.
// Returns "" when there is none.
func pathSegment(path, prefix string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(path, prefix), "/")
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
