package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tundex/cinemarket/internal/admin"
	"github.com/tundex/cinemarket/internal/audit"
	"github.com/tundex/cinemarket/internal/movie"
)

type movieFixture struct {
	handlers  *MovieHandlers
	movies    *movie.InMemoryRepository
	auditRepo *audit.InMemoryRepository
}

func newMovieFixture(t *testing.T) *movieFixture {
	t.Helper()
	f := &movieFixture{
		movies:    movie.NewInMemoryRepository(),
		auditRepo: audit.NewInMemoryRepository(),
	}
	admins := admin.NewChecker([]string{adminEmail})
	f.handlers = NewMovieHandlers(f.movies, admins, audit.NewLogger(f.auditRepo))
	return f
}

func (f *movieFixture) seed(t *testing.T) *movie.Movie {
	t.Helper()
	m := &movie.Movie{ID: testMovieID, Title: "The Long Heist", PriceKobo: 150000}
	if err := f.movies.Insert(context.Background(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return m
}

func TestListMovies(t *testing.T) {
	f := newMovieFixture(t)
	f.seed(t)

	req := httptest.NewRequest(http.MethodGet, "/movies", nil)
	rec := httptest.NewRecorder()
	f.handlers.HandleListMovies(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Movies []*movie.Movie `json:"movies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Movies) != 1 || resp.Movies[0].Title != "The Long Heist" {
		t.Errorf("movies = %+v", resp.Movies)
	}
}

func TestGetMovie(t *testing.T) {
	f := newMovieFixture(t)
	f.seed(t)

	req := httptest.NewRequest(http.MethodGet, "/movies/"+testMovieID, nil)
	rec := httptest.NewRecorder()
	f.handlers.HandleGetMovie(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var m movie.Movie
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.ID != testMovieID {
		t.Errorf("ID = %q", m.ID)
	}
}

func TestGetMovieNotFound(t *testing.T) {
	f := newMovieFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/movies/cccccccc-cccc-4ccc-8ccc-cccccccccccc", nil)
	rec := httptest.NewRecorder()
	f.handlers.HandleGetMovie(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetMovieInvalidID(t *testing.T) {
	f := newMovieFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/movies/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	f.handlers.HandleGetMovie(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func (f *movieFixture) adminDo(method, path, body, email string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = authedRequest(req, "admin-user", email)
	rec := httptest.NewRecorder()
	f.handlers.HandleAdminMovies(rec, req)
	return rec
}

const validMovieBody = `{"title":"New Release","description":"A film.","year":2026,"genre":"Drama","price_kobo":200000}`

func TestAdminMoviesForbiddenForNonAdmin(t *testing.T) {
	f := newMovieFixture(t)

	rec := f.adminDo(http.MethodPost, "/admin/movies", validMovieBody, "random@example.com")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAdminCreateMovie(t *testing.T) {
	f := newMovieFixture(t)

	rec := f.adminDo(http.MethodPost, "/admin/movies", validMovieBody, adminEmail)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var created movie.Movie
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Title != "New Release" {
		t.Errorf("created = %+v", created)
	}

	logs, _ := f.auditRepo.ListByEntity(context.Background(), audit.EntityMovie, created.ID)
	if len(logs) != 1 || logs[0].Action != audit.ActionCreateMovie {
		t.Errorf("audit logs = %+v", logs)
	}
}

func TestAdminCreateMovieValidation(t *testing.T) {
	f := newMovieFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"price_kobo":200000}`},
		{"zero price", `{"title":"X","price_kobo":0}`},
		{"negative price", `{"title":"X","price_kobo":-100}`},
		{"bad poster URL", `{"title":"X","price_kobo":100,"poster_url":"javascript:alert(1)"}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.adminDo(http.MethodPost, "/admin/movies", tt.body, adminEmail)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAdminUpdateMovie(t *testing.T) {
	f := newMovieFixture(t)
	f.seed(t)

	body := `{"title":"The Long Heist (Remastered)","price_kobo":180000}`
	rec := f.adminDo(http.MethodPut, "/admin/movies/"+testMovieID, body, adminEmail)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	got, _ := f.movies.GetByID(context.Background(), testMovieID)
	if got.Title != "The Long Heist (Remastered)" || got.PriceKobo != 180000 {
		t.Errorf("movie = %+v", got)
	}
}

func TestAdminUpdateMovieNotFound(t *testing.T) {
	f := newMovieFixture(t)

	rec := f.adminDo(http.MethodPut, "/admin/movies/cccccccc-cccc-4ccc-8ccc-cccccccccccc", validMovieBody, adminEmail)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAdminDeleteMovie(t *testing.T) {
	f := newMovieFixture(t)
	f.seed(t)

	rec := f.adminDo(http.MethodDelete, "/admin/movies/"+testMovieID, "", adminEmail)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	if _, err := f.movies.GetByID(context.Background(), testMovieID); err == nil {
		t.Error("movie still exists after delete")
	}

	logs, _ := f.auditRepo.ListByEntity(context.Background(), audit.EntityMovie, testMovieID)
	if len(logs) != 1 || logs[0].Action != audit.ActionDeleteMovie {
		t.Errorf("audit logs = %+v", logs)
	}
}

func TestAdminMoviesMethodDispatch(t *testing.T) {
	f := newMovieFixture(t)

	// POST with an id and PUT without one are both invalid shapes.
	if rec := f.adminDo(http.MethodPost, "/admin/movies/"+testMovieID, validMovieBody, adminEmail); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST with id: status = %d, want 405", rec.Code)
	}
	if rec := f.adminDo(http.MethodPut, "/admin/movies", validMovieBody, adminEmail); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT without id: status = %d, want 405", rec.Code)
	}
}

func TestPathSegment(t *testing.T) {
	tests := []struct {
		path, prefix, want string
	}{
		{"/movies/abc", "/movies", "abc"},
		{"/movies/abc/download", "/movies", "abc"},
		{"/movies", "/movies", ""},
		{"/admin/movies/xyz", "/admin/movies", "xyz"},
	}
	for _, tt := range tests {
		if got := pathSegment(tt.path, tt.prefix); got != tt.want {
			t.Errorf("pathSegment(%q, %q) = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}
