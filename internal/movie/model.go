// Package movie provides models and repository for the movie catalog.
package movie

import "time"

// Movie represents a purchasable movie in the catalog.
// FilePath points at the object in private storage; it is never exposed
// directly, only through time-limited signed URLs.
type Movie struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Year        int        `json:"year,omitempty"`
	Genre       string     `json:"genre,omitempty"`
	PriceKobo   int64      `json:"price_kobo"`
	PosterURL   string     `json:"poster_url,omitempty"`
	FilePath    string     `json:"-"`
	TrailerURL  string     `json:"trailer_url,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
