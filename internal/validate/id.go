package validate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identifier validation errors
var (
	ErrInvalidUUID  = errors.New("invalid UUID")
	ErrInvalidTxRef = errors.New("invalid transaction reference")
)

const (
	txRefPrefix = "movie-"
	uuidLength  = 36
)

// UUID validates that s is a well-formed UUID.
// Returns the canonical lowercase form.
func UUID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmpty
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}
	return id.String(), nil
}

// BuildTxRef constructs a transaction reference for a movie purchase.
// The format is movie-{movieID}-{userID}-{unixMillis}, unique per checkout
// attempt and parseable back into its parts.
func BuildTxRef(movieID, userID string, at time.Time) string {
	return fmt.Sprintf("%s%s-%s-%d", txRefPrefix, movieID, userID, at.UnixMilli())
}

// ParseTxRef splits a transaction reference into movie ID and user ID.
// UUIDs contain dashes, so the split is positional rather than delimiter
// based.
func ParseTxRef(txRef string) (movieID, userID string, err error) {
	if !strings.HasPrefix(txRef, txRefPrefix) {
		return "", "", ErrInvalidTxRef
	}
	rest := txRef[len(txRefPrefix):]

	// movieID(36) + "-" + userID(36) + "-" + millis(at least 1 digit)
	if len(rest) < 2*uuidLength+3 {
		return "", "", ErrInvalidTxRef
	}
	movieID = rest[:uuidLength]
	if rest[uuidLength] != '-' {
		return "", "", ErrInvalidTxRef
	}
	userID = rest[uuidLength+1 : 2*uuidLength+1]
	if rest[2*uuidLength+1] != '-' {
		return "", "", ErrInvalidTxRef
	}
	millis := rest[2*uuidLength+2:]
	for _, c := range millis {
		if c < '0' || c > '9' {
			return "", "", ErrInvalidTxRef
		}
	}

	if _, err := uuid.Parse(movieID); err != nil {
		return "", "", fmt.Errorf("%w: bad movie id", ErrInvalidTxRef)
	}
	if _, err := uuid.Parse(userID); err != nil {
		return "", "", fmt.Errorf("%w: bad user id", ErrInvalidTxRef)
	}
	return movieID, userID, nil
}

// TxRef validates a transaction reference without returning its parts.
func TxRef(txRef string) error {
	_, _, err := ParseTxRef(txRef)
	return err
}
