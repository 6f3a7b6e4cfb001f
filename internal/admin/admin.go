// Package admin decides which callers may use the management endpoints.
// Membership is a static allow-list of email addresses loaded from
// configuration; there is no role table and no fallback identity.
package admin

import "strings"

// Checker answers whether an email belongs to the admin allow-list.
type Checker struct {
	emails map[string]struct{}
}

// NewChecker builds a Checker from the configured admin emails.
// Comparison is case-insensitive.
func NewChecker(emails []string) *Checker {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return &Checker{emails: set}
}

// IsAdmin reports whether email is on the allow-list.
// An empty email is never an admin.
func (c *Checker) IsAdmin(email string) bool {
	if email == "" {
		return false
	}
	_, ok := c.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Size returns the number of allow-listed emails.
func (c *Checker) Size() int {
	return len(c.emails)
}
