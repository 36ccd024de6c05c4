// Package artist owns the per-user roster of fictional artist profiles.
package artist

import "time"

// Artist is a fictional musical identity used to condition generation
// requests: a name plus a free-text style description.
type Artist struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	Style     string    `json:"style"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImportRecord is an externally supplied roster candidate. Records with an
// empty trimmed name are dropped during import.
type ImportRecord struct {
	Name  string `json:"name"`
	Style string `json:"style"`
}

// ImportResult reports what an import merge changed.
type ImportResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}
