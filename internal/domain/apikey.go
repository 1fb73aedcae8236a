package domain

import "time"

// APIKey authorizes the dispatch trigger endpoint. Keys are provisioned out
// of band; this service only reads them and stamps last use.
type APIKey struct {
	ID         string     `json:"id" db:"id"`
	Key        string     `json:"-" db:"key"`
	Name       string     `json:"name" db:"name"`
	IsActive   bool       `json:"is_active" db:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
