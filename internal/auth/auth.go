// Package auth gates the dispatch trigger behind provisioned API keys.
package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/bhamnews/briefing-engine/internal/domain"
)

// HeaderAPIKey carries the caller's key on dispatch requests.
const HeaderAPIKey = "X-API-Key"

// ErrKeyNotFound is returned by KeyStore lookups that match nothing.
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore is the persistence contract for API keys.
type KeyStore interface {
	// GetByKey does a point lookup on the unique key column.
	GetByKey(ctx context.Context, key string) (*domain.APIKey, error)
	// TouchLastUsed stamps last_used_at. Best-effort.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// Gate decides whether a presented API key may trigger a dispatch.
type Gate struct {
	store KeyStore
}

// NewGate creates an API-key gate over the given store.
func NewGate(store KeyStore) *Gate {
	return &Gate{store: store}
}

// IsAuthorized reports whether the key exists and is active. On success the
// key's last_used_at is stamped in the background; a failed stamp is logged
// and never blocks or reverses the decision.
func (g *Gate) IsAuthorized(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}

	apiKey, err := g.store.GetByKey(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			log.Printf("[Auth] Key lookup failed: %v", err)
		}
		return false
	}
	if !apiKey.IsActive {
		return false
	}

	go func(id string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.store.TouchLastUsed(ctx, id, time.Now()); err != nil {
			log.Printf("[Auth] Failed to stamp last_used_at for key %s: %v", id, err)
		}
	}(apiKey.ID)

	return true
}

// Require is chi middleware that rejects requests without a valid API key.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.IsAuthorized(r.Context(), r.Header.Get(HeaderAPIKey)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
