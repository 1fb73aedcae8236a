package subscription

import (
	"context"
	"time"

	"github.com/bhamnews/briefing-engine/internal/domain"
)

// Store defines the data access contract for subscribers. Implementations
// must enforce the email uniqueness invariant at the store layer (unique
// index), because concurrent subscribes for the same address are possible,
// and must be safe for concurrent use.
type Store interface {
	// GetByEmail returns the subscriber for a normalized address.
	// Returns ErrNotFound if no record exists.
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)

	// GetByVerifyToken does a point lookup on the unique verify_token index.
	GetByVerifyToken(ctx context.Context, token string) (*domain.Subscriber, error)

	// GetByUnsubscribeToken does a point lookup on the unique
	// unsubscribe_token index.
	GetByUnsubscribeToken(ctx context.Context, token string) (*domain.Subscriber, error)

	// Create inserts a new subscriber. Returns ErrDuplicate when the unique
	// email constraint rejects the insert.
	Create(ctx context.Context, s *domain.Subscriber) error

	// MarkVerified sets is_verified=true and clears verify_token, but only
	// if the subscriber is still unverified. Returns the number of rows
	// changed so the caller can detect an already-verified replay.
	MarkVerified(ctx context.Context, id string) (int64, error)

	// Deactivate sets is_active=false. Safe to call repeatedly.
	Deactivate(ctx context.Context, id string) error

	// Reactivate returns an inactive subscriber to the unverified state with
	// a freshly issued verify token. The unsubscribe token is untouched.
	Reactivate(ctx context.Context, id, verifyToken string) error

	// UpdateLastEmailSent records a successful campaign delivery.
	UpdateLastEmailSent(ctx context.Context, id string, at time.Time) error
}

// AuditLog appends one row per delivery attempt to the append-only email
// audit log.
type AuditLog interface {
	Append(ctx context.Context, entry *domain.EmailLog) error
}
