package subscription

import "errors"

// Sentinel errors for the subscription service layer.
var (
	// ErrInvalidEmail rejects a malformed address before any store access.
	ErrInvalidEmail = errors.New("valid email address required")
	// ErrInvalidToken covers unknown verify and unsubscribe tokens alike.
	// Callers must not distinguish "expired" from "never existed".
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotFound is returned by Store lookups that match nothing.
	ErrNotFound = errors.New("subscriber not found")
	// ErrDuplicate is returned by Store.Create when the unique index on the
	// normalized email rejects the insert.
	ErrDuplicate = errors.New("subscriber already exists")
)
