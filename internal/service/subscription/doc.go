// Package subscription implements the newsletter subscriber lifecycle:
// token-based double opt-in, verification, and idempotent unsubscribe.
//
// The service layer owns the subscriber state machine. It depends on the
// Store and AuditLog contracts defined in this package and should never
// import from api/. Store implementations live in repository/postgres/.
package subscription
