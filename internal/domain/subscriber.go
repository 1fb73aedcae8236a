package domain

import (
	"strings"
	"time"
)

// ChannelMorningBriefing is the preference channel for the daily digest.
const ChannelMorningBriefing = "morning_briefing"

// Subscriber represents a single newsletter recipient.
//
// State machine over (IsVerified, IsActive):
//
//	Unverified      (false, true)   initial state after subscribe
//	Verified-Active (true,  true)   receives campaigns
//	Inactive        (*,     false)  reached only via unsubscribe
type Subscriber struct {
	ID        string `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// VerifyToken is single-use: present while unverified, cleared exactly
	// once on successful verification.
	VerifyToken *string `json:"-" db:"verify_token"`
	// UnsubscribeToken is permanent: issued at subscribe time, never rotated.
	UnsubscribeToken string `json:"-" db:"unsubscribe_token"`

	IsVerified  bool     `json:"is_verified" db:"is_verified"`
	IsActive    bool     `json:"is_active" db:"is_active"`
	Preferences []string `json:"preferences" db:"preferences"`

	LastEmailSent *time.Time `json:"last_email_sent,omitempty" db:"last_email_sent"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// HasPreference reports whether the subscriber opted into the given channel.
func (s *Subscriber) HasPreference(channel string) bool {
	for _, p := range s.Preferences {
		if p == channel {
			return true
		}
	}
	return false
}

// Eligible reports whether the subscriber should receive campaigns on the
// given channel.
func (s *Subscriber) Eligible(channel string) bool {
	return s.IsActive && s.IsVerified && s.HasPreference(channel)
}

// NormalizeEmail lowercases and trims an address. The normalized form is the
// unique identity key for subscribers.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
