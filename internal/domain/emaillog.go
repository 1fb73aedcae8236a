package domain

import "time"

// EmailType classifies a delivery attempt in the audit log.
type EmailType string

const (
	EmailWelcome            EmailType = "welcome"
	EmailVerifyConfirmation EmailType = "verify-confirmation"
	EmailCampaign           EmailType = "campaign"
	EmailUnsubscribeConfirm EmailType = "unsubscribe-confirmation"
)

// EmailStatus records the outcome of a delivery attempt.
type EmailStatus string

const (
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// EmailLog is one row of the append-only delivery audit log. Every send
// attempt, success or failure, produces exactly one row. Rows are never
// updated or deleted by this system.
type EmailLog struct {
	ID                string      `json:"id" db:"id"`
	Email             string      `json:"email" db:"email"`
	Subject           string      `json:"subject" db:"subject"`
	Type              EmailType   `json:"type" db:"type"`
	Status            EmailStatus `json:"status" db:"status"`
	ProviderMessageID string      `json:"provider_message_id,omitempty" db:"provider_message_id"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
}
