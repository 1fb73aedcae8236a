package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bhamnews/briefing-engine/internal/domain"
)

// EmailLogRepo is the append-only email audit log. Rows are inserted once
// per delivery attempt and never updated or deleted by this code.
type EmailLogRepo struct{ db *sql.DB }

// NewEmailLogRepo creates a Postgres-backed email log.
func NewEmailLogRepo(db *sql.DB) *EmailLogRepo { return &EmailLogRepo{db: db} }

func (r *EmailLogRepo) Append(ctx context.Context, e *domain.EmailLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_logs (id, email, subject, type, status, provider_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())
	`, e.ID, e.Email, e.Subject, e.Type, e.Status, e.ProviderMessageID)
	if err != nil {
		return fmt.Errorf("append email log: %w", err)
	}
	return nil
}
