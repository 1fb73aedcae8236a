package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/bhamnews/briefing-engine/internal/domain"
	"github.com/bhamnews/briefing-engine/internal/service/subscription"
)

const subscriberColumns = `id, email, first_name, last_name, verify_token,
	unsubscribe_token, is_verified, is_active, preferences,
	last_email_sent, created_at, updated_at`

// SubscriberRepo implements subscription.Store and the briefing recipient
// selection against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := row.Scan(
		&s.ID, &s.Email, &s.FirstName, &s.LastName, &s.VerifyToken,
		&s.UnsubscribeToken, &s.IsVerified, &s.IsActive, pq.Array(&s.Preferences),
		&s.LastEmailSent, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SubscriberRepo) getBy(ctx context.Context, where string, arg interface{}) (*domain.Subscriber, error) {
	q := fmt.Sprintf("SELECT %s FROM subscribers WHERE %s = $1", subscriberColumns, where)
	s, err := scanSubscriber(r.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscription.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber by %s: %w", where, err)
	}
	return s, nil
}

func (r *SubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	return r.getBy(ctx, "email", email)
}

func (r *SubscriberRepo) GetByVerifyToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	return r.getBy(ctx, "verify_token", token)
}

func (r *SubscriberRepo) GetByUnsubscribeToken(ctx context.Context, token string) (*domain.Subscriber, error) {
	return r.getBy(ctx, "unsubscribe_token", token)
}

func (r *SubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscribers
			(id, email, first_name, last_name, verify_token, unsubscribe_token,
			 is_verified, is_active, preferences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, s.ID, s.Email, s.FirstName, s.LastName, s.VerifyToken, s.UnsubscribeToken,
		s.IsVerified, s.IsActive, pq.Array(s.Preferences))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return subscription.ErrDuplicate
		}
		return fmt.Errorf("create subscriber: %w", err)
	}
	return nil
}

// MarkVerified flips an unverified subscriber and consumes the verify token
// in one guarded statement, so a replayed or concurrent verify cannot apply
// twice.
func (r *SubscriberRepo) MarkVerified(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscribers
		SET is_verified = true, verify_token = NULL, updated_at = NOW()
		WHERE id = $1 AND is_verified = false
	`, id)
	if err != nil {
		return 0, fmt.Errorf("mark verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark verified rows: %w", err)
	}
	return n, nil
}

func (r *SubscriberRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscribers SET is_active = false, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate subscriber: %w", err)
	}
	return nil
}

func (r *SubscriberRepo) Reactivate(ctx context.Context, id, verifyToken string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscribers
		SET is_active = true, is_verified = false, verify_token = $2, updated_at = NOW()
		WHERE id = $1
	`, id, verifyToken)
	if err != nil {
		return fmt.Errorf("reactivate subscriber: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (r *SubscriberRepo) UpdateLastEmailSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscribers SET last_email_sent = $2, updated_at = NOW()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("update last_email_sent: %w", err)
	}
	return nil
}

// SelectRecipients returns every subscriber eligible for a channel: active,
// verified, and opted into the channel.
func (r *SubscriberRepo) SelectRecipients(ctx context.Context, channel string) ([]domain.Subscriber, error) {
	q := fmt.Sprintf(`
		SELECT %s FROM subscribers
		WHERE is_active = true AND is_verified = true AND $1 = ANY(preferences)
		ORDER BY created_at
	`, subscriberColumns)

	rows, err := r.db.QueryContext(ctx, q, channel)
	if err != nil {
		return nil, fmt.Errorf("select recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select recipients: %w", err)
	}
	return out, nil
}
