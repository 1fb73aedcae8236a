package subscription

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/bhamnews/briefing-engine/internal/domain"
	"github.com/bhamnews/briefing-engine/internal/mailer"
	"github.com/bhamnews/briefing-engine/internal/token"
)

// SubscribeOutcome classifies what a subscribe request did.
type SubscribeOutcome string

const (
	OutcomeNew                SubscribeOutcome = "new"
	OutcomeAlreadySubscribed  SubscribeOutcome = "already_subscribed"
	OutcomeVerificationResent SubscribeOutcome = "verification_resent"
	OutcomeReactivated        SubscribeOutcome = "reactivated"
)

// SubscribeResult is the user-facing outcome of a subscribe request.
type SubscribeResult struct {
	Outcome SubscribeOutcome `json:"-"`
	Message string           `json:"message"`
}

// VerifyResult reports a verification outcome for the redirect handler.
type VerifyResult struct {
	AlreadyVerified bool
	Email           string
}

// Service owns the subscriber state machine. All public methods are safe
// for concurrent use if the underlying store is concurrency-safe.
type Service struct {
	store     Store
	logs      AuditLog
	sender    mailer.Sender
	templates *mailer.Templates
	tokens    token.Issuer
	siteURL   string
	channel   string
}

// NewService creates a subscription service.
func NewService(store Store, logs AuditLog, sender mailer.Sender, templates *mailer.Templates, siteURL, channel string) *Service {
	return &Service{
		store:     store,
		logs:      logs,
		sender:    sender,
		templates: templates,
		siteURL:   strings.TrimRight(siteURL, "/"),
		channel:   channel,
	}
}

// Subscribe handles a subscribe request for a possibly-new address.
//
// A brand-new address gets a record in the unverified state plus a
// verification email. An unverified repeat gets the verification email again
// with the ORIGINAL token, so earlier links stay valid. A verified active
// subscriber gets an idempotent "already subscribed" answer with no mutation.
// An inactive subscriber is reactivated but demoted to unverified with a
// fresh verify token; the permanent unsubscribe token is kept.
func (s *Service) Subscribe(ctx context.Context, email, firstName, lastName string) (*SubscribeResult, error) {
	email = domain.NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	existing, err := s.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.subscribeExisting(ctx, existing)
	case errors.Is(err, ErrNotFound):
		// fall through to create
	default:
		return nil, fmt.Errorf("lookup subscriber: %w", err)
	}

	sub := &domain.Subscriber{
		ID:               uuid.New().String(),
		Email:            email,
		FirstName:        firstName,
		LastName:         lastName,
		UnsubscribeToken: s.tokens.Issue(),
		IsVerified:       false,
		IsActive:         true,
		Preferences:      []string{s.channel},
	}
	verifyToken := s.tokens.Issue()
	sub.VerifyToken = &verifyToken

	if err := s.store.Create(ctx, sub); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost a race with a concurrent subscribe for the same address.
			// Re-read and treat it as the existing-record case.
			winner, rerr := s.store.GetByEmail(ctx, email)
			if rerr != nil {
				return nil, fmt.Errorf("re-read after duplicate: %w", rerr)
			}
			return s.subscribeExisting(ctx, winner)
		}
		return nil, fmt.Errorf("create subscriber: %w", err)
	}

	if err := s.sendVerification(ctx, email, verifyToken); err != nil {
		return nil, err
	}

	return &SubscribeResult{
		Outcome: OutcomeNew,
		Message: "Please check your email to confirm your subscription.",
	}, nil
}

// subscribeExisting dispatches on the state of an existing record.
func (s *Service) subscribeExisting(ctx context.Context, sub *domain.Subscriber) (*SubscribeResult, error) {
	switch {
	case sub.IsActive && sub.IsVerified:
		// Idempotent: no mutation, no email.
		return &SubscribeResult{
			Outcome: OutcomeAlreadySubscribed,
			Message: "You are already subscribed to the Morning Briefing!",
		}, nil

	case sub.IsActive: // unverified
		if sub.VerifyToken == nil {
			// Unverified without a token should be unreachable; repair by
			// treating it like a reactivation.
			return s.reactivate(ctx, sub)
		}
		if err := s.sendVerification(ctx, sub.Email, *sub.VerifyToken); err != nil {
			return nil, err
		}
		return &SubscribeResult{
			Outcome: OutcomeVerificationResent,
			Message: "Verification email resent. Please check your inbox.",
		}, nil

	default: // inactive: previously unsubscribed
		return s.reactivate(ctx, sub)
	}
}

// reactivate returns an unsubscribed record to the unverified state and
// requires a fresh opt-in confirmation before any campaign is delivered.
func (s *Service) reactivate(ctx context.Context, sub *domain.Subscriber) (*SubscribeResult, error) {
	verifyToken := s.tokens.Issue()
	if err := s.store.Reactivate(ctx, sub.ID, verifyToken); err != nil {
		return nil, fmt.Errorf("reactivate subscriber: %w", err)
	}
	if err := s.sendVerification(ctx, sub.Email, verifyToken); err != nil {
		return nil, err
	}
	return &SubscribeResult{
		Outcome: OutcomeReactivated,
		Message: "Please check your email to confirm your subscription.",
	}, nil
}

// Verify consumes a single-use verification token.
func (s *Service) Verify(ctx context.Context, tok string) (*VerifyResult, error) {
	sub, err := s.store.GetByVerifyToken(ctx, tok)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup verify token: %w", err)
	}

	if sub.IsVerified {
		// Replayed link for an already-verified record: succeed without a
		// second confirmation email.
		return &VerifyResult{AlreadyVerified: true, Email: sub.Email}, nil
	}

	changed, err := s.store.MarkVerified(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	if changed == 0 {
		// A concurrent verify got there first.
		return &VerifyResult{AlreadyVerified: true, Email: sub.Email}, nil
	}

	subject := "Welcome to the Morning Briefing!"
	if err := s.sendAndLog(ctx, sub.Email, subject, s.templates.VerifyConfirmed(), domain.EmailVerifyConfirmation); err != nil {
		return nil, err
	}

	return &VerifyResult{Email: sub.Email}, nil
}

// Unsubscribe deactivates the subscriber behind a permanent unsubscribe
// token. It is idempotent for state: repeated calls leave is_active=false
// and return success. A confirmation email is sent on every call, repeats
// included, and every attempt is audit-logged.
func (s *Service) Unsubscribe(ctx context.Context, tok string) error {
	sub, err := s.store.GetByUnsubscribeToken(ctx, tok)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup unsubscribe token: %w", err)
	}

	if err := s.store.Deactivate(ctx, sub.ID); err != nil {
		return fmt.Errorf("deactivate subscriber: %w", err)
	}

	subject := "You have been unsubscribed"
	if err := s.sendAndLog(ctx, sub.Email, subject, s.templates.UnsubscribeConfirmed(), domain.EmailUnsubscribeConfirm); err != nil {
		return err
	}
	return nil
}

// VerifyURL builds the public verification link for a token.
func (s *Service) VerifyURL(tok string) string {
	return s.siteURL + "/newsletter/verify/" + tok
}

// UnsubscribeURL builds the public unsubscribe link for a token.
func (s *Service) UnsubscribeURL(tok string) string {
	return s.siteURL + "/newsletter/unsubscribe/" + tok
}

func (s *Service) sendVerification(ctx context.Context, email, verifyToken string) error {
	subject := "Confirm your Morning Briefing subscription"
	html := s.templates.Welcome(s.VerifyURL(verifyToken))
	return s.sendAndLog(ctx, email, subject, html, domain.EmailWelcome)
}

// sendAndLog delivers one message and appends exactly one audit row for the
// attempt, success or failure. A provider failure never fails the request;
// an audit-log write failure does (the append-only invariant is load-bearing).
func (s *Service) sendAndLog(ctx context.Context, email, subject, html string, typ domain.EmailType) error {
	entry := &domain.EmailLog{
		ID:      uuid.New().String(),
		Email:   email,
		Subject: subject,
		Type:    typ,
		Status:  domain.EmailFailed,
	}

	result, err := s.sender.Send(ctx, &mailer.Message{To: email, Subject: subject, HTML: html})
	if err != nil {
		log.Printf("[Subscription] Send error (%s to %s): %v", typ, email, err)
	} else if result.Success {
		entry.Status = domain.EmailSent
		entry.ProviderMessageID = result.MessageID
	} else if result.Error != nil {
		log.Printf("[Subscription] Provider rejected %s to %s: %v", typ, email, result.Error)
	}

	if err := s.logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("append email log: %w", err)
	}
	return nil
}
