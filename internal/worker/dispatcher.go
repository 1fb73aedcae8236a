package worker

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bhamnews/briefing-engine/internal/domain"
	"github.com/bhamnews/briefing-engine/internal/mailer"
)

// DeliveryMarker records a successful campaign delivery on the subscriber.
type DeliveryMarker interface {
	UpdateLastEmailSent(ctx context.Context, id string, at time.Time) error
}

// AuditLog appends one row per delivery attempt.
type AuditLog interface {
	Append(ctx context.Context, entry *domain.EmailLog) error
}

// Dispatcher fans a digest out to a recipient list through a bounded worker
// pool. Every attempt is paced by the rate limiter and audit-logged exactly
// once, success or failure.
type Dispatcher struct {
	sender    mailer.Sender
	templates *mailer.Templates
	marker    DeliveryMarker
	logs      AuditLog
	limiter   Limiter
	siteURL   string
	workers   int

	now func() time.Time
}

// NewDispatcher creates a dispatcher with the given pool size.
func NewDispatcher(sender mailer.Sender, templates *mailer.Templates, marker DeliveryMarker, logs AuditLog, limiter Limiter, siteURL string, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		sender:    sender,
		templates: templates,
		marker:    marker,
		logs:      logs,
		limiter:   limiter,
		siteURL:   strings.TrimRight(siteURL, "/"),
		workers:   workers,
		now:       time.Now,
	}
}

// Run delivers the digest to every recipient and returns exact accounting:
// Sent+Failed always equals the number of recipients actually attempted.
//
// An empty digest or an empty recipient list short-circuits with
// RanSends=false and zero side effects: nothing is sent, nothing is logged.
// Cancelling ctx stops feeding new recipients; attempts already handed to a
// worker complete and are logged.
func (d *Dispatcher) Run(ctx context.Context, digest *domain.Digest, recipients []domain.Subscriber) domain.DispatchStats {
	if digest.Empty() {
		log.Printf("[Dispatch] No articles in window, skipping run")
		return domain.DispatchStats{}
	}
	if len(recipients) == 0 {
		log.Printf("[Dispatch] No eligible recipients, skipping run")
		return domain.DispatchStats{}
	}

	runDate := d.now()
	subject := mailer.BriefingSubject(runDate)

	var sent, failed int64
	jobs := make(chan domain.Subscriber)
	var wg sync.WaitGroup

	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				d.deliver(ctx, sub, digest, subject, runDate, &sent, &failed)
			}
		}()
	}

feed:
	for _, sub := range recipients {
		select {
		case jobs <- sub:
		case <-ctx.Done():
			log.Printf("[Dispatch] Cancelled, stopped feeding recipients")
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	stats := domain.DispatchStats{
		Sent:     int(atomic.LoadInt64(&sent)),
		Failed:   int(atomic.LoadInt64(&failed)),
		RanSends: true,
	}
	stats.Total = stats.Sent + stats.Failed

	log.Printf("[Dispatch] Run complete: %d sent, %d failed of %d recipients", stats.Sent, stats.Failed, len(recipients))
	return stats
}

// deliver sends one briefing and appends exactly one audit row. A recipient
// whose rate-limit wait is cancelled was never attempted and is not counted.
func (d *Dispatcher) deliver(ctx context.Context, sub domain.Subscriber, digest *domain.Digest, subject string, runDate time.Time, sent, failed *int64) {
	if err := d.limiter.Acquire(ctx); err != nil {
		return
	}

	// Past this point the attempt must complete and be logged even if the
	// run is cancelled mid-flight. The sender's own timeout bounds it.
	ctx = context.WithoutCancel(ctx)

	html := d.templates.Briefing(digest.Items, d.unsubscribeURL(sub.UnsubscribeToken), runDate)

	entry := &domain.EmailLog{
		ID:      uuid.New().String(),
		Email:   sub.Email,
		Subject: subject,
		Type:    domain.EmailCampaign,
		Status:  domain.EmailFailed,
	}

	result, err := d.sender.Send(ctx, &mailer.Message{To: sub.Email, Subject: subject, HTML: html})
	switch {
	case err != nil:
		atomic.AddInt64(failed, 1)
		log.Printf("[Dispatch] Send error to %s: %v", sub.Email, err)
	case result.Success:
		atomic.AddInt64(sent, 1)
		entry.Status = domain.EmailSent
		entry.ProviderMessageID = result.MessageID
		if err := d.marker.UpdateLastEmailSent(ctx, sub.ID, result.SentAt); err != nil {
			log.Printf("[Dispatch] Failed to record delivery for %s: %v", sub.Email, err)
		}
	default:
		atomic.AddInt64(failed, 1)
	}

	if err := d.logs.Append(ctx, entry); err != nil {
		log.Printf("[Dispatch] AUDIT LOG WRITE FAILED for %s: %v", sub.Email, err)
	}
}

func (d *Dispatcher) unsubscribeURL(token string) string {
	return d.siteURL + "/newsletter/unsubscribe/" + token
}
