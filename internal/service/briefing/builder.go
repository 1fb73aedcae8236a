package briefing

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/bhamnews/briefing-engine/internal/articles"
	"github.com/bhamnews/briefing-engine/internal/domain"
)

// RecipientStore selects the subscribers eligible for a channel. The
// predicate (active, verified, channel in preferences) is enforced by the
// implementation; the builder trusts the returned set.
type RecipientStore interface {
	SelectRecipients(ctx context.Context, channel string) ([]domain.Subscriber, error)
}

// Builder assembles digests and recipient lists for dispatch runs.
type Builder struct {
	source  articles.Source
	store   RecipientStore
	channel string

	defaultWindow time.Duration
	defaultMax    int

	now func() time.Time
}

// NewBuilder creates a campaign builder. window and maxItems are the defaults
// applied when BuildDigest is called with zero values.
func NewBuilder(source articles.Source, store RecipientStore, channel string, window time.Duration, maxItems int) *Builder {
	return &Builder{
		source:        source,
		store:         store,
		channel:       channel,
		defaultWindow: window,
		defaultMax:    maxItems,
		now:           time.Now,
	}
}

// BuildDigest selects articles published inside [now-window, now], orders
// them breaking-first then newest-first, and truncates to maxItems. An empty
// window is not an error; callers check Digest.Empty and short-circuit.
func (b *Builder) BuildDigest(ctx context.Context, window time.Duration, maxItems int) (*domain.Digest, error) {
	if window <= 0 {
		window = b.defaultWindow
	}
	if maxItems <= 0 {
		maxItems = b.defaultMax
	}

	now := b.now()
	since := now.Add(-window)

	items, err := b.source.PublishedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}

	// Sources may return items outside the window (feed edge dates, clock
	// skew on published_at). Filter to the exact window here.
	filtered := items[:0]
	for _, a := range items {
		if a.PublishedAt.Before(since) || a.PublishedAt.After(now) {
			continue
		}
		filtered = append(filtered, a)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].IsBreaking != filtered[j].IsBreaking {
			return filtered[i].IsBreaking
		}
		return filtered[i].PublishedAt.After(filtered[j].PublishedAt)
	})

	if len(filtered) > maxItems {
		filtered = filtered[:maxItems]
	}

	log.Printf("[Briefing] Built digest: %d items (window %s, max %d)", len(filtered), window, maxItems)

	return &domain.Digest{
		Items:       filtered,
		WindowStart: since,
		MaxItems:    maxItems,
	}, nil
}

// SelectRecipients returns the eligible subscriber set for this builder's
// channel.
func (b *Builder) SelectRecipients(ctx context.Context) ([]domain.Subscriber, error) {
	recipients, err := b.store.SelectRecipients(ctx, b.channel)
	if err != nil {
		return nil, fmt.Errorf("select recipients: %w", err)
	}
	log.Printf("[Briefing] Selected %d recipients for %s", len(recipients), b.channel)
	return recipients, nil
}
