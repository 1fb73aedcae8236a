// Package articles defines the read-only article source contract used by the
// briefing builder, plus an RSS feed-backed implementation for deployments
// that do not share the site's database.
package articles

import (
	"context"
	"time"

	"github.com/bhamnews/briefing-engine/internal/domain"
)

// Source yields published articles for digest building. Implementations may
// return items in any order; the builder owns ordering and truncation.
type Source interface {
	// PublishedSince returns published articles with published_at >= since.
	PublishedSince(ctx context.Context, since time.Time) ([]domain.ArticleSummary, error)
}
