package articles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/bhamnews/briefing-engine/internal/domain"
)

// FeedSource reads articles from the site's public RSS feed. It implements
// Source so the builder can run against a feed instead of the site database.
type FeedSource struct {
	url    string
	parser *gofeed.Parser
}

// NewFeedSource creates a feed-backed article source for the given feed URL.
func NewFeedSource(url string) *FeedSource {
	return &FeedSource{url: url, parser: gofeed.NewParser()}
}

func (f *FeedSource) PublishedSince(ctx context.Context, since time.Time) ([]domain.ArticleSummary, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}

	var out []domain.ArticleSummary
	for _, item := range feed.Items {
		if item.PublishedParsed == nil {
			continue
		}
		published := *item.PublishedParsed
		if published.Before(since) {
			continue
		}
		out = append(out, domain.ArticleSummary{
			Title:       item.Title,
			Excerpt:     item.Description,
			Category:    firstCategory(item.Categories),
			URL:         item.Link,
			IsBreaking:  isBreaking(item.Categories),
			PublishedAt: published,
		})
	}
	return out, nil
}

func firstCategory(cats []string) string {
	if len(cats) == 0 {
		return ""
	}
	return cats[0]
}

// isBreaking checks the feed item's categories for the site's breaking tag.
func isBreaking(cats []string) bool {
	for _, c := range cats {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "breaking", "breaking news", "breaking-news":
			return true
		}
	}
	return false
}
