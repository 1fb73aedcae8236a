package domain

import "time"

// ArticleSummary is the read-only projection of a published article that the
// campaign builder consumes. The article store itself is owned elsewhere.
type ArticleSummary struct {
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Category    string    `json:"category"`
	URL         string    `json:"url"`
	IsBreaking  bool      `json:"is_breaking"`
	PublishedAt time.Time `json:"published_at"`
}

// Digest is one batch of selected content assembled for a single dispatch
// run. It is ephemeral: computed per run, never persisted.
type Digest struct {
	Items       []ArticleSummary `json:"items"`
	WindowStart time.Time        `json:"window_start"`
	MaxItems    int              `json:"max_items"`
}

// Empty reports whether there is nothing to send.
func (d *Digest) Empty() bool { return d == nil || len(d.Items) == 0 }

// DispatchStats is the aggregate outcome of one dispatch run.
// Sent+Failed always equals the number of attempted recipients.
type DispatchStats struct {
	Sent     int  `json:"sent"`
	Failed   int  `json:"failed"`
	Total    int  `json:"total"`
	RanSends bool `json:"ran_sends"`
}
