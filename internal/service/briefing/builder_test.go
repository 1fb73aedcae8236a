package briefing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhamnews/briefing-engine/internal/domain"
)

type fakeSource struct {
	items []domain.ArticleSummary
	err   error
}

func (f *fakeSource) PublishedSince(_ context.Context, since time.Time) ([]domain.ArticleSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.ArticleSummary
	for _, a := range f.items {
		if !a.PublishedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeRecipients struct {
	subs []domain.Subscriber
	err  error
}

func (f *fakeRecipients) SelectRecipients(_ context.Context, _ string) ([]domain.Subscriber, error) {
	return f.subs, f.err
}

func article(title string, breaking bool, publishedAgo time.Duration, now time.Time) domain.ArticleSummary {
	return domain.ArticleSummary{
		Title:       title,
		IsBreaking:  breaking,
		PublishedAt: now.Add(-publishedAgo),
	}
}

func newTestBuilder(src *fakeSource, now time.Time) *Builder {
	b := NewBuilder(src, &fakeRecipients{}, "morning_briefing", 24*time.Hour, 10)
	b.now = func() time.Time { return now }
	return b
}

func titles(items []domain.ArticleSummary) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.Title
	}
	return out
}

func TestBuildDigestOrdersBreakingFirstThenNewest(t *testing.T) {
	now := time.Date(2026, 8, 27, 6, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []domain.ArticleSummary{
		article("old regular", false, 20*time.Hour, now),
		article("new regular", false, 1*time.Hour, now),
		article("old breaking", true, 18*time.Hour, now),
		article("new breaking", true, 2*time.Hour, now),
	}}

	d, err := newTestBuilder(src, now).BuildDigest(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"new breaking", "old breaking", "new regular", "old regular"},
		titles(d.Items))
	assert.Equal(t, now.Add(-24*time.Hour), d.WindowStart)
}

func TestBuildDigestWindowExcludesOldAndFuture(t *testing.T) {
	now := time.Date(2026, 8, 27, 6, 0, 0, 0, time.UTC)
	src := &fakeSource{items: []domain.ArticleSummary{
		article("inside", false, 2*time.Hour, now),
		article("too old", false, 30*time.Hour, now),
		article("future", false, -1*time.Hour, now), // published_at ahead of now
	}}

	d, err := newTestBuilder(src, now).BuildDigest(context.Background(), 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"inside"}, titles(d.Items))
}

func TestBuildDigestTruncatesToMaxItems(t *testing.T) {
	now := time.Date(2026, 8, 27, 6, 0, 0, 0, time.UTC)
	src := &fakeSource{}
	for i := 0; i < 15; i++ {
		src.items = append(src.items, article("a", false, time.Duration(i)*time.Minute, now))
	}

	d, err := newTestBuilder(src, now).BuildDigest(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, d.Items, 10)

	d, err = newTestBuilder(src, now).BuildDigest(context.Background(), 0, 3)
	require.NoError(t, err)
	assert.Len(t, d.Items, 3)
}

func TestBuildDigestEmptyWindowIsNotAnError(t *testing.T) {
	now := time.Date(2026, 8, 27, 6, 0, 0, 0, time.UTC)
	d, err := newTestBuilder(&fakeSource{}, now).BuildDigest(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.True(t, d.Empty())
}

func TestBuildDigestPropagatesSourceError(t *testing.T) {
	now := time.Now()
	src := &fakeSource{err: errors.New("feed down")}
	_, err := newTestBuilder(src, now).BuildDigest(context.Background(), 0, 0)
	assert.Error(t, err)
}

func TestSelectRecipients(t *testing.T) {
	store := &fakeRecipients{subs: []domain.Subscriber{
		{ID: "a", Email: "a@example.com"},
		{ID: "b", Email: "b@example.com"},
	}}
	b := NewBuilder(&fakeSource{}, store, "morning_briefing", time.Hour, 5)

	got, err := b.SelectRecipients(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
