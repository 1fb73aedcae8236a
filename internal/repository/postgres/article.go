package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bhamnews/briefing-engine/internal/domain"
)

// ArticleRepo reads published articles from the site database. It implements
// articles.Source; the articles table is owned by the site, this service
// never writes it.
type ArticleRepo struct {
	db      *sql.DB
	siteURL string
}

// NewArticleRepo creates a Postgres-backed article source. siteURL is used
// to build the public article links from slugs.
func NewArticleRepo(db *sql.DB, siteURL string) *ArticleRepo {
	return &ArticleRepo{db: db, siteURL: strings.TrimRight(siteURL, "/")}
}

func (r *ArticleRepo) PublishedSince(ctx context.Context, since time.Time) ([]domain.ArticleSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT title, COALESCE(excerpt,''), COALESCE(category,''), slug, is_breaking, published_at
		FROM articles
		WHERE is_published = true AND published_at >= $1
		ORDER BY published_at DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []domain.ArticleSummary
	for rows.Next() {
		var a domain.ArticleSummary
		var slug string
		if err := rows.Scan(&a.Title, &a.Excerpt, &a.Category, &slug, &a.IsBreaking, &a.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.URL = r.siteURL + "/news/" + slug
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	return out, nil
}
