package mailer

import (
	"html"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/osteele/liquid"

	"github.com/bhamnews/briefing-engine/internal/domain"
)

const welcomeTemplate = `
<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:24px;">
  <h2>Confirm your Morning Briefing subscription</h2>
  <p>Thanks for signing up. Click the button below to confirm your email
  address and start receiving the daily briefing.</p>
  <p style="margin:32px 0;">
    <a href="{{ verify_url }}" style="background:#b91c1c;color:#ffffff;padding:12px 24px;text-decoration:none;border-radius:4px;">Confirm subscription</a>
  </p>
  <p style="color:#6b7280;font-size:13px;">If you didn't request this, you can ignore this email.</p>
</div>`

const verifyConfirmedTemplate = `
<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:24px;">
  <h2>You're in!</h2>
  <p>Your subscription to the Morning Briefing is confirmed. The next edition
  lands in your inbox tomorrow morning.</p>
  <p><a href="{{ site_url }}">Read today's headlines</a></p>
</div>`

const briefingTemplate = `
<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:24px;">
  <h1 style="font-size:22px;">Morning Briefing</h1>
  <p style="color:#6b7280;">{{ date }}</p>
  {% for article in articles %}
  <div style="margin:20px 0;border-bottom:1px solid #e5e7eb;padding-bottom:16px;">
    {% if article.is_breaking %}<span style="color:#b91c1c;font-weight:bold;font-size:12px;">BREAKING</span>{% endif %}
    <h3 style="margin:4px 0;"><a href="{{ article.url }}" style="color:#111827;text-decoration:none;">{{ article.title }}</a></h3>
    <p style="color:#374151;margin:4px 0;">{{ article.excerpt }}</p>
    <span style="color:#9ca3af;font-size:12px;text-transform:uppercase;">{{ article.category }}</span>
  </div>
  {% endfor %}
  <p style="color:#9ca3af;font-size:12px;margin-top:32px;">
    You're receiving this because you subscribed to the Morning Briefing.
    <a href="{{ unsubscribe_url }}" style="color:#9ca3af;">Unsubscribe</a>
  </p>
</div>`

const unsubscribeConfirmedTemplate = `
<div style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:24px;">
  <h2>You have been unsubscribed</h2>
  <p>You won't receive any more Morning Briefing emails. If this was a
  mistake, you can subscribe again at <a href="{{ site_url }}">{{ site_url }}</a>.</p>
</div>`

// Templates renders all newsletter message bodies. Templates are parsed once
// at construction; rendering is pure and safe for concurrent use.
type Templates struct {
	engine  *liquid.Engine
	siteURL string

	mu       sync.Mutex
	compiled map[string]*liquid.Template
}

// NewTemplates creates the template renderer. Parse failures are programmer
// errors in the embedded templates and surface immediately.
func NewTemplates(siteURL string) (*Templates, error) {
	engine := liquid.NewEngine()
	engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})
	engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	t := &Templates{
		engine:   engine,
		siteURL:  siteURL,
		compiled: make(map[string]*liquid.Template),
	}

	for name, src := range map[string]string{
		"welcome":      welcomeTemplate,
		"verified":     verifyConfirmedTemplate,
		"briefing":     briefingTemplate,
		"unsubscribed": unsubscribeConfirmedTemplate,
	} {
		tpl, err := engine.ParseString(src)
		if err != nil {
			return nil, err
		}
		t.compiled[name] = tpl
	}
	return t, nil
}

func (t *Templates) render(name string, ctx map[string]interface{}) string {
	t.mu.Lock()
	tpl := t.compiled[name]
	t.mu.Unlock()

	out, err := tpl.RenderString(ctx)
	if err != nil {
		// Rendering is pure; an error here means a bad binding, not a bad
		// recipient. Log and return what we have so the send still proceeds.
		log.Printf("[Templates] Render error for %s: %v", name, err)
		return out
	}
	return out
}

// Welcome renders the verification email sent on subscribe.
func (t *Templates) Welcome(verifyURL string) string {
	return t.render("welcome", map[string]interface{}{
		"verify_url": verifyURL,
		"site_url":   t.siteURL,
	})
}

// VerifyConfirmed renders the post-verification confirmation email.
func (t *Templates) VerifyConfirmed() string {
	return t.render("verified", map[string]interface{}{
		"site_url": t.siteURL,
	})
}

// UnsubscribeConfirmed renders the unsubscribe confirmation email.
func (t *Templates) UnsubscribeConfirmed() string {
	return t.render("unsubscribed", map[string]interface{}{
		"site_url": t.siteURL,
	})
}

// Briefing renders the campaign body for one recipient. The unsubscribe URL
// is the only per-recipient variation.
func (t *Templates) Briefing(items []domain.ArticleSummary, unsubscribeURL string, date time.Time) string {
	articles := make([]map[string]interface{}, 0, len(items))
	for _, a := range items {
		articles = append(articles, map[string]interface{}{
			"title":       a.Title,
			"excerpt":     a.Excerpt,
			"category":    a.Category,
			"url":         a.URL,
			"is_breaking": a.IsBreaking,
		})
	}
	return t.render("briefing", map[string]interface{}{
		"articles":        articles,
		"date":            date.Format("Monday, January 2, 2006"),
		"unsubscribe_url": unsubscribeURL,
		"site_url":        t.siteURL,
	})
}

// BriefingSubject returns the campaign subject line for the given day.
func BriefingSubject(date time.Time) string {
	return "Morning Briefing - " + date.Format("Jan 2")
}
