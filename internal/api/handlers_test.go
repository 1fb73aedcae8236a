package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhamnews/briefing-engine/internal/auth"
	"github.com/bhamnews/briefing-engine/internal/domain"
	"github.com/bhamnews/briefing-engine/internal/mailer"
	"github.com/bhamnews/briefing-engine/internal/service/briefing"
	"github.com/bhamnews/briefing-engine/internal/service/subscription"
	"github.com/bhamnews/briefing-engine/internal/worker"
)

const testSite = "https://bellinghambreakingnews.com"

type memStore struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscriber
}

func newMemStore() *memStore { return &memStore{subs: make(map[string]*domain.Subscriber)} }

func (m *memStore) find(match func(*domain.Subscriber) bool) (*domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, subscription.ErrNotFound
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*domain.Subscriber, error) {
	return m.find(func(s *domain.Subscriber) bool { return s.Email == email })
}

func (m *memStore) GetByVerifyToken(_ context.Context, tok string) (*domain.Subscriber, error) {
	return m.find(func(s *domain.Subscriber) bool { return s.VerifyToken != nil && *s.VerifyToken == tok })
}

func (m *memStore) GetByUnsubscribeToken(_ context.Context, tok string) (*domain.Subscriber, error) {
	return m.find(func(s *domain.Subscriber) bool { return s.UnsubscribeToken == tok })
}

func (m *memStore) Create(_ context.Context, s *domain.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[cp.ID] = &cp
	return nil
}

func (m *memStore) MarkVerified(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok || s.IsVerified {
		return 0, nil
	}
	s.IsVerified = true
	s.VerifyToken = nil
	return 1, nil
}

func (m *memStore) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		s.IsActive = false
	}
	return nil
}

func (m *memStore) Reactivate(_ context.Context, id, verifyToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		s.IsActive = true
		s.IsVerified = false
		s.VerifyToken = &verifyToken
	}
	return nil
}

func (m *memStore) UpdateLastEmailSent(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		s.LastEmailSent = &at
	}
	return nil
}

func (m *memStore) SelectRecipients(_ context.Context, channel string) ([]domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscriber
	for _, s := range m.subs {
		if s.IsActive && s.IsVerified && s.HasPreference(channel) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) only() domain.Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		return *s
	}
	panic("empty store")
}

type memLog struct {
	mu      sync.Mutex
	entries []domain.EmailLog
}

func (m *memLog) Append(_ context.Context, e *domain.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

type okSender struct{}

func (okSender) Send(_ context.Context, _ *mailer.Message) (*mailer.SendResult, error) {
	return &mailer.SendResult{Success: true, MessageID: "mid", SentAt: time.Now()}, nil
}

type fixedSource struct{ items []domain.ArticleSummary }

func (f *fixedSource) PublishedSince(_ context.Context, _ time.Time) ([]domain.ArticleSummary, error) {
	return f.items, nil
}

type noLimit struct{}

func (noLimit) Acquire(ctx context.Context) error { return ctx.Err() }

type memKeyStore struct{ keys map[string]*domain.APIKey }

func (m *memKeyStore) GetByKey(_ context.Context, key string) (*domain.APIKey, error) {
	if k, ok := m.keys[key]; ok {
		return k, nil
	}
	return nil, auth.ErrKeyNotFound
}

func (m *memKeyStore) TouchLastUsed(_ context.Context, _ string, _ time.Time) error { return nil }

type testEnv struct {
	router http.Handler
	store  *memStore
	logs   *memLog
}

func newTestEnv(t *testing.T, articles []domain.ArticleSummary) *testEnv {
	t.Helper()
	tpl, err := mailer.NewTemplates(testSite)
	require.NoError(t, err)

	store := newMemStore()
	logs := &memLog{}
	sender := okSender{}

	subs := subscription.NewService(store, logs, sender, tpl, testSite, "morning_briefing")
	builder := briefing.NewBuilder(&fixedSource{items: articles}, store, "morning_briefing", 24*time.Hour, 10)
	dispatcher := worker.NewDispatcher(sender, tpl, store, logs, noLimit{}, testSite, 2)

	gate := auth.NewGate(&memKeyStore{keys: map[string]*domain.APIKey{
		"good-key": {ID: "k1", Key: "good-key", IsActive: true},
	}})

	h := NewHandlers(subs, builder, dispatcher, testSite)
	return &testEnv{router: SetupRoutes(h, gate), store: store, logs: logs}
}

func (e *testEnv) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubscribeEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/newsletter/subscribe",
		[]byte(`{"email":"Jane@Example.com","first_name":"Jane"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Please check your email to confirm your subscription.", resp["message"])
	assert.Equal(t, "jane@example.com", env.store.only().Email)
}

func TestSubscribeEndpointRejectsBadEmail(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/newsletter/subscribe",
		[]byte(`{"email":"not-an-address"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/newsletter/subscribe", []byte(`{not json`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyRedirects(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodPost, "/api/newsletter/subscribe", []byte(`{"email":"jane@example.com"}`), nil)
	token := *env.store.only().VerifyToken

	rec := env.do(http.MethodGet, "/newsletter/verify/"+token, nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testSite+"/?subscribed=true", rec.Header().Get("Location"))

	// The consumed token now redirects like any unknown token.
	rec = env.do(http.MethodGet, "/newsletter/verify/"+token, nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testSite+"/?error=invalid-token", rec.Header().Get("Location"))
}

func TestUnsubscribeRedirects(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodPost, "/api/newsletter/subscribe", []byte(`{"email":"jane@example.com"}`), nil)
	token := env.store.only().UnsubscribeToken

	rec := env.do(http.MethodGet, "/newsletter/unsubscribe/"+token, nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testSite+"/?unsubscribed=true", rec.Header().Get("Location"))
	assert.False(t, env.store.only().IsActive)

	rec = env.do(http.MethodGet, "/newsletter/unsubscribe/bogus", nil, nil)
	assert.Equal(t, testSite+"/?error=invalid-token", rec.Header().Get("Location"))
}

func TestDispatchRequiresAPIKey(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/newsletter/dispatch", []byte(`{}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/newsletter/dispatch", []byte(`{}`),
		map[string]string{auth.HeaderAPIKey: "bad-key"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatchEndpoint(t *testing.T) {
	env := newTestEnv(t, []domain.ArticleSummary{
		{Title: "Waterfront fire contained", PublishedAt: time.Now().Add(-time.Hour)},
	})

	// One verified recipient.
	env.do(http.MethodPost, "/api/newsletter/subscribe", []byte(`{"email":"jane@example.com"}`), nil)
	token := *env.store.only().VerifyToken
	env.do(http.MethodGet, "/newsletter/verify/"+token, nil, nil)

	rec := env.do(http.MethodPost, "/api/newsletter/dispatch", []byte(`{}`),
		map[string]string{auth.HeaderAPIKey: "good-key"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.RanSends)
	assert.Equal(t, 1, resp.Stats.Sent)
	assert.Equal(t, 0, resp.Stats.Failed)
	assert.Equal(t, 1, resp.Stats.Total)
}

func TestDispatchEmptyDigest(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/newsletter/dispatch", []byte(`{}`),
		map[string]string{auth.HeaderAPIKey: "good-key"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.RanSends)
	assert.Zero(t, resp.Stats.Total)
}
