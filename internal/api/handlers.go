package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bhamnews/briefing-engine/internal/domain"
	"github.com/bhamnews/briefing-engine/internal/service/briefing"
	"github.com/bhamnews/briefing-engine/internal/service/subscription"
	"github.com/bhamnews/briefing-engine/internal/worker"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	subs       *subscription.Service
	builder    *briefing.Builder
	dispatcher *worker.Dispatcher
	siteURL    string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(subs *subscription.Service, builder *briefing.Builder, dispatcher *worker.Dispatcher, siteURL string) *Handlers {
	return &Handlers{
		subs:       subs,
		builder:    builder,
		dispatcher: dispatcher,
		siteURL:    siteURL,
	}
}

// HealthCheck reports liveness.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type subscribeRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// HandleSubscribe starts or repeats the opt-in flow for an address.
//
//	POST /api/newsletter/subscribe
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.subs.Subscribe(r.Context(), req.Email, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidEmail) {
			respondError(w, http.StatusBadRequest, "Valid email address required")
			return
		}
		log.Printf("[API] Subscribe failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to process subscription")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": result.Message})
}

// HandleVerify consumes a verification token and redirects to the site.
// The redirect never reveals whether an invalid token once existed.
//
//	GET /newsletter/verify/{token}
func (h *Handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	result, err := h.subs.Verify(r.Context(), token)
	switch {
	case errors.Is(err, subscription.ErrInvalidToken):
		h.redirect(w, r, "?error=invalid-token")
	case err != nil:
		log.Printf("[API] Verify failed: %v", err)
		h.redirect(w, r, "?error=server-error")
	case result.AlreadyVerified:
		h.redirect(w, r, "?message=already-verified")
	default:
		h.redirect(w, r, "?subscribed=true")
	}
}

// HandleUnsubscribe deactivates the subscriber behind a permanent token and
// redirects to the site.
//
//	GET /newsletter/unsubscribe/{token}
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	err := h.subs.Unsubscribe(r.Context(), token)
	switch {
	case errors.Is(err, subscription.ErrInvalidToken):
		h.redirect(w, r, "?error=invalid-token")
	case err != nil:
		log.Printf("[API] Unsubscribe failed: %v", err)
		h.redirect(w, r, "?error=server-error")
	default:
		h.redirect(w, r, "?unsubscribed=true")
	}
}

type dispatchRequest struct {
	WindowHours int `json:"window_hours"`
	MaxItems    int `json:"max_items"`
}

type dispatchResponse struct {
	RanSends bool                 `json:"ran_sends"`
	Stats    domain.DispatchStats `json:"stats"`
}

// HandleDispatch builds the digest and runs a dispatch. Guarded by the
// API-key middleware; zero values fall back to configured defaults.
//
//	POST /api/newsletter/dispatch
func (h *Handlers) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	digest, err := h.builder.BuildDigest(r.Context(), time.Duration(req.WindowHours)*time.Hour, req.MaxItems)
	if err != nil {
		log.Printf("[API] Digest build failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to build digest")
		return
	}

	recipients, err := h.builder.SelectRecipients(r.Context())
	if err != nil {
		log.Printf("[API] Recipient selection failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to select recipients")
		return
	}

	stats := h.dispatcher.Run(r.Context(), digest, recipients)
	respondJSON(w, http.StatusOK, dispatchResponse{RanSends: stats.RanSends, Stats: stats})
}

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, query string) {
	http.Redirect(w, r, h.siteURL+"/"+query, http.StatusFound)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
