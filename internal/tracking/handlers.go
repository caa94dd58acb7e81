package tracking

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/validation"
)

const maxStartBody = 16 << 10

type Handler struct {
	resolver *Resolver
}

func NewHandler(resolver *Resolver) *Handler {
	return &Handler{
		resolver: resolver,
	}
}

// HandleTrack handles GET /track/{shortCode}
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	// Malformed codes cannot exist in the store
	if err := validation.ValidateShortCode(shortCode); err != nil {
		renderErrorPage(w, r, pageNotFound, http.StatusNotFound)
		return
	}

	now := time.Now()
	redirect, err := h.resolver.Resolve(r.Context(), shortCode, ExtractUTM(r.URL.Query()), RequestContext{
		UserAgent: r.UserAgent(),
		IP:        ClientIP(r),
		Referer:   r.Referer(),
		Now:       now,
	})
	switch {
	case err == nil:
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, redirect.URL, http.StatusFound)
	case errors.Is(err, ErrNotFound):
		renderErrorPage(w, r, pageNotFound, http.StatusNotFound)
	case errors.Is(err, ErrExpired):
		renderErrorPage(w, r, pageExpired, http.StatusGone)
	default:
		log.Error().
			Err(err).
			Str("short_code", shortCode).
			Time("at", now).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Failed to resolve link")
		renderErrorPage(w, r, pageInternal, http.StatusInternalServerError)
	}
}

type webAppStartRequest struct {
	Token string `json:"token"`
	User  *struct {
		ID int64 `json:"id"`
	} `json:"user,omitempty"`
}

type webAppStartResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Error       string `json:"error,omitempty"`
}

// HandleWebAppStart handles POST /webapp-start, called by the Mini App with the start token
func (h *Handler) HandleWebAppStart(w http.ResponseWriter, r *http.Request) {
	var req webAppStartRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStartBody)).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, webAppStartResponse{Error: "Token is required"})
		return
	}

	var visitorID *int64
	if req.User != nil && req.User.ID != 0 {
		visitorID = &req.User.ID
	}

	dest, err := h.resolver.ConsumeToken(r.Context(), req.Token, visitorID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, webAppStartResponse{Success: true, RedirectURL: dest.URL})
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrLinkNotFound):
		writeJSON(w, http.StatusNotFound, webAppStartResponse{Error: "Link not found"})
	case errors.Is(err, ErrTokenConsumed):
		writeJSON(w, http.StatusGone, webAppStartResponse{Error: "Link already used"})
	default:
		log.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Failed to consume start token")
		writeJSON(w, http.StatusInternalServerError, webAppStartResponse{Error: "An internal error occurred"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
