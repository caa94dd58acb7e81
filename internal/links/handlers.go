package links

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/common/models"
	appctx "chanlinks-go/internal/context"
	"chanlinks-go/internal/validation"
)

const maxRequestBody = 64 << 10

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

type createLinkResponse struct {
	Success bool `json:"success"`
	*CreateLinkResponse
}

type listLinksResponse struct {
	Success bool           `json:"success"`
	Links   []*models.Link `json:"links"`
}

type analyticsResponse struct {
	Success   bool                  `json:"success"`
	Analytics *models.LinkAnalytics `json:"analytics"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// HandleCreateLink handles POST /create-link
func (h *Handler) HandleCreateLink(w http.ResponseWriter, r *http.Request) {
	creator := appctx.GetCreatorFromContext(r.Context())
	if creator == nil {
		HandleError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateLinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		HandleError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.Validate(&req); err != nil {
		HandleValidationError(w, err)
		return
	}

	response, err := h.service.CreateLink(r.Context(), creator.TelegramID, &req)
	if err != nil {
		h.handleServiceError(w, r, err, "creating link")
		return
	}

	writeJSON(w, http.StatusCreated, createLinkResponse{Success: true, CreateLinkResponse: response})
}

// HandleListLinks handles GET /links
func (h *Handler) HandleListLinks(w http.ResponseWriter, r *http.Request) {
	creator := appctx.GetCreatorFromContext(r.Context())
	if creator == nil {
		HandleError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	links, err := h.service.ListLinks(r.Context(), creator.TelegramID)
	if err != nil {
		h.handleServiceError(w, r, err, "listing links")
		return
	}

	writeJSON(w, http.StatusOK, listLinksResponse{Success: true, Links: links})
}

// HandleGetAnalytics handles GET /analytics/{linkId}
func (h *Handler) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	creator := appctx.GetCreatorFromContext(r.Context())
	if creator == nil {
		HandleError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	linkID, err := uuid.Parse(chi.URLParam(r, "linkId"))
	if err != nil {
		HandleError(w, "Invalid link id", http.StatusBadRequest)
		return
	}

	analytics, err := h.service.GetAnalytics(r.Context(), linkID, creator.TelegramID)
	if err != nil {
		h.handleServiceError(w, r, err, "loading analytics")
		return
	}

	writeJSON(w, http.StatusOK, analyticsResponse{Success: true, Analytics: analytics})
}

// HandleDeleteLink handles DELETE /links/{linkId}
func (h *Handler) HandleDeleteLink(w http.ResponseWriter, r *http.Request) {
	creator := appctx.GetCreatorFromContext(r.Context())
	if creator == nil {
		HandleError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	linkID, err := uuid.Parse(chi.URLParam(r, "linkId"))
	if err != nil {
		HandleError(w, "Invalid link id", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteLink(r.Context(), linkID, creator.TelegramID); err != nil {
		h.handleServiceError(w, r, err, "deleting link")
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("path", r.URL.Path).
			Msg("Failed " + action)
	}
	HandleError(w, message, status)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
