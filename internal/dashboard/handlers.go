package dashboard

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/common/models"
	appctx "chanlinks-go/internal/context"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

type statsResponse struct {
	Success bool                   `json:"success"`
	Stats   *models.DashboardStats `json:"stats,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// HandleGetDashboardStats handles GET /dashboard
func (h *Handler) HandleGetDashboardStats(w http.ResponseWriter, r *http.Request) {
	creator := appctx.GetCreatorFromContext(r.Context())
	if creator == nil {
		writeJSON(w, http.StatusUnauthorized, statsResponse{Error: ErrMissingCreator.Error()})
		return
	}

	stats, err := h.service.GetDashboardStats(r.Context(), creator.TelegramID)
	if err != nil {
		log.Error().
			Err(err).
			Int64("creator_id", creator.TelegramID).
			Msg("Error fetching dashboard stats")
		writeJSON(w, http.StatusInternalServerError, statsResponse{Error: ErrFetchingStats.Error()})
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{Success: true, Stats: stats})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding dashboard response")
	}
}
