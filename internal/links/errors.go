package links

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/validation"
)

var (
	ErrLinkNotFound       = errors.New("link not found")
	ErrUnauthorized       = errors.New("unauthorized access to link")
	ErrShortCodeConflict  = errors.New("short code already in use")
	ErrClickLimitReached  = errors.New("link click limit reached")
	ErrExperimentNotFound = errors.New("experiment not found")
	ErrExperimentExists   = errors.New("experiment already exists")
	ErrInvalidExpiry      = errors.New("expiry must be in the future")
)

// APIError is the JSON error envelope of the link API
type APIError struct {
	Success bool                         `json:"success"`
	Error   string                       `json:"error"`
	Details []validation.ValidationError `json:"details,omitempty"`
}

// HandleError sends a standardized error response
func HandleError(w http.ResponseWriter, message string, status int) {
	writeError(w, &APIError{Error: message}, status)
}

// HandleValidationError sends the formatted validation failures
func HandleValidationError(w http.ResponseWriter, err error) {
	writeError(w, &APIError{
		Error:   "Invalid request",
		Details: validation.FormatError(err),
	}, http.StatusBadRequest)
}

func writeError(w http.ResponseWriter, apiErr *APIError, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		log.Error().
			Err(err).
			Str("api_error", apiErr.Error).
			Msg("failed to encode error response")
	}
}

// statusFor maps service errors to an HTTP status and a message safe to show
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrLinkNotFound):
		return http.StatusNotFound, "Link not found"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden, "You do not own this link"
	case errors.Is(err, ErrShortCodeConflict):
		return http.StatusConflict, "Could not allocate a short code, please retry"
	case errors.Is(err, ErrExperimentNotFound):
		return http.StatusBadRequest, "Experiment not found"
	case errors.Is(err, ErrExperimentExists):
		return http.StatusConflict, "Experiment name already in use"
	case errors.Is(err, ErrInvalidExpiry):
		return http.StatusBadRequest, "Expiry must be in the future"
	default:
		return http.StatusInternalServerError, "An internal error occurred"
	}
}
