package tracking

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

type errorPage struct {
	Icon    string
	Title   string
	Message string
}

var (
	pageNotFound = errorPage{
		Icon:    "🔍",
		Title:   "Link not found",
		Message: "This link does not exist or is no longer available.",
	}
	pageExpired = errorPage{
		Icon:    "⌛",
		Title:   "Link expired",
		Message: "This link has expired or reached its click limit.",
	}
	pageInternal = errorPage{
		Icon:    "⚙️",
		Title:   "Something went wrong",
		Message: "We could not open this link right now. Please try again later.",
	}
)

func renderErrorPage(w http.ResponseWriter, r *http.Request, page errorPage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := ErrorPage(page).Render(r.Context(), w); err != nil {
		log.Error().Err(err).Str("page", page.Title).Msg("Failed to render error page")
	}
}
