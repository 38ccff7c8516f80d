package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tutorhub/apiserver/internal/services"
)

// StatsHandler serves the per-caller dashboard aggregate.
type StatsHandler struct {
	statsService *services.StatsService
}

func NewStatsHandler(statsService *services.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

func StatsRouter(r chi.Router, handler *StatsHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware).Get("/", handler.GetStats)
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	stats, err := h.statsService.ForCaller(r.Context(), identity)
	if err != nil {
		writeServiceError(w, r, err, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
