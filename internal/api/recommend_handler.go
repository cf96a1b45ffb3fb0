package api

import (
	"net/http"
)

// ListRecommendations возвращает подсказки по истории запусков.
// GET /api/v1/recommendations?kind=top|flaky&limit=...&min_runs=...
func (h *Handler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	if h.recommender == nil {
		NotFound(w, "recommendations are not enabled")
		return
	}

	limit := queryInt(r, "limit", 10)

	switch kind := r.URL.Query().Get("kind"); kind {
	case "", "top":
		suggestions, err := h.recommender.TopWorkflows(r.Context(), limit)
		if err != nil {
			InternalError(w, h.logger, err)
			return
		}
		List(w, suggestions, len(suggestions))

	case "flaky":
		minRuns := queryInt(r, "min_runs", 3)
		suggestions, err := h.recommender.Flaky(r.Context(), minRuns, limit)
		if err != nil {
			InternalError(w, h.logger, err)
			return
		}
		List(w, suggestions, len(suggestions))

	default:
		BadRequest(w, "unknown kind: "+kind)
	}
}
