package api

import (
	"net/http"
)

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stats"
	if r.Method != http.MethodGet {
		s.notFound(w, r)
		return
	}
	st, err := s.deps.Stats(r.Context(), resolveSince(r.URL.Query().Get("since"), s.now()))
	if err != nil {
		s.internalError(w, r, "Failed to load stats.", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
