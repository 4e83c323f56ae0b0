package api

import (
	"net/http"
)

// handleLeaderboard handles GET /scoreboard and GET /leaderboard.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		s.notFound(w, r)
		return
	}
	limit := parseLimit(r, s.limit, s.maxLimit)
	since := resolveSince(r.URL.Query().Get("since"), s.now())

	lb, err := s.deps.Leaderboard(r.Context(), limit, since)
	if err != nil {
		s.internalError(w, r, "Failed to load leaderboard.", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
