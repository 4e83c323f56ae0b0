// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/scoreboard/internal/domain/auth"
	"github.com/okian/scoreboard/internal/domain/types"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

const (
	defaultLimit    = 10
	defaultMaxLimit = 100
	// maxBodyBytes bounds a POST /scoreboard body.
	maxBodyBytes = 4096
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Limiter

	// Submit stores and relays one decoded POST body.
	Submit(ctx context.Context, body map[string]any) (types.Receipt, error)

	// Read operations expose leaderboard data.
	Leaderboard(ctx context.Context, limit int, since string) (types.Leaderboard, error)
	Stats(ctx context.Context, since string) (types.Stats, error)
}

// PageRenderer renders the HTML leaderboard.
type PageRenderer interface {
	Render(w io.Writer, lb types.Leaderboard) error
}

// Server wires HTTP routes for the scoreboard API.
type Server struct {
	deps       Dependencies
	policy     auth.Policy
	page       PageRenderer
	limit      int
	maxLimit   int
	trustProxy bool
	now        func() time.Time
	log        logger.Logger
}

// NewServer creates a new API server. Without WithAuthPolicy every POST is
// accepted.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		policy:   auth.AllowAll{},
		limit:    defaultLimit,
		maxLimit: defaultMaxLimit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("api")
	}
	s.limit = min(max(s.limit, 1), s.maxLimit)
	return s
}

// Register attaches all HTTP routes to mux. Operational routes (/metrics) are
// not rate limited; everything else, including unknown paths, is.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	limited := func(h http.HandlerFunc, endpoint string) http.HandlerFunc {
		return MetricsMiddleware(RateLimitMiddleware(h, s.deps, s.trustProxy), endpoint)
	}

	mux.HandleFunc("/healthz", limited(s.handleHealth, "healthz"))
	mux.HandleFunc("/scoreboard", limited(s.handleScoreboard, "scoreboard"))
	mux.HandleFunc("/leaderboard", limited(s.handleLeaderboard, "leaderboard"))
	mux.HandleFunc("/stats", limited(s.handleStats, "stats"))
	mux.HandleFunc("/", limited(s.handleRoot, "root"))

	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
}

// handleScoreboard routes /scoreboard by method.
func (s *Server) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleLeaderboard(w, r)
	case http.MethodPost:
		s.handleSubmit(w, r)
	default:
		s.notFound(w, r)
	}
}

// handleRoot serves the HTML page at exactly "/" and 404s everything else.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_page"
	if r.URL.Path != "/" || r.Method != http.MethodGet || s.page == nil {
		s.notFound(w, r)
		return
	}
	lb, err := s.deps.Leaderboard(r.Context(), parseLimit(r, s.limit, s.maxLimit), resolveSince(r.URL.Query().Get("since"), s.now()))
	if err != nil {
		s.internalError(w, r, "Failed to load leaderboard.", Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.page.Render(w, lb); err != nil {
		s.log.Error(r.Context(), "render leaderboard page", logger.Error(Wrap(op, err)))
	}
}

func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Unknown path.")
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.log.Error(r.Context(), msg, logger.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, types.ErrorResponse{Code: status, Message: msg})
}
