package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Keywords accepted by the since query parameter.
const (
	sinceToday = "today"
	sinceWeek  = "week"
	sinceMonth = "month"
)

// parseLimit reads the limit query parameter. Missing or non-integer values
// yield def; everything else is clamped to [1, maxLimit].
func parseLimit(r *http.Request, def, maxLimit int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return min(max(n, 1), maxLimit)
}

// resolveSince expands the since keywords relative to now. Any other value is
// passed through unchanged; the repository ignores what it cannot parse.
func resolveSince(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	now = now.UTC()
	switch strings.ToLower(raw) {
	case sinceToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	case sinceWeek:
		return now.AddDate(0, 0, -7).Format(time.RFC3339)
	case sinceMonth:
		return now.AddDate(0, 0, -30).Format(time.RFC3339)
	}
	return raw
}

// clientKey identifies the caller for rate limiting. Proxy headers are only
// honored when trusted; otherwise the socket peer address is used.
func clientKey(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := strings.TrimSpace(r.Header.Get("Fly-Client-IP")); ip != "" {
			return ip
		}
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
