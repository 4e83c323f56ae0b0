package smoke

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/types"
)

const (
	secretHeader         = "X-Scoreboard-Secret"
	dispatchStatusHeader = "X-Dispatch-Status"
)

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeAccepted
	outcomeRelayFailed
	outcomeRateLimited
)

// client talks to one scoreboard service.
type client struct {
	base   string
	secret string
	http   *http.Client
}

func newClient(base, secret string, timeout time.Duration) *client {
	return &client{
		base:   strings.TrimRight(base, "/"),
		secret: secret,
		http:   &http.Client{Timeout: timeout},
	}
}

func (c *client) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// submit posts e the way the game client does: a base64 encoded JSON line.
func (c *client) submit(ctx context.Context, e model.Entry) (outcome, error) {
	line, err := json.Marshal(e)
	if err != nil {
		return outcomeFailed, err
	}
	body, err := json.Marshal(map[string]string{"line_b64": base64.StdEncoding.EncodeToString(line)})
	if err != nil {
		return outcomeFailed, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/scoreboard", bytes.NewReader(body))
	if err != nil {
		return outcomeFailed, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(secretHeader, c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return outcomeFailed, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusAccepted && resp.Header.Get(dispatchStatusHeader) == "failed":
		return outcomeRelayFailed, nil
	case resp.StatusCode == http.StatusAccepted:
		return outcomeAccepted, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return outcomeRateLimited, nil
	default:
		return outcomeFailed, fmt.Errorf("submit %s: status %d", e.ID, resp.StatusCode)
	}
}

func (c *client) leaderboard(ctx context.Context, limit int) (types.Leaderboard, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/scoreboard?"+q.Encode(), nil)
	if err != nil {
		return types.Leaderboard{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return types.Leaderboard{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return types.Leaderboard{}, fmt.Errorf("leaderboard returned %d", resp.StatusCode)
	}

	var lb types.Leaderboard
	if err := json.NewDecoder(resp.Body).Decode(&lb); err != nil {
		return types.Leaderboard{}, fmt.Errorf("decode leaderboard: %w", err)
	}
	return lb, nil
}
