package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scoreboard/internal/adapters/http/api"
	"github.com/okian/scoreboard/internal/adapters/repository"
	"github.com/okian/scoreboard/internal/domain/auth"
	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/types"
	"github.com/okian/scoreboard/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type leaderboardCall struct {
	limit int
	since string
}

type mockDependencies struct {
	mu        sync.Mutex
	allow     bool
	allowKeys []string
	bodies    []map[string]any
	receipt   types.Receipt
	submitErr error
	lb        types.Leaderboard
	readErr   error
	calls     []leaderboardCall
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		allow:   true,
		receipt: types.Receipt{Entry: model.Entry{ID: "e1"}, Dispatch: types.DispatchSent},
		lb: types.Leaderboard{
			TopLevels:   []model.Entry{},
			FastestRuns: []model.Entry{},
			Stats:       types.EmptyStats(),
		},
	}
}

func (m *mockDependencies) Allow(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowKeys = append(m.allowKeys, key)
	return m.allow
}

func (m *mockDependencies) Submit(_ context.Context, body map[string]any) (types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, body)
	return m.receipt, m.submitErr
}

func (m *mockDependencies) Leaderboard(_ context.Context, limit int, since string) (types.Leaderboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, leaderboardCall{limit: limit, since: since})
	return m.lb, m.readErr
}

func (m *mockDependencies) Stats(_ context.Context, since string) (types.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, leaderboardCall{since: since})
	return m.lb.Stats, m.readErr
}

type stubPage struct{}

func (stubPage) Render(w io.Writer, lb types.Leaderboard) error {
	_, err := fmt.Fprintf(w, "<html>%d entries</html>", lb.Count)
	return err
}

var fixedNow = time.Date(2024, 6, 15, 13, 45, 0, 0, time.UTC)

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	opts = append([]api.Option{api.WithClock(func() time.Time { return fixedNow })}, opts...)
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func post(mux *http.ServeMux, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/scoreboard", strings.NewReader(body))
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func get(mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, http.NoBody))
	return w
}

func errorBody(w *httptest.ResponseRecorder) types.ErrorResponse {
	var e types.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e
}

func TestRoutes(t *testing.T) {
	Convey("Given a registered server", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps, api.WithPageRenderer(stubPage{}))

		Convey("GET /healthz answers ok", func() {
			w := get(mux, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "ok")
		})

		Convey("GET /scoreboard and /leaderboard return the JSON leaderboard", func() {
			for _, path := range []string{"/scoreboard", "/leaderboard"} {
				w := get(mux, path)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")

				var got map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldContainKey, "topLevels")
				So(got, ShouldContainKey, "fastestRuns")
				So(got, ShouldContainKey, "stats")
			}
		})

		Convey("GET / renders the HTML page", func() {
			w := get(mux, "/")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "text/html; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, "0 entries")
		})

		Convey("GET /stats returns the stats object", func() {
			w := get(mux, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"topPlayer":"N/A"`)
		})

		Convey("GET /metrics exposes Prometheus metrics without rate limiting", func() {
			deps.allow = false
			w := get(mux, "/metrics")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.allowKeys, ShouldBeEmpty)
		})

		Convey("Unknown paths and methods are 404", func() {
			So(get(mux, "/unknown").Code, ShouldEqual, http.StatusNotFound)

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/leaderboard", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)

			w = httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/scoreboard", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorBody(w).Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A read failure is a 500", func() {
			deps.readErr = fmt.Errorf("%w: disk gone", repository.ErrStorage)
			w := get(mux, "/scoreboard")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldNotContainSubstring, "disk gone")
		})
	})

	Convey("Without a page renderer, GET / is 404", t, func() {
		So(get(newMux(newMockDependencies()), "/").Code, ShouldEqual, http.StatusNotFound)
	})
}

func TestQueryParameters(t *testing.T) {
	Convey("Given a server with default 10 and cap 50", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps, api.WithLimits(10, 50))

		Convey("limit is parsed, defaulted and clamped", func() {
			for target, want := range map[string]int{
				"/scoreboard":           10,
				"/scoreboard?limit=abc": 10,
				"/scoreboard?limit=5":   5,
				"/scoreboard?limit=0":   1,
				"/scoreboard?limit=-3":  1,
				"/scoreboard?limit=999": 50,
			} {
				deps.calls = nil
				So(get(mux, target).Code, ShouldEqual, http.StatusOK)
				So(deps.calls[0].limit, ShouldEqual, want)
			}
		})

		Convey("since keywords are expanded and other values pass through", func() {
			for target, want := range map[string]string{
				"/scoreboard?since=today":                "2024-06-15T00:00:00Z",
				"/scoreboard?since=week":                 "2024-06-08T13:45:00Z",
				"/scoreboard?since=MONTH":                "2024-05-16T13:45:00Z",
				"/scoreboard?since=2024-01-01":           "2024-01-01",
				"/scoreboard?since=garbage":              "garbage",
				"/stats?since=today":                     "2024-06-15T00:00:00Z",
				"/scoreboard?since=2024-01-01T00:00:00Z": "2024-01-01T00:00:00Z",
			} {
				deps.calls = nil
				So(get(mux, target).Code, ShouldEqual, http.StatusOK)
				So(deps.calls[0].since, ShouldEqual, want)
			}
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a limiter that rejects", t, func() {
		deps := newMockDependencies()
		deps.allow = false
		mux := newMux(deps)

		Convey("Reads and writes are answered with 429 before any work", func() {
			So(get(mux, "/scoreboard").Code, ShouldEqual, http.StatusTooManyRequests)
			So(get(mux, "/nope").Code, ShouldEqual, http.StatusTooManyRequests)
			So(post(mux, `{"line":"{}"}`, nil).Code, ShouldEqual, http.StatusTooManyRequests)
			So(deps.bodies, ShouldBeEmpty)
			So(deps.calls, ShouldBeEmpty)
		})
	})

	Convey("Given requests through a proxy", t, func() {
		deps := newMockDependencies()
		req := func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			r.RemoteAddr = "10.0.0.9:5555"
			r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
			return r
		}

		Convey("The socket address is used by default", func() {
			newMux(deps).ServeHTTP(httptest.NewRecorder(), req())
			So(deps.allowKeys, ShouldResemble, []string{"10.0.0.9"})
		})

		Convey("The first forwarded address is used when trusted", func() {
			newMux(deps, api.WithTrustProxyHeaders(true)).ServeHTTP(httptest.NewRecorder(), req())
			So(deps.allowKeys, ShouldResemble, []string{"203.0.113.7"})
		})

		Convey("Fly-Client-IP wins over X-Forwarded-For", func() {
			r := req()
			r.Header.Set("Fly-Client-IP", "198.51.100.4")
			newMux(deps, api.WithTrustProxyHeaders(true)).ServeHTTP(httptest.NewRecorder(), r)
			So(deps.allowKeys, ShouldResemble, []string{"198.51.100.4"})
		})
	})
}

func TestSubmit(t *testing.T) {
	Convey("Given a server requiring a secret", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps, api.WithAuthPolicy(auth.NewPolicy("s3cret")))
		secret := map[string]string{auth.Header: "s3cret"}

		Convey("A valid submission is accepted with 202 queued", func() {
			w := post(mux, `{"line_b64":"e30="}`, secret)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(w.Body.String(), ShouldEqual, "queued")
			So(w.Header().Get(api.DispatchStatusHeader), ShouldBeEmpty)
			So(deps.bodies, ShouldHaveLength, 1)
			So(deps.bodies[0]["line_b64"], ShouldEqual, "e30=")
		})

		Convey("A padded secret still matches", func() {
			w := post(mux, `{"line":"{}"}`, map[string]string{auth.Header: "  s3cret "})
			So(w.Code, ShouldEqual, http.StatusAccepted)
		})

		Convey("A missing or wrong secret is 401", func() {
			So(post(mux, `{"line":"{}"}`, nil).Code, ShouldEqual, http.StatusUnauthorized)
			So(post(mux, `{"line":"{}"}`, map[string]string{auth.Header: "nope"}).Code, ShouldEqual, http.StatusUnauthorized)
			So(deps.bodies, ShouldBeEmpty)
		})

		Convey("A relay failure still returns 202 with the dispatch header", func() {
			deps.receipt.Dispatch = types.DispatchFailed
			w := post(mux, `{"line":"{}"}`, secret)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(w.Header().Get(api.DispatchStatusHeader), ShouldEqual, "failed")
		})

		Convey("Invalid payloads are 400", func() {
			deps.submitErr = fmt.Errorf("%w: line or line_b64 required", types.ErrInvalidPayload)
			w := post(mux, `{}`, secret)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorBody(w).Message, ShouldContainSubstring, "line or line_b64 required")
		})

		Convey("Storage failures are 500", func() {
			deps.submitErr = errors.New("database is locked")
			w := post(mux, `{"line":"{}"}`, secret)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(errorBody(w).Message, ShouldEqual, "Failed to store entry.")
		})
	})

	Convey("Given an open server", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("A body that is not JSON is 400", func() {
			So(post(mux, `not json`, nil).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Trailing data after the JSON object is 400 and nothing is stored", func() {
			w := post(mux, `{"line":"{\"id\":\"x\",\"level\":1}"} this is not json`, nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.bodies, ShouldBeEmpty)

			w = post(mux, `{"line":"{}"}{"line":"{}"}`, nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.bodies, ShouldBeEmpty)
		})

		Convey("A JSON body that is not an object is 400", func() {
			So(post(mux, `["line"]`, nil).Code, ShouldEqual, http.StatusBadRequest)
			So(deps.bodies, ShouldBeEmpty)
		})

		Convey("A missing Content-Length is 411", func() {
			req := httptest.NewRequest(http.MethodPost, "/scoreboard", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusLengthRequired)
		})

		Convey("A zero Content-Length is 413", func() {
			req := httptest.NewRequest(http.MethodPost, "/scoreboard", http.NoBody)
			req.Header.Set("Content-Length", "0")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
		})

		Convey("A body over 4096 bytes is 413", func() {
			big := `{"line":"` + strings.Repeat("x", 4100) + `"}`
			So(post(mux, big, nil).Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			So(deps.bodies, ShouldBeEmpty)
		})

		Convey("Numbers in the outer body are kept as json.Number", func() {
			So(post(mux, `{"line":"{}","n":7}`, nil).Code, ShouldEqual, http.StatusAccepted)
			So(deps.bodies[0]["n"], ShouldEqual, json.Number("7"))
		})
	})
}
