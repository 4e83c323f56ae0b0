package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/scoreboard/internal/app"
	"github.com/okian/scoreboard/internal/config"
	"github.com/okian/scoreboard/internal/domain/auth"
	"github.com/okian/scoreboard/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func startTestService(t *testing.T, cfg *config.Config) *app.Service {
	t.Helper()
	svc := app.New(cfg)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc
}

func TestNewHandler(t *testing.T) {
	convey.Convey("Given the assembled handler", t, func() {
		cfg := config.New()
		cfg.DBPath = filepath.Join(t.TempDir(), "scoreboard.db")
		cfg.Secret = "pw"
		policy := auth.NewPolicy(cfg.Secret)
		convey.So(policy.Enforced(), convey.ShouldBeTrue)
		srv := httptest.NewServer(newHandler(context.Background(), cfg, policy, startTestService(t, cfg)))
		defer srv.Close()

		getBody := func(path string) (int, string) {
			resp, err := http.Get(srv.URL + path)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			b, _ := io.ReadAll(resp.Body)
			return resp.StatusCode, string(b)
		}

		convey.Convey("Then every public route answers", func() {
			code, body := getBody("/healthz")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldEqual, "ok")

			code, body = getBody("/")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldContainSubstring, "No runs recorded yet.")

			code, _ = getBody("/scoreboard")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			code, _ = getBody("/api-docs")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			code, _ = getBody("/openapi.yaml")
			convey.So(code, convey.ShouldEqual, http.StatusOK)

			code, body = getBody("/metrics")
			convey.So(code, convey.ShouldEqual, http.StatusOK)
			convey.So(body, convey.ShouldContainSubstring, "scoreboard_ingest_")
		})

		convey.Convey("Then the configured secret is enforced", func() {
			resp, err := http.Post(srv.URL+"/scoreboard", "application/json", strings.NewReader(`{"line":"{}"}`))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusUnauthorized)
		})
	})
}

func TestNewHandlerOpenPolicy(t *testing.T) {
	convey.Convey("Given a handler without a secret", t, func() {
		cfg := config.New()
		cfg.DBPath = filepath.Join(t.TempDir(), "scoreboard.db")
		policy := auth.NewPolicy(cfg.Secret)
		convey.So(policy.Enforced(), convey.ShouldBeFalse)
		srv := httptest.NewServer(newHandler(context.Background(), cfg, policy, startTestService(t, cfg)))
		defer srv.Close()

		convey.Convey("Then submissions are accepted without a header", func() {
			resp, err := http.Post(srv.URL+"/scoreboard", "application/json", strings.NewReader(`{"line":"{}"}`))
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusAccepted)
		})
	})
}

func TestServe(t *testing.T) {
	convey.Convey("Given a server on a loopback listener", t, func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		convey.So(err, convey.ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("hi"))
			}))
		}()

		convey.Convey("It serves requests and stops cleanly when the context ends", func() {
			resp, err := http.Get("http://" + ln.Addr().String())
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

			cancel()
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(5 * time.Second):
				t.Fatal("serve did not return after cancel")
			}
		})
	})
}

func TestRunInvalidConfig(t *testing.T) {
	convey.Convey("Given an invalid configuration", t, func() {
		t.Setenv("SCOREBOARD_RELAY_MODE", "sometimes")

		convey.Convey("run fails before binding", func() {
			err := run(context.Background())
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestRunStorageFailure(t *testing.T) {
	convey.Convey("Given a database path that cannot be created", t, func() {
		blocker := filepath.Join(t.TempDir(), "file")
		convey.So(writeFile(blocker), convey.ShouldBeNil)
		t.Setenv("SCOREBOARD_DB_PATH", filepath.Join(blocker, "db", "scoreboard.db"))

		convey.Convey("run reports the storage failure", func() {
			err := run(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "start service")
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Sampling runtime metrics does not panic", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
	})
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("x"), 0o600)
}
