package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/scoreboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		convey.Reset(clearConfigEnvVars)

		convey.Convey("When loading with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Port, convey.ShouldEqual, 8080)
			convey.So(cfg.RelayMode, convey.ShouldEqual, config.RelayModeSync)
		})

		convey.Convey("When loading with environment variables", func() {
			_ = os.Setenv("SCOREBOARD_PORT", "9000")
			_ = os.Setenv("SCOREBOARD_SECRET", ` "s3cret" `)
			_ = os.Setenv("SCOREBOARD_REPO", "'owner/game'")
			_ = os.Setenv("SCOREBOARD_GITHUB_TOKEN", "tok")
			_ = os.Setenv("SCOREBOARD_LEADERBOARD_LIMIT", "25")
			_ = os.Setenv("SCOREBOARD_TRUST_PROXY_HEADERS", "true")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Port, convey.ShouldEqual, 9000)
			convey.So(cfg.Secret, convey.ShouldEqual, "s3cret")
			convey.So(cfg.Repo, convey.ShouldEqual, "owner/game")
			convey.So(cfg.GitHubToken, convey.ShouldEqual, "tok")
			convey.So(cfg.LeaderboardLimit, convey.ShouldEqual, 25)
			convey.So(cfg.TrustProxyHeaders, convey.ShouldBeTrue)
			convey.So(cfg.RelayEnabled(), convey.ShouldBeTrue)
		})

		convey.Convey("When only PORT is set", func() {
			_ = os.Setenv("PORT", "7070")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Port, convey.ShouldEqual, 7070)

			convey.Convey("SCOREBOARD_PORT still wins", func() {
				_ = os.Setenv("SCOREBOARD_PORT", "9000")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Port, convey.ShouldEqual, 9000)
			})
		})

		convey.Convey("When loading from a YAML file with env overrides", func() {
			path := writeConfigFile(t, `
port: 9090
db_path: /tmp/scores.db
relay_mode: async
relay_workers: 4
`)
			_ = os.Setenv("SCOREBOARD_CONFIG", path)
			_ = os.Setenv("SCOREBOARD_RELAY_WORKERS", "8")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Port, convey.ShouldEqual, 9090)
			convey.So(cfg.DBPath, convey.ShouldEqual, "/tmp/scores.db")
			convey.So(cfg.RelayMode, convey.ShouldEqual, config.RelayModeAsync)
			convey.So(cfg.RelayWorkers, convey.ShouldEqual, 8)
		})

		convey.Convey("When the YAML file is invalid", func() {
			_ = os.Setenv("SCOREBOARD_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the YAML file does not exist", func() {
			_ = os.Setenv("SCOREBOARD_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When a value cannot be decoded", func() {
			_ = os.Setenv("SCOREBOARD_PORT", "eighty")

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When relay is required without credentials", func() {
			_ = os.Setenv("SCOREBOARD_RELAY_REQUIRED", "true")

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoreboard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, name := range []string{
		"PORT",
		"SCOREBOARD_CONFIG",
		"SCOREBOARD_PORT",
		"SCOREBOARD_SECRET",
		"SCOREBOARD_REPO",
		"SCOREBOARD_GITHUB_TOKEN",
		"SCOREBOARD_LEADERBOARD_LIMIT",
		"SCOREBOARD_TRUST_PROXY_HEADERS",
		"SCOREBOARD_RELAY_WORKERS",
		"SCOREBOARD_RELAY_REQUIRED",
	} {
		_ = os.Unsetenv(name)
	}
}
