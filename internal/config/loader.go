package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "SCOREBOARD_"
	envConfigFile = "SCOREBOARD_CONFIG"
	envPortLegacy = "PORT"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if SCOREBOARD_CONFIG is set
//  3. PORT, when SCOREBOARD_PORT is unset
//  4. env (prefix SCOREBOARD_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path := Clean(os.Getenv(envConfigFile)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if _, ok := os.LookupEnv(envPrefix + "PORT"); !ok {
		if port := Clean(os.Getenv(envPortLegacy)); port != "" {
			if err := k.Set("port", port); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
			}
		}
	}

	// SCOREBOARD_GITHUB_TOKEN -> github_token. The "." delimiter keeps underscores
	// intact so keys match the koanf tags.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if key == "config" {
			return "", nil
		}
		return key, Clean(value)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	cleanStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Clean trims whitespace and one pair of matching surrounding quotes.
func Clean(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			v = strings.TrimSpace(v[1 : len(v)-1])
		}
	}
	return v
}

func cleanStrings(c *Config) {
	for _, s := range []*string{
		&c.LogLevel, &c.LogFormat, &c.Host, &c.Secret, &c.DBPath, &c.Repo,
		&c.GitHubToken, &c.Event, &c.APIBase, &c.RelayMode, &c.OTelEndpoint,
	} {
		*s = Clean(*s)
	}
}
