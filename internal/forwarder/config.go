// Package forwarder moves a single scoreboard line out of a CI job: either
// posting it to the scoreboard webhook or appending it to a JSONL file.
package forwarder

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/caarlos0/env/v11"
)

// Config is read from the CI job environment.
type Config struct {
	// Line is the raw JSON line. It takes precedence over Payload.
	Line string `env:"PAYLOAD_LINE"`
	// Payload is the base64 encoded JSON line.
	Payload string `env:"PAYLOAD"`

	WebhookURL    string `env:"STACKOVERFLOW_SCOREBOARD_WEBHOOK_URL"`
	WebhookSecret string `env:"STACKOVERFLOW_SCOREBOARD_WEBHOOK_SECRET"`
}

// LoadConfig parses Config from the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.WebhookURL = strings.TrimSpace(cfg.WebhookURL)
	cfg.WebhookSecret = strings.TrimSpace(cfg.WebhookSecret)
	return cfg, nil
}

// ResolveLine returns the JSON line carried by cfg. PAYLOAD_LINE wins over
// PAYLOAD. The line is trimmed and must parse as JSON.
func ResolveLine(cfg Config) (string, error) {
	var line string
	switch {
	case cfg.Line != "":
		line = strings.TrimSpace(cfg.Line)
	case cfg.Payload != "":
		decoded, err := DecodePayload(cfg.Payload)
		if err != nil {
			return "", err
		}
		line = decoded
	default:
		return "", ErrNoPayload
	}

	if line == "" {
		return "", ErrEmptyPayload
	}
	if err := validateJSON(line); err != nil {
		return "", err
	}
	return line, nil
}

// DecodePayload decodes a base64 payload into a trimmed UTF-8 line.
func DecodePayload(payload string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", fmt.Errorf("%w: decode base64: %w", ErrInvalidPayload, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: decoded payload is not UTF-8", ErrInvalidPayload)
	}
	return strings.TrimSpace(string(raw)), nil
}

func validateJSON(line string) error {
	if !json.Valid([]byte(line)) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidPayload)
	}
	return nil
}
