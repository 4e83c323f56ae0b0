package forwarder

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogPath is the JSONL file lines are appended to.
const DefaultLogPath = "scoreboard.jsonl"

// AppendPayload decodes a base64 payload and appends it as one line to path.
// It reports false without error when there is nothing to append.
func AppendPayload(path, payload string) (bool, error) {
	if payload == "" {
		return false, nil
	}
	line, err := DecodePayload(payload)
	if err != nil {
		return false, err
	}
	if line == "" {
		return false, nil
	}
	if err := validateJSON(line); err != nil {
		return false, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("append to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("close %s: %w", path, err)
	}
	return true, nil
}
