// Package normalize turns an arbitrary decoded JSON object into a valid score entry.
//
// Normalization is total: every input produces an entry and nothing panics.
// Malformed numbers become 0, missing ids are generated, and missing timestamps
// are filled with the current time.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/okian/scoreboard/internal/domain/model"
)

const maxInitials = 3

// Normalizer converts raw submissions to entries.
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

// New creates a Normalizer that uses the wall clock and random UUIDs.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		now:   time.Now,
		newID: newHexID,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize maps raw to an entry. Recognized keys: id, initials, level (or
// score), runTimeTicks (or run_time_ticks), victory, timestampUtc. Others are
// ignored.
func (n *Normalizer) Normalize(raw map[string]any) model.Entry {
	e := model.Entry{
		ID:           stringify(raw["id"]),
		Initials:     initials(raw["initials"]),
		Level:        nonNegative(lookup(raw, "level", "score")),
		RunTimeTicks: nonNegative(lookup(raw, "runTimeTicks", "run_time_ticks")),
		Victory:      toBool(raw["victory"]),
		TimestampUTC: stringify(raw["timestampUtc"]),
	}
	if !Truthy(raw["id"]) || e.ID == "" {
		e.ID = n.newID()
	}
	if !Truthy(raw["timestampUtc"]) || e.TimestampUTC == "" {
		e.TimestampUTC = n.now().UTC().Format(time.RFC3339Nano)
	}
	return e
}

func newHexID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// lookup returns raw[primary] when the key is present, even if null, and
// raw[alt] otherwise.
func lookup(raw map[string]any, primary, alt string) any {
	if v, ok := raw[primary]; ok {
		return v
	}
	return raw[alt]
}

func initials(v any) string {
	var s string
	if Truthy(v) {
		s = strings.ToUpper(strings.TrimSpace(stringify(v)))
	}
	if s == "" {
		return model.DefaultInitials
	}
	if utf8.RuneCountInString(s) > maxInitials {
		s = string([]rune(s)[:maxInitials])
	}
	return s
}

// nonNegative parses the decimal string form of v. Anything that is not an
// integer yields 0, and negative values clamp to 0.
func nonNegative(v any) int64 {
	i, err := strconv.ParseInt(strings.TrimSpace(stringify(v)), 10, 64)
	if err != nil || i < 0 {
		return 0
	}
	return i
}

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "y":
			return true
		}
	}
	return false
}

// Truthy is the loose "is set" test used for optional fields. Nil, false,
// zero, and empty strings or containers count as unset.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
