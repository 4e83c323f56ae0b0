package smoke

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scoreboard/internal/domain/model"
)

const (
	maxLevel        = 50
	maxRunSeconds   = 15 * 60
	initialsLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// generate returns n entries with unique ids, all stamped with now.
func generate(n int, now time.Time, rng *rand.Rand) []model.Entry {
	entries := make([]model.Entry, n)
	stamp := now.UTC().Format(time.RFC3339)
	for i := range entries {
		level := rng.Int64N(maxLevel + 1)
		entries[i] = model.Entry{
			ID:           strings.ReplaceAll(uuid.NewString(), "-", ""),
			Initials:     randomInitials(rng),
			Level:        level,
			RunTimeTicks: runTicks(rng),
			Victory:      level == maxLevel,
			TimestampUTC: stamp,
		}
	}
	return entries
}

func randomInitials(rng *rand.Rand) string {
	var b strings.Builder
	for range 3 {
		b.WriteByte(initialsLetters[rng.IntN(len(initialsLetters))])
	}
	return b.String()
}

// runTicks is zero about one time in ten so unfinished runs are covered.
func runTicks(rng *rand.Rand) int64 {
	if rng.IntN(10) == 0 {
		return 0
	}
	ms := 1 + rng.Int64N(maxRunSeconds*1000)
	return ms * (model.TicksPerSecond / 1000)
}
