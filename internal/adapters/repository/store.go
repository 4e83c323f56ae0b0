// Package repository persists score entries and answers leaderboard queries.
package repository

import (
	"context"

	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/types"
)

// Leaderboard list size bounds. Requests outside the range are clamped.
const (
	MinLimit = 1
	MaxLimit = 100
)

// Store provides read/write access to the score table.
type Store interface {
	// Upsert inserts e, or overwrites every non-key field of the entry with the same id.
	Upsert(ctx context.Context, e model.Entry) error

	// Get returns the entry with id, or ErrNotFound.
	Get(ctx context.Context, id string) (model.Entry, error)

	// Leaderboard returns both rankings, the matching count and stats from one
	// snapshot. limit is clamped to [MinLimit, MaxLimit]. since is an ISO-8601
	// lower bound on the entry time; an empty or unparsable value means no filter.
	Leaderboard(ctx context.Context, limit int, since string) (types.Leaderboard, error)

	// Stats returns aggregate statistics for entries at or after since.
	Stats(ctx context.Context, since string) (types.Stats, error)

	// Count returns the total number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying handle.
	Close() error
}

// ClampLimit bounds limit to [MinLimit, MaxLimit].
func ClampLimit(limit int) int {
	return min(max(limit, MinLimit), MaxLimit)
}
