package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/types"
	"github.com/okian/scoreboard/pkg/metrics"
	"github.com/okian/scoreboard/pkg/tracing"
)

const (
	dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	entryColumns = `id, initials, level, run_time_ticks, victory, timestamp_utc`

	upsertSQL = `
INSERT INTO scoreboard (id, initials, level, run_time_ticks, victory, timestamp_utc, recorded_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    initials = excluded.initials,
    level = excluded.level,
    run_time_ticks = excluded.run_time_ticks,
    victory = excluded.victory,
    timestamp_utc = excluded.timestamp_utc,
    recorded_at_ms = excluded.recorded_at_ms`

	// Every read filters on "recorded_at_ms >= ?"; math.MinInt64 means no filter.
	topLevelsSQL = `SELECT ` + entryColumns + ` FROM scoreboard
WHERE recorded_at_ms >= ?
ORDER BY level DESC, run_time_ticks ASC, id ASC
LIMIT ?`

	fastestRunsSQL = `SELECT ` + entryColumns + ` FROM scoreboard
WHERE recorded_at_ms >= ? AND run_time_ticks > 0 AND level > 0
ORDER BY run_time_ticks ASC, level DESC, id ASC
LIMIT ?`

	countSQL = `SELECT COUNT(*) FROM scoreboard WHERE recorded_at_ms >= ?`

	statsSQL = `SELECT
    COUNT(DISTINCT initials),
    COUNT(*),
    COALESCE(CAST(AVG(level) AS INTEGER), 0),
    COALESCE(MAX(level), 0),
    MIN(CASE WHEN run_time_ticks > 0 THEN run_time_ticks END)
FROM scoreboard
WHERE recorded_at_ms >= ?`

	topPlayerSQL = `SELECT initials FROM scoreboard
WHERE recorded_at_ms >= ?
GROUP BY initials
ORDER BY MAX(level) DESC, initials ASC
LIMIT 1`

	fastestPlayerSQL = `SELECT initials FROM scoreboard
WHERE recorded_at_ms >= ? AND run_time_ticks > 0
ORDER BY run_time_ticks ASC, id ASC
LIMIT 1`
)

// SQLiteStore is the Store backed by a single SQLite file.
type SQLiteStore struct {
	db           *sql.DB
	now          func() time.Time
	maxOpenConns int
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (creating if needed) the database at path and applies migrations.
// The parent directory is created when missing.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: storage path is required", ErrStorage)
	}
	s := &SQLiteStore{now: time.Now, maxOpenConns: 4}
	for _, opt := range opts {
		opt(s)
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %w", ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite", cleanPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %w", ErrStorage, err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping sqlite db: %w", ErrStorage, err)
	}
	if err := applyMigrations(ctx, db, migrationFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: run migrations: %w", ErrStorage, err)
	}

	s.db = db
	return s, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert writes e in one statement. The last writer for an id wins.
func (s *SQLiteStore) Upsert(ctx context.Context, e model.Entry) (err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "repository.upsert", trace.WithAttributes(attribute.String("entry.id", e.ID)))
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.RecordRepositoryError("upsert")
		}
		tracing.End(span, err)
	}()

	recordedAt := e.RecordedAt(s.now()).UnixMilli()
	if _, err := s.db.ExecContext(ctx, upsertSQL,
		e.ID, e.Initials, e.Level, e.RunTimeTicks, e.Victory, e.TimestampUTC, recordedAt,
	); err != nil {
		return fmt.Errorf("%w: upsert %s: %w", ErrStorage, e.ID, err)
	}
	return nil
}

// Get returns the entry with id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM scoreboard WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, ErrNotFound
	}
	if err != nil {
		return model.Entry{}, fmt.Errorf("%w: get %s: %w", ErrStorage, id, err)
	}
	return e, nil
}

// Count returns the total number of rows.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scoreboard`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrStorage, err)
	}
	return n, nil
}

// Leaderboard reads both rankings, the count and stats inside one read-only
// transaction so they describe the same snapshot.
func (s *SQLiteStore) Leaderboard(ctx context.Context, limit int, since string) (types.Leaderboard, error) {
	limit = ClampLimit(limit)
	sinceMs := sinceMillis(since)

	var lb types.Leaderboard
	err := s.read(ctx, "repository.leaderboard", func(tx *sql.Tx) error {
		var err error
		if lb.TopLevels, err = queryEntries(ctx, tx, topLevelsSQL, sinceMs, limit); err != nil {
			return fmt.Errorf("top levels: %w", err)
		}
		if lb.FastestRuns, err = queryEntries(ctx, tx, fastestRunsSQL, sinceMs, limit); err != nil {
			return fmt.Errorf("fastest runs: %w", err)
		}
		if err = tx.QueryRowContext(ctx, countSQL, sinceMs).Scan(&lb.Count); err != nil {
			return fmt.Errorf("count: %w", err)
		}
		lb.Stats, err = queryStats(ctx, tx, sinceMs)
		return err
	})
	if err != nil {
		return types.Leaderboard{}, err
	}
	return lb, nil
}

// Stats reads aggregate statistics inside one read-only transaction.
func (s *SQLiteStore) Stats(ctx context.Context, since string) (types.Stats, error) {
	sinceMs := sinceMillis(since)

	var st types.Stats
	err := s.read(ctx, "repository.stats", func(tx *sql.Tx) error {
		var err error
		st, err = queryStats(ctx, tx, sinceMs)
		return err
	})
	if err != nil {
		return types.Stats{}, err
	}
	return st, nil
}

func (s *SQLiteStore) read(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, op)
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.RecordRepositoryError(strings.TrimPrefix(op, "repository."))
		}
		tracing.End(span, err)
	}()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("%w: begin read: %w", ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
	}
	return nil
}

// sinceMillis converts an ISO-8601 lower bound to Unix milliseconds. Invalid
// values disable the filter.
func sinceMillis(since string) int64 {
	ts, ok := model.ParseTimestamp(since)
	if !ok {
		return math.MinInt64
	}
	return ts.UnixMilli()
}

func queryStats(ctx context.Context, tx *sql.Tx, sinceMs int64) (types.Stats, error) {
	st := types.EmptyStats()
	var fastest sql.NullInt64
	if err := tx.QueryRowContext(ctx, statsSQL, sinceMs).Scan(
		&st.TotalPlayers, &st.TotalRuns, &st.AverageLevel, &st.HighestLevel, &fastest,
	); err != nil {
		return types.Stats{}, fmt.Errorf("stats: %w", err)
	}
	if st.TotalRuns == 0 {
		return types.EmptyStats(), nil
	}
	if fastest.Valid {
		ticks := fastest.Int64
		st.FastestTimeTicks = &ticks
	}

	if err := tx.QueryRowContext(ctx, topPlayerSQL, sinceMs).Scan(&st.TopPlayer); err != nil {
		return types.Stats{}, fmt.Errorf("top player: %w", err)
	}
	err := tx.QueryRowContext(ctx, fastestPlayerSQL, sinceMs).Scan(&st.FastestPlayer)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		st.FastestPlayer = types.NotAvailable
	case err != nil:
		return types.Stats{}, fmt.Errorf("fastest player: %w", err)
	}
	return st, nil
}

func queryEntries(ctx context.Context, tx *sql.Tx, query string, sinceMs int64, limit int) ([]model.Entry, error) {
	rows, err := tx.QueryContext(ctx, query, sinceMs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]model.Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (model.Entry, error) {
	var e model.Entry
	err := row.Scan(&e.ID, &e.Initials, &e.Level, &e.RunTimeTicks, &e.Victory, &e.TimestampUTC)
	return e, err
}
