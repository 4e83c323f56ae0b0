package smoke

import (
	"errors"
	"fmt"

	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/types"
)

// ErrInconsistent is returned when the served leaderboard contradicts the
// submitted runs.
var ErrInconsistent = errors.New("leaderboard inconsistent")

// progressBefore reports whether a ranks ahead of b by level desc, time asc.
func progressBefore(a, b model.Entry) bool {
	if a.Level != b.Level {
		return a.Level > b.Level
	}
	return a.RunTimeTicks < b.RunTimeTicks
}

// speedBefore reports whether a ranks ahead of b by time asc, level desc.
func speedBefore(a, b model.Entry) bool {
	if a.RunTimeTicks != b.RunTimeTicks {
		return a.RunTimeTicks < b.RunTimeTicks
	}
	return a.Level > b.Level
}

// verify checks lb against the accepted entries. Other clients may have
// written to the same service, so it only asserts what must hold regardless.
func verify(lb types.Leaderboard, accepted []model.Entry, limit int) error {
	var errs []error

	for i := 1; i < len(lb.TopLevels); i++ {
		if progressBefore(lb.TopLevels[i], lb.TopLevels[i-1]) {
			errs = append(errs, fmt.Errorf("topLevels[%d] %s ranks ahead of topLevels[%d] %s",
				i, lb.TopLevels[i].ID, i-1, lb.TopLevels[i-1].ID))
		}
	}
	for i, e := range lb.FastestRuns {
		if e.RunTimeTicks <= 0 || e.Level <= 0 {
			errs = append(errs, fmt.Errorf("fastestRuns[%d] %s has no positive time and level", i, e.ID))
		}
		if i > 0 && speedBefore(e, lb.FastestRuns[i-1]) {
			errs = append(errs, fmt.Errorf("fastestRuns[%d] %s ranks ahead of fastestRuns[%d] %s",
				i, e.ID, i-1, lb.FastestRuns[i-1].ID))
		}
	}
	if len(lb.TopLevels) > limit || len(lb.FastestRuns) > limit {
		errs = append(errs, fmt.Errorf("lists exceed limit %d", limit))
	}

	if lb.Count < len(accepted) {
		errs = append(errs, fmt.Errorf("count %d is below %d accepted runs", lb.Count, len(accepted)))
	}
	if lb.Stats.TotalRuns != lb.Count {
		errs = append(errs, fmt.Errorf("stats.totalRuns %d differs from count %d", lb.Stats.TotalRuns, lb.Count))
	}

	if len(accepted) > 0 {
		best := accepted[0]
		for _, e := range accepted[1:] {
			if progressBefore(e, best) {
				best = e
			}
		}
		if len(lb.TopLevels) == 0 {
			errs = append(errs, errors.New("topLevels is empty"))
		} else if progressBefore(best, lb.TopLevels[0]) {
			errs = append(errs, fmt.Errorf("submitted run %s ranks ahead of the served leader %s",
				best.ID, lb.TopLevels[0].ID))
		}
	}

	if lb.Count <= limit {
		served := make(map[string]bool, len(lb.TopLevels))
		for _, e := range lb.TopLevels {
			served[e.ID] = true
		}
		for _, e := range accepted {
			if !served[e.ID] {
				errs = append(errs, fmt.Errorf("accepted run %s is missing from topLevels", e.ID))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInconsistent, errors.Join(errs...))
}
