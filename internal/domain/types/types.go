// Package types contains the response shapes served by the HTTP API.
package types

import "github.com/okian/scoreboard/internal/domain/model"

// NotAvailable marks a stat with no qualifying entries.
const NotAvailable = "N/A"

// Leaderboard is the aggregate view returned by GET /scoreboard.
type Leaderboard struct {
	// Count is the number of entries matching the filter.
	Count int `json:"count"`
	// TopLevels orders by level desc, then run time asc.
	TopLevels []model.Entry `json:"topLevels"`
	// FastestRuns orders positive-time, positive-level runs by run time asc, then level desc.
	FastestRuns []model.Entry `json:"fastestRuns"`
	Stats       Stats         `json:"stats"`
}

// Stats summarizes the entries matching a filter.
type Stats struct {
	TotalPlayers     int    `json:"totalPlayers"`
	TotalRuns        int    `json:"totalRuns"`
	AverageLevel     int64  `json:"averageLevel"`
	HighestLevel     int64  `json:"highestLevel"`
	FastestTimeTicks *int64 `json:"fastestTimeTicks,omitempty"`
	TopPlayer        string `json:"topPlayer"`
	FastestPlayer    string `json:"fastestPlayer"`
}

// EmptyStats is the summary of an empty result set.
func EmptyStats() Stats {
	return Stats{TopPlayer: NotAvailable, FastestPlayer: NotAvailable}
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DispatchStatus describes what happened to the relay of one submission.
type DispatchStatus string

// Dispatch outcomes.
const (
	DispatchSent     DispatchStatus = "sent"
	DispatchQueued   DispatchStatus = "queued"
	DispatchDisabled DispatchStatus = "disabled"
	DispatchFailed   DispatchStatus = "failed"
)

// Receipt is the result of an accepted submission.
type Receipt struct {
	Entry    model.Entry
	Dispatch DispatchStatus
}
