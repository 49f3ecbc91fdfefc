// Package record implements record ingest and leaderboards: validating an
// inbound run against the server's resolved mode/style/filter state,
// persisting it, and computing the NUB/PRO ranked views described in §3
// and §4.3.
package record

import (
	"time"

	"github.com/kz-league/cs2kz-api/internal/id"
)

// Leaderboard distinguishes the two disjoint ranked views of a filter.
type Leaderboard string

const (
	NUB Leaderboard = "nub"
	PRO Leaderboard = "pro"
)

// LeaderboardOf returns NUB or PRO depending on whether teleports were used.
func LeaderboardOf(teleports int32) Leaderboard {
	if teleports == 0 {
		return PRO
	}
	return NUB
}

// Record is a single completed run. Invariant: Time > 0, Teleports >= 0.
type Record struct {
	ID              id.RecordID
	FilterID        id.FilterID
	PlayerID        id.SteamID
	ServerID        id.ServerID
	SessionID       id.SessionID
	PluginVersionID id.PluginVersionID
	StyleChecksums  []uint32
	Teleports       int32
	Time            float64
	CreatedAt       time.Time
}

// RankedResult is what a successful SubmitRecord ingest reports back to the
// server protocol: a new personal best's rank, the leaderboard size it
// landed in, and the point delta it's worth.
type RankedResult struct {
	Rank            int32
	LeaderboardSize int32
	Points          float64
	IsPB            bool
}
