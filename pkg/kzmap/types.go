// Package kzmap owns maps, courses, and filters: the approval lifecycle a
// map moves through from creation to Completed, and the per-course filter
// set records are submitted against. Grounded on original_source's
// map_approval_status.rs / map_status package for the shape of a
// state-as-integer-with-string-alias enum, generalized to the five states
// and freeze semantics spec.md defines (Graveyard/WIP/Pending/Approved/
// Completed replace the original's three-state NotGlobal/InTesting/Global).
package kzmap

import (
	"fmt"
	"time"

	"github.com/kz-league/cs2kz-api/internal/id"
)

// Game distinguishes the two plugin targets a map can be built for.
type Game string

const (
	GameCS2   Game = "cs2"
	GameCSGO  Game = "csgo"
)

// State is a map's position in the approval lifecycle. See Transition for
// the allowed moves between states.
type State int8

const (
	Graveyard State = iota
	WIP
	Pending
	Approved
	Completed
)

func (s State) String() string {
	switch s {
	case Graveyard:
		return "graveyard"
	case WIP:
		return "wip"
	case Pending:
		return "pending"
	case Approved:
		return "approved"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Frozen reports whether mapper-initiated edits are rejected in this state.
func (s State) Frozen() bool {
	return s == Pending || s == Approved || s == Completed
}

func ParseState(s string) (State, error) {
	switch s {
	case "graveyard":
		return Graveyard, nil
	case "wip":
		return WIP, nil
	case "pending":
		return Pending, nil
	case "approved":
		return Approved, nil
	case "completed":
		return Completed, nil
	default:
		return 0, fmt.Errorf("unknown map state %q", s)
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *State) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' {
		str = str[1 : len(str)-1]
	}
	parsed, err := ParseState(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Tier is a difficulty rating from 1 to 10; 9 (Unfeasible) and 10
// (Impossible) are non-human tiers.
type Tier int8

const (
	TierUnfeasible Tier = 9
	TierImpossible Tier = 10
)

func (t Tier) Valid() bool { return t >= 1 && t <= 10 }

// Mode is a gameplay ruleset a course can be timed under.
type Mode string

const (
	ModeVanilla   Mode = "vnl"
	ModeClassicKZ Mode = "ckz" // CS2 only
	ModeKZTimer   Mode = "kzt" // CSGO only
	ModeSimpleKZ  Mode = "skz" // CSGO only
)

// Style is an optional gameplay modifier, orthogonal to Mode.
type Style string

// Filter is a (course, mode, teleports-policy) unit records are submitted
// against; it carries its own tier per leaderboard and a ranked flag.
type Filter struct {
	ID      id.FilterID `json:"id"`
	Mode    Mode        `json:"mode"`
	NubTier Tier        `json:"nub_tier"`
	ProTier Tier        `json:"pro_tier"`
	Ranked  bool        `json:"ranked"`
	Notes   string      `json:"notes,omitempty"`
}

// Course belongs to exactly one map and carries a stable per-map LocalID
// used by servers to refer to it without knowing the global CourseID.
type Course struct {
	ID          id.CourseID          `json:"id"`
	LocalID     int32                `json:"local_id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Mappers     map[id.SteamID]string `json:"mappers"`
	Filters     []Filter             `json:"filters"`
}

// Map is the root entity: a workshop-backed map package and its approval
// state, with the courses carved out of it.
type Map struct {
	ID          id.MapID    `json:"id"`
	WorkshopID  uint32      `json:"workshop_id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Game        Game        `json:"game"`
	State       State       `json:"state"`
	Checksum    uint32      `json:"checksum"`
	CreatedBy   id.SteamID  `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	Courses     []Course    `json:"courses"`
}
