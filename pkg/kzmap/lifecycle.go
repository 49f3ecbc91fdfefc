package kzmap

import (
	"fmt"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/perm"
)

// ErrMapFrozen is returned by Transition when a mapper attempts to move a
// map out of a frozen state without the UpdateMaps permission.
type ErrMapFrozen struct {
	MapID id.MapID
	State State
}

func (e *ErrMapFrozen) Error() string {
	return fmt.Sprintf("map %d is frozen in state %s", e.MapID, e.State)
}

// ErrIllegalTransition is returned when from→to is not in the allowed table
// at all, regardless of permissions.
type ErrIllegalTransition struct {
	From, To State
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("cannot transition map from %s to %s", e.From, e.To)
}

// Transition validates a proposed state change per §4.5's table:
//
//	(create)  → Graveyard   mapper with CreateMaps
//	Graveyard ↔ WIP         mapper
//	WIP       → Pending     mapper (freeze: further mapper edits rejected)
//	Pending   → Approved    UpdateMaps
//	Pending   → Completed   mapper
//	Approved  → any         UpdateMaps
//	Completed → any         UpdateMaps
//
// isMapper reports whether the caller is one of the map's mappers;
// permissions is the caller's permission set. It returns nil if the
// transition is allowed, otherwise one of ErrMapFrozen or
// ErrIllegalTransition.
func Transition(mapID id.MapID, from, to State, isMapper bool, permissions perm.Permissions) error {
	if from == to {
		return nil
	}

	switch from {
	case Graveyard:
		if to == WIP && isMapper {
			return nil
		}
	case WIP:
		switch to {
		case Graveyard:
			if isMapper {
				return nil
			}
		case Pending:
			if isMapper {
				return nil
			}
		}
	case Pending:
		switch to {
		case Approved:
			if permissions.Contains(perm.Of(perm.UpdateMaps)) {
				return nil
			}
			return &ErrMapFrozen{MapID: mapID, State: from}
		case Completed:
			if isMapper {
				return nil
			}
			return &ErrMapFrozen{MapID: mapID, State: from}
		}
		return &ErrMapFrozen{MapID: mapID, State: from}
	case Approved, Completed:
		if permissions.Contains(perm.Of(perm.UpdateMaps)) {
			return nil
		}
		return &ErrMapFrozen{MapID: mapID, State: from}
	}

	return &ErrIllegalTransition{From: from, To: to}
}
