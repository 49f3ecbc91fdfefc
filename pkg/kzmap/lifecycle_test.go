package kzmap

import (
	"errors"
	"testing"

	"github.com/kz-league/cs2kz-api/internal/perm"
)

func TestTransitionSameStateIsNoop(t *testing.T) {
	if err := Transition(1, WIP, WIP, false, perm.Of()); err != nil {
		t.Errorf("expected no error for from == to, got %v", err)
	}
}

func TestTransitionAllowedMoves(t *testing.T) {
	updateMaps := perm.Of(perm.UpdateMaps)

	tests := []struct {
		name     string
		from, to State
		isMapper bool
		perms    perm.Permissions
	}{
		{"graveyard to wip by mapper", Graveyard, WIP, true, perm.Of()},
		{"wip to graveyard by mapper", WIP, Graveyard, true, perm.Of()},
		{"wip to pending by mapper", WIP, Pending, true, perm.Of()},
		{"pending to approved with UpdateMaps", Pending, Approved, false, updateMaps},
		{"pending to completed by mapper", Pending, Completed, true, perm.Of()},
		{"approved to anywhere with UpdateMaps", Approved, Graveyard, false, updateMaps},
		{"completed to anywhere with UpdateMaps", Completed, WIP, false, updateMaps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Transition(1, tt.from, tt.to, tt.isMapper, tt.perms); err != nil {
				t.Errorf("Transition(%s -> %s) = %v, want nil", tt.from, tt.to, err)
			}
		})
	}
}

func TestTransitionRejectsMapperWithoutPermission(t *testing.T) {
	err := Transition(1, Graveyard, WIP, false, perm.Of())
	if err == nil {
		t.Fatal("expected an error when the caller is not a mapper")
	}
	var illegal *ErrIllegalTransition
	if !errors.As(err, &illegal) {
		t.Errorf("expected ErrIllegalTransition, got %T: %v", err, err)
	}
}

func TestTransitionFrozenStateRejectsMapperEdits(t *testing.T) {
	tests := []struct {
		name     string
		from, to State
	}{
		{"pending to approved without UpdateMaps", Pending, Approved},
		{"approved to wip without UpdateMaps", Approved, WIP},
		{"completed to graveyard without UpdateMaps", Completed, Graveyard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transition(42, tt.from, tt.to, true, perm.Of())
			var frozen *ErrMapFrozen
			if !errors.As(err, &frozen) {
				t.Fatalf("expected ErrMapFrozen, got %T: %v", err, err)
			}
			if frozen.MapID != 42 || frozen.State != tt.from {
				t.Errorf("ErrMapFrozen = %+v, want MapID=42 State=%s", frozen, tt.from)
			}
		})
	}
}

func TestTransitionPendingToCompletedRequiresMapper(t *testing.T) {
	err := Transition(1, Pending, Completed, false, perm.Of())
	var frozen *ErrMapFrozen
	if !errors.As(err, &frozen) {
		t.Fatalf("expected ErrMapFrozen, got %T: %v", err, err)
	}
}

func TestTransitionOutsideTableIsIllegal(t *testing.T) {
	err := Transition(1, Graveyard, Pending, true, perm.Of(perm.UpdateMaps))
	var illegal *ErrIllegalTransition
	if !errors.As(err, &illegal) {
		t.Fatalf("expected ErrIllegalTransition, got %T: %v", err, err)
	}
	if illegal.From != Graveyard || illegal.To != Pending {
		t.Errorf("ErrIllegalTransition = %+v", illegal)
	}
}

func TestStateFrozen(t *testing.T) {
	tests := []struct {
		state  State
		frozen bool
	}{
		{Graveyard, false},
		{WIP, false},
		{Pending, true},
		{Approved, true},
		{Completed, true},
	}

	for _, tt := range tests {
		if got := tt.state.Frozen(); got != tt.frozen {
			t.Errorf("%s.Frozen() = %v, want %v", tt.state, got, tt.frozen)
		}
	}
}

func TestParseStateRoundTrip(t *testing.T) {
	states := []State{Graveyard, WIP, Pending, Approved, Completed}
	for _, s := range states {
		parsed, err := ParseState(s.String())
		if err != nil {
			t.Fatalf("ParseState(%q) error: %v", s.String(), err)
		}
		if parsed != s {
			t.Errorf("ParseState(%q) = %v, want %v", s.String(), parsed, s)
		}
	}
}

func TestParseStateUnknown(t *testing.T) {
	if _, err := ParseState("not-a-state"); err == nil {
		t.Errorf("expected an error for an unknown state")
	}
}
