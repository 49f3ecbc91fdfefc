// Package perm implements the capability bitset used to authorize mutating
// API requests.
package perm

import (
	"fmt"
	"math/bits"
	"strings"
)

// Permission is a single capability bit.
type Permission uint64

// The complete, closed set of capability bits. No other bit may ever be set
// on a Permissions value; Permissions.Validate rejects anything else.
const (
	CreateMaps Permission = 1 << iota
	UpdateMaps
	ModifyServerMetadata
	ModifyServerBudgets
	ResetServerAccessKeys
	DeleteServerAccessKeys
	CreateBans
	UpdateBans
	RevertBans
	GrantCreateMaps
	ModifyUserPermissions
)

// all is the union of every defined bit, used to validate incoming values.
const all = CreateMaps | UpdateMaps | ModifyServerMetadata | ModifyServerBudgets |
	ResetServerAccessKeys | DeleteServerAccessKeys | CreateBans | UpdateBans |
	RevertBans | GrantCreateMaps | ModifyUserPermissions

var names = map[Permission]string{
	CreateMaps:             "create-maps",
	UpdateMaps:             "update-maps",
	ModifyServerMetadata:   "modify-server-metadata",
	ModifyServerBudgets:    "modify-server-budgets",
	ResetServerAccessKeys:  "reset-server-access-keys",
	DeleteServerAccessKeys: "delete-server-access-keys",
	CreateBans:             "create-bans",
	UpdateBans:             "update-bans",
	RevertBans:             "revert-bans",
	GrantCreateMaps:        "grant-create-maps",
	ModifyUserPermissions:  "modify-user-permissions",
}

func (p Permission) String() string {
	if n, ok := names[p]; ok {
		return n
	}
	return fmt.Sprintf("permission(%#x)", uint64(p))
}

// Permissions is a set of Permission bits.
type Permissions uint64

// Of composes a Permissions value out of individual bits.
func Of(perms ...Permission) Permissions {
	var p Permissions
	for _, bit := range perms {
		p |= Permissions(bit)
	}
	return p
}

// IsEmpty reports whether no bits are set.
func (p Permissions) IsEmpty() bool {
	return p == 0
}

// Contains reports whether other is a subset of p: p.Contains(q) ⇔ p&q == q.
func (p Permissions) Contains(other Permissions) bool {
	return p&other == other
}

// ContainsAny reports whether p and other share at least one bit.
func (p Permissions) ContainsAny(other Permissions) bool {
	return p&other != 0
}

// Has reports whether a single Permission is present in p.
func (p Permissions) Has(perm Permission) bool {
	return p&Permissions(perm) == Permissions(perm)
}

// Validate returns an error if p contains any bit outside the defined set.
func (p Permissions) Validate() error {
	if p&^Permissions(all) != 0 {
		return fmt.Errorf("permissions contain undefined bits: %#x", uint64(p&^Permissions(all)))
	}
	return nil
}

// Count returns the number of distinct permission bits set.
func (p Permissions) Count() int {
	return bits.OnesCount64(uint64(p))
}

// Iter returns the set bits in increasing order, lowest bit first.
func (p Permissions) Iter() []Permission {
	out := make([]Permission, 0, p.Count())
	bits := uint64(p)
	for bits != 0 {
		lsb := bits & -bits
		out = append(out, Permission(lsb))
		bits &^= lsb
	}
	return out
}

func (p Permissions) String() string {
	parts := make([]string, 0, p.Count())
	for _, bit := range p.Iter() {
		parts = append(parts, bit.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MarshalJSON renders Permissions as a JSON array of kebab-case names.
func (p Permissions) MarshalJSON() ([]byte, error) {
	bits := p.Iter()
	names := make([]string, len(bits))
	for i, bit := range bits {
		names[i] = `"` + bit.String() + `"`
	}
	return []byte("[" + strings.Join(names, ",") + "]"), nil
}

// UnmarshalJSON parses a JSON array of kebab-case permission names.
func (p *Permissions) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)
	if s == "" {
		*p = 0
		return nil
	}

	byName := make(map[string]Permission, len(names))
	for bit, n := range names {
		byName[n] = bit
	}

	var out Permissions
	for _, raw := range strings.Split(s, ",") {
		name := strings.Trim(strings.TrimSpace(raw), `"`)
		bit, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown permission %q", name)
		}
		out |= Permissions(bit)
	}
	*p = out
	return nil
}
