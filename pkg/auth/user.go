// Package auth implements the cs2kz identity model: users, DB-backed
// sliding-expiry sessions, and the authorization middleware that mutating
// endpoints use to require permission bits.
package auth

import (
	"time"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/perm"
)

// User is a registered cs2kz player/admin account, keyed by SteamID.
// Created on first login; Name refreshes on every login; Permissions and
// ServerBudget are mutated only by users holding ModifyUserPermissions /
// ModifyServerBudgets respectively.
type User struct {
	ID           id.SteamID
	Name         string
	Permissions  perm.Permissions
	ServerBudget int32
	CreatedAt    time.Time
	Email        *string
}

// HasAny reports whether the user holds any of the given permission bits.
func (u User) HasAny(required perm.Permissions) bool {
	return u.Permissions.ContainsAny(required)
}

// HasAll reports whether the user holds every given permission bit.
func (u User) HasAll(required perm.Permissions) bool {
	return u.Permissions.Contains(required)
}
