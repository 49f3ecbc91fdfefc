// Package ban implements player bans: the active-ban-uniqueness invariant
// (at most one active ban per player) and the Server|Admin tagged origin
// a ban was created under.
package ban

import (
	"time"

	"github.com/kz-league/cs2kz-api/internal/id"
)

// CreatedByKind tags which of the two Ban.CreatedBy variants is populated.
type CreatedByKind string

const (
	CreatedByServer CreatedByKind = "server"
	CreatedByAdmin  CreatedByKind = "admin"
)

// CreatedBy is a tagged union: a ban originates either from a game server
// (anticheat) or from an admin acting through the HTTP API.
type CreatedBy struct {
	Kind          CreatedByKind
	ServerID      *id.ServerID
	PluginVersion *id.PluginVersionID
	AdminID       *id.SteamID
}

func FromServer(serverID id.ServerID, pluginVersion id.PluginVersionID) CreatedBy {
	return CreatedBy{Kind: CreatedByServer, ServerID: &serverID, PluginVersion: &pluginVersion}
}

func FromAdmin(adminID id.SteamID) CreatedBy {
	return CreatedBy{Kind: CreatedByAdmin, AdminID: &adminID}
}

// Unban records a ban's reversion, distinct from natural expiry.
type Unban struct {
	Reason    string
	RevertedBy id.SteamID
	RevertedAt time.Time
}

// Ban is a single ban record. A player has at most one *active* ban at a
// time; activeness is `ExpiresAt == nil || ExpiresAt.After(now)` and
// `Unban == nil`.
type Ban struct {
	ID        id.BanID
	PlayerID  id.SteamID
	Reason    string
	CreatedBy CreatedBy
	ServerID  *id.ServerID
	CreatedAt time.Time
	ExpiresAt *time.Time
	Unban     *Unban
}

// Active reports whether b is presently in force.
func (b Ban) Active(now time.Time) bool {
	if b.Unban != nil {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}
