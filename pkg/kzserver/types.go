// Package kzserver manages the Server entity: the record of a game server
// an owner has registered, its host/port, and the access key it connects
// with. This is distinct from pkg/registry, which only tracks live
// WebSocket connections in memory.
package kzserver

import (
	"time"

	"github.com/kz-league/cs2kz-api/internal/id"
)

// Server is a registered game server per spec §3.
type Server struct {
	ID        id.ServerID
	Name      string
	Host      string
	Port      uint16
	OwnerID   id.SteamID
	AccessKey string
	CreatedAt time.Time
}
