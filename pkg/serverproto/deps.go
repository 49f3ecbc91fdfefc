package serverproto

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kz-league/cs2kz-api/internal/id"
)

// PluginInfo is what Deps.ResolvePluginChecksum returns for a known checksum.
type PluginInfo struct {
	VersionID id.PluginVersionID
	Game      string // "cs2" or "csgo"
	OS        string // "linux" or "windows"
}

// Deps is everything a Connection needs from the rest of the system. It is
// a narrow interface so this package stays decoupled from the storage
// layers of kzmap/record/ban/eventbus — app.go wires a concrete
// implementation together from those packages' stores.
type Deps interface {
	// ResolvePluginChecksum maps a Hello's plugin_checksum to the plugin
	// version, game, and OS it belongs to. A missing checksum is fatal to
	// the handshake per spec.
	ResolvePluginChecksum(ctx context.Context, checksum uint32) (PluginInfo, error)

	// ChecksumsForVersion returns the known mode/style checksum sets for a
	// given plugin version and OS, used both in HelloAck and to validate
	// SubmitRecord.
	ChecksumsForVersion(ctx context.Context, versionID id.PluginVersionID, os string) (modeChecksums, styleChecksums map[string]uint32, err error)

	// CreateServerSession opens a new ServerSession row for a freshly
	// handshaked connection.
	CreateServerSession(ctx context.Context, serverID id.ServerID, versionID id.PluginVersionID) (sessionID id.SessionID, err error)

	// CloseServerSession stamps disconnected_at on exit.
	CloseServerSession(ctx context.Context, sessionID id.SessionID) error

	// ResolveMapByName looks up a map by its current name. A nil MapInfo
	// with a nil error means "name is not a known map", which is not an error.
	ResolveMapByName(ctx context.Context, name string) (*MapInfo, error)

	// OnPlayerJoin upserts a player and returns their preferences/ban status.
	OnPlayerJoin(ctx context.Context, steamID id.SteamID, name, ip string) (preferences json.RawMessage, isBanned bool, err error)

	// OnPlayerLeave persists final preferences/name for a departing player.
	OnPlayerLeave(ctx context.Context, steamID id.SteamID, name string, preferences json.RawMessage) error

	// SubmitRecord runs the full record-ingest pipeline and returns the
	// resulting acknowledgement fields. currentMapID is the connection's
	// in-memory view of the map currently loaded on the server, since
	// course_local_id is only meaningful relative to that map (§4.3 step 3).
	SubmitRecord(ctx context.Context, serverID id.ServerID, versionInfo PluginInfo, currentMapID int32, req SubmitRecordPayload) (recordID id.RecordID, points float64, rank int32, isPB bool, err error)

	// PublishEvent fans an event out on the event bus.
	PublishEvent(ctx context.Context, name string, payload any)
}

// HandshakeTimeout bounds how long a connection may take to send Hello.
const HandshakeTimeout = 10 * time.Second

// DefaultHeartbeatInterval is advertised to servers in HelloAck.
const DefaultHeartbeatInterval = 30 * time.Second

// HeartbeatTolerance multiplies the heartbeat interval to produce the
// silence deadline past which a connection is treated as disconnected.
const HeartbeatTolerance = 2
