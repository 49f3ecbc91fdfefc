package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/platform"
	"github.com/kz-league/cs2kz-api/pkg/ban"
	"github.com/kz-league/cs2kz-api/pkg/eventbus"
	"github.com/kz-league/cs2kz-api/pkg/kzmap"
	"github.com/kz-league/cs2kz-api/pkg/plugin"
	"github.com/kz-league/cs2kz-api/pkg/points"
	"github.com/kz-league/cs2kz-api/pkg/record"
	"github.com/kz-league/cs2kz-api/pkg/serverproto"
)

// serverDeps implements serverproto.Deps by composing the domain stores.
// It is the one place the otherwise-decoupled server-protocol package
// meets concrete storage, per pkg/serverproto/deps.go's design note.
//
// server_sessions and players back two bookkeeping concerns that don't
// belong to any single domain package (connection lifecycle, last-seen
// player state), so deps talks to them directly rather than through a
// dedicated store.
type serverDeps struct {
	db          platform.DBTX
	pluginStore *plugin.Store
	mapStore    *kzmap.Store
	banStore    *ban.Store
	recordStore *record.Store
	pointsStore *points.Store
	worker      *points.Worker
	bus         *eventbus.Bus
	sessions    map[id.ServerID]id.SessionID
}

func newServerDeps(db platform.DBTX, pluginStore *plugin.Store, mapStore *kzmap.Store, banStore *ban.Store, recordStore *record.Store, pointsStore *points.Store, worker *points.Worker, bus *eventbus.Bus) *serverDeps {
	return &serverDeps{
		db:          db,
		pluginStore: pluginStore,
		mapStore:    mapStore,
		banStore:    banStore,
		recordStore: recordStore,
		pointsStore: pointsStore,
		worker:      worker,
		bus:         bus,
		sessions:    make(map[id.ServerID]id.SessionID),
	}
}

func (d *serverDeps) ResolvePluginChecksum(ctx context.Context, checksum uint32) (serverproto.PluginInfo, error) {
	resolved, err := d.pluginStore.ResolveChecksum(ctx, checksum)
	if err != nil {
		return serverproto.PluginInfo{}, err
	}
	return serverproto.PluginInfo{
		VersionID: resolved.VersionID,
		Game:      string(resolved.Game),
		OS:        string(resolved.OS),
	}, nil
}

func (d *serverDeps) ChecksumsForVersion(ctx context.Context, versionID id.PluginVersionID, os string) (map[string]uint32, map[string]uint32, error) {
	return d.pluginStore.ChecksumsForVersion(ctx, versionID, plugin.OS(os))
}

func (d *serverDeps) CreateServerSession(ctx context.Context, serverID id.ServerID, versionID id.PluginVersionID) (id.SessionID, error) {
	sessionID := id.NewSessionID()
	_, err := d.db.Exec(ctx, `
		INSERT INTO server_sessions (id, server_id, plugin_version_id, connected_at)
		VALUES ($1, $2, $3, now())
	`, sessionID.String(), serverID, versionID)
	if err != nil {
		return id.SessionID{}, fmt.Errorf("recording server session: %w", err)
	}
	d.sessions[serverID] = sessionID
	d.bus.Publish("server-connected", map[string]any{"server_id": serverID, "plugin_version_id": versionID})
	return sessionID, nil
}

// CloseServerSession stamps disconnected_at for a Hello-to-disconnect
// lifetime. A session that was never opened (e.g. a connection that
// dropped before completing the handshake) has no row and this is a
// harmless no-op.
func (d *serverDeps) CloseServerSession(ctx context.Context, sessionID id.SessionID) error {
	_, err := d.db.Exec(ctx, `
		UPDATE server_sessions SET disconnected_at = now()
		WHERE id = $1 AND disconnected_at IS NULL
	`, sessionID.String())
	if err != nil {
		return fmt.Errorf("closing server session: %w", err)
	}
	return nil
}

func (d *serverDeps) ResolveMapByName(ctx context.Context, name string) (*serverproto.MapInfo, error) {
	row, err := d.mapStore.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return &serverproto.MapInfo{ID: row.ID, Name: row.Name, Checksum: row.Checksum}, nil
}

func (d *serverDeps) OnPlayerJoin(ctx context.Context, steamID id.SteamID, name, ip string) (json.RawMessage, bool, error) {
	banned, err := d.banStore.IsActiveForPlayer(ctx, time.Now(), steamID)
	if err != nil {
		return nil, false, err
	}

	var preferences json.RawMessage
	err = d.db.QueryRow(ctx, `SELECT preferences FROM players WHERE steam_id = $1`, steamID).Scan(&preferences)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		preferences = json.RawMessage("{}")
	case err != nil:
		return nil, false, fmt.Errorf("loading player preferences: %w", err)
	}

	_, err = d.db.Exec(ctx, `
		INSERT INTO players (steam_id, name, preferences, updated_at)
		VALUES ($1, $2, COALESCE($3, '{}'), now())
		ON CONFLICT (steam_id) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
	`, steamID, name, preferences)
	if err != nil {
		return nil, false, fmt.Errorf("recording player join: %w", err)
	}

	return preferences, banned, nil
}

// OnPlayerLeave persists the player's final name and preference blob, the
// snapshot a future join replays back to the plugin in PlayerJoinAck.
func (d *serverDeps) OnPlayerLeave(ctx context.Context, steamID id.SteamID, name string, preferences json.RawMessage) error {
	if len(preferences) == 0 {
		preferences = json.RawMessage("{}")
	}
	_, err := d.db.Exec(ctx, `
		INSERT INTO players (steam_id, name, preferences, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (steam_id) DO UPDATE SET name = EXCLUDED.name, preferences = EXCLUDED.preferences, updated_at = now()
	`, steamID, name, preferences)
	if err != nil {
		return fmt.Errorf("recording player leave: %w", err)
	}
	return nil
}

func (d *serverDeps) SubmitRecord(ctx context.Context, serverID id.ServerID, versionInfo serverproto.PluginInfo, currentMapID int32, req serverproto.SubmitRecordPayload) (id.RecordID, float64, int32, bool, error) {
	// §4.3 steps 1-2: mode/style checksums must be known for this version.
	modeChecksums, styleChecksums, err := d.pluginStore.ChecksumsForVersion(ctx, versionInfo.VersionID, plugin.OS(versionInfo.OS))
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("loading checksums: %w", err)
	}
	mode, ok := lookupMode(modeChecksums, req.ModeChecksum)
	if !ok {
		return 0, 0, 0, false, fmt.Errorf("unknown mode checksum %#x", req.ModeChecksum)
	}
	for _, sc := range req.StyleChecksums {
		if _, ok := lookupMode(styleChecksums, sc); !ok {
			return 0, 0, 0, false, fmt.Errorf("unknown style checksum %#x", sc)
		}
	}

	steamID, err := id.ParseSteamID(req.PlayerID)
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("invalid player id: %w", err)
	}

	// step 3: course_local_id on the currently loaded map must resolve to a filter.
	resolved, err := d.mapStore.ResolveFilter(ctx, id.MapID(currentMapID), req.CourseLocalID, kzmap.Mode(mode))
	if err != nil {
		return 0, 0, 0, false, fmt.Errorf("resolving filter: %w", err)
	}

	recordID, isPB, err := d.recordStore.Insert(ctx, record.Record{
		FilterID:        resolved.ID,
		PlayerID:        steamID,
		ServerID:        serverID,
		SessionID:       d.sessions[serverID],
		PluginVersionID: versionInfo.VersionID,
		StyleChecksums:  req.StyleChecksums,
		Teleports:       req.Teleports,
		Time:            req.Time,
	})
	if err != nil {
		return 0, 0, 0, false, err
	}

	leaderboard := record.LeaderboardOf(req.Teleports)
	tier := int8(resolved.NubTier)
	if leaderboard == record.PRO {
		tier = int8(resolved.ProTier)
	}

	rank, size, err := d.recordStore.Rank(ctx, resolved.ID, leaderboard, req.Time)
	if err != nil {
		return recordID, 0, 0, isPB, err
	}

	dist, err := d.pointsStore.Get(ctx, resolved.ID, leaderboard)
	if err != nil && err != points.ErrNotFound {
		return recordID, 0, 0, isPB, err
	}

	var pts float64
	if isPB {
		times, err := d.recordStore.Times(ctx, resolved.ID, leaderboard)
		if err == nil && len(times) > 0 {
			pts, err = d.worker.CalculatePoint(ctx, req.Time, times[0], dist, size, tier, rank)
			if err != nil {
				return recordID, 0, rank, isPB, fmt.Errorf("computing points: %w", err)
			}

			// A PB materially changes the leaderboard's shape, so refit the
			// distribution and cache it for the next submission's Get,
			// per §4.3/§4.4's "recompute on material change" requirement.
			newDist, err := d.worker.CalculateDistribution(ctx, times)
			if err != nil {
				return recordID, pts, rank, isPB, fmt.Errorf("fitting distribution: %w", err)
			}
			if err := d.pointsStore.Upsert(ctx, resolved.ID, leaderboard, newDist); err != nil {
				return recordID, pts, rank, isPB, fmt.Errorf("caching distribution: %w", err)
			}
		}
	}

	return recordID, pts, rank, isPB, nil
}

func (d *serverDeps) PublishEvent(ctx context.Context, name string, payload any) {
	d.bus.Publish(name, payload)
}

func lookupMode(checksums map[string]uint32, checksum uint32) (string, bool) {
	for name, c := range checksums {
		if c == checksum {
			return name, true
		}
	}
	return "", false
}
