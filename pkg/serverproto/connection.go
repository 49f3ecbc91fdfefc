// Package serverproto implements the per-game-server WebSocket protocol:
// the state machine that performs the handshake, maintains a per-connection
// view of joined players and the current map, and routes record submissions
// into the points pipeline. It is built on gorilla/websocket, whose
// upgrader/read-pump/write-pump split is grounded in Seednode-partybox's
// hub/client pattern — generalized here from a per-lobby hub to a
// per-game-server connection owned by the connected-servers registry.
package serverproto

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/telemetry"
	"github.com/kz-league/cs2kz-api/pkg/registry"
)

// State is a connection's position in the handshake/running/closing
// lifecycle. It is only ever read or written from the connection's own
// goroutine.
type State int

const (
	AwaitingHello State = iota
	HandshakeResponded
	Running
	Closing
)

func (s State) String() string {
	switch s {
	case AwaitingHello:
		return "awaiting_hello"
	case HandshakeResponded:
		return "handshake_responded"
	case Running:
		return "running"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Upgrade upgrades an incoming HTTP request to a WebSocket connection and
// runs its state machine to completion. It blocks until the connection
// exits for any reason.
func Upgrade(ctx context.Context, w http.ResponseWriter, r *http.Request, serverID id.ServerID, deps Deps, reg *registry.Registry, logger *slog.Logger) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrading connection: %w", err)
	}

	c := &Connection{
		conn:     conn,
		serverID: serverID,
		deps:     deps,
		registry: reg,
		logger:   logger.With("server_id", serverID),
		outbound: registry.NewOutboundChannel(),
		state:    AwaitingHello,
	}
	return c.run(ctx)
}

// Connection is a single game server's WebSocket connection and its
// in-memory view of connected players and the current map.
type Connection struct {
	conn     *websocket.Conn
	serverID id.ServerID
	deps     Deps
	registry *registry.Registry
	logger   *slog.Logger
	outbound chan any

	state          State
	sessionID      id.SessionID
	pluginInfo     PluginInfo
	currentMap     *MapInfo
	players        map[string]struct{}
	modeChecksums  map[string]uint32
	styleChecksums map[string]uint32
}

func (c *Connection) run(ctx context.Context) error {
	defer c.conn.Close()

	if err := c.handshake(ctx); err != nil {
		c.logger.Warn("handshake failed", "error", err)
		return err
	}

	if err := c.registry.Insert(c.serverID, c.outbound); err != nil {
		c.logger.Warn("server already connected, rejecting", "error", err)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"),
			time.Now().Add(time.Second))
		return err
	}
	c.state = Running
	c.players = make(map[string]struct{})

	inbound := make(chan Envelope, 8)
	readErrCh := make(chan error, 1)
	go c.readPump(inbound, readErrCh)

	go c.writePump()

	c.runLoop(ctx, inbound, readErrCh)

	c.state = Closing
	c.registry.Remove(c.serverID)
	close(c.outbound)
	if err := c.deps.CloseServerSession(context.Background(), c.sessionID); err != nil {
		c.logger.Error("closing server session", "error", err)
	}
	c.deps.PublishEvent(context.Background(), "server-disconnected", map[string]any{"server_id": c.serverID})

	return nil
}

func (c *Connection) handshake(ctx context.Context) error {
	_ = c.conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))

	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	if env.Type != "hello" {
		return fmt.Errorf("expected hello, got %q", env.Type)
	}

	var hello HelloPayload
	if err := json.Unmarshal(env.Payload, &hello); err != nil {
		return fmt.Errorf("decoding hello payload: %w", err)
	}

	plugin, err := c.deps.ResolvePluginChecksum(ctx, hello.PluginChecksum)
	if err != nil {
		return fmt.Errorf("resolving plugin checksum: %w", err)
	}
	c.pluginInfo = plugin

	modeChecksums, styleChecksums, err := c.deps.ChecksumsForVersion(ctx, plugin.VersionID, plugin.OS)
	if err != nil {
		return fmt.Errorf("loading checksums: %w", err)
	}
	c.modeChecksums = modeChecksums
	c.styleChecksums = styleChecksums

	sessionID, err := c.deps.CreateServerSession(ctx, c.serverID, plugin.VersionID)
	if err != nil {
		return fmt.Errorf("creating server session: %w", err)
	}
	c.sessionID = sessionID

	if hello.CurrentMapName != nil {
		mapInfo, err := c.deps.ResolveMapByName(ctx, *hello.CurrentMapName)
		if err != nil {
			return fmt.Errorf("resolving current map: %w", err)
		}
		c.currentMap = mapInfo
	}

	playerDetails := make(map[string]PlayerDetails, len(hello.ConnectedPlayers))
	for steamIDStr, player := range hello.ConnectedPlayers {
		steamID, err := id.ParseSteamID(steamIDStr)
		if err != nil {
			continue
		}
		prefs, banned, err := c.deps.OnPlayerJoin(ctx, steamID, player.Name, player.IP)
		if err != nil {
			c.logger.Error("player join during handshake", "steam_id", steamIDStr, "error", err)
			continue
		}
		playerDetails[steamIDStr] = PlayerDetails{Preferences: prefs, IsBanned: banned}
	}

	ack, err := outbound(env.ID, "hello_ack", HelloAckPayload{
		HeartbeatIntervalSeconds: int(DefaultHeartbeatInterval.Seconds()),
		ModeChecksums:            modeChecksums,
		StyleChecksums:           styleChecksums,
		MapInfo:                  c.currentMap,
		PlayerDetails:            playerDetails,
	})
	if err != nil {
		return fmt.Errorf("building hello_ack: %w", err)
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(ack); err != nil {
		return fmt.Errorf("writing hello_ack: %w", err)
	}

	// The handshake deadline ends here; the running loop's heartbeat
	// deadline governs silence from now on.
	_ = c.conn.SetReadDeadline(time.Time{})

	c.state = HandshakeResponded
	return nil
}

func (c *Connection) readPump(inbound chan<- Envelope, errCh chan<- error) {
	defer close(inbound)
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			errCh <- err
			return
		}
		inbound <- env
	}
}

func (c *Connection) writePump() {
	for msg := range c.outbound {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Connection) runLoop(ctx context.Context, inbound <-chan Envelope, readErrCh <-chan error) {
	heartbeatDeadline := time.NewTimer(DefaultHeartbeatInterval * HeartbeatTolerance)
	defer heartbeatDeadline.Stop()
	heartbeatTicker := time.NewTicker(DefaultHeartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return

		case <-readErrCh:
			return

		case env, ok := <-inbound:
			if !ok {
				return
			}
			heartbeatDeadline.Reset(DefaultHeartbeatInterval * HeartbeatTolerance)
			c.handleMessage(ctx, env)

		case <-heartbeatTicker.C:
			msg, err := outbound(0, "heartbeat", HeartbeatPayload{SentAt: time.Now()})
			if err == nil {
				select {
				case c.outbound <- msg:
				default:
				}
			}

		case <-heartbeatDeadline.C:
			c.logger.Warn("heartbeat deadline exceeded, treating as disconnect")
			return
		}
	}
}

func (c *Connection) handleMessage(ctx context.Context, env Envelope) {
	telemetry.ServerMessagesTotal.WithLabelValues("inbound", env.Type).Inc()

	var (
		reply any
		err   error
	)

	switch env.Type {
	case "map_changed":
		reply, err = c.handleMapChanged(ctx, env)
	case "player_join":
		reply, err = c.handlePlayerJoin(ctx, env)
	case "player_leave":
		reply, err = c.handlePlayerLeave(ctx, env)
	case "submit_record":
		reply, err = c.handleSubmitRecord(ctx, env)
	default:
		err = fmt.Errorf("unknown message type %q", env.Type)
	}

	if err != nil {
		c.logger.Error("handling message", "type", env.Type, "error", err)
		reply, _ = outbound(env.ID, "error", ErrorPayload{Message: err.Error()})
	}
	if reply != nil {
		select {
		case c.outbound <- reply:
			telemetry.ServerMessagesTotal.WithLabelValues("outbound", env.Type).Inc()
		default:
			c.logger.Warn("outbound channel full, dropping reply", "type", env.Type)
		}
	}
}

func (c *Connection) handleMapChanged(ctx context.Context, env Envelope) (any, error) {
	var req MapChangedPayload
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return nil, err
	}

	mapInfo, err := c.deps.ResolveMapByName(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	c.currentMap = mapInfo

	return outbound(env.ID, "map_changed_ack", MapChangedAckPayload{MapInfo: mapInfo})
}

func (c *Connection) handlePlayerJoin(ctx context.Context, env Envelope) (any, error) {
	var req PlayerJoinPayload
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return nil, err
	}

	steamID, err := id.ParseSteamID(req.ID)
	if err != nil {
		return nil, err
	}

	prefs, banned, err := c.deps.OnPlayerJoin(ctx, steamID, req.Name, req.IP)
	if err != nil {
		return nil, err
	}
	c.players[req.ID] = struct{}{}
	c.deps.PublishEvent(ctx, "player-join", map[string]any{"server_id": c.serverID, "steam_id": req.ID})

	return outbound(env.ID, "player_join_ack", PlayerJoinAckPayload{Preferences: prefs, IsBanned: banned})
}

func (c *Connection) handlePlayerLeave(ctx context.Context, env Envelope) (any, error) {
	var req PlayerLeavePayload
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return nil, err
	}

	steamID, err := id.ParseSteamID(req.ID)
	if err != nil {
		return nil, err
	}

	if err := c.deps.OnPlayerLeave(ctx, steamID, req.Name, req.Preferences); err != nil {
		return nil, err
	}
	delete(c.players, req.ID)
	c.deps.PublishEvent(ctx, "player-leave", map[string]any{"server_id": c.serverID, "steam_id": req.ID})

	return nil, nil
}

func (c *Connection) handleSubmitRecord(ctx context.Context, env Envelope) (any, error) {
	var req SubmitRecordPayload
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return nil, err
	}

	if _, ok := c.players[req.PlayerID]; !ok {
		return nil, fmt.Errorf("player %s is not connected to this server", req.PlayerID)
	}

	var currentMapID int32
	if c.currentMap != nil {
		currentMapID = c.currentMap.ID
	}

	recordID, points, rank, isPB, err := c.deps.SubmitRecord(ctx, c.serverID, c.pluginInfo, currentMapID, req)
	if err != nil {
		telemetry.RecordsIngestedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	telemetry.RecordsIngestedTotal.WithLabelValues("accepted").Inc()
	c.deps.PublishEvent(ctx, "record-submitted", map[string]any{"record_id": recordID, "server_id": c.serverID})

	return outbound(env.ID, "record_submitted_ack", RecordSubmittedAckPayload{
		RecordID: int64(recordID),
		Points:   points,
		Rank:     rank,
		IsPB:     isPB,
	})
}
