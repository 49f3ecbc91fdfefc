package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kz-league/cs2kz-api/internal/config"
	"github.com/kz-league/cs2kz-api/internal/httpserver"
	"github.com/kz-league/cs2kz-api/internal/id"
	"github.com/kz-league/cs2kz-api/internal/perm"
	"github.com/kz-league/cs2kz-api/internal/problem"
	"github.com/kz-league/cs2kz-api/pkg/auth"
	"github.com/kz-league/cs2kz-api/pkg/ban"
	"github.com/kz-league/cs2kz-api/pkg/eventbus"
	"github.com/kz-league/cs2kz-api/pkg/kzmap"
	"github.com/kz-league/cs2kz-api/pkg/kzserver"
	"github.com/kz-league/cs2kz-api/pkg/plugin"
	"github.com/kz-league/cs2kz-api/pkg/points"
	"github.com/kz-league/cs2kz-api/pkg/record"
	"github.com/kz-league/cs2kz-api/pkg/registry"
	"github.com/kz-league/cs2kz-api/pkg/serverproto"
	"github.com/kz-league/cs2kz-api/pkg/steamapi"
	"github.com/kz-league/cs2kz-api/pkg/steamauth"
)

// handlers groups everything the HTTP surface needs. One struct, one
// receiver per route, in the teacher's style of a handler type per
// subsystem rather than free functions closing over package state.
type handlers struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         *pgxpool.Pool
	sessionMgr *auth.SessionManager
	authStore  *auth.Store
	steamFlow  *steamauth.Flow
	steamSvc   *steamapi.Service
	mapStore   *kzmap.Store
	serverStore *kzserver.Store
	pluginStore *plugin.Store
	banStore   *ban.Store
	recordStore *record.Store
	pointsStore *points.Store
	bus        *eventbus.Bus
	registry   *registry.Registry
	deps       serverproto.Deps
}

// --- auth ---

func (h *handlers) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := h.steamFlow.RedirectURL(r.Context())
	if err != nil {
		h.logger.Error("building steam redirect url", "error", err)
		problem.WriteType(w, h.logger, problem.Internal, "failed to start steam login")
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *handlers) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	steamID, err := h.steamFlow.Verify(ctx, r)
	if err != nil {
		problem.WriteType(w, h.logger, problem.Unauthorized, "steam verification failed")
		return
	}

	steamUser, err := h.steamSvc.GetUser(ctx, steamID)
	if err != nil {
		h.logger.Error("fetching steam user", "error", err, "steam_id", steamID)
		problem.WriteType(w, h.logger, problem.SteamAPIError, "failed to fetch steam profile")
		return
	}

	user, err := h.authStore.UpsertUser(ctx, steamID, steamUser.Name)
	if err != nil {
		h.logger.Error("upserting user", "error", err)
		problem.WriteType(w, h.logger, problem.Internal, "failed to persist user")
		return
	}

	if err := h.sessionMgr.Issue(ctx, w, user); err != nil {
		h.logger.Error("issuing session", "error", err)
		problem.WriteType(w, h.logger, problem.Internal, "failed to issue session")
		return
	}

	httpserver.Respond(w, http.StatusOK, user)
}

func (h *handlers) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionMgr.Clear(r.Context(), w, r); err != nil {
		h.logger.Error("clearing session", "error", err)
		problem.WriteType(w, h.logger, problem.Internal, "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.FromContext(r.Context())
	if !ok {
		problem.WriteType(w, h.logger, problem.Unauthorized, "not logged in")
		return
	}
	httpserver.Respond(w, http.StatusOK, user)
}

// --- maps ---

type createMapRequest struct {
	WorkshopID  uint32                   `json:"workshop_id" validate:"required"`
	Name        string                   `json:"name" validate:"required"`
	Description string                   `json:"description"`
	Game        string                   `json:"game" validate:"required,oneof=cs2 csgo"`
	Checksum    uint32                   `json:"checksum" validate:"required"`
	Courses     []createCourseRequest    `json:"courses" validate:"required,min=1,dive"`
}

type createCourseRequest struct {
	LocalID     int32                    `json:"local_id"`
	Name        string                   `json:"name" validate:"required"`
	Description string                   `json:"description"`
	Mappers     []string                 `json:"mappers" validate:"required,min=1"`
	Filters     []createFilterRequest    `json:"filters" validate:"required,min=1,dive"`
}

type createFilterRequest struct {
	Mode    string `json:"mode" validate:"required"`
	NubTier int8   `json:"nub_tier" validate:"required,min=1,max=10"`
	ProTier int8   `json:"pro_tier" validate:"required,min=1,max=10"`
	Ranked  bool   `json:"ranked"`
	Notes   string `json:"notes"`
}

func (h *handlers) handleCreateMap(w http.ResponseWriter, r *http.Request) {
	var req createMapRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	user, _ := auth.FromContext(r.Context())

	params := kzmap.CreateMapParams{
		WorkshopID:  req.WorkshopID,
		Name:        req.Name,
		Description: req.Description,
		Game:        kzmap.Game(req.Game),
		Checksum:    req.Checksum,
		CreatedBy:   user.ID,
	}
	for _, c := range req.Courses {
		mappers := make([]id.SteamID, 0, len(c.Mappers))
		for _, m := range c.Mappers {
			steamID, err := id.ParseSteamID(m)
			if err != nil {
				problem.Write(w, h.logger, problem.New(problem.InvalidMapperID, "invalid mapper steam id").
					WithExtensions(map[string]any{"mapper_id": m}))
				return
			}
			mappers = append(mappers, steamID)
		}
		filters := make([]kzmap.FilterParams, 0, len(c.Filters))
		for _, f := range c.Filters {
			filters = append(filters, kzmap.FilterParams{
				Mode:    kzmap.Mode(f.Mode),
				NubTier: kzmap.Tier(f.NubTier),
				ProTier: kzmap.Tier(f.ProTier),
				Ranked:  f.Ranked,
				Notes:   f.Notes,
			})
		}
		params.Courses = append(params.Courses, kzmap.CourseParams{
			LocalID:     c.LocalID,
			Name:        c.Name,
			Description: c.Description,
			Mappers:     mappers,
			Filters:     filters,
		})
	}

	tx, err := h.db.BeginTx(r.Context(), pgx.TxOptions{})
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to start transaction")
		return
	}
	defer tx.Rollback(r.Context())

	m, err := h.mapStore.Create(r.Context(), tx, params)
	if err != nil {
		h.logger.Error("creating map", "error", err)
		problem.WriteType(w, h.logger, problem.Internal, "failed to create map")
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to commit transaction")
		return
	}

	h.bus.Publish("map-created", map[string]any{"id": m.ID})
	httpserver.Respond(w, http.StatusCreated, m)
}

func (h *handlers) handleListMaps(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		problem.WriteType(w, h.logger, problem.InvalidQueryString, err.Error())
		return
	}
	maps, total, err := h.mapStore.List(r.Context(), params.Offset, params.PageSize)
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to list maps")
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(maps, params, total))
}

type updateMapRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// handleUpdateMap edits a map's mutable metadata. It is the mutation that
// exercises §4.5's freeze invariant outside the dedicated /state endpoint:
// a mapper may not edit a map while it is Pending, Approved or Completed
// (State.Frozen), unless they also hold UpdateMaps.
func (h *handlers) handleUpdateMap(w http.ResponseWriter, r *http.Request) {
	mapID, ok := parseIntParam(w, h.logger, r, "id", id.MapID(0))
	if !ok {
		return
	}

	var req updateMapRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	m, err := h.mapStore.Get(r.Context(), id.MapID(mapID))
	if errors.Is(err, kzmap.ErrNotFound) {
		problem.WriteType(w, h.logger, problem.ResourceNotFound, "map not found")
		return
	}
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to load map")
		return
	}

	user, _ := auth.FromContext(r.Context())
	isMapper, err := h.mapStore.IsMapper(r.Context(), id.MapID(mapID), user.ID)
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to check mapper status")
		return
	}

	if m.State.Frozen() && !user.Permissions.Contains(perm.Of(perm.UpdateMaps)) {
		problem.Write(w, h.logger, problem.New(problem.MapIsFrozen, "map is frozen in its current state").
			WithExtensions(map[string]any{"map_id": mapID, "map_state": m.State.String()}))
		return
	}
	if !isMapper && !user.Permissions.Contains(perm.Of(perm.UpdateMaps)) {
		problem.WriteType(w, h.logger, problem.Unauthorized, "not a mapper on this map")
		return
	}

	if err := h.mapStore.UpdateDetails(r.Context(), id.MapID(mapID), req.Name, req.Description); err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to update map")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleGetMap(w http.ResponseWriter, r *http.Request) {
	mapID, ok := parseIntParam(w, h.logger, r, "id", id.MapID(0))
	if !ok {
		return
	}
	m, err := h.mapStore.Get(r.Context(), id.MapID(mapID))
	if errors.Is(err, kzmap.ErrNotFound) {
		problem.WriteType(w, h.logger, problem.ResourceNotFound, "map not found")
		return
	}
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to load map")
		return
	}
	httpserver.Respond(w, http.StatusOK, m)
}

type updateMapStateRequest struct {
	State string `json:"state" validate:"required"`
}

func (h *handlers) handleUpdateMapState(w http.ResponseWriter, r *http.Request) {
	mapID, ok := parseIntParam(w, h.logger, r, "id", id.MapID(0))
	if !ok {
		return
	}

	var req updateMapStateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	newState, err := kzmap.ParseState(req.State)
	if err != nil {
		problem.WriteType(w, h.logger, problem.BadRequest, "invalid map state")
		return
	}

	m, err := h.mapStore.Get(r.Context(), id.MapID(mapID))
	if errors.Is(err, kzmap.ErrNotFound) {
		problem.WriteType(w, h.logger, problem.ResourceNotFound, "map not found")
		return
	}
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to load map")
		return
	}

	user, _ := auth.FromContext(r.Context())
	isMapper, err := h.mapStore.IsMapper(r.Context(), id.MapID(mapID), user.ID)
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to check mapper status")
		return
	}

	if err := kzmap.Transition(id.MapID(mapID), m.State, newState, isMapper, user.Permissions); err != nil {
		var frozenErr *kzmap.ErrMapFrozen
		if errors.As(err, &frozenErr) {
			problem.Write(w, h.logger, problem.New(problem.MapIsFrozen, "map is frozen in its current state").
				WithExtensions(map[string]any{"map_id": frozenErr.MapID, "map_state": frozenErr.State.String()}))
			return
		}
		problem.WriteType(w, h.logger, problem.Unauthorized, err.Error())
		return
	}

	if err := h.mapStore.SetState(r.Context(), id.MapID(mapID), newState); err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to update map state")
		return
	}

	h.bus.Publish("map-"+stateEventSuffix(newState), map[string]any{"id": mapID})
	w.WriteHeader(http.StatusNoContent)
}

func stateEventSuffix(s kzmap.State) string {
	switch s {
	case kzmap.Approved:
		return "approved"
	case kzmap.Completed:
		return "completed"
	default:
		return "updated"
	}
}

// --- servers ---

type createServerRequest struct {
	Name    string `json:"name" validate:"required"`
	Host    string `json:"host" validate:"required"`
	Port    uint16 `json:"port" validate:"required"`
	OwnerID string `json:"owner_id" validate:"required"`
}

func (h *handlers) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var req createServerRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	ownerID, err := id.ParseSteamID(req.OwnerID)
	if err != nil {
		problem.WriteType(w, h.logger, problem.BadRequest, "invalid owner id")
		return
	}

	srv, accessKey, err := h.serverStore.Create(r.Context(), kzserver.CreateParams{
		Name: req.Name, Host: req.Host, Port: req.Port, OwnerID: ownerID,
	})
	if errors.Is(err, kzserver.ErrNameAlreadyInUse) {
		problem.WriteType(w, h.logger, problem.ServerNameAlreadyInUse, "server name already in use")
		return
	}
	if errors.Is(err, kzserver.ErrHostPortAlreadyInUse) {
		problem.WriteType(w, h.logger, problem.ServerHostAndPortAlreadyInUse, "server host/port already in use")
		return
	}
	if err != nil {
		h.logger.Error("creating server", "error", err)
		problem.WriteType(w, h.logger, problem.Internal, "failed to create server")
		return
	}

	httpserver.Respond(w, http.StatusCreated, map[string]any{
		"server":     srv,
		"access_key": accessKey,
	})
}

func (h *handlers) handleListServers(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		problem.WriteType(w, h.logger, problem.InvalidQueryString, err.Error())
		return
	}
	servers, total, err := h.serverStore.List(r.Context(), params.Offset, params.PageSize)
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to list servers")
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(servers, params, total))
}

func (h *handlers) handleGetServer(w http.ResponseWriter, r *http.Request) {
	serverID, ok := parseIntParam(w, h.logger, r, "id", id.ServerID(0))
	if !ok {
		return
	}
	srv, err := h.serverStore.Get(r.Context(), id.ServerID(serverID))
	if errors.Is(err, kzserver.ErrNotFound) {
		problem.WriteType(w, h.logger, problem.ResourceNotFound, "server not found")
		return
	}
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to load server")
		return
	}
	httpserver.Respond(w, http.StatusOK, srv)
}

func (h *handlers) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	serverID, ok := parseIntParam(w, h.logger, r, "id", id.ServerID(0))
	if !ok {
		return
	}
	var req createServerRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := h.serverStore.UpdateMetadata(r.Context(), id.ServerID(serverID), req.Name, req.Host, req.Port); err != nil {
		if errors.Is(err, kzserver.ErrNotFound) {
			problem.WriteType(w, h.logger, problem.ResourceNotFound, "server not found")
			return
		}
		problem.WriteType(w, h.logger, problem.Internal, "failed to update server")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleRotateAccessKey(w http.ResponseWriter, r *http.Request) {
	serverID, ok := parseIntParam(w, h.logger, r, "id", id.ServerID(0))
	if !ok {
		return
	}
	accessKey, err := h.serverStore.RotateAccessKey(r.Context(), id.ServerID(serverID))
	if errors.Is(err, kzserver.ErrNotFound) {
		problem.WriteType(w, h.logger, problem.ResourceNotFound, "server not found")
		return
	}
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to rotate access key")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"access_key": accessKey})
}

func (h *handlers) handleRevokeAccessKey(w http.ResponseWriter, r *http.Request) {
	serverID, ok := parseIntParam(w, h.logger, r, "id", id.ServerID(0))
	if !ok {
		return
	}
	if err := h.serverStore.RevokeAccessKey(r.Context(), id.ServerID(serverID)); err != nil {
		if errors.Is(err, kzserver.ErrNotFound) {
			problem.WriteType(w, h.logger, problem.ResourceNotFound, "server not found")
			return
		}
		problem.WriteType(w, h.logger, problem.Internal, "failed to revoke access key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- bans ---

type createBanRequest struct {
	PlayerID  string     `json:"player_id" validate:"required"`
	Reason    string     `json:"reason" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *handlers) handleCreateBan(w http.ResponseWriter, r *http.Request) {
	var req createBanRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	playerID, err := id.ParseSteamID(req.PlayerID)
	if err != nil {
		problem.WriteType(w, h.logger, problem.UnknownPlayerToBan, "invalid player id")
		return
	}

	user, _ := auth.FromContext(r.Context())
	b, err := h.banStore.Create(r.Context(), time.Now(), ban.CreateParams{
		PlayerID:  playerID,
		Reason:    req.Reason,
		CreatedBy: ban.FromAdmin(user.ID),
		ExpiresAt: req.ExpiresAt,
	})
	switch {
	case errors.Is(err, ban.ErrPlayerAlreadyBanned):
		problem.WriteType(w, h.logger, problem.PlayerAlreadyBanned, "player already has an active ban")
		return
	case errors.Is(err, ban.ErrExpiresInThePast):
		problem.WriteType(w, h.logger, problem.BanExpiresInThePast, "expires_at is in the past")
		return
	case err != nil:
		problem.WriteType(w, h.logger, problem.Internal, "failed to create ban")
		return
	}

	h.bus.Publish("ban-created", map[string]any{"id": b.ID, "player_id": b.PlayerID})
	httpserver.Respond(w, http.StatusCreated, b)
}

type revertBanRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *handlers) handleRevertBan(w http.ResponseWriter, r *http.Request) {
	banID, ok := parseIntParam(w, h.logger, r, "id", id.BanID(0))
	if !ok {
		return
	}
	var req revertBanRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	user, _ := auth.FromContext(r.Context())

	err := h.banStore.Revert(r.Context(), time.Now(), id.BanID(banID), user.ID, req.Reason)
	switch {
	case errors.Is(err, ban.ErrNotFound):
		problem.WriteType(w, h.logger, problem.ResourceNotFound, "ban not found")
		return
	case errors.Is(err, ban.ErrAlreadyExpired):
		problem.WriteType(w, h.logger, problem.BanAlreadyExpired, "ban already expired")
		return
	case errors.Is(err, ban.ErrAlreadyReverted):
		problem.WriteType(w, h.logger, problem.BanAlreadyReverted, "ban already reverted")
		return
	case err != nil:
		problem.WriteType(w, h.logger, problem.Internal, "failed to revert ban")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- plugin versions ---

type createPluginVersionRequest struct {
	Game            string            `json:"game" validate:"required,oneof=cs2 csgo"`
	SemverRaw       string            `json:"version" validate:"required"`
	GitRevision     string            `json:"git_revision" validate:"required"`
	BinaryChecksums map[string]uint32 `json:"binary_checksums" validate:"required"`
	ModeChecksums   map[string]map[string]uint32 `json:"mode_checksums" validate:"required"`
	StyleChecksums  map[string]map[string]uint32 `json:"style_checksums"`
}

func (h *handlers) handleCreatePluginVersion(w http.ResponseWriter, r *http.Request) {
	var req createPluginVersionRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	toOSMap := func(m map[string]uint32) plugin.ChecksumPerOS {
		out := make(plugin.ChecksumPerOS, len(m))
		for osName, checksum := range m {
			out[plugin.OS(osName)] = checksum
		}
		return out
	}

	modeChecksums := make(map[kzmap.Mode]plugin.ChecksumPerOS, len(req.ModeChecksums))
	for mode, perOS := range req.ModeChecksums {
		modeChecksums[kzmap.Mode(mode)] = toOSMap(perOS)
	}
	styleChecksums := make(map[kzmap.Style]plugin.ChecksumPerOS, len(req.StyleChecksums))
	for style, perOS := range req.StyleChecksums {
		styleChecksums[kzmap.Style(style)] = toOSMap(perOS)
	}

	v, err := h.pluginStore.Create(r.Context(), plugin.CreateParams{
		Game:            kzmap.Game(req.Game),
		SemverRaw:       req.SemverRaw,
		GitRevision:     req.GitRevision,
		BinaryChecksums: toOSMap(req.BinaryChecksums),
		ModeChecksums:   modeChecksums,
		StyleChecksums:  styleChecksums,
	})
	switch {
	case errors.Is(err, plugin.ErrAlreadyExists):
		problem.WriteType(w, h.logger, problem.PluginVersionAlreadyExists, "plugin version already exists")
		return
	case errors.Is(err, plugin.ErrOlderThanLatest):
		problem.WriteType(w, h.logger, problem.PluginVersionIsOlderThanLatest, "plugin version is older than latest")
		return
	case err != nil:
		h.logger.Error("creating plugin version", "error", err)
		problem.WriteType(w, h.logger, problem.Internal, "failed to create plugin version")
		return
	}

	httpserver.Respond(w, http.StatusCreated, v)
}

// --- records ---

func (h *handlers) handleListRecords(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		problem.WriteType(w, h.logger, problem.InvalidQueryString, err.Error())
		return
	}
	records, total, err := h.recordStore.List(r.Context(), params.Offset, params.PageSize)
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to list records")
		return
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(records, params, total))
}

func (h *handlers) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	recordID, ok := parseIntParam(w, h.logger, r, "id", id.RecordID(0))
	if !ok {
		return
	}
	rec, err := h.recordStore.Get(r.Context(), id.RecordID(recordID))
	if errors.Is(err, record.ErrNotFound) {
		problem.WriteType(w, h.logger, problem.ResourceNotFound, "record not found")
		return
	}
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to load record")
		return
	}
	httpserver.Respond(w, http.StatusOK, rec)
}

// --- players ---

// player is the narrow public projection of a row in the players table:
// last-seen name and the plugin preference blob a future join replays back.
type player struct {
	SteamID     id.SteamID      `json:"steam_id"`
	Name        string          `json:"name"`
	Preferences json.RawMessage `json:"preferences"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (h *handlers) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		problem.WriteType(w, h.logger, problem.InvalidQueryString, err.Error())
		return
	}

	var total int
	if err := h.db.QueryRow(r.Context(), `SELECT COUNT(*) FROM players`).Scan(&total); err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to list players")
		return
	}

	rows, err := h.db.Query(r.Context(), `
		SELECT steam_id, name, preferences, updated_at FROM players
		ORDER BY steam_id ASC OFFSET $1 LIMIT $2
	`, params.Offset, params.PageSize)
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to list players")
		return
	}
	defer rows.Close()

	var players []player
	for rows.Next() {
		var p player
		if err := rows.Scan(&p.SteamID, &p.Name, &p.Preferences, &p.UpdatedAt); err != nil {
			problem.WriteType(w, h.logger, problem.Internal, "failed to list players")
			return
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to list players")
		return
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(players, params, total))
}

// --- leaderboards ---

func (h *handlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	filterIDRaw := chi.URLParam(r, "filterID")
	filterID, err := strconv.Atoi(filterIDRaw)
	if err != nil {
		problem.WriteType(w, h.logger, problem.InvalidPathParameters, "invalid filter id")
		return
	}

	leaderboard := record.NUB
	if r.URL.Query().Get("leaderboard") == "pro" {
		leaderboard = record.PRO
	}

	times, err := h.recordStore.Times(r.Context(), id.FilterID(filterID), leaderboard)
	if err != nil {
		problem.WriteType(w, h.logger, problem.Internal, "failed to load leaderboard")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"filter_id": filterID, "leaderboard": leaderboard, "times": times})
}

// --- events (SSE) ---

func (h *handlers) handleEvents(w http.ResponseWriter, r *http.Request) {
	sseWriter, ok := httpserver.NewSSEWriter(w)
	if !ok {
		problem.WriteType(w, h.logger, problem.Internal, "streaming unsupported")
		return
	}

	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := sseWriter.WriteEvent(ev.Name, ev.Payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := sseWriter.WriteComment("keep-alive"); err != nil {
				return
			}
		}
	}
}

// --- game-server websocket upgrade ---

func (h *handlers) handleServerConnect(w http.ResponseWriter, r *http.Request) {
	accessKey := r.Header.Get("Authorization")
	if accessKey == "" {
		problem.WriteType(w, h.logger, problem.MissingHeader, "missing Authorization header")
		return
	}

	serverID, err := h.serverStore.Authenticate(r.Context(), accessKey)
	if err != nil {
		problem.WriteType(w, h.logger, problem.Unauthorized, "invalid access key")
		return
	}

	if err := serverproto.Upgrade(r.Context(), w, r, serverID, h.deps, h.registry, h.logger); err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "server_id", serverID)
	}
}

// --- shared helpers ---

type intID interface {
	~int | ~int32 | ~int64
}

func parseIntParam[T intID](w http.ResponseWriter, logger *slog.Logger, r *http.Request, name string, _ T) (int64, bool) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		problem.WriteType(w, logger, problem.MissingPathParameters, "missing "+name)
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		problem.WriteType(w, logger, problem.InvalidPathParameters, "invalid "+name)
		return 0, false
	}
	return v, true
}
