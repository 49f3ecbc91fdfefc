package app

import (
	"github.com/go-chi/chi/v5"

	"github.com/kz-league/cs2kz-api/internal/perm"
	"github.com/kz-league/cs2kz-api/pkg/auth"
)

// mountRoutes wires every handler onto r, per spec §6's representative
// route list. The session middleware runs on every /api/v1 request so
// handlers can tell anonymous from authenticated callers; individual routes
// layer RequireAuth / RequirePermissions on top as needed.
func (h *handlers) mountRoutes(r chi.Router, sessionMgr *auth.SessionManager) {
	r.Use(auth.Middleware(sessionMgr))

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.handleAuthLogin)
		r.Get("/callback", h.handleAuthCallback)
		r.With(auth.RequireAuth).Post("/logout", h.handleAuthLogout)
	})

	r.With(auth.RequireAuth).Get("/users/me", h.handleMe)

	r.Route("/maps", func(r chi.Router) {
		r.Get("/", h.handleListMaps)
		r.With(auth.RequirePermissions(perm.Of(perm.CreateMaps))).Post("/", h.handleCreateMap)
		r.Get("/{id}", h.handleGetMap)
		r.With(auth.RequireAuth).Patch("/{id}", h.handleUpdateMap)
		r.With(auth.RequireAuth).Post("/{id}/state", h.handleUpdateMapState)
	})

	r.Route("/servers", func(r chi.Router) {
		r.Get("/", h.handleListServers)
		r.Post("/", h.handleCreateServer)
		r.Get("/connect", h.handleServerConnect)
		r.Get("/{id}", h.handleGetServer)
		r.With(auth.RequirePermissions(perm.Of(perm.ModifyServerMetadata))).Patch("/{id}", h.handleUpdateServer)
		r.With(auth.RequirePermissions(perm.Of(perm.ResetServerAccessKeys))).Patch("/{id}/access-key", h.handleRotateAccessKey)
		r.With(auth.RequirePermissions(perm.Of(perm.DeleteServerAccessKeys))).Delete("/{id}/access-key", h.handleRevokeAccessKey)
	})

	r.Route("/bans", func(r chi.Router) {
		r.With(auth.RequirePermissions(perm.Of(perm.CreateBans))).Post("/", h.handleCreateBan)
		r.With(auth.RequirePermissions(perm.Of(perm.RevertBans))).Patch("/{id}", h.handleRevertBan)
		r.With(auth.RequirePermissions(perm.Of(perm.RevertBans))).Delete("/{id}", h.handleRevertBan)
	})

	r.Route("/plugin/versions", func(r chi.Router) {
		r.With(auth.RequireAuth).Post("/", h.handleCreatePluginVersion)
	})

	r.Route("/records", func(r chi.Router) {
		r.Get("/", h.handleListRecords)
		r.Get("/{id}", h.handleGetRecord)
	})

	r.Route("/leaderboards", func(r chi.Router) {
		r.Get("/{filterID}", h.handleGetLeaderboard)
	})

	r.Get("/players", h.handleListPlayers)

	r.Get("/events", h.handleEvents)
}
