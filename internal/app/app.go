// Package app wires every subsystem together and runs the HTTP server. It
// plays the role the teacher's internal/app does: Run reads config,
// connects to infrastructure, and starts the API.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/kz-league/cs2kz-api/internal/config"
	"github.com/kz-league/cs2kz-api/internal/httpserver"
	"github.com/kz-league/cs2kz-api/internal/platform"
	"github.com/kz-league/cs2kz-api/internal/telemetry"
	"github.com/kz-league/cs2kz-api/pkg/auth"
	"github.com/kz-league/cs2kz-api/pkg/ban"
	"github.com/kz-league/cs2kz-api/pkg/eventbus"
	"github.com/kz-league/cs2kz-api/pkg/kzmap"
	"github.com/kz-league/cs2kz-api/pkg/kzserver"
	"github.com/kz-league/cs2kz-api/pkg/plugin"
	"github.com/kz-league/cs2kz-api/pkg/points"
	"github.com/kz-league/cs2kz-api/pkg/record"
	"github.com/kz-league/cs2kz-api/pkg/registry"
	"github.com/kz-league/cs2kz-api/pkg/steamapi"
	"github.com/kz-league/cs2kz-api/pkg/steamauth"
)

// Run is the main application entry point: it reads config, connects to
// infrastructure, runs migrations, and starts serving HTTP.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting cs2kz-api", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(telemetry.All()...)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	sessionMaxAge, err := time.ParseDuration(cfg.SessionMaxAge)
	if err != nil {
		return fmt.Errorf("parsing session max age %q: %w", cfg.SessionMaxAge, err)
	}

	authStore := auth.NewStore(db)
	sessionMgr := auth.NewSessionManager(authStore, cfg.SessionCookieName, cfg.PlayerCookieName, sessionMaxAge, cfg.Mode != "dev")

	steamFlow := steamauth.NewFlow(cfg.SteamOpenIDRealm, cfg.SteamOpenIDReturnURL, rdb, logger)
	steamSvc := steamapi.NewService(cfg.SteamAPIKey, cfg.WorkshopAssetDir, cfg.DepotDownloaderPath, cfg.MaxConcurrentMapDownload)

	mapStore := kzmap.NewStore(db)
	serverStore := kzserver.NewStore(db)
	pluginStore := plugin.NewStore(db)
	banStore := ban.NewStore(db)
	recordStore := record.NewStore(db)
	pointsStore := points.NewStore(db)
	bus := eventbus.New()
	reg := registry.New()
	defer reg.Close()

	worker := points.NewWorker(logger)
	go worker.Run(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := worker.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutting down points worker", "error", err)
		}
	}()

	deps := newServerDeps(db, pluginStore, mapStore, banStore, recordStore, pointsStore, worker, bus)

	srv := httpserver.NewServer(cfg.CORSAllowedOrigins, logger, db, rdb, metricsReg)

	h := &handlers{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		sessionMgr:  sessionMgr,
		authStore:   authStore,
		steamFlow:   steamFlow,
		steamSvc:    steamSvc,
		mapStore:    mapStore,
		serverStore: serverStore,
		pluginStore: pluginStore,
		banStore:    banStore,
		recordStore: recordStore,
		pointsStore: pointsStore,
		bus:         bus,
		registry:    reg,
		deps:        deps,
	}
	h.mountRoutes(srv.APIRouter, sessionMgr)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down http server")
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}
