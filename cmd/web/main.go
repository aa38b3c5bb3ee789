package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/config"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/db"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/live"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/lock"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/service"
	"github.com/AdamBeresnev/pickleball-fixtures/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
)

type application struct {
	cfg         *config.Config
	sessions    *scs.SessionManager
	hub         *live.Hub
	tournaments *service.TournamentService
	fixtures    *service.FixtureService
	matches     *service.MatchService
	standings   *service.StandingService
}

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetLogLoggerLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.InitDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	if cfg.DatabaseDriver == config.DriverSQLite {
		sessionManager.Store = sqlite3store.New(database.DB)
	} else {
		sessionManager.Store = memstore.New()
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, lock.DefaultTTL)
		slog.Info("using redis fixture lock")
	}

	hub := live.NewHub(cfg.CORSOrigins)
	go hub.Run(ctx)

	stores := store.NewStores(database)
	app := &application{
		cfg:         cfg,
		sessions:    sessionManager,
		hub:         hub,
		tournaments: service.NewTournamentService(database, stores),
		fixtures:    service.NewFixtureService(database, stores, locker, hub),
		matches:     service.NewMatchService(database, stores, hub),
		standings:   service.NewStandingService(database, stores),
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           newRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.ServerAddr, "driver", cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
