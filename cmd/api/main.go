package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crucial707/asset-audit/internal/audit"
	"github.com/crucial707/asset-audit/internal/config"
	"github.com/crucial707/asset-audit/internal/db"
	"github.com/crucial707/asset-audit/internal/lock"
	"github.com/crucial707/asset-audit/internal/repo"
	"github.com/crucial707/asset-audit/internal/store/memstore"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	d, cleanup, err := buildDeps(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(d, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr, "store", cfg.StoreDriver, "tls", cfg.TLSCertFile != "")
		if cfg.TLSCertFile != "" {
			errCh <- srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			cleanup()
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

// buildDeps wires the store, the activity log and the optional scan lock.
func buildDeps(cfg config.Config, logger *slog.Logger) (deps, func(), error) {
	var (
		store    audit.Store
		d        deps
		closers  []func()
		database *sql.DB
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.StoreDriver {
	case "memory":
		mem := memstore.New()
		if cfg.RegistrySeedFile != "" {
			seed, err := memstore.LoadSeed(cfg.RegistrySeedFile)
			if err != nil {
				return deps{}, cleanup, err
			}
			if err := mem.Apply(seed); err != nil {
				return deps{}, cleanup, err
			}
			logger.Info("registry seeded", "file", cfg.RegistrySeedFile, "assets", len(seed.Assets))
		} else {
			logger.Warn("memory store has an empty registry; set REGISTRY_SEED_FILE")
		}
		store = mem
		d.Activity = memstore.NewActivityLog()

	default:
		var err error
		database, err = db.Connect(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPass,
			cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
		if err != nil {
			return deps{}, cleanup, err
		}
		closers = append(closers, func() { database.Close() })
		logger.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

		version, err := db.Run(cfg.DatabaseURL())
		if err != nil {
			return deps{}, cleanup, err
		}
		logger.Info("migrations applied", "version", version)

		store = repo.NewStore(database)
		d.Activity = repo.NewActivityRepo(database)
		d.DB = database
	}

	svc := audit.NewService(store)
	svc.Logger = logger
	if cfg.AuditCodePrefix != "" {
		svc.CodePrefix = cfg.AuditCodePrefix
	}

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := lock.Connect(ctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			// The lock only narrows contention; the store transaction stays authoritative.
			logger.Warn("redis unavailable, scan lock disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			closers = append(closers, func() { rdb.Close() })
			svc.Locker = lock.NewRedisLocker(rdb, time.Duration(cfg.LockTTLSeconds)*time.Second, logger)
			logger.Info("scan lock enabled", "addr", cfg.RedisAddr)
		}
	}

	d.Service = svc
	d.Logger = logger
	return d, cleanup, nil
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
