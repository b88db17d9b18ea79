package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crucial707/asset-audit/internal/audit"
	"github.com/crucial707/asset-audit/internal/config"
	"github.com/crucial707/asset-audit/internal/handlers"
	"github.com/crucial707/asset-audit/internal/middleware"
)

// pinger is satisfied by *sql.DB. The memory store has nothing to ping.
type pinger interface {
	PingContext(ctx context.Context) error
}

type deps struct {
	Service  *audit.Service
	Activity handlers.ActivityLogger
	DB       pinger // optional
	Logger   *slog.Logger
}

func newRouter(d deps, cfg config.Config) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auditHandler := handlers.NewAuditHandler(d.Service, d.Activity, logger)
	scanLimiter := middleware.ScanRateLimiter(float64(cfg.ScanRatePerSecond), cfg.ScanRateBurst)
	maxBody := int64(cfg.MaxBodyBytes)
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.MaxBytes(maxBody))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		handlers.JSONResult(w, http.StatusOK, "ok", nil)
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.PingContext(ctx); err != nil {
				logger.Warn("readiness check failed", "error", err)
				handlers.JSONError(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		handlers.JSONResult(w, http.StatusOK, "ready", nil)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(cfg.JWTSecret)))
		r.Use(middleware.RequireJSON)

		r.Get("/activity", auditHandler.ListActivity)

		r.Route("/audits", func(r chi.Router) {
			r.Get("/", auditHandler.ListAudits)
			r.Post("/", auditHandler.CreateAudit)
			r.Get("/options", auditHandler.Options)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", auditHandler.GetAudit)
				r.Delete("/", auditHandler.DeleteAudit)
				r.Post("/start", auditHandler.StartAudit)
				r.With(scanLimiter.Middleware).Post("/scan", auditHandler.ScanAudit)
				r.Post("/finalize", auditHandler.FinalizeAudit)
				r.Get("/report", auditHandler.Report)
				r.Get("/findings", auditHandler.ListFindings)
			})
		})
	})

	return r
}
