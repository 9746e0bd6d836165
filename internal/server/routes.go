package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nholik/uptime-sentinel/internal/healthcheck"
	"github.com/nholik/uptime-sentinel/internal/metrics"
	"github.com/nholik/uptime-sentinel/internal/query"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// StaleHeader marks a /data response served from the in-memory snapshot.
const StaleHeader = "X-Uptime-Stale"

// RouterConfig wires the collaborators behind the HTTP surface.
type RouterConfig struct {
	Logger       zerolog.Logger
	Query        *query.Service
	Tracker      *healthcheck.Tracker
	Metrics      *metrics.Metrics
	PollInterval time.Duration
	// Limiter throttles the public routes; nil disables throttling.
	Limiter *rate.Limiter
}

// NewRouter builds the route table.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthcheck.HealthHandler(cfg.Tracker, cfg.PollInterval))
	r.Get("/readyz", healthcheck.ReadyHandler(cfg.Tracker))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(rateLimit(cfg.Limiter))
		}
		r.Get("/data", handleData(cfg.Logger, cfg.Query))
		r.Get("/", handleIndex(cfg.Query))
	})

	return r
}

func handleData(logger zerolog.Logger, svc *query.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.History(r.Context())
		if err != nil {
			logger.Error().Err(err).Str("request_id", r.Header.Get(requestIDHeader)).Msg("history unavailable")
			writeError(w, http.StatusInternalServerError, "history unavailable")
			return
		}
		if result.Stale {
			w.Header().Set(StaleHeader, "true")
		}
		writeJSON(w, http.StatusOK, result.History)
	}
}

func handleIndex(svc *query.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(svc.Page())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
