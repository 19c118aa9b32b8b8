package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"regflow/internal/platform/metrics"
	"regflow/internal/platform/middleware"
	"regflow/pkg/platform/httputil"
	"regflow/pkg/platform/middleware/metadata"
	"regflow/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every handler group.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries what the shared middleware chain needs.
type RouterConfig struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Metrics endpoint; nil disables /metrics.
	MetricsHandler http.Handler
	// Clock overrides the request time source in tests.
	Clock   func() time.Time
	Timeout time.Duration
	// ReadyChecks back /readyz, keyed by dependency name.
	ReadyChecks map[string]func(context.Context) error
}

// NewRouter applies the shared middleware chain and mounts every handler group
// under /v1. Payment requests hold the connection for the simulated gateway
// delay, so Timeout must exceed it.
func NewRouter(cfg RouterConfig, groups ...Registrar) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.MiddlewareWithClock(clock))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/readyz", readiness(cfg.ReadyChecks, cfg.Logger))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(chimw.Timeout(cfg.Timeout))
		v1.Use(middleware.ContentTypeJSON)
		for _, g := range groups {
			g.Register(v1)
		}
	})
	return r
}

const readyTimeout = 2 * time.Second

// readiness reports 503 with the failing dependency names when any check fails.
func readiness(checks map[string]func(context.Context) error, logger *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		failing := []string{}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err)
				failing = append(failing, name)
			}
		}
		if len(failing) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failing": failing})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
