package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"regflow/internal/workflow/metrics"
	dErrors "regflow/pkg/domain-errors"
)

// Registry holds one resumed controller per session and closes controllers
// that sit idle longer than the configured TTL.
type Registry struct {
	deps    Deps
	opts    []Option
	cache   *cache.Cache
	flight  singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRegistry builds a registry; opts are applied to every controller it creates.
func NewRegistry(deps Deps, idleTTL time.Duration, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		deps:    deps,
		opts:    append([]Option{WithLogger(logger), WithMetrics(m)}, opts...),
		cache:   cache.New(idleTTL, idleTTL/2),
		logger:  logger,
		metrics: m,
	}
	r.cache.OnEvicted(func(sessionID string, v any) {
		if ctrl, ok := v.(*Controller); ok {
			ctrl.Close()
		}
		r.metrics.SetActiveSessions(r.cache.ItemCount())
	})
	return r
}

// Get returns the session's controller, creating and resuming it on first use.
// Every call extends the idle deadline.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Controller, error) {
	if sessionID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing session")
	}
	if v, ok := r.cache.Get(sessionID); ok {
		ctrl := v.(*Controller)
		r.cache.SetDefault(sessionID, ctrl)
		return ctrl, nil
	}
	v, err, _ := r.flight.Do(sessionID, func() (any, error) {
		if v, ok := r.cache.Get(sessionID); ok {
			return v, nil
		}
		ctrl := NewController(sessionID, r.deps, r.opts...)
		if err := ctrl.Resume(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		r.cache.SetDefault(sessionID, ctrl)
		r.metrics.SetActiveSessions(r.cache.ItemCount())
		r.logger.DebugContext(ctx, "session controller created", "session_id", sessionID)
		return ctrl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Controller), nil
}

// Drop closes and forgets the session's controller.
func (r *Registry) Drop(sessionID string) {
	r.cache.Delete(sessionID)
}

// Close tears down every controller.
func (r *Registry) Close() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
