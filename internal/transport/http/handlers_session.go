package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regflow/internal/ratelimit"
	"regflow/internal/session"
	"regflow/pkg/platform/httputil"
)

type SessionService interface {
	Start(ctx context.Context) (*session.Token, error)
}

// SessionHandler issues browser session tokens.
type SessionHandler struct {
	sessions SessionService
	limit    *ratelimit.Window
	logger   *slog.Logger
}

// NewSessionHandler builds the handler; limit caps issuance per client IP and
// may be nil.
func NewSessionHandler(sessions SessionService, limit *ratelimit.Window, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, limit: limit, logger: logger}
}

func (h *SessionHandler) Register(r chi.Router) {
	r.With(ratelimit.Limit(h.limit, ratelimit.ByClientIP, h.logger)).Post("/sessions", h.handleStart)
}

func (h *SessionHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tok, err := h.sessions.Start(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start session", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tok)
}
