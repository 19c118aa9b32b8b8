package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"regflow/pkg/platform/httputil"
	"regflow/pkg/requestcontext"
)

// KeyFunc picks what a limit is counted against.
type KeyFunc func(ctx context.Context) string

func ByClientIP(ctx context.Context) string { return "ip:" + requestcontext.ClientIP(ctx) }

func BySession(ctx context.Context) string { return "session:" + requestcontext.SessionID(ctx) }

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retry_after"`
}

// Limit rejects requests over the window with 429. A nil window disables it.
func Limit(w *Window, key KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if w == nil {
			return next
		}
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			k := key(ctx)
			res := w.Allow(k)

			rw.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			rw.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			rw.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if !res.Allowed {
				retry := res.RetryAfter(requestcontext.Now(ctx))
				logger.WarnContext(ctx, "rate limit exceeded",
					"key", k,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				rw.Header().Set("Retry-After", strconv.Itoa(retry))
				httputil.WriteJSON(rw, http.StatusTooManyRequests, exceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests. Please try again later.",
					RetryAfter: retry,
				})
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}

// RunSweeper prunes idle keys every interval until ctx ends.
func RunSweeper(ctx context.Context, interval time.Duration, windows ...*Window) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			for _, w := range windows {
				if w != nil {
					w.Sweep()
				}
			}
		}
	}
}
