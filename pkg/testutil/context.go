package testutil

import (
	"context"
	"time"

	"regflow/pkg/requestcontext"
)

// FixedClock returns a context whose requestcontext.Now is t.
func FixedClock(ctx context.Context, t time.Time) context.Context {
	return requestcontext.WithTime(ctx, t)
}
