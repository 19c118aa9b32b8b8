package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regflow/internal/audit"
	dErrors "regflow/pkg/domain-errors"
	"regflow/pkg/requestcontext"
)

const chromeUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestStartIssuesValidatableToken(t *testing.T) {
	events := audit.NewInMemoryStore()
	svc := NewService(NewSigner("test-signing-key"), WithAuditPublisher(audit.NewPublisher(events)))

	ctx := requestcontext.WithClientMetadata(context.Background(), "192.0.2.1", chromeUA)
	tok, err := svc.Start(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, tok.SessionID)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), tok.ExpiresAt, time.Minute)

	sid, err := svc.ValidateToken(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, tok.SessionID, sid)

	recorded, err := events.ListBySession(ctx, tok.SessionID)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, audit.ActionSessionStarted, recorded[0].Action)
	assert.Equal(t, tok.SessionID, recorded[0].SessionID)
	assert.Contains(t, recorded[0].Browser, "Chrome")
}

func TestSessionsAreDistinct(t *testing.T) {
	svc := NewService(NewSigner("test-signing-key"))
	a, err := svc.Start(context.Background())
	require.NoError(t, err)
	b, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestValidateTokenRejects(t *testing.T) {
	signer := NewSigner("test-signing-key")

	t.Run("garbage", func(t *testing.T) {
		_, err := signer.ValidateToken("not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := signer.Sign("s1", "t1", time.Now().Add(-2*time.Hour), time.Hour)
		require.NoError(t, err)
		_, err = signer.ValidateToken(tok)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("other key", func(t *testing.T) {
		tok, err := NewSigner("someone-else").Sign("s1", "t1", time.Now(), time.Hour)
		require.NoError(t, err)
		_, err = signer.ValidateToken(tok)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestValidateTokenUsesSignerClock(t *testing.T) {
	issued := time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)
	clock := issued
	signer := NewSigner("test-signing-key", WithClock(func() time.Time { return clock }))

	tok, err := signer.Sign("s1", "t1", issued, DefaultTTL)
	require.NoError(t, err)

	t.Run("valid within ttl on the signer clock", func(t *testing.T) {
		clock = issued.Add(DefaultTTL - time.Minute)
		sid, err := signer.ValidateToken(tok)
		require.NoError(t, err)
		assert.Equal(t, "s1", sid)
	})

	t.Run("expired once the signer clock passes ttl", func(t *testing.T) {
		clock = issued.Add(DefaultTTL + time.Minute)
		_, err := signer.ValidateToken(tok)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})
}

func TestBrowser(t *testing.T) {
	assert.Equal(t, "unknown", Browser(""))
	desc := Browser(chromeUA)
	assert.Contains(t, desc, "Chrome 120.0.0.0")
	assert.Contains(t, desc, "Linux")
}
