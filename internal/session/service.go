// Package session gives each browser an explicit identity. The session ID a
// token carries keys the workflow state, the submission lock and the owner of
// every document the browser creates.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"regflow/internal/audit"
	dErrors "regflow/pkg/domain-errors"
	"regflow/pkg/requestcontext"
)

const DefaultTTL = 30 * 24 * time.Hour

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Token is what a browser keeps to resume its workflow later.
type Token struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service struct {
	signer  *Signer
	ttl     time.Duration
	auditor AuditPublisher
	logger  *slog.Logger
}

type Option func(*Service)

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(signer *Signer, opts ...Option) *Service {
	s := &Service{signer: signer, ttl: DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start issues a token for a brand new session.
func (s *Service) Start(ctx context.Context) (*Token, error) {
	now := requestcontext.Now(ctx)
	sessionID := uuid.NewString()
	signed, err := s.signer.Sign(sessionID, uuid.NewString(), now, s.ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}

	browser := Browser(requestcontext.UserAgent(ctx))
	s.logger.InfoContext(ctx, "session started",
		"session_id", sessionID,
		"browser", browser,
	)
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionSessionStarted,
			SessionID: sessionID,
			Browser:   browser,
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "action", audit.ActionSessionStarted, "error", err)
		}
	}

	return &Token{Token: signed, SessionID: sessionID, ExpiresAt: now.Add(s.ttl)}, nil
}

func (s *Service) ValidateToken(token string) (string, error) {
	return s.signer.ValidateToken(token)
}

// Browser renders a short "<browser> <version> on <os>" description.
func Browser(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot " + name
	}
	name, version := ua.Browser()
	desc := name
	if version != "" {
		desc += " " + version
	}
	if osInfo := ua.OS(); osInfo != "" {
		desc += " on " + osInfo
	}
	return desc
}
