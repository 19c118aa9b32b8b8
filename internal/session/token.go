package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "regflow/pkg/domain-errors"
)

const (
	issuer   = "regflow"
	audience = "regflow-workflow"
)

// Claims carries the browser session a token was issued for.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Signer issues and validates HS256 session tokens.
type Signer struct {
	signingKey []byte
	now        func() time.Time
}

type SignerOption func(*Signer)

// WithClock sets the time expiry is checked against. It must match the clock
// that stamps issuedAt.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

func NewSigner(signingKey string, opts ...SignerOption) *Signer {
	s := &Signer{signingKey: []byte(signingKey), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Signer) Sign(sessionID, tokenID string, issuedAt time.Time, ttl time.Duration) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    issuer,
			Audience:  []string{audience},
			ID:        tokenID,
		},
	})
	return tok.SignedString(s.signingKey)
}

// ValidateToken returns the session ID carried by a valid token.
func (s *Signer) ValidateToken(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithAudience(audience), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "session token has expired")
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
	}
	return claims.SessionID, nil
}
