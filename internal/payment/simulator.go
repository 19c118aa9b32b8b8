package payment

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	dErrors "regflow/pkg/domain-errors"
	"regflow/pkg/requestcontext"
)

const (
	DefaultDelay   = 2 * time.Second
	DefaultTimeout = 30 * time.Second
	DefaultPrefix  = "REG"

	idempotencyTTL = 24 * time.Hour
	txnAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Simulator stands in for a card gateway: every charge succeeds after a fixed
// delay. Charges are idempotent per key, so a retried payment for the same
// document returns the original transaction instead of charging twice.
type Simulator struct {
	delay   time.Duration
	timeout time.Duration
	prefix  string
	charges *gocache.Cache
	flight  singleflight.Group
	metrics *Metrics
	logger  *slog.Logger
	sleep   func(time.Duration)
}

type Option func(*Simulator)

func WithDelay(d time.Duration) Option {
	return func(s *Simulator) { s.delay = d }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Simulator) { s.timeout = d }
}

func WithTransactionPrefix(prefix string) Option {
	return func(s *Simulator) { s.prefix = prefix }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		delay:   DefaultDelay,
		timeout: DefaultTimeout,
		prefix:  DefaultPrefix,
		charges: gocache.New(idempotencyTTL, time.Hour),
		logger:  slog.Default(),
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Charge blocks for the simulated processing window. The window ignores ctx
// cancellation; only the configured timeout bounds it.
func (s *Simulator) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.IdempotencyKey == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "idempotency key is required")
	}
	if cached, ok := s.charges.Get(req.IdempotencyKey); ok {
		s.metrics.IncReplayed()
		return cached.(*Charge), nil
	}

	start := time.Now()
	v, err, _ := s.flight.Do(req.IdempotencyKey, func() (any, error) {
		if cached, ok := s.charges.Get(req.IdempotencyKey); ok {
			return cached, nil
		}
		if s.delay > s.timeout {
			return nil, dErrors.New(dErrors.CodeTimeout, "payment gateway timed out")
		}
		s.sleep(s.delay)

		now := requestcontext.Now(ctx)
		txn, err := NewTransactionID(s.prefix, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "payment gateway error")
		}
		ch := &Charge{
			TransactionID: txn,
			Timestamp:     now,
			Amount:        req.Amount,
			Currency:      req.Currency,
			Reference:     req.Reference,
		}
		s.charges.SetDefault(req.IdempotencyKey, ch)
		return ch, nil
	})
	if err != nil {
		s.metrics.ObserveCharge("failed", start)
		s.logger.WarnContext(ctx, "simulated charge failed", "reference", req.Reference, "error", err)
		return nil, err
	}
	s.metrics.ObserveCharge("succeeded", start)
	return v.(*Charge), nil
}

// NewTransactionID renders <prefix><unix ms><5 upper-case alphanumerics>.
func NewTransactionID(prefix string, now time.Time) (string, error) {
	suffix := make([]byte, 5)
	limit := big.NewInt(int64(len(txnAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate transaction id: %w", err)
		}
		suffix[i] = txnAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s%d%s", prefix, now.UnixMilli(), suffix), nil
}
