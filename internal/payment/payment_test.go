package payment

import (
	"context"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regflow/internal/card"
	regmodels "regflow/internal/registration/models"
	dErrors "regflow/pkg/domain-errors"
	"regflow/pkg/requestcontext"
)

var txnPattern = regexp.MustCompile(`^REG\d{13}[A-Z0-9]{5}$`)

func newTestSimulator(t *testing.T, sleeps *atomic.Int32, opts ...Option) *Simulator {
	t.Helper()
	s := NewSimulator(append([]Option{WithMetrics(NewMetrics(prometheus.NewRegistry()))}, opts...)...)
	s.sleep = func(time.Duration) { sleeps.Add(1) }
	return s
}

func TestSummarize(t *testing.T) {
	now := time.UnixMilli(1767225600000)

	sum := DefaultFees().Summarize(regmodels.Record{RequestTypeID: "categorize_clients", NumberOfInvestors: 3}, now)
	assert.True(t, decimal.NewFromInt(840).Equal(sum.Amount), "got %s", sum.Amount)
	assert.Equal(t, "USD", sum.Currency)
	assert.Equal(t, "REQ-CATEGORIZE_CLIENTS-1767225600000", sum.Reference)
	assert.Equal(t, DefaultDescription, sum.Description)

	single := DefaultFees().Summarize(regmodels.Record{RequestTypeID: "renew_license"}, now)
	assert.True(t, decimal.NewFromInt(280).Equal(single.Amount))
	assert.Equal(t, 1, single.NumberOfInvestors)
}

func TestSimulatorCharge(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), time.UnixMilli(1767225600000))
	req := ChargeRequest{
		IdempotencyKey: "doc-1",
		Amount:         decimal.NewFromInt(280),
		Currency:       "USD",
		Reference:      "REQ-RENEW_LICENSE-1",
	}

	t.Run("charges once per idempotency key", func(t *testing.T) {
		var sleeps atomic.Int32
		s := newTestSimulator(t, &sleeps)

		first, err := s.Charge(ctx, req)
		require.NoError(t, err)
		assert.Regexp(t, txnPattern, first.TransactionID)
		assert.Equal(t, "REQ-RENEW_LICENSE-1", first.Reference)

		second, err := s.Charge(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first.TransactionID, second.TransactionID)
		assert.Equal(t, int32(1), sleeps.Load())
	})

	t.Run("concurrent charges share one processing window", func(t *testing.T) {
		var sleeps atomic.Int32
		s := newTestSimulator(t, &sleeps)
		release := make(chan struct{})
		s.sleep = func(time.Duration) {
			sleeps.Add(1)
			<-release
		}

		var wg sync.WaitGroup
		ids := make([]string, 5)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ch, err := s.Charge(ctx, req)
				if err == nil {
					ids[i] = ch.TransactionID
				}
			}(i)
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int32(1), sleeps.Load())
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})

	t.Run("processing window longer than the timeout fails", func(t *testing.T) {
		var sleeps atomic.Int32
		s := newTestSimulator(t, &sleeps, WithDelay(time.Minute), WithTimeout(time.Second))
		_, err := s.Charge(ctx, ChargeRequest{IdempotencyKey: "doc-2"})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	t.Run("idempotency key is required", func(t *testing.T) {
		var sleeps atomic.Int32
		s := newTestSimulator(t, &sleeps)
		_, err := s.Charge(ctx, ChargeRequest{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func TestNewReceipt(t *testing.T) {
	ch := &Charge{TransactionID: "REG1X", Amount: decimal.NewFromInt(560), Currency: "USD", Reference: "REQ-A-1"}
	r := NewReceipt(ch, Summary{Description: DefaultDescription}, card.Details{
		Number: "4539 1488 0343 6467",
		Name:   " Amina Khalid ",
		Email:  "amina@example.ae",
	})
	assert.Equal(t, "**** **** **** 6467", r.MaskedCard)
	assert.Equal(t, card.BrandVisa, r.Brand)
	assert.Equal(t, "Amina Khalid", r.HolderName)
	assert.Equal(t, DefaultDescription, r.Description)
}

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	fails bool
}

func (r *recordingSender) Send(_ context.Context, channel Channel, recipient, link string) error {
	if r.fails {
		return assert.AnError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, string(channel)+":"+recipient)
	return nil
}

func TestLinkGenerator(t *testing.T) {
	ctx := context.Background()
	details := LinkDetails{Description: DefaultDescription, Amount: decimal.NewFromInt(280), Currency: "USD"}

	t.Run("email link round-trips its details", func(t *testing.T) {
		sender := &recordingSender{}
		g := NewLinkGenerator("https://pay.example.ae/", sender, nil)
		link, err := g.Generate(ctx, details, ChannelEmail, " payer@example.ae ")
		require.NoError(t, err)
		assert.Equal(t, []string{"email:payer@example.ae"}, sender.sent)

		u, err := url.Parse(link.URL)
		require.NoError(t, err)
		assert.Equal(t, "/pay", u.Path)
		decoded, err := DecodeLinkDetails(u.Query().Get("payment"))
		require.NoError(t, err)
		assert.True(t, details.Amount.Equal(decoded.Amount))
		assert.Equal(t, details.Description, decoded.Description)
	})

	t.Run("invalid recipients are field errors", func(t *testing.T) {
		g := NewLinkGenerator("https://pay.example.ae", &recordingSender{}, nil)
		_, err := g.Generate(ctx, details, ChannelSMS, "123")
		var fe card.FieldErrors
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, fe, card.FieldPhone)
	})

	t.Run("copy does not send", func(t *testing.T) {
		sender := &recordingSender{fails: true}
		g := NewLinkGenerator("https://pay.example.ae", sender, nil)
		link, err := g.Generate(ctx, details, ChannelCopy, "ignored")
		require.NoError(t, err)
		assert.Empty(t, link.Recipient)
	})

	t.Run("send failures are transport errors", func(t *testing.T) {
		g := NewLinkGenerator("https://pay.example.ae", &recordingSender{fails: true}, nil)
		_, err := g.Generate(ctx, details, ChannelEmail, "payer@example.ae")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}
