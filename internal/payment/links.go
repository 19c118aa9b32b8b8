package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"regflow/internal/card"
	dErrors "regflow/pkg/domain-errors"
)

// Channel is how a payment link reaches the payer.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelCopy  Channel = "copy"
)

// LinkDetails is encoded into the link so the payer sees what they pay for.
type LinkDetails struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"reference,omitempty"`
}

// Link is a generated payment link and where it was sent.
type Link struct {
	URL       string  `json:"url"`
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient,omitempty"`
}

// Sender delivers a link over a channel.
type Sender interface {
	Send(ctx context.Context, channel Channel, recipient, link string) error
}

// LinkGenerator builds shareable payment links.
type LinkGenerator struct {
	baseURL string
	sender  Sender
	metrics *Metrics
}

func NewLinkGenerator(baseURL string, sender Sender, metrics *Metrics) *LinkGenerator {
	return &LinkGenerator{baseURL: strings.TrimRight(baseURL, "/"), sender: sender, metrics: metrics}
}

// Generate encodes details into a link and sends it unless channel is copy.
func (g *LinkGenerator) Generate(ctx context.Context, details LinkDetails, channel Channel, recipient string) (*Link, error) {
	recipient = strings.TrimSpace(recipient)
	switch channel {
	case ChannelEmail:
		if !card.ValidEmail(recipient) {
			return nil, card.FieldErrors{card.FieldEmail: "Please enter a valid email address"}
		}
	case ChannelSMS:
		if !card.ValidPhone(recipient) {
			return nil, card.FieldErrors{card.FieldPhone: "Please enter a valid phone number"}
		}
	case ChannelCopy:
		recipient = ""
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported channel: "+string(channel))
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode payment details")
	}
	link := fmt.Sprintf("%s/pay?payment=%s", g.baseURL, url.QueryEscape(base64.StdEncoding.EncodeToString(payload)))

	if channel != ChannelCopy {
		if err := g.sender.Send(ctx, channel, recipient, link); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to send payment link")
		}
		g.metrics.IncLinkSent(channel)
	}
	return &Link{URL: link, Channel: channel, Recipient: recipient}, nil
}

// DecodeLinkDetails reverses the payment query parameter of a generated link.
func DecodeLinkDetails(encoded string) (LinkDetails, error) {
	var details LinkDetails
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return details, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid payment link")
	}
	if err := json.Unmarshal(raw, &details); err != nil {
		return details, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid payment link")
	}
	return details, nil
}

// LogSender simulates delivery by waiting and logging the link.
type LogSender struct {
	Delay  time.Duration
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, channel Channel, recipient, link string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.Delay):
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "payment link sent", "channel", channel, "recipient", recipient, "link", link)
	return nil
}
