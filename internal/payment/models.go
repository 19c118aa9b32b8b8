package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"regflow/internal/card"
	regmodels "regflow/internal/registration/models"
)

const DefaultDescription = "Client Categorization Processing Fee"

// FeeSchedule prices a registration per investor.
type FeeSchedule struct {
	PerInvestor decimal.Decimal
	Currency    string
	Description string
}

// DefaultFees charges 280 USD per investor.
func DefaultFees() FeeSchedule {
	return FeeSchedule{
		PerInvestor: decimal.NewFromInt(280),
		Currency:    "USD",
		Description: DefaultDescription,
	}
}

// Summary is the cost shown before payment.
type Summary struct {
	RequestTypeID     string          `json:"request_type_id"`
	Description       string          `json:"description"`
	NumberOfInvestors int             `json:"number_of_investors"`
	FeePerInvestor    decimal.Decimal `json:"fee_per_investor"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Reference         string          `json:"reference"`
}

// Summarize prices rec. The reference embeds now so each summary is traceable.
func (f FeeSchedule) Summarize(rec regmodels.Record, now time.Time) Summary {
	n := rec.InvestorCount()
	return Summary{
		RequestTypeID:     rec.RequestTypeID,
		Description:       f.Description,
		NumberOfInvestors: n,
		FeePerInvestor:    f.PerInvestor,
		Amount:            f.PerInvestor.Mul(decimal.NewFromInt(int64(n))),
		Currency:          f.Currency,
		Reference:         Reference(rec.RequestTypeID, now),
	}
}

// Reference renders REQ-<REQUEST_TYPE>-<unix ms>.
func Reference(requestTypeID string, now time.Time) string {
	return fmt.Sprintf("REQ-%s-%d", strings.ToUpper(requestTypeID), now.UnixMilli())
}

// ChargeRequest is what the controller asks the gateway to collect.
type ChargeRequest struct {
	IdempotencyKey string
	Card           card.Details
	Amount         decimal.Decimal
	Currency       string
	Reference      string
}

// Charge is a successful collection.
type Charge struct {
	TransactionID string          `json:"transaction_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reference     string          `json:"reference"`
}

// Receipt is the post-payment record shown to the user. Card data is masked.
type Receipt struct {
	TransactionID string          `json:"transaction_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reference     string          `json:"reference"`
	Description   string          `json:"description"`
	MaskedCard    string          `json:"masked_card"`
	Brand         card.Brand      `json:"brand"`
	HolderName    string          `json:"holder_name"`
	Email         string          `json:"email"`
}

func NewReceipt(ch *Charge, sum Summary, details card.Details) Receipt {
	return Receipt{
		TransactionID: ch.TransactionID,
		Timestamp:     ch.Timestamp,
		Amount:        ch.Amount,
		Currency:      ch.Currency,
		Reference:     ch.Reference,
		Description:   sum.Description,
		MaskedCard:    card.Mask(details.Number),
		Brand:         card.DetectBrand(details.Number),
		HolderName:    strings.TrimSpace(details.Name),
		Email:         strings.TrimSpace(details.Email),
	}
}
