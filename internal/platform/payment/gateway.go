// Package payment wraps the hosted checkout provider.
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type LinkRequest struct {
	AmountMinor int64
	Currency    string
	Description string
	Remarks     string
}

type Link struct {
	ID          string
	URL         string
	Description string
	Remarks     string
}

// Payment is a completed checkout as reported by the provider.
type Payment struct {
	ID          string
	LinkID      string
	AmountMinor int64
	Currency    string
	Description string
	Remarks     string
	PaidAt      time.Time
}

func (p Payment) Amount() decimal.Decimal { return FromMinor(p.AmountMinor) }

type Event struct {
	ID        string
	Type      string
	Completed bool
	Payment   Payment
}

type Gateway interface {
	CreatePaymentLink(ctx context.Context, req LinkRequest) (*Link, error)
	GetPaymentLink(ctx context.Context, id string) (*Link, error)
	ListPaidPayments(ctx context.Context) ([]Payment, error)
}

// ToMinor converts a major-unit amount to integer minor units, rounding half up.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
