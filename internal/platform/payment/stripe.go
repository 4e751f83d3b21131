package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const (
	metaRemarks     = "remarks"
	metaDescription = "description"
)

type Stripe struct {
	api *client.API
}

func NewStripe(secretKey string) *Stripe {
	return &Stripe{api: client.New(secretKey, nil)}
}

// NewStripeWithBackends points the client at custom backends (tests, proxies).
func NewStripeWithBackends(secretKey string, backends *stripe.Backends) *Stripe {
	return &Stripe{api: client.New(secretKey, backends)}
}

func (s *Stripe) CreatePaymentLink(ctx context.Context, req LinkRequest) (*Link, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	priceParams := &stripe.PriceParams{
		Currency:   stripe.String(strings.ToLower(req.Currency)),
		UnitAmount: stripe.Int64(req.AmountMinor),
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(req.Description),
		},
	}
	priceParams.Context = ctx
	price, err := s.api.Prices.New(priceParams)
	if err != nil {
		return nil, fmt.Errorf("create price: %w", err)
	}

	linkParams := &stripe.PaymentLinkParams{
		LineItems: []*stripe.PaymentLinkLineItemParams{{
			Price:    stripe.String(price.ID),
			Quantity: stripe.Int64(1),
		}},
	}
	linkParams.Context = ctx
	linkParams.AddMetadata(metaRemarks, req.Remarks)
	linkParams.AddMetadata(metaDescription, req.Description)

	pl, err := s.api.PaymentLinks.New(linkParams)
	if err != nil {
		return nil, fmt.Errorf("create payment link: %w", err)
	}
	return linkFromStripe(pl), nil
}

func (s *Stripe) GetPaymentLink(ctx context.Context, id string) (*Link, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	params := &stripe.PaymentLinkParams{}
	params.Context = ctx
	pl, err := s.api.PaymentLinks.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get payment link %s: %w", id, err)
	}
	return linkFromStripe(pl), nil
}

// ListPaidPayments walks every checkout session and keeps the paid ones.
func (s *Stripe) ListPaidPayments(ctx context.Context) ([]Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	params := &stripe.CheckoutSessionListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	params.AddExpand("data.payment_intent")

	var out []Payment
	it := s.api.CheckoutSessions.List(params)
	for it.Next() {
		cs := it.CheckoutSession()
		if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			continue
		}
		out = append(out, paymentFromSession(cs, time.Unix(cs.Created, 0)))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", err)
	}
	return out, nil
}

func linkFromStripe(pl *stripe.PaymentLink) *Link {
	return &Link{
		ID:          pl.ID,
		URL:         pl.URL,
		Remarks:     pl.Metadata[metaRemarks],
		Description: pl.Metadata[metaDescription],
	}
}

func paymentFromSession(cs *stripe.CheckoutSession, at time.Time) Payment {
	p := Payment{
		ID:          cs.ID,
		AmountMinor: cs.AmountTotal,
		Currency:    string(cs.Currency),
		Remarks:     cs.Metadata[metaRemarks],
		Description: cs.Metadata[metaDescription],
		PaidAt:      at.UTC(),
	}
	if cs.PaymentLink != nil {
		p.LinkID = cs.PaymentLink.ID
	}
	if cs.PaymentIntent != nil {
		p.ID = cs.PaymentIntent.ID
		if p.Description == "" {
			p.Description = cs.PaymentIntent.Description
		}
	}
	return p
}

// DecodeEvent parses a provider event. Only checkout completions carry a
// payment; every other type comes back with Completed=false.
func DecodeEvent(body []byte) (*Event, error) {
	var ev stripe.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}

	switch ev.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		return out, nil
	}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return nil, fmt.Errorf("event %s has no data", ev.ID)
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out.Completed = cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	out.Payment = paymentFromSession(&cs, time.Unix(ev.Created, 0))
	return out, nil
}
