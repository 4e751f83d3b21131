// Package reconcile matches provider payments to bookings and records them.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/payment"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
)

type BookingStore interface {
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	FindByPaymentLinkID(ctx context.Context, linkID string) (*domain.Booking, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*domain.Booking, error)
	ListApprovedUnpaid(ctx context.Context) ([]domain.Booking, error)
	RecordPayment(ctx context.Context, id string, upd domain.PaymentUpdate) (bool, error)
}

// Resolver finds the booking id a payment belongs to. An empty id with a nil
// error means "not mine, ask the next one".
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, p payment.Payment) (string, error)
}

// ByLinkID matches the payment link id stored on the booking.
type ByLinkID struct{ Store BookingStore }

func (ByLinkID) Name() string { return "link_id" }

func (r ByLinkID) Resolve(ctx context.Context, p payment.Payment) (string, error) {
	if p.LinkID == "" {
		return "", nil
	}
	b, err := r.Store.FindByPaymentLinkID(ctx, p.LinkID)
	if err != nil || b == nil {
		return "", err
	}
	return b.ID, nil
}

// ByLinkRemarks fetches the payment link and reads "Booking ID: <id>" from its remarks.
type ByLinkRemarks struct{ Gateway payment.Gateway }

func (ByLinkRemarks) Name() string { return "link_remarks" }

func (r ByLinkRemarks) Resolve(ctx context.Context, p payment.Payment) (string, error) {
	if p.LinkID == "" {
		return "", nil
	}
	link, err := r.Gateway.GetPaymentLink(ctx, p.LinkID)
	if err != nil {
		return "", err
	}
	id, _ := ParseBookingID(link.Remarks)
	return id, nil
}

// ByPaymentRemarks reads the booking id from the payment's own remarks.
type ByPaymentRemarks struct{}

func (ByPaymentRemarks) Name() string { return "payment_remarks" }

func (ByPaymentRemarks) Resolve(_ context.Context, p payment.Payment) (string, error) {
	id, _ := ParseBookingID(p.Remarks)
	return id, nil
}

// Chain tries resolvers strongest first. A failing resolver does not stop the
// chain; its error is only reported when nothing else resolves the payment.
type Chain []Resolver

func DefaultChain(store BookingStore, gw payment.Gateway) Chain {
	return Chain{ByLinkID{Store: store}, ByLinkRemarks{Gateway: gw}, ByPaymentRemarks{}}
}

func (c Chain) Resolve(ctx context.Context, p payment.Payment) (string, error) {
	var errs []error
	for _, r := range c {
		id, err := r.Resolve(ctx, p)
		if err != nil {
			logger.WarnContext(ctx, "payment resolver failed", "resolver", r.Name(), "payment_id", p.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
			continue
		}
		if id != "" {
			logger.DebugContext(ctx, "payment resolved", "resolver", r.Name(), "payment_id", p.ID, "booking_id", id)
			return id, nil
		}
	}
	if len(errs) > 0 {
		return "", domain.Transient("payment resolution incomplete", errors.Join(errs...))
	}
	return "", domain.ErrUnresolvedPayment
}
