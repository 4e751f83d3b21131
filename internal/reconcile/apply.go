package reconcile

import (
	"context"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/dates"
	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/mailer"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/payment"
	"github.com/diagnosis/guesthouse-bookings/pkg/events"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
)

// Applier writes a matched payment onto its booking. Webhook and sweep share it.
type Applier struct {
	store  BookingStore
	events events.Publisher
	mail   mailer.Sender
	loc    *time.Location
	now    func() time.Time
}

func NewApplier(store BookingStore, pub events.Publisher, mail mailer.Sender, loc *time.Location) *Applier {
	if pub == nil {
		pub = events.Noop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Applier{store: store, events: pub, mail: mail, loc: loc, now: time.Now}
}

// Apply returns false when the booking was already paid.
func (a *Applier) Apply(ctx context.Context, b *domain.Booking, p payment.Payment, source string) (bool, error) {
	if b.IsPaid() {
		return false, nil
	}

	paidAt := p.PaidAt
	if paidAt.IsZero() {
		paidAt = a.now().UTC()
	}
	today := dates.Today(a.now(), a.loc)
	upd := domain.PaymentUpdate{
		PaymentID:     p.ID,
		PaymentLinkID: p.LinkID,
		Amount:        p.Amount(),
		PaidAt:        paidAt,
		Complete:      b.Blocks() && dates.Midnight(b.CheckOut, a.loc).Before(today),
	}

	updated, err := a.store.RecordPayment(ctx, b.ID, upd)
	if err != nil {
		return false, domain.Transient("could not record payment", err)
	}
	if !updated {
		return false, nil
	}

	logger.InfoContext(ctx, "payment recorded",
		"booking_id", b.ID, "payment_id", p.ID, "amount", upd.Amount.StringFixed(2),
		"source", source, "completed", upd.Complete)

	ev := events.BookingPaidEvent{
		BookingID:     b.ID,
		PaymentID:     p.ID,
		PaymentLinkID: p.LinkID,
		Amount:        upd.Amount.StringFixed(2),
		PaidAt:        paidAt,
		Source:        source,
		Completed:     upd.Complete,
	}
	if err := a.events.Publish(ctx, events.BookingPaid, ev); err != nil {
		logger.WarnContext(ctx, "publish booking.paid failed", "booking_id", b.ID, "error", err)
	}
	if a.mail != nil && b.Email != "" {
		if _, err := a.mail.Send(ctx, mailer.PaymentReceived(b)); err != nil {
			logger.WarnContext(ctx, "payment receipt email failed", "booking_id", b.ID, "error", err)
		}
	}
	return true, nil
}
