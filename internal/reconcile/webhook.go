package reconcile

import (
	"context"
	"net/http"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/payment"
	"github.com/diagnosis/guesthouse-bookings/pkg/events"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
)

type Outcome string

const (
	OutcomePaid        Outcome = "paid"
	OutcomeAlreadyPaid Outcome = "already_paid"
	OutcomeIgnored     Outcome = "ignored"
)

type Processor struct {
	verifier payment.Verifier
	chain    Chain
	store    BookingStore
	apply    *Applier
	events   events.Publisher
}

func NewProcessor(v payment.Verifier, chain Chain, store BookingStore, apply *Applier, pub events.Publisher) *Processor {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Processor{verifier: v, chain: chain, store: store, apply: apply, events: pub}
}

// Handle authenticates the raw body, then resolves and records the payment.
// Nothing is parsed before the signature is checked.
func (p *Processor) Handle(ctx context.Context, body []byte, h http.Header) (Outcome, string, error) {
	if !p.verifier.Verify(body, h) {
		return "", "", domain.ErrInvalidSignature
	}

	ev, err := payment.DecodeEvent(body)
	if err != nil {
		return "", "", domain.Validation(err.Error())
	}
	if !ev.Completed {
		logger.DebugContext(ctx, "webhook event ignored", "event_id", ev.ID, "type", ev.Type)
		return OutcomeIgnored, "", nil
	}

	id, err := p.chain.Resolve(ctx, ev.Payment)
	if err != nil {
		if domain.IsKind(err, domain.KindUnresolved) {
			p.unmatched(ctx, ev.Payment, "no booking id")
		}
		return "", "", err
	}

	b, err := p.store.GetByID(ctx, id)
	if err != nil {
		return "", "", domain.Transient("could not load booking", err)
	}
	if b == nil {
		p.unmatched(ctx, ev.Payment, "booking "+id+" not found")
		return "", "", domain.ErrUnresolvedPayment
	}

	updated, err := p.apply.Apply(ctx, b, ev.Payment, "webhook")
	if err != nil {
		return "", "", err
	}
	if !updated {
		return OutcomeAlreadyPaid, b.ID, nil
	}
	return OutcomePaid, b.ID, nil
}

func (p *Processor) unmatched(ctx context.Context, pm payment.Payment, reason string) {
	logger.WarnContext(ctx, "payment could not be matched", "payment_id", pm.ID, "link_id", pm.LinkID, "reason", reason)
	ev := events.PaymentUnmatchedEvent{PaymentID: pm.ID, PaymentLinkID: pm.LinkID, Reason: reason}
	if err := p.events.Publish(ctx, events.PaymentUnmatched, ev); err != nil {
		logger.WarnContext(ctx, "publish payment.unmatched failed", "error", err)
	}
}
