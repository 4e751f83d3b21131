package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/availability"
	"github.com/diagnosis/guesthouse-bookings/internal/dates"
	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/payment"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
)

type SyncReport struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
}

// Sweeper pulls paid payments from the provider and matches them to approved,
// unpaid bookings. Paid bookings are never candidates, so re-runs write nothing.
type Sweeper struct {
	store   BookingStore
	gateway payment.Gateway
	apply   *Applier
	loc     *time.Location
}

func NewSweeper(store BookingStore, gw payment.Gateway, apply *Applier, loc *time.Location) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{store: store, gateway: gw, apply: apply, loc: loc}
}

func (s *Sweeper) Sync(ctx context.Context) (SyncReport, error) {
	var rep SyncReport

	candidates, err := s.store.ListApprovedUnpaid(ctx)
	if err != nil {
		return rep, domain.Transient("could not list unpaid bookings", err)
	}
	if len(candidates) == 0 {
		return rep, nil
	}
	reportOverlaps(ctx, candidates, s.loc)

	payments, err := s.gateway.ListPaidPayments(ctx)
	if err != nil {
		return rep, domain.Transient("could not list provider payments", err)
	}

	open := make(map[string]*domain.Booking, len(candidates))
	for i := range candidates {
		open[candidates[i].ID] = &candidates[i]
	}
	links := map[string]*payment.Link{}

	for _, p := range payments {
		if len(open) == 0 {
			break
		}
		owner, err := s.store.FindByPaymentID(ctx, p.ID)
		if err != nil {
			logger.WarnContext(ctx, "sweep could not inspect payment", "payment_id", p.ID, "error", err)
			rep.Errors++
			continue
		}
		if owner != nil {
			continue
		}
		b, err := s.match(ctx, p, open, links)
		if err != nil {
			logger.WarnContext(ctx, "sweep could not inspect payment", "payment_id", p.ID, "error", err)
			rep.Errors++
			continue
		}
		if b == nil {
			continue
		}
		updated, err := s.apply.Apply(ctx, b, p, "sweep")
		if err != nil {
			logger.ErrorContext(ctx, "sweep could not record payment", "booking_id", b.ID, "payment_id", p.ID, "error", err)
			rep.Errors++
			continue
		}
		delete(open, b.ID)
		if updated {
			rep.Synced++
		}
	}

	logger.InfoContext(ctx, "payment sweep finished", "candidates", len(candidates), "payments", len(payments),
		"synced", rep.Synced, "errors", rep.Errors)
	return rep, nil
}

// match prefers the stored link id, then an explicit booking id in any
// remarks, then the room and dates parsed out of a description line. A payment
// that names a booking belongs to that booking only; if it is no longer open
// the payment is left alone.
func (s *Sweeper) match(ctx context.Context, p payment.Payment, open map[string]*domain.Booking, links map[string]*payment.Link) (*domain.Booking, error) {
	if p.LinkID != "" {
		for _, b := range open {
			if b.PaymentLinkID == p.LinkID {
				return b, nil
			}
		}
	}

	texts := []string{p.Remarks, p.Description}
	if p.LinkID != "" {
		link, ok := links[p.LinkID]
		if !ok {
			var err error
			link, err = s.gateway.GetPaymentLink(ctx, p.LinkID)
			if err != nil {
				return nil, err
			}
			links[p.LinkID] = link
		}
		texts = append([]string{link.Remarks, link.Description}, texts...)
	}

	for _, t := range texts {
		if id, ok := ParseBookingID(t); ok {
			return open[id], nil
		}
	}
	for _, t := range texts {
		stay, ok := ParseStay(t)
		if !ok {
			continue
		}
		if b := s.byStay(stay, open); b != nil {
			return b, nil
		}
	}
	return nil, nil
}

func (s *Sweeper) byStay(stay Stay, open map[string]*domain.Booking) *domain.Booking {
	in, err := dates.Parse(stay.CheckIn, s.loc)
	if err != nil {
		return nil
	}
	out, err := dates.Parse(stay.CheckOut, s.loc)
	if err != nil {
		return nil
	}
	for _, b := range open {
		if !availability.ContainsEither(b.RoomType, stay.Room) {
			continue
		}
		if dates.Midnight(b.CheckIn, s.loc).Equal(in) && dates.Midnight(b.CheckOut, s.loc).Equal(out) {
			return b
		}
	}
	return nil
}

// reportOverlaps logs approved stays that collide. They can only come from two
// commits racing past the admission re-check and need a manual decision.
func reportOverlaps(ctx context.Context, bookings []domain.Booking, loc *time.Location) {
	for i := 0; i < len(bookings); i++ {
		for j := i + 1; j < len(bookings); j++ {
			a, b := bookings[i], bookings[j]
			if !sameRoom(a, b) {
				continue
			}
			if dates.NewRange(a.CheckIn, a.CheckOut, loc).Overlaps(dates.NewRange(b.CheckIn, b.CheckOut, loc)) {
				logger.WarnContext(ctx, "overlapping approved bookings need manual resolution",
					"booking_a", a.ID, "booking_b", b.ID, "room_type", a.RoomType)
			}
		}
	}
}

func sameRoom(a, b domain.Booking) bool {
	if a.RoomID != nil && b.RoomID != nil {
		return *a.RoomID == *b.RoomID
	}
	return strings.EqualFold(strings.TrimSpace(a.RoomType), strings.TrimSpace(b.RoomType))
}
