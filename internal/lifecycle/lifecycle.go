// Package lifecycle holds the administrative steps of a booking after it is
// committed: status changes, payment links and automatic completion.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/availability"
	"github.com/diagnosis/guesthouse-bookings/internal/dates"
	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/mailer"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/payment"
	"github.com/diagnosis/guesthouse-bookings/internal/reconcile"
	"github.com/diagnosis/guesthouse-bookings/pkg/events"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
)

type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus) (bool, error)
	SetPaymentLink(ctx context.Context, id, linkID string) error
	CompleteStayed(ctx context.Context, today time.Time) ([]string, error)
}

type Rooms interface {
	GetByID(ctx context.Context, id string) (*domain.Room, error)
}

// Admission is the availability check an approval must still pass.
type Admission interface {
	Check(ctx context.Context, roomType string, rng dates.Range) (*availability.Result, error)
	ResolveRoom(ctx context.Context, roomType string) *domain.Room
}

type Service struct {
	store     Store
	rooms     Rooms
	admission Admission
	gateway   payment.Gateway
	mail      mailer.Sender
	events    events.Publisher
	currency  string
	loc       *time.Location
	now       func() time.Time
}

type Options struct {
	Currency string
	Location *time.Location
}

func NewService(store Store, rooms Rooms, admission Admission, gw payment.Gateway, mail mailer.Sender, pub events.Publisher, opts Options) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Currency == "" {
		opts.Currency = "php"
	}
	return &Service{
		store: store, rooms: rooms, admission: admission, gateway: gw, mail: mail, events: pub,
		currency: opts.Currency, loc: opts.Location, now: time.Now,
	}
}

func (s *Service) load(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Transient("could not load booking", err)
	}
	if b == nil {
		return nil, domain.ErrBookingNotFound
	}
	return b, nil
}

// Transition applies an administrator status change. Approving re-runs the
// admission check so an approval cannot double-book the room.
func (s *Service) Transition(ctx context.Context, id string, to domain.BookingStatus) (*domain.Booking, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	from := domain.BookingStatus(strings.TrimSpace(string(b.Status)))
	if !b.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, from, to)
	}

	if to == domain.BookingApproved {
		res, err := s.admission.Check(ctx, b.RoomType, dates.NewRange(b.CheckIn, b.CheckOut, s.loc))
		if err != nil {
			return nil, err
		}
		if res.RoomUnavailable {
			return nil, domain.ErrRoomUnavailable
		}
		if !res.Available {
			return nil, fmt.Errorf("%w: %d approved stay(s) overlap", domain.ErrDateConflict, len(res.Conflicts))
		}
	}

	ok, err := s.store.UpdateStatus(ctx, b.ID, from, to)
	if err != nil {
		return nil, domain.Transient("could not update booking", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: booking changed concurrently", domain.ErrInvalidTransition)
	}
	b.Status = to

	ev := events.BookingStatusEvent{BookingID: b.ID, From: string(from), To: string(to), ChangedAt: s.now().UTC()}
	if err := s.events.Publish(ctx, events.BookingStatus, ev); err != nil {
		logger.WarnContext(ctx, "publish booking.status_changed failed", "booking_id", b.ID, "error", err)
	}
	logger.InfoContext(ctx, "booking status changed", "booking_id", b.ID, "from", from, "to", to)
	return b, nil
}

func (s *Service) room(ctx context.Context, b *domain.Booking) (*domain.Room, error) {
	if b.RoomID != nil {
		rm, err := s.rooms.GetByID(ctx, *b.RoomID)
		if err != nil {
			return nil, domain.Transient("could not load room", err)
		}
		if rm != nil {
			return rm, nil
		}
	}
	if rm := s.admission.ResolveRoom(ctx, b.RoomType); rm != nil {
		return rm, nil
	}
	return nil, &domain.Error{Kind: domain.KindNotFound, Code: "ROOM_NOT_FOUND", Message: "booking room is not in the catalog"}
}

// IssuePaymentLink prices the stay and creates a hosted checkout link for it.
// The link carries the booking id in its remarks so the payment can be traced back.
func (s *Service) IssuePaymentLink(ctx context.Context, id string) (*payment.Link, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.AwaitingPayment() {
		return nil, domain.ErrPaymentUnavailable
	}
	rm, err := s.room(ctx, b)
	if err != nil {
		return nil, err
	}

	stay := dates.NewRange(b.CheckIn, b.CheckOut, s.loc)
	total := rm.StayTotal(stay.Nights())
	req := payment.LinkRequest{
		AmountMinor: payment.ToMinor(total),
		Currency:    s.currency,
		Description: reconcile.Description(b.Name, rm.Name, dates.Format(stay.From), dates.Format(stay.To)),
		Remarks:     reconcile.Remarks(b.ID),
	}
	if req.AmountMinor <= 0 {
		return nil, domain.Validation("room has no price configured")
	}

	link, err := s.gateway.CreatePaymentLink(ctx, req)
	if err != nil {
		return nil, domain.Transient("payment provider unavailable", err)
	}
	if err := s.store.SetPaymentLink(ctx, b.ID, link.ID); err != nil {
		return nil, domain.Transient("could not save payment link", err)
	}

	if s.mail != nil {
		if _, err := s.mail.Send(ctx, mailer.PaymentLink(b, link.URL)); err != nil {
			logger.WarnContext(ctx, "payment link email failed", "booking_id", b.ID, "error", err)
		}
	}
	logger.InfoContext(ctx, "payment link issued", "booking_id", b.ID, "link_id", link.ID,
		"amount", total.StringFixed(2), "nights", stay.Nights())
	return link, nil
}

// CompleteStayed marks paid, approved stays whose check-out has passed as Completed.
func (s *Service) CompleteStayed(ctx context.Context) ([]string, error) {
	ids, err := s.store.CompleteStayed(ctx, dates.Today(s.now(), s.loc))
	if err != nil {
		return nil, domain.Transient("completion sweep failed", err)
	}
	at := s.now().UTC()
	for _, id := range ids {
		ev := events.BookingStatusEvent{BookingID: id, From: string(domain.BookingApproved), To: string(domain.BookingCompleted), ChangedAt: at}
		if err := s.events.Publish(ctx, events.BookingCompleted, ev); err != nil {
			logger.WarnContext(ctx, "publish booking.completed failed", "booking_id", id, "error", err)
		}
	}
	if len(ids) > 0 {
		logger.InfoContext(ctx, "stays completed", "count", len(ids))
	}
	return ids, nil
}

// Every runs fn on the interval until ctx is done; used for background sweeps.
func Every(ctx context.Context, interval time.Duration, name string, fn func(context.Context) error) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := fn(ctx); err != nil {
				logger.Error("background job failed", "job", name, "error", err)
			}
		}
	}
}
