package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/availability"
	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	bookings  map[string]*domain.Booking
	completed []string
	today     time.Time
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	if b, ok := f.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, from, to domain.BookingStatus) (bool, error) {
	b, ok := f.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (f *fakeStore) SetPaymentLink(_ context.Context, id, linkID string) error {
	f.bookings[id].PaymentLinkID = linkID
	return nil
}

func (f *fakeStore) CompleteStayed(_ context.Context, today time.Time) ([]string, error) {
	f.today = today
	return f.completed, nil
}

func (f *fakeStore) ListForRoom(_ context.Context, roomID, _ string) ([]domain.Booking, error) {
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.RoomID != nil && *b.RoomID == roomID {
			out = append(out, *b)
		}
	}
	return out, nil
}

type fakeRooms struct{ rooms []domain.Room }

func (f fakeRooms) ListRooms(context.Context) ([]domain.Room, error) { return f.rooms, nil }

func (f fakeRooms) GetByID(_ context.Context, id string) (*domain.Room, error) {
	for i := range f.rooms {
		if f.rooms[i].ID == id {
			return &f.rooms[i], nil
		}
	}
	return nil, nil
}

type fakeGateway struct {
	req payment.LinkRequest
	err error
}

func (g *fakeGateway) CreatePaymentLink(_ context.Context, req payment.LinkRequest) (*payment.Link, error) {
	g.req = req
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Link{ID: "plink_1", URL: "https://pay.test/plink_1"}, nil
}

func (g *fakeGateway) GetPaymentLink(context.Context, string) (*payment.Link, error) { return nil, nil }
func (g *fakeGateway) ListPaidPayments(context.Context) ([]payment.Payment, error)     { return nil, nil }

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func setup(bs ...domain.Booking) (*Service, *fakeStore, *fakeGateway) {
	store := &fakeStore{bookings: map[string]*domain.Booking{}}
	for i := range bs {
		b := bs[i]
		store.bookings[b.ID] = &b
	}
	rooms := fakeRooms{rooms: []domain.Room{{
		ID: "garden", Name: "Garden Suite", Availability: domain.RoomAvailable,
		PricePerNight: decimal.RequireFromString("3000"), DiscountPercent: decimal.RequireFromString("10"),
	}}}
	gw := &fakeGateway{}
	svc := NewService(store, rooms, availability.NewResolver(rooms, store, time.UTC), gw, nil, nil, Options{Location: time.UTC})
	svc.now = func() time.Time { return time.Date(2025, 11, 30, 10, 0, 0, 0, time.UTC) }
	return svc, store, gw
}

func garden() *string { s := "garden"; return &s }

func TestTransition(t *testing.T) {
	svc, store, _ := setup(domain.Booking{ID: "b1", RoomID: garden(), RoomType: "Garden Suite",
		Status: domain.BookingPending, CheckIn: day("2025-12-01"), CheckOut: day("2025-12-03")})

	b, err := svc.Transition(context.Background(), "b1", domain.BookingApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingApproved, b.Status)
	assert.Equal(t, domain.BookingApproved, store.bookings["b1"].Status)

	_, err = svc.Transition(context.Background(), "b1", domain.BookingDeclined)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Transition(context.Background(), "missing", domain.BookingApproved)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestTransition_ApprovalRechecksConflicts(t *testing.T) {
	svc, store, _ := setup(
		domain.Booking{ID: "held", RoomID: garden(), Status: domain.BookingApproved, CheckIn: day("2025-12-01"), CheckOut: day("2025-12-03")},
		domain.Booking{ID: "b2", RoomID: garden(), RoomType: "Garden Suite", Status: domain.BookingPending, CheckIn: day("2025-12-03"), CheckOut: day("2025-12-05")},
	)
	_, err := svc.Transition(context.Background(), "b2", domain.BookingApproved)
	assert.ErrorIs(t, err, domain.ErrDateConflict)
	assert.Equal(t, domain.BookingPending, store.bookings["b2"].Status)
}

func TestIssuePaymentLink(t *testing.T) {
	svc, store, gw := setup(domain.Booking{ID: "b1", Name: "Ana Cruz", RoomID: garden(), RoomType: "Garden Suite",
		Status: domain.BookingApproved, PaymentStatus: domain.PaymentUnpaid, CheckIn: day("2025-12-01"), CheckOut: day("2025-12-03")})

	link, err := svc.IssuePaymentLink(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, "plink_1", link.ID)
	assert.Equal(t, "plink_1", store.bookings["b1"].PaymentLinkID)

	// 2 nights at 3000 less 10%
	assert.Equal(t, int64(540000), gw.req.AmountMinor)
	assert.Equal(t, "php", gw.req.Currency)
	assert.Equal(t, "Booking ID: b1", gw.req.Remarks)
	assert.Equal(t, "Ana Cruz - Garden Suite (2025-12-01 to 2025-12-03)", gw.req.Description)
}

func TestIssuePaymentLink_Rejections(t *testing.T) {
	svc, _, gw := setup(
		domain.Booking{ID: "pending", RoomID: garden(), Status: domain.BookingPending},
		domain.Booking{ID: "paid", RoomID: garden(), Status: domain.BookingApproved, PaymentStatus: domain.PaymentPaid},
		domain.Booking{ID: "ok", RoomID: garden(), Status: domain.BookingApproved, PaymentStatus: domain.PaymentUnpaid,
			CheckIn: day("2025-12-01"), CheckOut: day("2025-12-02")},
	)
	_, err := svc.IssuePaymentLink(context.Background(), "pending")
	assert.ErrorIs(t, err, domain.ErrPaymentUnavailable)
	_, err = svc.IssuePaymentLink(context.Background(), "paid")
	assert.ErrorIs(t, err, domain.ErrPaymentUnavailable)

	gw.err = errors.New("provider down")
	_, err = svc.IssuePaymentLink(context.Background(), "ok")
	assert.True(t, domain.IsKind(err, domain.KindTransient))
}

func TestCompleteStayed(t *testing.T) {
	svc, store, _ := setup()
	store.completed = []string{"b1", "b2"}

	ids, err := svc.CompleteStayed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, ids)
	assert.Equal(t, day("2025-11-30"), store.today)
}
