package reconcile

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- fakes ----------

type fakeStore struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
	writes   int
}

func newFakeStore(bs ...domain.Booking) *fakeStore {
	s := &fakeStore{bookings: map[string]*domain.Booking{}}
	for i := range bs {
		b := bs[i]
		s.bookings[b.ID] = &b
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) FindByPaymentLinkID(_ context.Context, linkID string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.PaymentLinkID != "" && b.PaymentLinkID == linkID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindByPaymentID(_ context.Context, paymentID string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.PaymentID != "" && b.PaymentID == paymentID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListApprovedUnpaid(context.Context) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.AwaitingPayment() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeStore) RecordPayment(_ context.Context, id string, upd domain.PaymentUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.IsPaid() {
		return false, nil
	}
	s.writes++
	b.PaymentStatus = domain.PaymentPaid
	b.PaymentID = upd.PaymentID
	if upd.PaymentLinkID != "" {
		b.PaymentLinkID = upd.PaymentLinkID
	}
	amt := upd.Amount
	b.PaidAmount = &amt
	b.PaidAt = &upd.PaidAt
	if upd.Complete && b.Status == domain.BookingApproved {
		b.Status = domain.BookingCompleted
	}
	return true, nil
}

type fakeGateway struct {
	links    map[string]*payment.Link
	payments []payment.Payment
	linkErr  error
	gets     int
}

func (g *fakeGateway) CreatePaymentLink(context.Context, payment.LinkRequest) (*payment.Link, error) {
	return nil, errors.New("not used")
}

func (g *fakeGateway) GetPaymentLink(_ context.Context, id string) (*payment.Link, error) {
	g.gets++
	if g.linkErr != nil {
		return nil, g.linkErr
	}
	if l, ok := g.links[id]; ok {
		return l, nil
	}
	return &payment.Link{ID: id}, nil
}

func (g *fakeGateway) ListPaidPayments(context.Context) ([]payment.Payment, error) {
	return g.payments, nil
}

var now = time.Date(2025, 11, 30, 12, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func approved(id, room, in, out string) domain.Booking {
	return domain.Booking{
		ID: id, Email: id + "@example.com", RoomType: room, Status: domain.BookingApproved,
		PaymentStatus: domain.PaymentUnpaid, CheckIn: day(in), CheckOut: day(out),
	}
}

func newApplier(store BookingStore) *Applier {
	a := NewApplier(store, nil, nil, time.UTC)
	a.now = func() time.Time { return now }
	return a
}

// ---------- parsing ----------

func TestParseBookingID(t *testing.T) {
	tests := map[string]string{
		"Booking ID: 3f1c-9a":          "3f1c-9a",
		"note. Booking ID:abc123 thx":  "abc123",
		"booking id: lowercase misses": "",
		"":                             "",
	}
	for in, want := range tests {
		got, ok := ParseBookingID(in)
		assert.Equal(t, want != "", ok, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseStay(t *testing.T) {
	s, ok := ParseStay(Description("Ana Cruz", "Garden Suite", "2025-11-22", "2025-11-25"))
	require.True(t, ok)
	assert.Equal(t, Stay{Label: "Ana Cruz", Room: "Garden Suite", CheckIn: "2025-11-22", CheckOut: "2025-11-25"}, s)

	_, ok = ParseStay("Garden Suite 2025-11-22 to 2025-11-25")
	assert.False(t, ok)
}

// ---------- chain ----------

func TestChain_Order(t *testing.T) {
	b := approved("b1", "Garden Suite", "2025-12-01", "2025-12-03")
	b.PaymentLinkID = "plink_1"
	store := newFakeStore(b)
	gw := &fakeGateway{links: map[string]*payment.Link{"plink_2": {ID: "plink_2", Remarks: "Booking ID: b2"}}}
	chain := DefaultChain(store, gw)
	ctx := context.Background()

	id, err := chain.Resolve(ctx, payment.Payment{LinkID: "plink_1", Remarks: "Booking ID: other"})
	require.NoError(t, err)
	assert.Equal(t, "b1", id)
	assert.Equal(t, 0, gw.gets, "stored link id short-circuits the gateway")

	id, err = chain.Resolve(ctx, payment.Payment{LinkID: "plink_2", Remarks: "Booking ID: b3"})
	require.NoError(t, err)
	assert.Equal(t, "b2", id)

	id, err = chain.Resolve(ctx, payment.Payment{LinkID: "plink_9", Remarks: "Booking ID: b3"})
	require.NoError(t, err)
	assert.Equal(t, "b3", id)

	_, err = chain.Resolve(ctx, payment.Payment{LinkID: "plink_9"})
	assert.ErrorIs(t, err, domain.ErrUnresolvedPayment)
}

func TestChain_GatewayErrorIsTransientWhenUnresolved(t *testing.T) {
	gw := &fakeGateway{linkErr: errors.New("provider 503")}
	chain := DefaultChain(newFakeStore(), gw)

	_, err := chain.Resolve(context.Background(), payment.Payment{LinkID: "plink_1"})
	assert.True(t, domain.IsKind(err, domain.KindTransient))

	id, err := chain.Resolve(context.Background(), payment.Payment{LinkID: "plink_1", Remarks: "Booking ID: b7"})
	require.NoError(t, err)
	assert.Equal(t, "b7", id)
}

// ---------- webhook ----------

var secret = []byte("whsec_test")

func signed(t *testing.T, body []byte) http.Header {
	t.Helper()
	h := http.Header{}
	h.Set("X-Signature", hex.EncodeToString(payment.Sign(body, secret)))
	return h
}

func checkoutEvent(t *testing.T, link, remarks string, amount int64) []byte {
	t.Helper()
	obj := map[string]any{
		"id": "cs_1", "object": "checkout.session", "payment_status": "paid",
		"amount_total": amount, "currency": "php", "payment_intent": "pi_1",
		"metadata": map[string]string{"remarks": remarks},
	}
	if link != "" {
		obj["payment_link"] = link
	}
	body, err := json.Marshal(map[string]any{
		"id": "evt_1", "object": "event", "type": "checkout.session.completed",
		"created": now.Unix(), "data": map[string]any{"object": obj},
	})
	require.NoError(t, err)
	return body
}

func newProcessor(store *fakeStore, gw *fakeGateway) *Processor {
	return NewProcessor(payment.HMACVerifier{Header: "X-Signature", Secret: secret}, DefaultChain(store, gw), store, newApplier(store), nil)
}

func TestProcessor_RejectsBadSignatureBeforeParsing(t *testing.T) {
	p := newProcessor(newFakeStore(), &fakeGateway{})
	_, _, err := p.Handle(context.Background(), []byte(`not json`), http.Header{"X-Signature": {"deadbeef"}})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, _, err = p.Handle(context.Background(), []byte(`not json`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestProcessor_MalformedBody(t *testing.T) {
	p := newProcessor(newFakeStore(), &fakeGateway{})
	body := []byte(`{not json`)
	_, _, err := p.Handle(context.Background(), body, signed(t, body))
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestProcessor_IgnoresOtherEvents(t *testing.T) {
	p := newProcessor(newFakeStore(), &fakeGateway{})
	body := []byte(`{"id":"evt_2","type":"payment_link.created","data":{"object":{}}}`)
	out, _, err := p.Handle(context.Background(), body, signed(t, body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
}

func TestProcessor_RecordsPayment(t *testing.T) {
	store := newFakeStore(approved("b1", "Garden Suite", "2025-12-01", "2025-12-03"))
	p := newProcessor(store, &fakeGateway{links: map[string]*payment.Link{"plink_1": {ID: "plink_1", Remarks: "Booking ID: b1"}}})
	body := checkoutEvent(t, "plink_1", "", 900000)

	out, id, err := p.Handle(context.Background(), body, signed(t, body))
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, out)
	assert.Equal(t, "b1", id)

	b := store.bookings["b1"]
	assert.Equal(t, domain.PaymentPaid, b.PaymentStatus)
	assert.Equal(t, "pi_1", b.PaymentID)
	assert.Equal(t, "plink_1", b.PaymentLinkID)
	assert.True(t, b.PaidAmount.Equal(decimal.NewFromInt(9000)))
	assert.Equal(t, domain.BookingApproved, b.Status, "future stay stays Approved")

	out, _, err = p.Handle(context.Background(), body, signed(t, body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPaid, out)
	assert.Equal(t, 1, store.writes)
}

func TestProcessor_CompletesPastStay(t *testing.T) {
	store := newFakeStore(approved("b1", "Garden Suite", "2025-11-22", "2025-11-25"))
	p := newProcessor(store, &fakeGateway{})
	body := checkoutEvent(t, "", "Booking ID: b1", 900000)

	_, _, err := p.Handle(context.Background(), body, signed(t, body))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, store.bookings["b1"].Status)
}

func TestProcessor_Unresolved(t *testing.T) {
	p := newProcessor(newFakeStore(), &fakeGateway{})

	body := checkoutEvent(t, "plink_x", "no id here", 100)
	_, _, err := p.Handle(context.Background(), body, signed(t, body))
	assert.ErrorIs(t, err, domain.ErrUnresolvedPayment)

	body = checkoutEvent(t, "", "Booking ID: ghost", 100)
	_, _, err = p.Handle(context.Background(), body, signed(t, body))
	assert.ErrorIs(t, err, domain.ErrUnresolvedPayment)
}

// ---------- sweep ----------

func TestSweeper_MatchesAndIsIdempotent(t *testing.T) {
	byLink := approved("b-link", "Garden Suite", "2025-12-01", "2025-12-03")
	byLink.PaymentLinkID = "plink_1"
	byRemarks := approved("b-remarks", "Deluxe Twin", "2025-12-05", "2025-12-07")
	byStay := approved("b-stay", "Garden Suite", "2025-12-10", "2025-12-12")
	pending := domain.Booking{ID: "b-pending", RoomType: "Garden Suite", Status: domain.BookingPending,
		PaymentStatus: domain.PaymentUnpaid, CheckIn: day("2025-12-20"), CheckOut: day("2025-12-22")}

	store := newFakeStore(byLink, byRemarks, byStay, pending)
	gw := &fakeGateway{
		links: map[string]*payment.Link{
			"plink_2": {ID: "plink_2", Remarks: "Booking ID: b-remarks"},
		},
		payments: []payment.Payment{
			{ID: "pi_1", LinkID: "plink_1", AmountMinor: 100000, PaidAt: now},
			{ID: "pi_2", LinkID: "plink_2", AmountMinor: 200000, PaidAt: now},
			{ID: "pi_3", AmountMinor: 300000, Description: Description("Ana", "garden", "2025-12-10", "2025-12-12"), PaidAt: now},
			{ID: "pi_4", AmountMinor: 400000, Description: Description("Ben", "Garden Suite", "2025-12-20", "2025-12-22"), PaidAt: now},
		},
	}
	s := NewSweeper(store, gw, newApplier(store), time.UTC)

	rep, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Synced: 3}, rep)
	assert.Equal(t, "pi_1", store.bookings["b-link"].PaymentID)
	assert.Equal(t, "pi_2", store.bookings["b-remarks"].PaymentID)
	assert.Equal(t, "pi_3", store.bookings["b-stay"].PaymentID)
	assert.False(t, store.bookings["b-pending"].IsPaid(), "pending bookings are never candidates")

	writes := store.writes
	rep, err = s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncReport{}, rep)
	assert.Equal(t, writes, store.writes)
}

func TestSweeper_CountsLookupErrors(t *testing.T) {
	store := newFakeStore(approved("b1", "Garden Suite", "2025-12-01", "2025-12-03"))
	gw := &fakeGateway{
		linkErr:  errors.New("provider down"),
		payments: []payment.Payment{{ID: "pi_1", LinkID: "plink_x"}},
	}
	rep, err := NewSweeper(store, gw, newApplier(store), time.UTC).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Errors: 1}, rep)
}

func TestSweeper_BookingIDInRemarksNeverFallsBackToStay(t *testing.T) {
	amt := decimal.NewFromInt(1000)
	paid := approved("x", "Deluxe", "2025-12-01", "2025-12-04")
	paid.PaymentStatus = domain.PaymentPaid
	paid.PaymentID = "pi_x"
	paid.PaymentLinkID = "plink_x"
	paid.PaidAmount = &amt
	other := approved("y", "Deluxe Family", "2025-12-01", "2025-12-04")

	store := newFakeStore(paid, other)
	gw := &fakeGateway{
		links: map[string]*payment.Link{
			"plink_x": {ID: "plink_x", Remarks: "Booking ID: x",
				Description: Description("Ana", "Deluxe", "2025-12-01", "2025-12-04")},
		},
		payments: []payment.Payment{
			// pi_z names x in its remarks but was never recorded anywhere.
			{ID: "pi_z", AmountMinor: 100000, Remarks: "Booking ID: x",
				Description: Description("Ana", "Deluxe", "2025-12-01", "2025-12-04"), PaidAt: now},
			{ID: "pi_x", LinkID: "plink_x", AmountMinor: 100000, PaidAt: now},
		},
	}
	rep, err := NewSweeper(store, gw, newApplier(store), time.UTC).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncReport{}, rep)
	assert.False(t, store.bookings["y"].IsPaid())
	assert.Empty(t, store.bookings["y"].PaymentID)
	assert.Zero(t, store.writes)
}

func TestSweeper_SkipsPaymentsAlreadyRecorded(t *testing.T) {
	amt := decimal.NewFromInt(1000)
	paid := approved("x", "Garden Suite", "2025-12-01", "2025-12-03")
	paid.PaymentStatus = domain.PaymentPaid
	paid.PaymentID = "pi_x"
	paid.PaidAmount = &amt
	twin := approved("y", "Garden Suite", "2025-12-01", "2025-12-03")

	store := newFakeStore(paid, twin)
	gw := &fakeGateway{payments: []payment.Payment{
		{ID: "pi_x", AmountMinor: 100000, Description: Description("Ana", "Garden Suite", "2025-12-01", "2025-12-03"), PaidAt: now},
	}}
	rep, err := NewSweeper(store, gw, newApplier(store), time.UTC).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncReport{}, rep)
	assert.False(t, store.bookings["y"].IsPaid())
}
