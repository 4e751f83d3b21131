package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/dates"
	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type BookingsRepo interface {
	Create(ctx context.Context, nb domain.NewBooking) (*domain.Booking, error)
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	CountByEmail(ctx context.Context, email string) (int, error)
	ListForRoom(ctx context.Context, roomID, roomType string) ([]domain.Booking, error)
	FindByPaymentLinkID(ctx context.Context, linkID string) (*domain.Booking, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*domain.Booking, error)
	ListApprovedUnpaid(ctx context.Context) ([]domain.Booking, error)
	RecordPayment(ctx context.Context, id string, upd domain.PaymentUpdate) (bool, error)
	SetPaymentLink(ctx context.Context, id, linkID string) error
	UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus) (bool, error)
	CompleteStayed(ctx context.Context, today time.Time) ([]string, error)
	ListWithoutRoom(ctx context.Context) ([]domain.Booking, error)
	AssignRoom(ctx context.Context, id, roomID, roomName string) error
}

type bookingsRepo struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewBookingsRepo returns a repository whose dates are interpreted in loc.
func NewBookingsRepo(pool *pgxpool.Pool, loc *time.Location) BookingsRepo {
	return &bookingsRepo{pool: pool, loc: loc}
}

const bookingCols = `id::text, name, email, phone, room_id::text, room_type,
check_in, check_out, guests, special_requests, status, payment_status,
COALESCE(payment_id, ''), COALESCE(payment_link_id, ''), paid_amount::text, paid_at,
created_at, updated_at, verified_at`

func (r *bookingsRepo) scan(row pgx.Row) (*domain.Booking, error) {
	var (
		b      domain.Booking
		amount *string
	)
	err := row.Scan(
		&b.ID, &b.Name, &b.Email, &b.Phone, &b.RoomID, &b.RoomType,
		&b.CheckIn, &b.CheckOut, &b.Guests, &b.SpecialRequests, &b.Status, &b.PaymentStatus,
		&b.PaymentID, &b.PaymentLinkID, &amount, &b.PaidAt,
		&b.CreatedAt, &b.UpdatedAt, &b.VerifiedAt,
	)
	if err != nil {
		return nil, err
	}
	// DATE columns come back as UTC midnight; re-home them in the booking zone.
	b.CheckIn = dates.Midnight(b.CheckIn, r.loc)
	b.CheckOut = dates.Midnight(b.CheckOut, r.loc)
	if amount != nil {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return nil, fmt.Errorf("paid_amount: %w", err)
		}
		b.PaidAmount = &d
	}
	return &b, nil
}

func (r *bookingsRepo) collect(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()
	var out []domain.Booking
	for rows.Next() {
		b, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *bookingsRepo) Create(ctx context.Context, nb domain.NewBooking) (*domain.Booking, error) {
	const q = `INSERT INTO bookings (
		id, name, email, phone, room_id, room_type,
		check_in, check_out, guests, special_requests,
		status, payment_status, created_at, updated_at, verified_at
	) VALUES ($1,$2,$3,$4,$5::uuid,$6,$7::date,$8::date,$9,$10,'Pending','unpaid',$11,$11,$11)
	RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return r.scan(r.pool.QueryRow(ctx, q,
		uuid.NewString(), nb.Name, nb.Email, nb.Phone, nb.RoomID, nb.RoomType,
		dates.Format(nb.CheckIn), dates.Format(nb.CheckOut), nb.Guests, nb.SpecialRequests,
		nb.CreatedAt,
	))
}

func (r *bookingsRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1::uuid`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := r.scan(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *bookingsRepo) CountByEmail(ctx context.Context, email string) (int, error) {
	const q = `SELECT count(*) FROM bookings WHERE lower(email)=lower($1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int
	err := r.pool.QueryRow(ctx, q, email).Scan(&n)
	return n, err
}

// ListForRoom returns every booking of a room whatever its status: rows linked
// by room_id plus every row whose room_type names the room. Without a room id
// only the name is compared, so bookings that also carry a room_id still count.
func (r *bookingsRepo) ListForRoom(ctx context.Context, roomID, roomType string) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings
		WHERE ($1 <> '' AND room_id::text = $1)
		   OR lower(btrim(room_type)) = lower(btrim($2))
		ORDER BY check_in`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, roomID, roomType)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *bookingsRepo) FindByPaymentLinkID(ctx context.Context, linkID string) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE payment_link_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := r.scan(r.pool.QueryRow(ctx, q, linkID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *bookingsRepo) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE payment_id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := r.scan(r.pool.QueryRow(ctx, q, paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *bookingsRepo) ListApprovedUnpaid(ctx context.Context) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings
		WHERE btrim(status)='Approved' AND payment_status <> 'paid'
		ORDER BY check_in`
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// RecordPayment writes the payment fields once; a booking that is already paid
// is left untouched and false is returned.
func (r *bookingsRepo) RecordPayment(ctx context.Context, id string, upd domain.PaymentUpdate) (bool, error) {
	const q = `
		UPDATE bookings
		SET payment_status  = 'paid',
		    payment_id      = NULLIF($2, ''),
		    payment_link_id = COALESCE(NULLIF($3, ''), payment_link_id),
		    paid_amount     = $4::numeric,
		    paid_at         = $5,
		    status          = CASE WHEN $6 AND btrim(status) = 'Approved' THEN 'Completed' ELSE status END,
		    updated_at      = now()
		WHERE id = $1::uuid AND payment_status <> 'paid'`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, upd.PaymentID, upd.PaymentLinkID, upd.Amount.StringFixed(2), upd.PaidAt, upd.Complete)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *bookingsRepo) SetPaymentLink(ctx context.Context, id, linkID string) error {
	const q = `UPDATE bookings SET payment_link_id=$2, updated_at=now() WHERE id=$1::uuid`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, linkID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

func (r *bookingsRepo) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus) (bool, error) {
	const q = `UPDATE bookings SET status=$3, updated_at=now() WHERE id=$1::uuid AND btrim(status)=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, q, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *bookingsRepo) CompleteStayed(ctx context.Context, today time.Time) ([]string, error) {
	const q = `
		UPDATE bookings SET status='Completed', updated_at=now()
		WHERE btrim(status)='Approved' AND payment_status='paid' AND check_out < $1::date
		RETURNING id::text`
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, dates.Format(today))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *bookingsRepo) ListWithoutRoom(ctx context.Context) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE room_id IS NULL ORDER BY created_at`
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *bookingsRepo) AssignRoom(ctx context.Context, id, roomID, roomName string) error {
	const q = `UPDATE bookings SET room_id=$2::uuid, room_type=$3, updated_at=now() WHERE id=$1::uuid AND room_id IS NULL`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id, roomID, roomName)
	return err
}
