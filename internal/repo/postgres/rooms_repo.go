package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type RoomsRepo interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	GetByID(ctx context.Context, id string) (*domain.Room, error)
}

type roomsRepo struct{ pool *pgxpool.Pool }

func NewRoomsRepo(pool *pgxpool.Pool) RoomsRepo { return &roomsRepo{pool: pool} }

const roomCols = `id::text, name, room_number, category, price_per_night::text, discount_percent::text,
max_guests, bed_type, bed_count, amenities, photos, availability, featured`

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var (
		rm              domain.Room
		price, discount string
	)
	if err := row.Scan(
		&rm.ID, &rm.Name, &rm.RoomNumber, &rm.Category, &price, &discount,
		&rm.MaxGuests, &rm.BedType, &rm.BedCount, &rm.Amenities, &rm.Photos, &rm.Availability, &rm.Featured,
	); err != nil {
		return nil, err
	}
	var err error
	if rm.PricePerNight, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("price_per_night: %w", err)
	}
	if rm.DiscountPercent, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("discount_percent: %w", err)
	}
	return &rm, nil
}

func (r *roomsRepo) ListRooms(ctx context.Context) ([]domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+roomCols+` FROM rooms ORDER BY room_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rm)
	}
	return out, rows.Err()
}

func (r *roomsRepo) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rm, err := scanRoom(r.pool.QueryRow(ctx, `SELECT `+roomCols+` FROM rooms WHERE id::text=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rm, err
}
