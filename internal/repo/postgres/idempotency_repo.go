package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepo remembers which booking a replayed redemption already created.
type IdempotencyRepo interface {
	// Lookup returns the booking id stored for key, or "" when the key is new.
	Lookup(ctx context.Context, key string) (string, error)
	Remember(ctx context.Context, key, bookingID string, ttl time.Duration) error
	CleanupExpired(ctx context.Context) (int64, error)
}

type idempotencyRepo struct{ pool *pgxpool.Pool }

func NewIdempotencyRepo(pool *pgxpool.Pool) IdempotencyRepo { return &idempotencyRepo{pool: pool} }

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (r *idempotencyRepo) Lookup(ctx context.Context, key string) (string, error) {
	const q = `SELECT booking_id::text FROM booking_idempotency WHERE key_hash=$1 AND expires_at > now()`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id string
	err := r.pool.QueryRow(ctx, q, hashKey(key)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (r *idempotencyRepo) Remember(ctx context.Context, key, bookingID string, ttl time.Duration) error {
	const q = `INSERT INTO booking_idempotency (key_hash, booking_id, expires_at)
		VALUES ($1, $2::uuid, $3)
		ON CONFLICT (key_hash) DO NOTHING`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, hashKey(key), bookingID, time.Now().Add(ttl))
	return err
}

func (r *idempotencyRepo) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM booking_idempotency WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
