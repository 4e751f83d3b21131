// Package challenge keeps pending e-mail verification codes.
package challenge

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("challenge not found")

// Challenge is a pending one-time code for an e-mail address. Only the bcrypt
// hash of the code is kept.
type Challenge struct {
	Email     string    `json:"email"`
	CodeHash  string    `json:"codeHash"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Attempts  int       `json:"attempts"`
}

func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Store holds at most one challenge per normalized e-mail; Put overwrites.
// Implementations may evict entries some time after ExpiresAt, so an expired
// challenge can still be returned by Get for a while.
type Store interface {
	Put(ctx context.Context, c Challenge) error
	Get(ctx context.Context, email string) (*Challenge, error)
	Delete(ctx context.Context, email string) error
}

// Grace is how long an expired challenge is retained so callers can tell
// "expired" apart from "never requested".
const Grace = 10 * time.Minute

// MaxAttempts wrong codes burn the challenge; a new one must be requested.
const MaxAttempts = 5
