// Package outbox keeps client writes that could not reach the server and
// replays them once connectivity returns.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type Op string

const (
	OpBooking  Op = "booking"
	OpContact  Op = "contact"
	OpFeedback Op = "feedback"
)

// Endpoint is the server route the operation is replayed against.
func (o Op) Endpoint() string {
	switch o {
	case OpBooking:
		return "/bookings/redeem"
	case OpContact:
		return "/contact"
	case OpFeedback:
		return "/feedback"
	}
	return ""
}

// MaxAge is how long an undelivered operation stays worth delivering.
// Booking requests go stale quickly because availability moves underneath them.
func (o Op) MaxAge() time.Duration {
	if o == OpBooking {
		return 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

func ParseOp(s string) (Op, bool) {
	switch op := Op(s); op {
	case OpBooking, OpContact, OpFeedback:
		return op, true
	}
	return "", false
}

type Entry struct {
	ID         string          `json:"id"`
	Op         Op              `json:"op"`
	Endpoint   string          `json:"endpoint"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
	RetryCount int             `json:"retryCount"`
	MaxAge     time.Duration   `json:"maxAge"`
	LastError  string          `json:"lastError,omitempty"`
}

// Stale reports whether the entry has outlived its MaxAge at now.
func (e Entry) Stale(now time.Time) bool {
	return now.Sub(e.CreatedAt) >= e.MaxAge
}

var ErrEntryNotFound = errors.New("outbox entry not found")

// Store is the durable backing of an outbox. It is owned by one client.
type Store interface {
	Enqueue(ctx context.Context, e Entry) error
	// ListPending returns entries oldest first.
	ListPending(ctx context.Context) ([]Entry, error)
	// Ack removes a delivered entry.
	Ack(ctx context.Context, id string) error
	// Nack records a failed attempt and returns the new retry count.
	Nack(ctx context.Context, id, reason string) (int, error)
	// Drop removes an entry that will never be delivered.
	Drop(ctx context.Context, id string) error
	Close() error
}

// Sender performs one delivery attempt.
type Sender interface {
	Deliver(ctx context.Context, e Entry) error
}

// Retryable errors are the ones worth queueing. Errors that do not implement
// it are treated as final unless they are context timeouts.
type Retryable interface {
	Retryable() bool
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
