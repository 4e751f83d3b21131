package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
	"github.com/google/uuid"
)

// Result is either a delivery or the id of the queued entry.
type Result struct {
	Delivered bool   `json:"delivered"`
	QueuedID  string `json:"queuedId,omitempty"`
}

type Outbox struct {
	store  Store
	sender Sender
	online func() bool
	now    func() time.Time
}

func New(store Store, sender Sender) *Outbox {
	return &Outbox{
		store:  store,
		sender: sender,
		online: func() bool { return true },
		now:    time.Now,
	}
}

// WithConnectivity skips the immediate attempt while the client is known to be offline.
func (o *Outbox) WithConnectivity(online func() bool) *Outbox {
	if online != nil {
		o.online = online
	}
	return o
}

// Submit tries op right away. Retryable failures are queued; any other error
// is the server's answer and goes back to the caller untouched.
// maxAge <= 0 uses the op's default.
func (o *Outbox) Submit(ctx context.Context, op Op, payload any, maxAge time.Duration) (Result, error) {
	if op.Endpoint() == "" {
		return Result{}, fmt.Errorf("unknown outbox operation %q", op)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s payload: %w", op, err)
	}
	if maxAge <= 0 {
		maxAge = op.MaxAge()
	}

	e := Entry{
		ID:        uuid.NewString(),
		Op:        op,
		Endpoint:  op.Endpoint(),
		Payload:   raw,
		CreatedAt: o.now().UTC(),
		MaxAge:    maxAge,
	}

	if o.online() {
		err := o.sender.Deliver(ctx, e)
		if err == nil {
			return Result{Delivered: true}, nil
		}
		if !IsRetryable(err) {
			return Result{}, err
		}
		e.LastError = err.Error()
		logger.WarnContext(ctx, "delivery failed, queueing", "op", op, "entry_id", e.ID, "error", err)
	}

	if err := o.store.Enqueue(ctx, e); err != nil {
		return Result{}, fmt.Errorf("queue %s: %w", op, err)
	}
	return Result{QueuedID: e.ID}, nil
}

func (o *Outbox) Pending(ctx context.Context) ([]Entry, error) {
	return o.store.ListPending(ctx)
}
