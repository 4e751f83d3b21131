package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/guesthouse-bookings/pkg/config"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("guesthouse-bookings"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "bytes", len(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSPublisher) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// FromConfig connects to NATS when enabled. Events are best effort, so an
// unreachable broker degrades to Noop instead of stopping the service.
func FromConfig(cfg config.NATSConfig) Publisher {
	if !cfg.Enabled {
		return Noop{}
	}
	pub, err := NewNATSPublisher(cfg.URL)
	if err != nil {
		logger.Warn("event bus unavailable, events disabled", "url", cfg.URL, "error", err)
		return Noop{}
	}
	return pub
}

// Noop discards events; used when NATS is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, string, interface{}) error { return nil }
func (Noop) Close() error                                       { return nil }

const (
	BookingCreated   = "booking.created"
	BookingPaid      = "booking.paid"
	BookingCompleted = "booking.completed"
	BookingStatus    = "booking.status_changed"
	PaymentUnmatched = "payment.unmatched"
)

type BookingCreatedEvent struct {
	BookingID string    `json:"booking_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	RoomType  string    `json:"room_type"`
	CheckIn   string    `json:"check_in"`
	CheckOut  string    `json:"check_out"`
	Guests    int       `json:"guests"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingPaidEvent struct {
	BookingID     string    `json:"booking_id"`
	PaymentID     string    `json:"payment_id"`
	PaymentLinkID string    `json:"payment_link_id,omitempty"`
	Amount        string    `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
	Source        string    `json:"source"` // webhook or sweep
	Completed     bool      `json:"completed"`
}

type BookingStatusEvent struct {
	BookingID string    `json:"booking_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

type PaymentUnmatchedEvent struct {
	PaymentID     string `json:"payment_id"`
	PaymentLinkID string `json:"payment_link_id,omitempty"`
	Reason        string `json:"reason"`
}
