package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingApproved  BookingStatus = "Approved"
	BookingCompleted BookingStatus = "Completed"
	BookingCancelled BookingStatus = "Cancelled"
	BookingDeclined  BookingStatus = "Declined"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(strings.TrimSpace(s)) {
	case BookingPending, BookingApproved, BookingCompleted, BookingCancelled, BookingDeclined:
		return BookingStatus(strings.TrimSpace(s)), true
	default:
		return "", false
	}
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type Booking struct {
	ID              string
	Name            string
	Email           string
	Phone           string
	RoomID          *string
	RoomType        string
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	SpecialRequests string
	Status          BookingStatus
	PaymentStatus   PaymentStatus
	PaymentID       string
	PaymentLinkID   string
	PaidAmount      *decimal.Decimal
	PaidAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	VerifiedAt      *time.Time
}

// Blocks reports whether the booking takes part in date conflict checks.
// Only approved stays hold the room.
func (b *Booking) Blocks() bool {
	return BookingStatus(strings.TrimSpace(string(b.Status))) == BookingApproved
}

func (b *Booking) IsPaid() bool {
	return b.PaymentStatus == PaymentPaid
}

// AwaitingPayment is the candidate set for payment reconciliation.
func (b *Booking) AwaitingPayment() bool {
	return b.Blocks() && !b.IsPaid()
}

// transitions an administrator may apply; completion is normally automatic.
var transitions = map[BookingStatus][]BookingStatus{
	BookingPending:  {BookingApproved, BookingDeclined, BookingCancelled},
	BookingApproved: {BookingCancelled, BookingCompleted},
}

func (b *Booking) CanTransition(to BookingStatus) bool {
	for _, s := range transitions[BookingStatus(strings.TrimSpace(string(b.Status)))] {
		if s == to {
			return true
		}
	}
	return false
}

// NewBooking is what the confirmation step commits.
type NewBooking struct {
	Name            string
	Email           string
	Phone           string
	RoomID          *string
	RoomType        string
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	SpecialRequests string
	CreatedAt       time.Time
}

// PaymentUpdate carries the fields written when a payment is matched to a booking.
type PaymentUpdate struct {
	PaymentID     string
	PaymentLinkID string
	Amount        decimal.Decimal
	PaidAt        time.Time
	Complete      bool
}

// BookingDTO is the wire form; dates are plain YYYY-MM-DD strings.
type BookingDTO struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	RoomID          *string    `json:"roomId,omitempty"`
	RoomType        string     `json:"roomType"`
	CheckIn         string     `json:"checkIn"`
	CheckOut        string     `json:"checkOut"`
	Guests          int        `json:"guests"`
	SpecialRequests string     `json:"specialRequests,omitempty"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"paymentStatus"`
	PaymentLinkID   string     `json:"paymentLinkId,omitempty"`
	PaidAmount      string     `json:"paidAmount,omitempty"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
}

func (b *Booking) DTO() BookingDTO {
	dto := BookingDTO{
		ID:              b.ID,
		Name:            b.Name,
		Email:           b.Email,
		Phone:           b.Phone,
		RoomID:          b.RoomID,
		RoomType:        b.RoomType,
		CheckIn:         b.CheckIn.Format("2006-01-02"),
		CheckOut:        b.CheckOut.Format("2006-01-02"),
		Guests:          b.Guests,
		SpecialRequests: b.SpecialRequests,
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		PaymentLinkID:   b.PaymentLinkID,
		PaidAt:          b.PaidAt,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
		VerifiedAt:      b.VerifiedAt,
	}
	if b.PaidAmount != nil {
		dto.PaidAmount = b.PaidAmount.StringFixed(2)
	}
	return dto
}

// Business rules
const (
	MinGuests          = 1
	MaxNameLength      = 120
	MaxRequestsLength  = 2000
	DefaultMaxBookings = 3
)
