package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type RoomAvailability string

const (
	RoomAvailable   RoomAvailability = "Available"
	RoomMaintenance RoomAvailability = "Maintenance"
	RoomUnavailable RoomAvailability = "Unavailable"
)

type Room struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	RoomNumber      string           `json:"roomNumber"`
	Category        string           `json:"category"`
	PricePerNight   decimal.Decimal  `json:"pricePerNight"`
	DiscountPercent decimal.Decimal  `json:"discountPercent"`
	MaxGuests       int              `json:"maxGuests"`
	BedType         string           `json:"bedType"`
	BedCount        int              `json:"bedCount"`
	Amenities       []string         `json:"amenities"`
	Photos          []string         `json:"photos"`
	Availability    RoomAvailability `json:"availability"`
	Featured        bool             `json:"featured"`
}

func (r Room) Bookable() bool {
	return RoomAvailability(strings.TrimSpace(string(r.Availability))) == RoomAvailable
}

var hundred = decimal.NewFromInt(100)

// NightlyRate applies the percentage discount to the per-night price.
func (r Room) NightlyRate() decimal.Decimal {
	if r.DiscountPercent.IsZero() {
		return r.PricePerNight
	}
	factor := hundred.Sub(r.DiscountPercent).Div(hundred)
	return r.PricePerNight.Mul(factor).Round(2)
}

// StayTotal is the flat-rate price of a stay of the given number of nights.
func (r Room) StayTotal(nights int) decimal.Decimal {
	return r.NightlyRate().Mul(decimal.NewFromInt(int64(nights))).Round(2)
}
