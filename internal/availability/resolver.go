// Package availability decides whether a room can be booked for a date range.
package availability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/dates"
	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
)

type RoomCatalog interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
}

// BookingFinder returns every booking of a room regardless of status.
// roomID may be empty when the label did not resolve to a catalog entry.
type BookingFinder interface {
	ListForRoom(ctx context.Context, roomID, roomType string) ([]domain.Booking, error)
}

type Conflict struct {
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
	Status   string `json:"status"`
}

type Result struct {
	Available       bool         `json:"available"`
	Conflicts       []Conflict   `json:"conflicts"`
	RoomUnavailable bool         `json:"roomUnavailable,omitempty"`
	Message         string       `json:"message,omitempty"`
	Room            *domain.Room `json:"-"`
}

type BookedRange struct {
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

type BookedDates struct {
	BookedRanges []BookedRange `json:"bookedRanges"`
	BookedDates  []string      `json:"bookedDates"`
}

type Resolver struct {
	rooms    RoomCatalog
	bookings BookingFinder
	loc      *time.Location
}

func NewResolver(rooms RoomCatalog, bookings BookingFinder, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{rooms: rooms, bookings: bookings, loc: loc}
}

func (r *Resolver) Location() *time.Location { return r.loc }

// ResolveRoom maps the label to a catalog room. A catalog failure is logged and
// treated as "no match" so date checks still run against the raw label.
func (r *Resolver) ResolveRoom(ctx context.Context, roomType string) *domain.Room {
	rooms, err := r.rooms.ListRooms(ctx)
	if err != nil {
		logger.WarnContext(ctx, "room catalog lookup failed, checking dates only",
			"room_type", roomType, "error", err)
		return nil
	}
	room := MatchRoom(rooms, roomType)
	if room == nil {
		logger.WarnContext(ctx, "room label did not match the catalog", "room_type", roomType)
	}
	return room
}

// CheckAvailability parses the raw request dates and runs Check.
func (r *Resolver) CheckAvailability(ctx context.Context, roomType, checkIn, checkOut string) (*Result, error) {
	if strings.TrimSpace(roomType) == "" {
		return nil, domain.Validation("roomType is required")
	}
	rng, err := dates.ParseRange(checkIn, checkOut, r.loc)
	if err != nil {
		return nil, domain.Validation(err.Error())
	}
	return r.Check(ctx, roomType, rng)
}

func (r *Resolver) Check(ctx context.Context, roomType string, rng dates.Range) (*Result, error) {
	room := r.ResolveRoom(ctx, roomType)
	if room != nil && !room.Bookable() {
		return &Result{
			Available:       false,
			Conflicts:       []Conflict{},
			RoomUnavailable: true,
			Message:         fmt.Sprintf("%s is currently not available for booking", room.Name),
			Room:            room,
		}, nil
	}

	blocking, err := r.blocking(ctx, room, roomType)
	if err != nil {
		return nil, err
	}

	res := &Result{Conflicts: []Conflict{}, Room: room}
	for _, b := range blocking {
		if rng.Overlaps(dates.NewRange(b.CheckIn, b.CheckOut, r.loc)) {
			res.Conflicts = append(res.Conflicts, Conflict{
				CheckIn:  dates.Format(b.CheckIn),
				CheckOut: dates.Format(b.CheckOut),
				Status:   strings.TrimSpace(string(b.Status)),
			})
		}
	}
	res.Available = len(res.Conflicts) == 0
	return res, nil
}

// GetBookedDates lists the blocked stays of a room and every date they cover.
func (r *Resolver) GetBookedDates(ctx context.Context, roomType string) (*BookedDates, error) {
	if strings.TrimSpace(roomType) == "" {
		return nil, domain.Validation("roomType is required")
	}
	room := r.ResolveRoom(ctx, roomType)
	blocking, err := r.blocking(ctx, room, roomType)
	if err != nil {
		return nil, err
	}

	out := &BookedDates{BookedRanges: []BookedRange{}, BookedDates: []string{}}
	seen := make(map[string]struct{})
	for _, b := range blocking {
		rng := dates.NewRange(b.CheckIn, b.CheckOut, r.loc)
		out.BookedRanges = append(out.BookedRanges, BookedRange{
			CheckIn:  dates.Format(rng.From),
			CheckOut: dates.Format(rng.To),
		})
		for _, d := range rng.Days() {
			key := dates.Format(d)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out.BookedDates = append(out.BookedDates, key)
		}
	}
	sort.Strings(out.BookedDates)
	sort.Slice(out.BookedRanges, func(i, j int) bool {
		return out.BookedRanges[i].CheckIn < out.BookedRanges[j].CheckIn
	})
	return out, nil
}

func (r *Resolver) blocking(ctx context.Context, room *domain.Room, roomType string) ([]domain.Booking, error) {
	roomID := ""
	if room != nil {
		roomID = room.ID
	}
	all, err := r.bookings.ListForRoom(ctx, roomID, roomType)
	if err != nil {
		return nil, domain.Transient("could not load bookings", err)
	}
	out := all[:0:0]
	for _, b := range all {
		if b.Blocks() {
			out = append(out, b)
		}
	}
	return out, nil
}
