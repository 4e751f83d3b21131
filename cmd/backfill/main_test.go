package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRooms []domain.Room

func (f fakeRooms) ListRooms(context.Context) ([]domain.Room, error) { return f, nil }

type fakeBookings struct {
	pending  []domain.Booking
	assigned map[string]string
	failFor  string
}

func (f *fakeBookings) ListWithoutRoom(context.Context) ([]domain.Booking, error) { return f.pending, nil }

func (f *fakeBookings) AssignRoom(_ context.Context, id, roomID, _ string) error {
	if id == f.failFor {
		return errors.New("write failed")
	}
	if f.assigned == nil {
		f.assigned = make(map[string]string)
	}
	f.assigned[id] = roomID
	return nil
}

var catalog = fakeRooms{
	{ID: "r-deluxe", Name: "Deluxe Room", Category: "Deluxe"},
	{ID: "r-family", Name: "Family Suite", Category: "Suite"},
}

func TestBackfill_LinksMatches(t *testing.T) {
	store := &fakeBookings{pending: []domain.Booking{
		{ID: "b1", RoomType: " deluxe room "},
		{ID: "b2", RoomType: "Suite"},
		{ID: "b3", RoomType: "Penthouse"},
		{ID: "b4", RoomType: "family"},
	}}

	var out bytes.Buffer
	rep, err := backfill(context.Background(), catalog, store, false, &out)
	require.NoError(t, err)

	assert.Equal(t, report{Scanned: 4, Linked: 3, Unmatched: 1}, rep)
	assert.Equal(t, map[string]string{"b1": "r-deluxe", "b2": "r-family", "b4": "r-family"}, store.assigned)
	assert.Contains(t, out.String(), "b3\t\"Penthouse\"\tno match")
}

func TestBackfill_DryRunWritesNothing(t *testing.T) {
	store := &fakeBookings{pending: []domain.Booking{{ID: "b1", RoomType: "Deluxe"}}}

	rep, err := backfill(context.Background(), catalog, store, true, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Linked)
	assert.Nil(t, store.assigned)
}

func TestBackfill_WriteFailureCounted(t *testing.T) {
	store := &fakeBookings{failFor: "b1", pending: []domain.Booking{{ID: "b1", RoomType: "Deluxe"}, {ID: "b2", RoomType: "Deluxe"}}}

	rep, err := backfill(context.Background(), catalog, store, false, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, report{Scanned: 2, Linked: 1, Failed: 1}, rep)
}
