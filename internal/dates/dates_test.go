package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, in, out string) Range {
	t.Helper()
	r, err := ParseRange(in, out, time.UTC)
	require.NoError(t, err)
	return r
}

func TestParseRange_Validation(t *testing.T) {
	tests := []struct {
		name     string
		in, out  string
		wantErr  bool
	}{
		{"valid", "2025-11-22", "2025-11-25", false},
		{"same day", "2025-11-22", "2025-11-22", true},
		{"reversed", "2025-11-25", "2025-11-22", true},
		{"garbage", "tomorrow", "2025-11-22", true},
		{"bad month", "2025-13-01", "2025-12-02", true},
		{"surrounding spaces", " 2025-11-22 ", "2025-11-23", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRange(tt.in, tt.out, time.UTC)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOverlaps_Inclusive(t *testing.T) {
	booked := mustRange(t, "2025-11-22", "2025-11-25")

	assert.True(t, mustRange(t, "2025-11-24", "2025-11-26").Overlaps(booked))
	assert.True(t, mustRange(t, "2025-11-25", "2025-11-27").Overlaps(booked), "check-out day is occupied")
	assert.True(t, mustRange(t, "2025-11-20", "2025-11-22").Overlaps(booked), "check-in day is occupied")
	assert.True(t, mustRange(t, "2025-11-01", "2025-11-30").Overlaps(booked))
	assert.False(t, mustRange(t, "2025-11-26", "2025-11-28").Overlaps(booked))
	assert.False(t, mustRange(t, "2025-11-18", "2025-11-21").Overlaps(booked))
}

func TestRange_DaysAndNights(t *testing.T) {
	r := mustRange(t, "2025-12-30", "2026-01-02")
	days := r.Days()
	require.Len(t, days, 4)
	assert.Equal(t, "2025-12-30", Format(days[0]))
	assert.Equal(t, "2026-01-02", Format(days[3]))
	assert.Equal(t, 3, r.Nights())
}

func TestMidnight_KeepsCalendarDate(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)

	// pgx hands DATE columns back as UTC midnight.
	fromDB := time.Date(2025, 11, 22, 0, 0, 0, 0, time.UTC)
	got := Midnight(fromDB, manila)
	assert.Equal(t, "2025-11-22", Format(got))
	assert.Equal(t, manila, got.Location())
}
