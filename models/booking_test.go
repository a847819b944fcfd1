package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fleetstar/fleetstar-api/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.BookingStatus
		want     bool
	}{
		{models.BookingPending, models.BookingApproved, true},
		{models.BookingPending, models.BookingRejected, true},
		{models.BookingPending, models.BookingCancelled, true},
		{models.BookingPending, models.BookingCompleted, false},
		{models.BookingApproved, models.BookingCompleted, true},
		{models.BookingApproved, models.BookingCancelled, true},
		{models.BookingApproved, models.BookingRejected, false},
		{models.BookingRejected, models.BookingApproved, false},
		{models.BookingCancelled, models.BookingPending, false},
		{models.BookingCompleted, models.BookingCancelled, false},
		{models.BookingCancelled, models.BookingCancelled, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, models.CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, models.BookingPending.Terminal())
	assert.False(t, models.BookingApproved.Terminal())
	assert.True(t, models.BookingRejected.Terminal())
	assert.True(t, models.BookingCompleted.Terminal())
	assert.True(t, models.BookingCancelled.Terminal())
}

func TestBlocksVehicleExcludesCancelledAndRejected(t *testing.T) {
	assert.True(t, models.BookingPending.BlocksVehicle())
	assert.True(t, models.BookingApproved.BlocksVehicle())
	assert.True(t, models.BookingCompleted.BlocksVehicle())
	assert.False(t, models.BookingCancelled.BlocksVehicle())
	assert.False(t, models.BookingRejected.BlocksVehicle())
}

// Boundaries are inclusive: a return on day N conflicts with a pickup on
// day N.
func TestOverlapsInclusiveBoundaries(t *testing.T) {
	cases := []struct {
		name           string
		s1, e1, s2, e2 string
		want           bool
	}{
		{"disjoint before", "2025-03-01", "2025-03-05", "2025-03-06", "2025-03-08", false},
		{"disjoint after", "2025-03-06", "2025-03-08", "2025-03-01", "2025-03-05", false},
		{"contained", "2025-03-01", "2025-03-10", "2025-03-03", "2025-03-05", true},
		{"containing", "2025-03-03", "2025-03-05", "2025-03-01", "2025-03-10", true},
		{"partial overlap", "2025-03-01", "2025-03-05", "2025-03-04", "2025-03-06", true},
		{"touching boundary", "2025-03-01", "2025-03-05", "2025-03-05", "2025-03-07", true},
		{"touching boundary reversed", "2025-03-05", "2025-03-07", "2025-03-01", "2025-03-05", true},
		{"identical", "2025-03-01", "2025-03-05", "2025-03-01", "2025-03-05", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := models.Overlaps(day(c.s1), day(c.e1), day(c.s2), day(c.e2))
			assert.Equal(t, c.want, got)

			// the predicate is symmetric
			assert.Equal(t, got, models.Overlaps(day(c.s2), day(c.e2), day(c.s1), day(c.e1)))
		})
	}
}

func TestDurationDaysRoundsUp(t *testing.T) {
	assert.Equal(t, 4, models.DurationDays(day("2025-03-01"), day("2025-03-05")))
	assert.Equal(t, 2, models.DurationDays(day("2025-03-06"), day("2025-03-08")))
	assert.Equal(t, 1, models.DurationDays(day("2025-03-01"), day("2025-03-02")))

	// partial days count as a full day
	start := day("2025-03-01").Add(10 * time.Hour)
	end := day("2025-03-02").Add(14 * time.Hour)
	assert.Equal(t, 2, models.DurationDays(start, end))
}

func TestValidateBookingDates(t *testing.T) {
	now := day("2025-01-01")

	assert.NoError(t, models.ValidateBookingDates(day("2025-03-01"), day("2025-03-05"), now))

	// return before pickup
	err := models.ValidateBookingDates(day("2025-03-05"), day("2025-03-01"), now)
	assert.ErrorContains(t, err, "invalid booking dates")

	// return equal to pickup
	err = models.ValidateBookingDates(day("2025-03-05"), day("2025-03-05"), now)
	assert.ErrorContains(t, err, "invalid booking dates")

	// pickup in the past, even with a valid range
	err = models.ValidateBookingDates(day("2024-12-01"), day("2024-12-05"), now)
	assert.ErrorContains(t, err, "pickup date must be in the future")
}

func TestBookingDerivedFields(t *testing.T) {
	b := models.Booking{
		PickupDate: day("2025-03-06"),
		ReturnDate: day("2025-03-08"),
		Status:     models.BookingPending,
	}
	assert.Equal(t, 2, b.DurationDays())
	assert.True(t, b.OverlapsRange(day("2025-03-08"), day("2025-03-10")))
	assert.False(t, b.OverlapsRange(day("2025-03-09"), day("2025-03-10")))
}
