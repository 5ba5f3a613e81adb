package stay

import (
	"testing"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestNights(t *testing.T) {
	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
		want     int
	}{
		{"three nights", date(2025, 6, 1), date(2025, 6, 4), 3},
		{"partial night rounds up", date(2025, 6, 1), date(2025, 6, 2).Add(3 * time.Hour), 2},
		{"same day floors to one", date(2025, 6, 1), date(2025, 6, 1), 1},
		{"reversed floors to one", date(2025, 6, 3), date(2025, 6, 1), 1},
		{"across month end", date(2025, 1, 30), date(2025, 2, 2), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Nights(tt.checkIn, tt.checkOut))
		})
	}
}

func TestNightsShiftInvariant(t *testing.T) {
	in := date(2025, 3, 10)
	out := date(2025, 3, 14).Add(5 * time.Hour)
	base := Nights(in, out)

	for _, shift := range []time.Duration{time.Hour, 24 * time.Hour, 17 * 24 * time.Hour, -90 * time.Minute} {
		assert.Equal(t, base, Nights(in.Add(shift), out.Add(shift)))
		assert.GreaterOrEqual(t, Nights(in.Add(shift), out.Add(shift)), 1)
	}
}

func TestDayStartAndEnd(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	ts := time.Date(2025, 6, 1, 20, 30, 0, 0, time.UTC) // 2025-06-02 03:30 ICT

	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, loc), DayStart(ts, loc))
	assert.Equal(t, time.Date(2025, 6, 2, 23, 59, 59, 999999999, loc), DayEnd(ts, loc))
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)

	got, err := ParseDate("2025-06-10", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, loc), got)

	got, err = ParseDate("2025-06-10T22:00:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, loc), got)

	_, err = ParseDate("10/06/2025", loc)
	assert.Error(t, err)
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, Window{CheckIn: date(2025, 6, 1), CheckOut: date(2025, 6, 2)}.Validate())

	err := Window{CheckIn: date(2025, 6, 2), CheckOut: date(2025, 6, 2)}.Validate()
	require.Error(t, err)
	assert.Contains(t, apperr.IsValidationError(err).Fields(), "check_out")

	err = Window{}.Validate()
	require.Error(t, err)
	assert.Len(t, apperr.IsValidationError(err).Fields(), 2)
}

func TestNormalizeKeepsUnsetEnds(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)

	w := Normalize(Window{CheckOut: time.Date(2025, 6, 3, 15, 0, 0, 0, loc)}, loc)
	assert.True(t, w.CheckIn.IsZero())
	assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, loc), w.CheckOut)
}
