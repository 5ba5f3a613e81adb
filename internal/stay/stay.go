package stay

import (
	"math"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
)

const (
	day        = 24 * time.Hour
	DateLayout = "2006-01-02"
)

type Window struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

// DayStart returns local midnight of t's calendar day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}

	t = t.In(loc)

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DayEnd returns the last instant of t's calendar day in loc.
func DayEnd(t time.Time, loc *time.Location) time.Time {
	return DayStart(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err //nolint:wrapcheck
	}

	return DayStart(t, loc), nil
}

// Normalize moves both ends to local midnight; unset ends stay unset.
func Normalize(w Window, loc *time.Location) Window {
	if !w.CheckIn.IsZero() {
		w.CheckIn = DayStart(w.CheckIn, loc)
	}

	if !w.CheckOut.IsZero() {
		w.CheckOut = DayStart(w.CheckOut, loc)
	}

	return w
}

func (w Window) Validate() error {
	inputErr := apperr.NewValidationError()

	if w.CheckIn.IsZero() {
		inputErr.Add("check_in", "provide check_in")
	}

	if w.CheckOut.IsZero() {
		inputErr.Add("check_out", "provide check_out")
	}

	if !w.CheckIn.IsZero() && !w.CheckOut.IsZero() && !w.CheckOut.After(w.CheckIn) {
		inputErr.Add("check_out", "check_out must be after check_in")
	}

	return inputErr.OrNil()
}

// Nights counts a partial night as a full one and never returns less than one.
func (w Window) Nights() int {
	return Nights(w.CheckIn, w.CheckOut)
}

func Nights(checkIn, checkOut time.Time) int {
	n := int(math.Ceil(float64(checkOut.Sub(checkIn)) / float64(day)))
	if n < 1 {
		return 1
	}

	return n
}
