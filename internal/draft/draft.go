package draft

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/avstrong/hotel/internal/stay"
)

const (
	DefaultGuests    = 2
	DefaultRoomCount = 1
)

// Draft is the booking being assembled at the desk, one per session.
type Draft struct {
	Room         *pricing.Room       `json:"room,omitempty"`
	RoomID       string              `json:"room_id"`
	CheckIn      time.Time           `json:"check_in"`
	CheckOut     time.Time           `json:"check_out"`
	CheckInDate  string              `json:"check_in_date"`
	CheckOutDate string              `json:"check_out_date"`
	Guests       int                 `json:"guests"`
	RoomCount    int                 `json:"room_count"`
	Services     []pricing.Selection `json:"services"`
	Promo        *promo.Promotion    `json:"promo,omitempty"`
}

func (d Draft) Window() stay.Window {
	return stay.Window{CheckIn: d.CheckIn, CheckOut: d.CheckOut}
}

func (d Draft) clone() Draft {
	c := d
	c.Services = slices.Clone(d.Services)

	if d.Room != nil {
		room := *d.Room
		c.Room = &room
	}

	if d.Promo != nil {
		p := *d.Promo
		c.Promo = &p
	}

	return c
}

// RoomRef decodes either a room object or a bare room id.
type RoomRef struct {
	pricing.Room
}

func (r *RoomRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		r.Room = pricing.Room{ID: id} //nolint:exhaustruct

		return nil
	}

	return json.Unmarshal(data, &r.Room)
}

// Patch carries the fields a caller wants to change; nil means unchanged.
// A non-nil empty Services replaces the selection with nothing.
type Patch struct {
	Room       *RoomRef
	RoomID     *string
	CheckIn    *time.Time
	CheckOut   *time.Time
	Guests     *int
	RoomCount  *int
	Services   []pricing.Selection
	Promo      *promo.Promotion
	ClearPromo bool
}

// Update merges p into d and returns the new draft; d itself is left untouched.
// A promotion that no longer overlaps the stay is dropped silently.
func Update(d Draft, p Patch, loc *time.Location) Draft {
	if loc == nil {
		loc = time.Local
	}

	next := d.clone()

	switch {
	case p.Room != nil:
		room := p.Room.Room
		if room.ID == "" && p.RoomID != nil {
			room.ID = *p.RoomID
		}

		next.RoomID = room.ID
		next.Room = &room

		if room.ID == "" {
			next.Room = nil
		}
	case p.RoomID != nil:
		next.RoomID = *p.RoomID

		if next.Room == nil || next.Room.ID != next.RoomID {
			//nolint:exhaustruct
			next.Room = &pricing.Room{ID: next.RoomID}
		}

		if next.RoomID == "" {
			next.Room = nil
		}
	}

	windowChanged := false

	if p.CheckIn != nil {
		next.CheckIn = stay.DayStart(*p.CheckIn, loc)
		windowChanged = true
	}

	if p.CheckOut != nil {
		next.CheckOut = stay.DayStart(*p.CheckOut, loc)
		windowChanged = true
	}

	next.CheckInDate = formatDate(next.CheckIn, loc)
	next.CheckOutDate = formatDate(next.CheckOut, loc)

	if p.Guests != nil && *p.Guests > 0 {
		next.Guests = *p.Guests
	}

	if p.RoomCount != nil && *p.RoomCount > 0 {
		next.RoomCount = *p.RoomCount
	}

	if p.Services != nil {
		next.Services = slices.Clone(p.Services)
	}

	switch {
	case p.ClearPromo, p.Promo == nil && next.RoomID != d.RoomID:
		// A promotion belongs to the room it was found for.
		next.Promo = nil
	case p.Promo != nil:
		promotion := *p.Promo
		next.Promo = &promotion
		windowChanged = true
	}

	if windowChanged && next.Promo != nil && !next.CheckIn.IsZero() && !next.CheckOut.IsZero() {
		if !promo.IsApplicable(*next.Promo, next.Window()) {
			next.Promo = nil
		}
	}

	return next
}

// Reset returns the default draft: no room, two guests, one room, one night from today.
func Reset(now time.Time, loc *time.Location) Draft {
	if loc == nil {
		loc = time.Local
	}

	checkIn := stay.DayStart(now, loc)
	checkOut := checkIn.AddDate(0, 0, 1)

	//nolint:exhaustruct
	return Draft{
		CheckIn:      checkIn,
		CheckOut:     checkOut,
		CheckInDate:  formatDate(checkIn, loc),
		CheckOutDate: formatDate(checkOut, loc),
		Guests:       DefaultGuests,
		RoomCount:    DefaultRoomCount,
		Services:     []pricing.Selection{},
	}
}

func formatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}

	return t.In(loc).Format(stay.DateLayout)
}
