package pricing

import (
	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/promo"
)

type Source string

const (
	SourceLocal  Source = "local"
	SourceServer Source = "server"
)

type ServiceLine struct {
	ServiceID string `json:"service_id"`
	Name      string `json:"name,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

func (l ServiceLine) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

type Breakdown struct {
	Nights          int    `json:"nights"`
	RatePerNight    int64  `json:"rate_per_night"`
	RoomCount       int    `json:"room_count"`
	RoomSubtotal    int64  `json:"room_subtotal"`
	ServiceSubtotal int64  `json:"service_subtotal"`
	Discount        int64  `json:"discount"`
	GrandTotal      int64  `json:"grand_total"`
	Source          Source `json:"source"`
	Override        *int64 `json:"override,omitempty"`
}

// AmountDue is what gets charged: a manual override wins over the computed total.
func (b Breakdown) AmountDue() int64 {
	if b.Override != nil {
		return *b.Override
	}

	return b.GrandTotal
}

func ServiceSubtotal(services []ServiceLine) int64 {
	var total int64

	for _, s := range services {
		total += s.Total()
	}

	return total
}

// ComputeBreakdown expects p to have been checked for applicability already.
func ComputeBreakdown(rate int64, nights, roomCount int, services []ServiceLine, p *promo.Promotion) Breakdown {
	if nights < 1 {
		nights = 1
	}

	b := Breakdown{
		Nights:          nights,
		RatePerNight:    rate,
		RoomCount:       roomCount,
		RoomSubtotal:    rate * int64(nights) * int64(roomCount),
		ServiceSubtotal: ServiceSubtotal(services),
		Source:          SourceLocal,
	}

	if p != nil {
		b.Discount = promo.DiscountFor(*p, b.RoomSubtotal+b.ServiceSubtotal)
	}

	b.GrandTotal = b.RoomSubtotal + b.ServiceSubtotal - b.Discount
	if b.GrandTotal < 0 {
		b.GrandTotal = 0
	}

	return b
}

// completeFrom fills the components a backend left out. A missing rate is derived from the
// room subtotal when it divides evenly.
func (b Breakdown) completeFrom(local Breakdown) Breakdown {
	if b.Nights == 0 {
		b.Nights = local.Nights
	}

	if b.RoomCount == 0 {
		b.RoomCount = local.RoomCount
	}

	units := int64(b.Nights) * int64(b.RoomCount)

	switch {
	case b.RatePerNight != 0:
	case b.RoomSubtotal == 0:
		b.RatePerNight = local.RatePerNight
	case units > 0 && b.RoomSubtotal%units == 0:
		b.RatePerNight = b.RoomSubtotal / units
	}

	if b.RoomSubtotal == 0 {
		b.RoomSubtotal = b.RatePerNight * units
	}

	if b.ServiceSubtotal == 0 {
		b.ServiceSubtotal = local.ServiceSubtotal
	}

	return b
}

// consistent reports whether every total in b follows from its components the same way an
// invoice derives them, so a booking built from b charges exactly b.GrandTotal.
func (b Breakdown) consistent(services []ServiceLine, p *promo.Promotion) bool {
	if b.Nights < 1 || b.RoomCount < 1 {
		return false
	}

	if b.RoomSubtotal != b.RatePerNight*int64(b.Nights)*int64(b.RoomCount) {
		return false
	}

	if b.ServiceSubtotal != ServiceSubtotal(services) {
		return false
	}

	base := b.RoomSubtotal + b.ServiceSubtotal

	if p != nil && b.Discount != promo.DiscountFor(*p, base) {
		return false
	}

	if b.Discount < 0 || b.Discount > base {
		return false
	}

	return b.GrandTotal == base-b.Discount
}

// WithOverride keeps the computed components for the audit trail.
func WithOverride(b Breakdown, amount int64) (Breakdown, error) {
	if amount <= 0 {
		inputErr := apperr.NewValidationError()
		inputErr.Add("override", "override amount must be positive")

		return b, inputErr
	}

	b.Override = &amount

	return b, nil
}
