package invoice

import (
	"slices"
	"time"

	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
)

type Status string

const (
	StatusUnpaid        Status = "unpaid"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
)

// DefaultTolerance is the smallest stored-vs-derived gap treated as corruption.
const DefaultTolerance int64 = 10

// Invoice keeps the components a total is derived from. RoomCharge, ServiceCharge, Discount
// and Total are caches of those components and are never trusted on their own. With a
// Promotion attached the discount follows the current room and service charges.
type Invoice struct {
	ID             string                `json:"id"`
	RatePerNight   int64                 `json:"rate_per_night"`
	Nights         int                   `json:"nights"`
	RoomCount      int                   `json:"room_count"`
	Services       []pricing.ServiceLine `json:"services"`
	RoomCharge     int64                 `json:"room_charge"`
	ServiceCharge  int64                 `json:"service_charge"`
	Discount       int64                 `json:"discount"`
	Promotion      *promo.Promotion      `json:"promotion,omitempty"`
	LateFee        int64                 `json:"late_fee"`
	LateHours      int                   `json:"late_hours"`
	LateFeeApplied bool                  `json:"late_fee_applied"`
	Total          int64                 `json:"total"`
	Status         Status                `json:"status"`
	Payments       ledger.Ledger         `json:"payments"`
	CreatedAt      time.Time             `json:"created_at"`
	IssuedAt       *time.Time            `json:"issued_at,omitempty"`
}

func New(id string, b pricing.Breakdown, services []pricing.ServiceLine, p *promo.Promotion, now time.Time) *Invoice {
	//nolint:exhaustruct
	inv := &Invoice{
		ID:           id,
		RatePerNight: b.RatePerNight,
		Nights:       b.Nights,
		RoomCount:    b.RoomCount,
		Services:     slices.Clone(services),
		Discount:     b.Discount,
		CreatedAt:    now,
	}

	if p != nil {
		promotion := *p
		inv.Promotion = &promotion
	}

	inv.Recalculate()

	return inv
}

func (inv *Invoice) expectedRoomCharge() int64 {
	return inv.RatePerNight * int64(inv.Nights) * int64(inv.RoomCount)
}

func (inv *Invoice) expectedDiscount(room, service int64) int64 {
	if inv.Promotion != nil {
		return promo.DiscountFor(*inv.Promotion, room+service)
	}

	return clampDiscount(inv.Discount, room+service)
}

func (inv *Invoice) expectedTotal(room, service int64) int64 {
	discount := inv.expectedDiscount(room, service)

	total := room + service - discount + inv.LateFee
	if total < 0 {
		return 0
	}

	return total
}

func clampDiscount(discount, base int64) int64 {
	if discount < 0 {
		return 0
	}

	if discount > base {
		return base
	}

	return discount
}

// Recalculate derives every cached amount and the status from the components.
func (inv *Invoice) Recalculate() {
	inv.RoomCharge = inv.expectedRoomCharge()
	inv.ServiceCharge = pricing.ServiceSubtotal(inv.Services)
	inv.Discount = inv.expectedDiscount(inv.RoomCharge, inv.ServiceCharge)
	inv.Total = inv.expectedTotal(inv.RoomCharge, inv.ServiceCharge)
	inv.refreshStatus()
}

func (inv *Invoice) refreshStatus() {
	paid := inv.Payments.AmountPaid()

	switch {
	case paid >= inv.Total:
		inv.Status = StatusPaid
	case paid > 0:
		inv.Status = StatusPartiallyPaid
	default:
		inv.Status = StatusUnpaid
	}
}

// Reconcile repairs records whose cached charges drifted from their components, typically
// legacy rows where the late fee was folded into the room charge and then added again.
// It reports whether anything beyond tolerance was corrected.
func (inv *Invoice) Reconcile(tolerance int64) bool {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	room := inv.expectedRoomCharge()
	service := pricing.ServiceSubtotal(inv.Services)
	total := inv.expectedTotal(room, service)

	corrected := abs(inv.RoomCharge-room) >= tolerance ||
		abs(inv.ServiceCharge-service) >= tolerance ||
		abs(inv.Discount-inv.expectedDiscount(room, service)) >= tolerance ||
		abs(inv.Total-total) >= tolerance

	if corrected {
		inv.Recalculate()

		return true
	}

	inv.refreshStatus()

	return false
}

func (inv *Invoice) AmountPaid() int64 {
	return inv.Payments.AmountPaid()
}

func (inv *Invoice) Remaining() int64 {
	return inv.Payments.Remaining(inv.Total)
}

func (inv *Invoice) AddService(line pricing.ServiceLine) {
	for i := range inv.Services {
		if inv.Services[i].ServiceID == line.ServiceID && inv.Services[i].UnitPrice == line.UnitPrice {
			inv.Services[i].Quantity += line.Quantity
			inv.Recalculate()

			return
		}
	}

	inv.Services = append(inv.Services, line)
	inv.Recalculate()
}

// ApplyLateFee folds the fee in once; later calls leave the invoice untouched.
func (inv *Invoice) ApplyLateFee(fee int64, hours int) bool {
	if inv.LateFeeApplied {
		return false
	}

	inv.LateFee = fee
	inv.LateHours = hours
	inv.LateFeeApplied = true
	inv.Recalculate()

	return true
}

func (inv *Invoice) Clone() *Invoice {
	if inv == nil {
		return nil
	}

	c := *inv
	c.Services = slices.Clone(inv.Services)
	c.Payments = ledger.New(inv.Payments.Entries()...)

	if inv.Promotion != nil {
		p := *inv.Promotion
		c.Promotion = &p
	}

	if inv.IssuedAt != nil {
		issued := *inv.IssuedAt
		c.IssuedAt = &issued
	}

	return &c
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}

	return v
}
