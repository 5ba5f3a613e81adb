package settlement

import (
	"time"

	"github.com/avstrong/hotel/internal/invoice"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/avstrong/hotel/internal/stay"
)

type Status string

const (
	StatusConfirmed         Status = "confirmed"
	StatusCheckedIn         Status = "checked_in"
	StatusCheckoutConfirmed Status = "checkout_confirmed"
	StatusSettled           Status = "settled"
	StatusInvoiced          Status = "invoiced"
	StatusCancelled         Status = "cancelled"
)

// PendingStatuses are the states shown on the operational checkout list.
var PendingStatuses = []Status{StatusCheckedIn, StatusCheckoutConfirmed, StatusSettled}

type EventKind string

const (
	EventBookingCreated    EventKind = "booking_created"
	EventCheckedIn         EventKind = "checked_in"
	EventCancelled         EventKind = "cancelled"
	EventServiceAdded      EventKind = "service_added"
	EventCheckoutConfirmed EventKind = "checkout_confirmed"
	EventPaymentRecorded   EventKind = "payment_recorded"
	EventInvoiceCorrected  EventKind = "invoice_corrected"
	EventInvoiceIssued     EventKind = "invoice_issued"
)

type Guest struct {
	Name  string `json:"name"  validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone,omitempty"`
}

type Booking struct {
	ID               string            `json:"id"`
	RoomID           string            `json:"room_id"`
	Category         string            `json:"category"`
	Guest            Guest             `json:"guest"`
	Guests           int               `json:"guests"`
	RoomCount        int               `json:"room_count"`
	Window           stay.Window       `json:"window"`
	ExpectedCheckout time.Time         `json:"expected_checkout"`
	ActualCheckout   *time.Time        `json:"actual_checkout,omitempty"`
	Status           Status            `json:"status"`
	Breakdown        pricing.Breakdown `json:"breakdown"`
	Promo            *promo.Promotion  `json:"promo,omitempty"`
	Invoice          *invoice.Invoice  `json:"invoice"`
	IdempotencyKey   string            `json:"-"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}

	c := *b
	c.Invoice = b.Invoice.Clone()

	if b.ActualCheckout != nil {
		actual := *b.ActualCheckout
		c.ActualCheckout = &actual
	}

	if b.Promo != nil {
		p := *b.Promo
		c.Promo = &p
	}

	if b.Breakdown.Override != nil {
		override := *b.Breakdown.Override
		c.Breakdown.Override = &override
	}

	return &c
}

type Event struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	Kind      EventKind `json:"kind"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type BookInput struct {
	Guest      Guest               `json:"guest"`
	RoomID     string              `json:"room_id"                     validate:"required"`
	Window     stay.Window         `json:"window"`
	Guests     int                 `json:"guests"                      validate:"min=1"`
	RoomCount  int                 `json:"room_count"                  validate:"min=1"`
	Services   []pricing.Selection `json:"services"                    validate:"dive"`
	Promo      *promo.Promotion    `json:"promo,omitempty"`
	Override   *int64              `json:"override,omitempty"`
	Prepayment *ledger.Method      `json:"prepayment_method,omitempty" validate:"omitempty,payment_method"`
}

type PaymentInput struct {
	Method ledger.Method `json:"method" validate:"payment_method"`
	Amount int64         `json:"amount"`
	Note   string        `json:"note,omitempty"`
}

type Receipt struct {
	Booking   *Booking       `json:"booking"`
	Payment   ledger.Payment `json:"payment"`
	Remaining int64          `json:"remaining"`
	Replayed  bool           `json:"replayed"`
}
