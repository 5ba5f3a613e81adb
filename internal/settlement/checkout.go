package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/document"
	"github.com/avstrong/hotel/internal/invoice"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/validation"
)

// ConfirmCheckout folds the late fee into the invoice exactly once. Calling it again on a
// booking that is already past checkout returns the stored booking untouched.
func (m *Manager) ConfirmCheckout(ctx context.Context, bookingID string, actual time.Time) (*Booking, error) {
	unlock := m.locks.Lock(bookingID)
	defer unlock()

	var (
		out     *Booking
		lateFee int64
		applied bool
	)

	err := m.inTransaction(ctx, func(ctx context.Context) error {
		b, err := m.load(ctx, bookingID)
		if err != nil {
			return err
		}

		kinds := make([]EventKind, 0, 2) //nolint:gomnd
		if m.reconcile(b) {
			kinds = append(kinds, EventInvoiceCorrected)
		}

		switch b.Status {
		case StatusCheckoutConfirmed, StatusSettled, StatusInvoiced:
			out = b

			if len(kinds) == 0 {
				return nil
			}

			return m.save(ctx, b, kinds, "")
		case StatusCheckedIn:
		default:
			return apperr.NewStateConflictError(b.ID, string(b.Status), "confirm checkout")
		}

		res := m.conf.LateFee.Compute(b.ExpectedCheckout, actual, b.Invoice.RatePerNight)

		applied = b.Invoice.ApplyLateFee(res.Fee, res.HoursLate)
		lateFee = res.Fee

		actual := actual.UTC()
		b.ActualCheckout = &actual
		b.Status = StatusCheckoutConfirmed

		if b.Invoice.Status == invoice.StatusPaid {
			b.Status = StatusSettled
		}

		payload := fmt.Sprintf(`{"hours_late":%d,"late_fee":%d}`, res.HoursLate, res.Fee)
		if err := m.save(ctx, b, append(kinds, EventCheckoutConfirmed), payload); err != nil {
			return err
		}

		out = b

		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		m.observer.CheckoutConfirmed(lateFee)
	}

	return out.Clone(), nil
}

func (in *PaymentInput) validate() error {
	return validation.Struct(in) //nolint:wrapcheck
}

// RecordPayment accepts a payment against the remaining balance read inside the same
// locked transaction, so concurrent payments can never add up to more than the total.
// A retry carrying an already used idempotency key returns the original receipt.
func (m *Manager) RecordPayment(ctx context.Context, bookingID string, in PaymentInput) (*Receipt, error) {
	if err := in.validate(); err != nil {
		m.observer.PaymentRejected("invalid_method")

		return nil, err
	}

	key, _ := IdempotencyKeyFromContext(ctx)

	unlock := m.locks.Lock(bookingID)
	defer unlock()

	var receipt *Receipt

	err := m.inTransaction(ctx, func(ctx context.Context) error {
		b, err := m.load(ctx, bookingID)
		if err != nil {
			return err
		}

		kinds := make([]EventKind, 0, 2) //nolint:gomnd
		if m.reconcile(b) {
			kinds = append(kinds, EventInvoiceCorrected)
		}

		if p, ok := b.Invoice.Payments.FindByIdempotencyKey(key); ok {
			receipt = &Receipt{Booking: b, Payment: p, Remaining: b.Invoice.Remaining(), Replayed: true}

			if len(kinds) == 0 {
				return nil
			}

			return m.save(ctx, b, kinds, "")
		}

		if b.Status != StatusCheckoutConfirmed && b.Status != StatusSettled {
			m.observer.PaymentRejected("state_conflict")

			return apperr.NewStateConflictError(b.ID, string(b.Status), "record payment")
		}

		remaining := b.Invoice.Remaining()
		if in.Amount <= 0 || in.Amount > remaining {
			m.observer.PaymentRejected("invalid_amount")

			inputErr := apperr.NewValidationError()
			inputErr.Add("amount", fmt.Sprintf("amount must be within (0, %d]", remaining))

			return inputErr.WithRemaining(remaining).WithCause(apperr.ErrInvalidPaymentAmount)
		}

		paymentID, err := m.idGenerator.GetID(ctx)
		if err != nil {
			return fmt.Errorf("get next id from generator: %w", err)
		}

		p := ledger.Payment{
			ID:             paymentID,
			Method:         in.Method,
			Amount:         in.Amount,
			Timestamp:      m.now().UTC(),
			Status:         ledger.StatusSuccess,
			Note:           in.Note,
			IdempotencyKey: key,
		}

		if b.Invoice.Payments, err = b.Invoice.Payments.Append(p); err != nil {
			return fmt.Errorf("append payment: %w", err)
		}

		b.Invoice.Recalculate()

		if b.Invoice.Status == invoice.StatusPaid {
			b.Status = StatusSettled
		}

		payload := fmt.Sprintf(`{"payment_id":%q,"amount":%d}`, p.ID, p.Amount)
		if err := m.save(ctx, b, append(kinds, EventPaymentRecorded), payload); err != nil {
			return err
		}

		receipt = &Receipt{Booking: b, Payment: p, Remaining: b.Invoice.Remaining()}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if !receipt.Replayed {
		m.observer.PaymentRecorded(string(in.Method), in.Amount)
	}

	receipt.Booking = receipt.Booking.Clone()

	return receipt, nil
}

// GetInvoice returns the booking with its invoice reconciled; a correction is written back
// so the repair happens at most once per record.
func (m *Manager) GetInvoice(ctx context.Context, bookingID string) (*Booking, error) {
	unlock := m.locks.Lock(bookingID)
	defer unlock()

	var out *Booking

	err := m.inTransaction(ctx, func(ctx context.Context) error {
		b, err := m.load(ctx, bookingID)
		if err != nil {
			return err
		}

		out = b

		if !m.reconcile(b) {
			return nil
		}

		return m.save(ctx, b, []EventKind{EventInvoiceCorrected}, "")
	})
	if err != nil {
		return nil, err
	}

	return out.Clone(), nil
}

// GenerateInvoiceDocument renders the final invoice of a fully paid booking and moves it to
// invoiced. Asking again for an invoiced booking renders the same frozen snapshot.
func (m *Manager) GenerateInvoiceDocument(ctx context.Context, bookingID string) ([]byte, *Booking, error) {
	unlock := m.locks.Lock(bookingID)
	defer unlock()

	var (
		out    *Booking
		doc    []byte
		issued bool
	)

	err := m.inTransaction(ctx, func(ctx context.Context) error {
		b, err := m.load(ctx, bookingID)
		if err != nil {
			return err
		}

		kinds := make([]EventKind, 0, 2) //nolint:gomnd
		if m.reconcile(b) {
			kinds = append(kinds, EventInvoiceCorrected)
		}

		switch {
		case b.Status == StatusInvoiced:
		case b.Status == StatusSettled && b.Invoice.Status == invoice.StatusPaid:
			issuedAt := m.now().UTC()
			b.Invoice.IssuedAt = &issuedAt
			b.Status = StatusInvoiced
			kinds = append(kinds, EventInvoiceIssued)
			issued = true
		default:
			return apperr.NewStateConflictError(b.ID, string(b.Status), "generate invoice document")
		}

		if doc, err = m.renderer.Render(toDocumentInput(b)); err != nil {
			return fmt.Errorf("render invoice document: %w", err)
		}

		out = b

		if len(kinds) == 0 {
			return nil
		}

		return m.save(ctx, b, kinds, "")
	})
	if err != nil {
		return nil, nil, err
	}

	if issued {
		m.observer.DocumentGenerated()

		if m.archive != nil {
			key := fmt.Sprintf("%s/%s.xlsx", out.ID, out.Invoice.ID)
			if err := m.archive.Put(ctx, key, doc); err != nil {
				m.l.WithField("booking_id", out.ID).LogErrorf("Could not archive invoice document: %v", err.Error())
			}
		}
	}

	return doc, out.Clone(), nil
}

// PendingCheckouts lists bookings still on the operational desk. Invoiced bookings never
// appear here.
func (m *Manager) PendingCheckouts(ctx context.Context) ([]*Booking, error) {
	bookings, err := m.storage.ListBookingsByStatus(ctx, PendingStatuses...)
	if err != nil {
		return nil, fmt.Errorf("list pending checkouts: %w", err)
	}

	out := make([]*Booking, 0, len(bookings))

	for _, b := range bookings {
		if b.Invoice == nil {
			continue
		}

		m.reconcile(b)

		if b.Status == StatusInvoiced {
			continue
		}

		out = append(out, b)
	}

	return out, nil
}

func toDocumentInput(b *Booking) document.Input {
	in := document.Input{
		BookingID:        b.ID,
		GuestName:        b.Guest.Name,
		GuestEmail:       b.Guest.Email,
		RoomID:           b.RoomID,
		Category:         b.Category,
		CheckIn:          b.Window.CheckIn,
		CheckOut:         b.Window.CheckOut,
		ExpectedCheckout: b.ExpectedCheckout,
		Invoice:          *b.Invoice.Clone(),
	}

	if b.ActualCheckout != nil {
		in.ActualCheckout = *b.ActualCheckout
	}

	if b.Promo != nil {
		in.PromotionTitle = b.Promo.Title
	}

	return in
}
