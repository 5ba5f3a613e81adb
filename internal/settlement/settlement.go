package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/document"
	"github.com/avstrong/hotel/internal/invoice"
	"github.com/avstrong/hotel/internal/latefee"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/stay"
	"github.com/avstrong/hotel/internal/validation"
)

type idGenerator interface {
	GetID(ctx context.Context) (string, error)
}

type storageReader interface {
	GetBooking(ctx context.Context, bookingID string) (*Booking, error)
	GetBookingByIdempotencyKey(ctx context.Context) (*Booking, error)
	ListBookingsByStatus(ctx context.Context, statuses ...Status) ([]*Booking, error)
}

type storageWriter interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	SaveBooking(ctx context.Context, booking *Booking) error
	SaveEvent(ctx context.Context, event *Event) error
}

type storage interface {
	storageReader
	storageWriter
}

type quoter interface {
	Quote(ctx context.Context, in pricing.QuoteInput) (*pricing.Quote, error)
	ServiceLines(ctx context.Context, selections []pricing.Selection) ([]pricing.ServiceLine, error)
}

type renderer interface {
	Render(in document.Input) ([]byte, error)
}

type archive interface {
	Put(ctx context.Context, key string, body []byte) error
}

type observer interface {
	CheckoutConfirmed(lateFee int64)
	PaymentRecorded(method string, amount int64)
	PaymentRejected(reason string)
	InvoiceCorrected()
	DocumentGenerated()
}

type Config struct {
	LateFee             latefee.Policy
	CorrectionTolerance int64
	CheckoutHour        int
	Location            *time.Location
}

type Option func(m *Manager)

func WithArchive(a archive) Option {
	return func(m *Manager) { m.archive = a }
}

func WithObserver(o observer) Option {
	return func(m *Manager) { m.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type Manager struct {
	l           *logger.Logger
	storage     storage
	idGenerator idGenerator
	quoter      quoter
	renderer    renderer
	archive     archive
	observer    observer
	conf        Config
	locks       *keyedMutex
	now         func() time.Time
}

func New(
	l *logger.Logger,
	storage storage,
	idGenerator idGenerator,
	quoter quoter,
	renderer renderer,
	conf Config,
	opts ...Option,
) *Manager {
	if conf.Location == nil {
		conf.Location = time.Local
	}

	if conf.CorrectionTolerance <= 0 {
		conf.CorrectionTolerance = invoice.DefaultTolerance
	}

	//nolint:exhaustruct
	m := &Manager{
		l:           l,
		storage:     storage,
		idGenerator: idGenerator,
		quoter:      quoter,
		renderer:    renderer,
		observer:    nopObserver{},
		conf:        conf,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (b *BookInput) validate() error {
	return validation.Struct(b) //nolint:wrapcheck
}

// inTransaction runs fn in a storage transaction, rolling back on error or panic.
func (m *Manager) inTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, err = m.storage.BeginTransaction(ctx, "READ COMMITTED")
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := m.storage.RollbackTransaction(ctx); rbErr != nil {
				m.l.LogErrorf("Could not rollback settlement transaction after panic %v", p)
			}

			m.l.LogInfo("Transaction has been roll backed after panic")

			panic(p)
		}

		if err != nil {
			if rbErr := m.storage.RollbackTransaction(ctx); rbErr != nil {
				m.l.LogErrorf("Could not rollback settlement transaction after error %v", rbErr.Error())
			}

			m.l.LogDebugf("Transaction has been roll backed after error")

			return
		}

		if err = m.storage.CommitTransaction(ctx); err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
		}
	}()

	return fn(ctx)
}

func (m *Manager) buildEvent(ctx context.Context, bookingID string, kind EventKind, payload string) (*Event, error) {
	id, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next id from generator: %w", err)
	}

	return &Event{
		ID:        id,
		BookingID: bookingID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: m.now().UTC(),
	}, nil
}

// save persists b together with one audit event per kind.
func (m *Manager) save(ctx context.Context, b *Booking, kinds []EventKind, payload string) error {
	b.UpdatedAt = m.now().UTC()

	if err := m.storage.SaveBooking(ctx, b); err != nil {
		return fmt.Errorf("save booking %v to storage: %w", b.ID, err)
	}

	for _, kind := range kinds {
		event, err := m.buildEvent(ctx, b.ID, kind, payload)
		if err != nil {
			return fmt.Errorf("build %v event: %w", kind, err)
		}

		if err := m.storage.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("save %v event to storage: %w", kind, err)
		}
	}

	return nil
}

func (m *Manager) load(ctx context.Context, bookingID string) (*Booking, error) {
	b, err := m.storage.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking %v: %w", bookingID, err)
	}

	if b.Invoice == nil {
		return nil, fmt.Errorf("booking %v has no invoice: %w", bookingID, apperr.ErrNotFound)
	}

	return b, nil
}

// reconcile applies the invoice correction rule and keeps the booking state in line with
// the corrected invoice. It reports whether b has to be written back.
func (m *Manager) reconcile(b *Booking) bool {
	before := b.Invoice.Total

	corrected := b.Invoice.Reconcile(m.conf.CorrectionTolerance)
	if corrected {
		m.l.WithField("booking_id", b.ID).LogWarnf(
			"Invoice %v total corrected from %d to %d",
			b.Invoice.ID,
			before,
			b.Invoice.Total,
		)
		m.observer.InvoiceCorrected()
	}

	switch {
	case b.Status == StatusCheckoutConfirmed && b.Invoice.Status == invoice.StatusPaid:
		b.Status = StatusSettled

		return true
	case b.Status == StatusSettled && b.Invoice.Status != invoice.StatusPaid:
		b.Status = StatusCheckoutConfirmed

		return true
	}

	return corrected
}

func (m *Manager) CreateBooking(ctx context.Context, input *BookInput) (_ *Booking, err error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	key, ok := IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, apperr.ErrIdempotencyKey
	}

	unlock := m.locks.Lock("idempotency:" + key)
	defer unlock()

	existing, err := m.storage.GetBookingByIdempotencyKey(ctx)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("get booking by idempotency key: %w", err)
	}

	if err == nil {
		return existing, nil
	}

	quote, err := m.quoter.Quote(ctx, pricing.QuoteInput{
		RoomID:    input.RoomID,
		Window:    input.Window,
		RoomCount: input.RoomCount,
		Services:  input.Services,
		Promo:     input.Promo,
		Override:  input.Override,
	})
	if err != nil {
		return nil, fmt.Errorf("quote booking: %w", err)
	}

	if quote.PromoDropped {
		return nil, apperr.NewStaleDataError("promotion", "it no longer applies to the selected dates")
	}

	if quote.Breakdown.AmountDue() > quote.Breakdown.GrandTotal {
		inputErr := apperr.NewValidationError()
		inputErr.Add("override", "override must not exceed the computed total")

		return nil, inputErr.WithRemaining(quote.Breakdown.GrandTotal)
	}

	b, err := m.buildBooking(ctx, input, quote, key)
	if err != nil {
		return nil, err
	}

	err = m.inTransaction(ctx, func(ctx context.Context) error {
		kinds := []EventKind{EventBookingCreated}
		if b.Invoice.Payments.Len() > 0 {
			kinds = append(kinds, EventPaymentRecorded)
		}

		return m.save(ctx, b, kinds, "")
	})
	if errors.Is(err, apperr.ErrDuplicate) {
		// Another instance stored a booking under the same key first.
		existing, getErr := m.storage.GetBookingByIdempotencyKey(ctx)
		if getErr != nil {
			return nil, fmt.Errorf("get booking by idempotency key after duplicate: %w", getErr)
		}

		m.l.WithField("idempotency_key", key).LogInfo("Booking %v already exists, replaying it", existing.ID)

		return existing, nil
	}

	if err != nil {
		return nil, err
	}

	for _, p := range b.Invoice.Payments.Entries() {
		m.observer.PaymentRecorded(string(p.Method), p.Amount)
	}

	return b.Clone(), nil
}

func (m *Manager) buildBooking(ctx context.Context, input *BookInput, quote *pricing.Quote, key string) (*Booking, error) {
	bookingID, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next id from generator: %w", err)
	}

	invoiceID, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next id from generator: %w", err)
	}

	now := m.now().UTC()

	b := &Booking{
		ID:               bookingID,
		RoomID:           quote.Room.ID,
		Category:         quote.Room.Category,
		Guest:            input.Guest,
		Guests:           input.Guests,
		RoomCount:        input.RoomCount,
		Window:           quote.Window,
		ExpectedCheckout: m.expectedCheckout(quote.Window),
		Status:           StatusConfirmed,
		Breakdown:        quote.Breakdown,
		Promo:            quote.Promo,
		Invoice:          invoice.New(invoiceID, quote.Breakdown, quote.Services, quote.Promo, now),
		IdempotencyKey:   key,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// The ledger never takes more than the invoice total.
	prepayment := min(quote.Breakdown.AmountDue(), b.Invoice.Remaining())

	if input.Prepayment != nil && prepayment > 0 {
		paymentID, err := m.idGenerator.GetID(ctx)
		if err != nil {
			return nil, fmt.Errorf("get next id from generator: %w", err)
		}

		b.Invoice.Payments, err = b.Invoice.Payments.Append(ledger.Payment{
			ID:        paymentID,
			Method:    *input.Prepayment,
			Amount:    prepayment,
			Timestamp: now,
			Status:    ledger.StatusSuccess,
			Note:      "prepayment at booking",
		})
		if err != nil {
			return nil, fmt.Errorf("append prepayment: %w", err)
		}

		b.Invoice.Recalculate()
	}

	return b, nil
}

func (m *Manager) expectedCheckout(w stay.Window) time.Time {
	return stay.DayStart(w.CheckOut, m.conf.Location).Add(time.Duration(m.conf.CheckoutHour) * time.Hour)
}

// transition moves a booking from one of the allowed states, persisting fn's changes.
func (m *Manager) transition(
	ctx context.Context,
	bookingID string,
	action string,
	from []Status,
	kind EventKind,
	fn func(b *Booking) error,
) (*Booking, error) {
	unlock := m.locks.Lock(bookingID)
	defer unlock()

	var out *Booking

	err := m.inTransaction(ctx, func(ctx context.Context) error {
		b, err := m.load(ctx, bookingID)
		if err != nil {
			return err
		}

		if !oneOf(b.Status, from) {
			return apperr.NewStateConflictError(b.ID, string(b.Status), action)
		}

		if err := fn(b); err != nil {
			return err
		}

		if err := m.save(ctx, b, []EventKind{kind}, ""); err != nil {
			return err
		}

		out = b

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out.Clone(), nil
}

func (m *Manager) CheckIn(ctx context.Context, bookingID string) (*Booking, error) {
	return m.transition(ctx, bookingID, "check in", []Status{StatusConfirmed}, EventCheckedIn, func(b *Booking) error {
		b.Status = StatusCheckedIn

		return nil
	})
}

func (m *Manager) Cancel(ctx context.Context, bookingID string) (*Booking, error) {
	return m.transition(ctx, bookingID, "cancel", []Status{StatusConfirmed}, EventCancelled, func(b *Booking) error {
		b.Status = StatusCancelled

		return nil
	})
}

// AddService charges an extra service while the invoice is still open.
func (m *Manager) AddService(ctx context.Context, bookingID string, sel pricing.Selection) (*Booking, error) {
	if err := validation.Struct(sel); err != nil {
		return nil, err //nolint:wrapcheck
	}

	lines, err := m.quoter.ServiceLines(ctx, []pricing.Selection{sel})
	if err != nil {
		return nil, fmt.Errorf("resolve service: %w", err)
	}

	from := []Status{StatusConfirmed, StatusCheckedIn}

	return m.transition(ctx, bookingID, "add service", from, EventServiceAdded, func(b *Booking) error {
		b.Invoice.AddService(lines[0])

		return nil
	})
}

func oneOf(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}

	return false
}

type nopObserver struct{}

func (nopObserver) CheckoutConfirmed(int64)       {}
func (nopObserver) PaymentRecorded(string, int64) {}
func (nopObserver) PaymentRejected(string)        {}
func (nopObserver) InvoiceCorrected()             {}
func (nopObserver) DocumentGenerated()            {}
