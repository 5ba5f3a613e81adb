package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/avstrong/hotel/internal/settlement"
)

type Config struct {
	L *logger.Logger
}

type DB struct {
	mu                     sync.Mutex
	l                      *logger.Logger
	rooms                  map[string]*pricing.Room
	services               map[string]*pricing.Service
	promotions             map[string][]promo.Promotion
	bookings               map[string]*settlement.Booking
	events                 []*settlement.Event
	transactions           map[string]*transaction
	nextTrxID              int64
	bookingIdempotencyKeys map[string]string
}

func New(conf Config) *DB {
	//nolint:exhaustruct
	return &DB{
		l:                      conf.L,
		rooms:                  make(map[string]*pricing.Room),
		services:               make(map[string]*pricing.Service),
		promotions:             make(map[string][]promo.Promotion),
		bookings:               make(map[string]*settlement.Booking),
		transactions:           make(map[string]*transaction),
		bookingIdempotencyKeys: make(map[string]string),
	}
}

func (db *DB) SaveBooking(ctx context.Context, b *settlement.Booking) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	if id, taken := db.bookingIdempotencyKeys[b.IdempotencyKey]; taken && b.IdempotencyKey != "" && id != b.ID {
		return fmt.Errorf("booking %v idempotency key %v: %w", b.ID, b.IdempotencyKey, apperr.ErrDuplicate)
	}

	trx.bookingModifications[b.ID] = b.Clone()

	return nil
}

func (db *DB) SaveEvent(ctx context.Context, event *settlement.Event) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	e := *event
	trx.eventModifications = append(trx.eventModifications, &e)

	return nil
}

func (db *DB) GetBooking(ctx context.Context, bookingID string) (*settlement.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if trx, err := db.transaction(ctx); err == nil {
		if b, ok := trx.bookingModifications[bookingID]; ok {
			return b.Clone(), nil
		}
	}

	b, ok := db.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("booking %v: %w", bookingID, apperr.ErrNotFound)
	}

	return b.Clone(), nil
}

func (db *DB) GetBookingByIdempotencyKey(ctx context.Context) (*settlement.Booking, error) {
	key, ok := settlement.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, apperr.ErrIdempotencyKey
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	id, exists := db.bookingIdempotencyKeys[key]
	if !exists {
		return nil, apperr.ErrNotFound
	}

	return db.bookings[id].Clone(), nil
}

func (db *DB) ListBookingsByStatus(_ context.Context, statuses ...settlement.Status) ([]*settlement.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	wanted := make(map[settlement.Status]struct{}, len(statuses))
	for _, s := range statuses {
		wanted[s] = struct{}{}
	}

	result := make([]*settlement.Booking, 0)

	for _, b := range db.bookings {
		if _, ok := wanted[b.Status]; ok {
			result = append(result, b.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExpectedCheckout.Equal(result[j].ExpectedCheckout) {
			return result[i].ID < result[j].ID
		}

		return result[i].ExpectedCheckout.Before(result[j].ExpectedCheckout)
	})

	return result, nil
}

// Events returns the committed audit trail of one booking in write order.
func (db *DB) Events(_ context.Context, bookingID string) ([]settlement.Event, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var result []settlement.Event

	for _, e := range db.events {
		if e.BookingID == bookingID {
			result = append(result, *e)
		}
	}

	return result, nil
}

func (db *DB) SaveRoom(_ context.Context, room pricing.Room) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.rooms[room.ID] = &room

	return nil
}

func (db *DB) SaveService(_ context.Context, service pricing.Service) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.services[service.ID] = &service

	return nil
}

// SavePromotion attaches p to a room; an existing promotion with the same id is replaced.
func (db *DB) SavePromotion(_ context.Context, roomID string, p promo.Promotion) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	list := db.promotions[roomID]
	for i := range list {
		if list[i].ID == p.ID {
			list[i] = p

			return nil
		}
	}

	db.promotions[roomID] = append(list, p)

	return nil
}

func (db *DB) GetRoom(_ context.Context, roomID string) (*pricing.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	room, ok := db.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %v: %w", roomID, apperr.ErrNotFound)
	}

	r := *room

	return &r, nil
}

func (db *DB) GetService(_ context.Context, serviceID string) (*pricing.Service, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	service, ok := db.services[serviceID]
	if !ok {
		return nil, fmt.Errorf("service %v: %w", serviceID, apperr.ErrNotFound)
	}

	s := *service

	return &s, nil
}

func (db *DB) ListRooms(_ context.Context) ([]pricing.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]pricing.Room, 0, len(db.rooms))
	for _, r := range db.rooms {
		result = append(result, *r)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

func (db *DB) GetPromotionsForRoom(_ context.Context, roomID string) ([]promo.Promotion, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.rooms[roomID]; !ok {
		return nil, fmt.Errorf("room %v: %w", roomID, apperr.ErrNotFound)
	}

	return append([]promo.Promotion(nil), db.promotions[roomID]...), nil
}
