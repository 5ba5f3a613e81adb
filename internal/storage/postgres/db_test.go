package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/invoice"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/avstrong/hotel/internal/settlement"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run against a disposable database named by HOTEL_TEST_POSTGRES_DSN.
func newDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("HOTEL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HOTEL_TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()

	db, err := New(ctx, Config{L: logger.Discard(), DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))

	t.Cleanup(db.Close)

	return db
}

func TestCatalogRoundTrip(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	roomID := "room-" + uuid.NewString()

	require.NoError(t, db.SaveRoom(ctx, pricing.Room{ID: roomID, Name: "101", Category: "Deluxe", RatePerNight: 1000000}))
	require.NoError(t, db.SavePromotion(ctx, roomID, promo.Promotion{ID: "b", Kind: promo.KindFixed, Value: 5}))
	require.NoError(t, db.SavePromotion(ctx, roomID, promo.Promotion{ID: "a", Kind: promo.KindPercent, Value: 10}))

	room, err := db.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, "Deluxe", room.Category)

	promos, err := db.GetPromotionsForRoom(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, promos, 2)
	assert.Equal(t, "b", promos[0].ID)

	_, err = db.GetRoom(ctx, "missing-"+roomID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBookingTransaction(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	key := uuid.NewString()
	inv := invoice.New("inv-"+key, pricing.Breakdown{Nights: 1, RatePerNight: 100, RoomCount: 1}, nil, nil, now)
	inv.Payments = ledger.New(ledger.Payment{ID: "p1", Method: ledger.MethodCash, Amount: 40, Status: ledger.StatusSuccess})
	inv.Recalculate()

	b := &settlement.Booking{
		ID:               "b-" + key,
		Status:           settlement.StatusCheckoutConfirmed,
		ExpectedCheckout: now,
		Invoice:          inv,
		IdempotencyKey:   key,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	trxCtx, err := db.BeginTransaction(ctx, "READ COMMITTED")
	require.NoError(t, err)
	require.NoError(t, db.SaveBooking(trxCtx, b))
	require.NoError(t, db.SaveEvent(trxCtx, &settlement.Event{
		ID: "e-" + key, BookingID: b.ID, Kind: settlement.EventBookingCreated, CreatedAt: now,
	}))
	require.NoError(t, db.CommitTransaction(trxCtx))

	got, err := db.GetBookingByIdempotencyKey(settlement.NewContextWithIdempotencyKey(ctx, key))
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.EqualValues(t, 60, got.Invoice.Remaining())
	assert.Equal(t, invoice.StatusPartiallyPaid, got.Invoice.Status)

	trxCtx, err = db.BeginTransaction(ctx, "READ COMMITTED")
	require.NoError(t, err)

	locked, err := db.GetBooking(trxCtx, b.ID)
	require.NoError(t, err)

	locked.Status = settlement.StatusCancelled
	require.NoError(t, db.SaveBooking(trxCtx, locked))
	require.NoError(t, db.RollbackTransaction(trxCtx))

	got, err = db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, settlement.StatusCheckoutConfirmed, got.Status)

	events, err := db.Events(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, settlement.EventBookingCreated, events[0].Kind)
}

func TestDuplicateIdempotencyKey(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	key := uuid.NewString()

	save := func(id string) error {
		trxCtx, err := db.BeginTransaction(ctx, "READ COMMITTED")
		require.NoError(t, err)

		b := &settlement.Booking{
			ID:               id,
			Status:           settlement.StatusConfirmed,
			ExpectedCheckout: now,
			Invoice:          invoice.New("inv-"+id, pricing.Breakdown{Nights: 1, RatePerNight: 100, RoomCount: 1}, nil, nil, now),
			IdempotencyKey:   key,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := db.SaveBooking(trxCtx, b); err != nil {
			require.NoError(t, db.RollbackTransaction(trxCtx))

			return err
		}

		return db.CommitTransaction(trxCtx)
	}

	require.NoError(t, save("b1-"+key))
	require.ErrorIs(t, save("b2-"+key), apperr.ErrDuplicate)
}
