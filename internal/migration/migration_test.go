package migration

import (
	"context"
	"testing"
	"time"

	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/avstrong/hotel/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpSeedsCatalog(t *testing.T) {
	ctx := context.Background()
	l := logger.Discard()
	db := memory.New(memory.Config{L: l})
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, Up(ctx, l, db, now, time.UTC))

	rooms, err := db.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 3)

	deluxe, err := db.GetPromotionsForRoom(ctx, "r-101")
	require.NoError(t, err)
	require.Len(t, deluxe, 1)
	assert.Equal(t, promo.KindPercent, deluxe[0].Kind)
	assert.InDelta(t, 10, deluxe[0].Value, 0)
	assert.Equal(t, "Deluxe", deluxe[0].Condition)

	standard, err := db.GetPromotionsForRoom(ctx, "r-102")
	require.NoError(t, err)
	require.Len(t, standard, 1)
	assert.Equal(t, promo.KindFixed, standard[0].Kind)
	assert.InDelta(t, 100000, standard[0].Value, 0)

	suite, err := db.GetPromotionsForRoom(ctx, "r-201")
	require.NoError(t, err)
	require.Len(t, suite, 1)
	assert.Equal(t, promo.StatusInactive, suite[0].Status)

	require.NoError(t, Up(ctx, l, db, now, time.UTC))

	deluxe, err = db.GetPromotionsForRoom(ctx, "r-101")
	require.NoError(t, err)
	assert.Len(t, deluxe, 1)
}
