package draft

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRooms struct {
	mu         sync.Mutex
	rooms      map[string]pricing.Room
	promotions map[string][]promo.Promotion
	err        error
	gate       chan struct{}
}

func (f *fakeRooms) GetRoom(_ context.Context, roomID string) (*pricing.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	room, ok := f.rooms[roomID]
	if !ok {
		return nil, apperr.ErrNotFound
	}

	return &room, nil
}

func (f *fakeRooms) GetPromotionsForRoom(ctx context.Context, roomID string) ([]promo.Promotion, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	return f.promotions[roomID], nil
}

func newService(rooms *fakeRooms) *Service {
	return NewService(logger.Discard(), NewMemoryStore(), rooms, Config{
		Location: time.UTC,
		Now:      func() time.Time { return day(time.June, 2) },
	})
}

func testRooms() *fakeRooms {
	return &fakeRooms{
		rooms: map[string]pricing.Room{
			"r1": {ID: "r1", Category: "Deluxe", RatePerNight: 1000000},
			"r2": {ID: "r2", Category: "Standard", RatePerNight: 500000},
		},
		promotions: map[string][]promo.Promotion{
			"r1": {
				{ID: "suite-only", Kind: promo.KindPercent, Value: 20, Condition: "Suite", Status: promo.StatusActive},
				*juneFirstToTenth(),
			},
		},
	}
}

func TestUpdateAutoAppliesPromotion(t *testing.T) {
	s := newService(testRooms())
	ctx := context.Background()

	d, task, err := s.Update(ctx, "s1", Patch{RoomID: ptr("r1")})
	require.NoError(t, err)
	assert.Nil(t, d.Promo)
	assert.Equal(t, "Deluxe", d.Room.Category)
	require.NotNil(t, task)

	matched, applied := task.Wait(ctx)
	require.True(t, applied)
	assert.Equal(t, "june", matched.Promo.ID)

	stored, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "june", stored.Promo.ID)
}

func TestUpdateWithExplicitPromotionSkipsMatching(t *testing.T) {
	s := newService(testRooms())

	explicit := juneFirstToTenth()
	explicit.ID = "manual"

	d, task, err := s.Update(context.Background(), "s1", Patch{RoomID: ptr("r1"), Promo: explicit})
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.Equal(t, "manual", d.Promo.ID)
}

func TestMatchFailureIsSwallowed(t *testing.T) {
	rooms := testRooms()
	rooms.err = errors.New("backend down")
	s := newService(rooms)

	_, task, err := s.Update(context.Background(), "s1", Patch{RoomID: ptr("r1")})
	require.NoError(t, err)

	d, applied := task.Wait(context.Background())
	assert.False(t, applied)
	assert.Nil(t, d.Promo)
}

func TestStaleMatchIsDiscarded(t *testing.T) {
	rooms := testRooms()
	rooms.gate = make(chan struct{})
	s := newService(rooms)
	ctx := context.Background()

	_, task, err := s.Update(ctx, "s1", Patch{RoomID: ptr("r1")})
	require.NoError(t, err)

	_, second, err := s.Update(ctx, "s1", Patch{RoomID: ptr("r2")})
	require.NoError(t, err)

	close(rooms.gate)

	_, applied := task.Wait(ctx)
	assert.False(t, applied)

	_, applied = second.Wait(ctx)
	assert.False(t, applied)

	stored, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "r2", stored.RoomID)
	assert.Nil(t, stored.Promo)
}

func TestUpdateUnknownRoom(t *testing.T) {
	s := newService(testRooms())

	_, _, err := s.Update(context.Background(), "s1", Patch{RoomID: ptr("missing")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResetSession(t *testing.T) {
	s := newService(testRooms())
	ctx := context.Background()

	_, task, err := s.Update(ctx, "s1", Patch{RoomID: ptr("r1"), Guests: ptr(5)})
	require.NoError(t, err)
	task.Wait(ctx)

	d, err := s.Reset(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, d.RoomID)
	assert.Equal(t, DefaultGuests, d.Guests)
	assert.Equal(t, "2025-06-02", d.CheckInDate)
}

func TestWaitHonoursContext(t *testing.T) {
	rooms := testRooms()
	rooms.gate = make(chan struct{})
	s := newService(rooms)

	_, task, err := s.Update(context.Background(), "s1", Patch{RoomID: ptr("r1")})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, applied := task.Wait(ctx)
	assert.False(t, applied)

	close(rooms.gate)
	task.Wait(context.Background())
}
