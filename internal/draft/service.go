package draft

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
)

const (
	lockStripes         = 64
	defaultMatchTimeout = 5 * time.Second
)

type roomSource interface {
	GetRoom(ctx context.Context, roomID string) (*pricing.Room, error)
	GetPromotionsForRoom(ctx context.Context, roomID string) ([]promo.Promotion, error)
}

type Config struct {
	Location     *time.Location
	MatchTimeout time.Duration
	Now          func() time.Time
}

type Service struct {
	l     *logger.Logger
	store Store
	rooms roomSource
	conf  Config
	locks [lockStripes]sync.Mutex
}

func NewService(l *logger.Logger, store Store, rooms roomSource, conf Config) *Service {
	if conf.Location == nil {
		conf.Location = time.Local
	}

	if conf.MatchTimeout <= 0 {
		conf.MatchTimeout = defaultMatchTimeout
	}

	if conf.Now == nil {
		conf.Now = time.Now
	}

	//nolint:exhaustruct
	return &Service{
		l:     l,
		store: store,
		rooms: rooms,
		conf:  conf,
	}
}

func (s *Service) lock(sessionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))

	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()

	return mu.Unlock
}

// load returns the stored draft or a fresh default one for a new session.
func (s *Service) load(ctx context.Context, sessionID string) (Draft, error) {
	d, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return Reset(s.conf.Now(), s.conf.Location), nil
	}

	if err != nil {
		return Draft{}, fmt.Errorf("get draft %v: %w", sessionID, err)
	}

	return d, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (Draft, error) {
	return s.load(ctx, sessionID)
}

func (s *Service) Reset(ctx context.Context, sessionID string) (Draft, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	d := Reset(s.conf.Now(), s.conf.Location)

	if err := s.store.Save(ctx, sessionID, d); err != nil {
		return Draft{}, fmt.Errorf("save draft %v: %w", sessionID, err)
	}

	return d, nil
}

// Update saves the merged draft and returns it straight away. When the room changed and the
// caller did not pick a promotion, a Task looking for one is started in the background;
// the returned Task is nil otherwise.
func (s *Service) Update(ctx context.Context, sessionID string, p Patch) (Draft, *Task, error) {
	unlock := s.lock(sessionID)

	current, err := s.load(ctx, sessionID)
	if err != nil {
		unlock()

		return Draft{}, nil, err
	}

	next := Update(current, p, s.conf.Location)
	roomChanged := next.RoomID != current.RoomID

	if roomChanged && next.Room != nil && next.Room.Category == "" {
		room, err := s.rooms.GetRoom(ctx, next.RoomID)
		if err != nil {
			unlock()

			return Draft{}, nil, fmt.Errorf("get room %v: %w", next.RoomID, err)
		}

		next.Room = room
	}

	if err := s.store.Save(ctx, sessionID, next); err != nil {
		unlock()

		return Draft{}, nil, fmt.Errorf("save draft %v: %w", sessionID, err)
	}

	unlock()

	if !roomChanged || next.RoomID == "" || p.Promo != nil {
		return next, nil, nil
	}

	return next, s.startMatch(ctx, sessionID), nil
}

func (s *Service) startMatch(ctx context.Context, sessionID string) *Task {
	t := newTask()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.conf.MatchTimeout)

	go func() {
		defer cancel()

		d, applied := s.MatchPromotion(ctx, sessionID)
		t.finish(d, applied)
	}()

	return t
}

// MatchPromotion attaches the first matching promotion of the draft's room. Lookup failures
// are logged and swallowed. A match is discarded when the room changed meanwhile or a
// promotion is already attached.
func (s *Service) MatchPromotion(ctx context.Context, sessionID string) (Draft, bool) {
	l := s.l.WithField("session_id", sessionID)

	d, err := s.load(ctx, sessionID)
	if err != nil {
		l.LogWarnf("Could not load draft for promotion matching: %v", err.Error())

		return Draft{}, false
	}

	if d.RoomID == "" || d.Promo != nil {
		return d, false
	}

	roomID := d.RoomID

	candidates, err := s.rooms.GetPromotionsForRoom(ctx, roomID)
	if err != nil {
		l.LogWarnf("Could not fetch promotions for room %v: %v", roomID, err.Error())

		return d, false
	}

	category := ""
	if d.Room != nil {
		category = d.Room.Category
	}

	match, ok := promo.Match(candidates, d.Window(), category)
	if !ok {
		return d, false
	}

	unlock := s.lock(sessionID)
	defer unlock()

	current, err := s.load(ctx, sessionID)
	if err != nil {
		l.LogWarnf("Could not reload draft for promotion matching: %v", err.Error())

		return d, false
	}

	if current.RoomID != roomID || current.Promo != nil {
		l.LogDebugf("Discarding promotion %v matched for a stale draft", match.ID)

		return current, false
	}

	//nolint:exhaustruct
	next := Update(current, Patch{Promo: &match}, s.conf.Location)
	if next.Promo == nil {
		return current, false
	}

	if err := s.store.Save(ctx, sessionID, next); err != nil {
		l.LogWarnf("Could not save matched promotion %v: %v", match.ID, err.Error())

		return current, false
	}

	return next, true
}

// Task is a background promotion match the caller may wait for or ignore.
type Task struct {
	done    chan struct{}
	draft   Draft
	applied bool
}

func newTask() *Task {
	//nolint:exhaustruct
	return &Task{done: make(chan struct{})}
}

func (t *Task) finish(d Draft, applied bool) {
	t.draft = d
	t.applied = applied
	close(t.done)
}

// Wait blocks until the task finishes or ctx is done. The bool reports whether a promotion
// was attached.
func (t *Task) Wait(ctx context.Context) (Draft, bool) {
	select {
	case <-t.done:
		return t.draft, t.applied
	case <-ctx.Done():
		return Draft{}, false
	}
}
