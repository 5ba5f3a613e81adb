package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/avstrong/hotel/internal/apperr"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/pricing"
	"github.com/avstrong/hotel/internal/promo"
	"github.com/avstrong/hotel/internal/settlement"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrTransactionNotFoundInCtx = errors.New("no transaction found in ctx")

const uniqueViolation = "23505"

type Config struct {
	L   *logger.Logger
	DSN string
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type trxKey struct{}

type DB struct {
	l    *logger.Logger
	pool *pgxpool.Pool
}

func New(ctx context.Context, conf Config) (*DB, error) {
	pool, err := pgxpool.New(ctx, conf.DSN)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{l: conf.L, pool: pool}, nil
}

// Migrate applies the embedded goose migrations.
func (db *DB) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(db.pool)
	defer func() { _ = sqlDB.Close() }()

	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(trxKey{}).(pgx.Tx); ok {
		return tx
	}

	return db.pool
}

func (db *DB) BeginTransaction(ctx context.Context, level string) (context.Context, error) {
	//nolint:exhaustruct
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.TxIsoLevel(strings.ToLower(level))})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	return context.WithValue(ctx, trxKey{}, tx), nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(trxKey{}).(pgx.Tx)
	if !ok {
		return ErrTransactionNotFoundInCtx
	}

	return tx.Commit(ctx)
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	tx, ok := ctx.Value(trxKey{}).(pgx.Tx)
	if !ok {
		return ErrTransactionNotFoundInCtx
	}

	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	return nil
}

func (db *DB) SaveBooking(ctx context.Context, b *settlement.Booking) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal booking: %w", err)
	}

	var key *string
	if b.IdempotencyKey != "" {
		key = &b.IdempotencyKey
	}

	_, err = db.q(ctx).Exec(ctx, `
		INSERT INTO bookings (id, status, idempotency_key, expected_checkout, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    expected_checkout = EXCLUDED.expected_checkout,
		    data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at
	`, b.ID, string(b.Status), key, b.ExpectedCheckout, data, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("upsert booking %v (%v): %w", b.ID, pgErr.ConstraintName, apperr.ErrDuplicate)
		}

		return fmt.Errorf("upsert booking: %w", err)
	}

	return nil
}

func (db *DB) SaveEvent(ctx context.Context, e *settlement.Event) error {
	_, err := db.q(ctx).Exec(ctx, `
		INSERT INTO booking_events (id, booking_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.BookingID, string(e.Kind), e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

func scanBooking(row pgx.Row) (*settlement.Booking, error) {
	var (
		data []byte
		key  *string
	)

	if err := row.Scan(&data, &key); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}

		return nil, err
	}

	var b settlement.Booking
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal booking: %w", err)
	}

	if key != nil {
		b.IdempotencyKey = *key
	}

	return &b, nil
}

// GetBooking locks the row when called inside a transaction so concurrent writers of
// the same booking queue up behind each other.
func (db *DB) GetBooking(ctx context.Context, bookingID string) (*settlement.Booking, error) {
	query := `SELECT data, idempotency_key FROM bookings WHERE id = $1`
	if _, ok := ctx.Value(trxKey{}).(pgx.Tx); ok {
		query += ` FOR UPDATE`
	}

	b, err := scanBooking(db.q(ctx).QueryRow(ctx, query, bookingID))
	if err != nil {
		return nil, fmt.Errorf("booking %v: %w", bookingID, err)
	}

	return b, nil
}

func (db *DB) GetBookingByIdempotencyKey(ctx context.Context) (*settlement.Booking, error) {
	key, ok := settlement.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, apperr.ErrIdempotencyKey
	}

	return scanBooking(db.q(ctx).QueryRow(ctx,
		`SELECT data, idempotency_key FROM bookings WHERE idempotency_key = $1`, key))
}

func (db *DB) ListBookingsByStatus(ctx context.Context, statuses ...settlement.Status) ([]*settlement.Booking, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	rows, err := db.q(ctx).Query(ctx, `
		SELECT data, idempotency_key FROM bookings
		WHERE status = ANY($1)
		ORDER BY expected_checkout, id
	`, names)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	result := make([]*settlement.Booking, 0)

	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}

		result = append(result, b)
	}

	return result, rows.Err()
}

func (db *DB) Events(ctx context.Context, bookingID string) ([]settlement.Event, error) {
	rows, err := db.q(ctx).Query(ctx, `
		SELECT id, booking_id, kind, payload, created_at FROM booking_events
		WHERE booking_id = $1
		ORDER BY seq
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var result []settlement.Event

	for rows.Next() {
		var (
			e    settlement.Event
			kind string
		)

		if err := rows.Scan(&e.ID, &e.BookingID, &kind, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		e.Kind = settlement.EventKind(kind)
		result = append(result, e)
	}

	return result, rows.Err()
}

func (db *DB) SaveRoom(ctx context.Context, room pricing.Room) error {
	_, err := db.q(ctx).Exec(ctx, `
		INSERT INTO rooms (id, name, category, rate_per_night) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, category = EXCLUDED.category, rate_per_night = EXCLUDED.rate_per_night
	`, room.ID, room.Name, room.Category, room.RatePerNight)
	if err != nil {
		return fmt.Errorf("upsert room: %w", err)
	}

	return nil
}

func (db *DB) SaveService(ctx context.Context, service pricing.Service) error {
	_, err := db.q(ctx).Exec(ctx, `
		INSERT INTO services (id, name, unit_price) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price
	`, service.ID, service.Name, service.UnitPrice)
	if err != nil {
		return fmt.Errorf("upsert service: %w", err)
	}

	return nil
}

func (db *DB) SavePromotion(ctx context.Context, roomID string, p promo.Promotion) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal promotion: %w", err)
	}

	_, err = db.q(ctx).Exec(ctx, `
		INSERT INTO promotions (room_id, id, data) VALUES ($1, $2, $3)
		ON CONFLICT (room_id, id) DO UPDATE SET data = EXCLUDED.data
	`, roomID, p.ID, data)
	if err != nil {
		return fmt.Errorf("upsert promotion: %w", err)
	}

	return nil
}

func (db *DB) GetRoom(ctx context.Context, roomID string) (*pricing.Room, error) {
	var r pricing.Room

	err := db.q(ctx).QueryRow(ctx,
		`SELECT id, name, category, rate_per_night FROM rooms WHERE id = $1`, roomID,
	).Scan(&r.ID, &r.Name, &r.Category, &r.RatePerNight)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %v: %w", roomID, apperr.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("query room %v: %w", roomID, err)
	}

	return &r, nil
}

func (db *DB) GetService(ctx context.Context, serviceID string) (*pricing.Service, error) {
	var s pricing.Service

	err := db.q(ctx).QueryRow(ctx,
		`SELECT id, name, unit_price FROM services WHERE id = $1`, serviceID,
	).Scan(&s.ID, &s.Name, &s.UnitPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("service %v: %w", serviceID, apperr.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("query service %v: %w", serviceID, err)
	}

	return &s, nil
}

func (db *DB) ListRooms(ctx context.Context) ([]pricing.Room, error) {
	rows, err := db.q(ctx).Query(ctx, `SELECT id, name, category, rate_per_night FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}

	rooms, err := pgx.CollectRows(rows, pgx.RowToStructByPos[pricing.Room])
	if err != nil {
		return nil, fmt.Errorf("collect rooms: %w", err)
	}

	return rooms, nil
}

// GetPromotionsForRoom keeps insertion order, which decides auto-matching.
func (db *DB) GetPromotionsForRoom(ctx context.Context, roomID string) ([]promo.Promotion, error) {
	if _, err := db.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	rows, err := db.q(ctx).Query(ctx,
		`SELECT data FROM promotions WHERE room_id = $1 ORDER BY position`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query promotions: %w", err)
	}
	defer rows.Close()

	var result []promo.Promotion

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}

		var p promo.Promotion
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal promotion: %w", err)
		}

		result = append(result, p)
	}

	return result, rows.Err()
}
