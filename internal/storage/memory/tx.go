package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/avstrong/hotel/internal/settlement"
)

var (
	ErrTransactionIDNotFoundInCtx = errors.New("no transaction id found in ctx")
	ErrTransactionNotFound        = errors.New("transaction not found")
)

type trxKey struct{}

// transaction buffers writes until commit. Reads made with the transaction's context see
// its own buffered writes.
type transaction struct {
	id                   string
	bookingModifications map[string]*settlement.Booking
	eventModifications   []*settlement.Event
}

func (db *DB) BeginTransaction(ctx context.Context, _ string) (context.Context, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	trxID := fmt.Sprintf("trx-%d", db.nextTrxID)
	db.nextTrxID++

	//nolint:exhaustruct
	db.transactions[trxID] = &transaction{
		id:                   trxID,
		bookingModifications: make(map[string]*settlement.Booking),
	}

	return context.WithValue(ctx, trxKey{}, trxID), nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	for id, b := range trx.bookingModifications {
		db.bookings[id] = b

		if b.IdempotencyKey != "" {
			db.bookingIdempotencyKeys[b.IdempotencyKey] = id
		}
	}

	db.events = append(db.events, trx.eventModifications...)

	delete(db.transactions, trx.id)

	db.l.LogDebugf("Transaction %v committed with %d booking(s)", trx.id, len(trx.bookingModifications))

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	delete(db.transactions, trx.id)

	return nil
}

// transaction must be called with db.mu held.
func (db *DB) transaction(ctx context.Context) (*transaction, error) {
	trxID, ok := ctx.Value(trxKey{}).(string)
	if !ok || trxID == "" {
		return nil, ErrTransactionIDNotFoundInCtx
	}

	trx, exists := db.transactions[trxID]
	if !exists {
		return nil, fmt.Errorf("transaction %s not found: %w", trxID, ErrTransactionNotFound)
	}

	return trx, nil
}

