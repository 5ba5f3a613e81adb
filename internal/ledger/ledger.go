package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDuplicatePayment = errors.New("payment already recorded")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrStatusTransition = errors.New("payment status transition not allowed")
)

type Method string

const (
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodEWallet      Method = "e_wallet"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodEWallet:
		return true
	}

	return false
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

type Payment struct {
	ID             string    `json:"id"`
	Method         Method    `json:"method"`
	Amount         int64     `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
	Status         Status    `json:"status"`
	Note           string    `json:"note,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

// Ledger is an append-only list of payment attempts. Recorded amounts and timestamps never
// change; only a pending entry's status may move on.
type Ledger struct {
	entries []Payment
}

func New(entries ...Payment) Ledger {
	return Ledger{entries: append([]Payment(nil), entries...)}
}

// Append returns a new ledger; the receiver is left as it was.
func (l Ledger) Append(p Payment) (Ledger, error) {
	for _, e := range l.entries {
		if e.ID == p.ID {
			return l, fmt.Errorf("payment %v: %w", p.ID, ErrDuplicatePayment)
		}
	}

	entries := make([]Payment, 0, len(l.entries)+1)
	entries = append(entries, l.entries...)
	entries = append(entries, p)

	return Ledger{entries: entries}, nil
}

func (l Ledger) SetStatus(paymentID string, status Status) (Ledger, error) {
	entries := l.Entries()

	for i := range entries {
		if entries[i].ID != paymentID {
			continue
		}

		if entries[i].Status != StatusPending && entries[i].Status != status {
			return l, fmt.Errorf("payment %v from %v to %v: %w", paymentID, entries[i].Status, status, ErrStatusTransition)
		}

		entries[i].Status = status

		return Ledger{entries: entries}, nil
	}

	return l, fmt.Errorf("payment %v: %w", paymentID, ErrPaymentNotFound)
}

func (l Ledger) Entries() []Payment {
	return append([]Payment(nil), l.entries...)
}

func (l Ledger) Len() int {
	return len(l.entries)
}

// AmountPaid counts successful payments only.
func (l Ledger) AmountPaid() int64 {
	var paid int64

	for _, e := range l.entries {
		if e.Status == StatusSuccess {
			paid += e.Amount
		}
	}

	return paid
}

func (l Ledger) Remaining(total int64) int64 {
	remaining := total - l.AmountPaid()
	if remaining < 0 {
		return 0
	}

	return remaining
}

func (l Ledger) FindByIdempotencyKey(key string) (Payment, bool) {
	if key == "" {
		return Payment{}, false
	}

	for _, e := range l.entries {
		if e.IdempotencyKey == key {
			return e, true
		}
	}

	return Payment{}, false
}

func (l Ledger) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(l.entries) //nolint:wrapcheck
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	var entries []Payment
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode ledger: %w", err)
	}

	l.entries = entries

	return nil
}
