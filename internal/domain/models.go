package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of an account. Only ACTIVE accounts accept mutations.
type AccountStatus string

const (
	AccountActive AccountStatus = "ACTIVE"
	AccountFrozen AccountStatus = "FROZEN"
	AccountClosed AccountStatus = "CLOSED"
)

// Account holds a balance and the version counter used for optimistic concurrency control.
// Version is incremented by exactly one on every balance mutation.
type Account struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	AccountNumber string          `json:"account_number"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	Status        AccountStatus   `json:"status"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// EntryType is the closed set of balance-affecting events.
type EntryType string

const (
	EntryDeposit     EntryType = "DEPOSIT"
	EntryWithdraw    EntryType = "WITHDRAW"
	EntryTransferOut EntryType = "TRANSFER_OUT"
	EntryTransferIn  EntryType = "TRANSFER_IN"
)

// EntryTypes lists every known entry type in a stable order.
var EntryTypes = []EntryType{EntryDeposit, EntryWithdraw, EntryTransferOut, EntryTransferIn}

// ParseEntryType accepts any casing and surrounding whitespace.
func ParseEntryType(s string) (EntryType, bool) {
	t := EntryType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

func (t EntryType) Valid() bool {
	switch t {
	case EntryDeposit, EntryWithdraw, EntryTransferOut, EntryTransferIn:
		return true
	}
	return false
}

// IsCredit reports whether the entry increases the account balance.
func (t EntryType) IsCredit() bool {
	return t == EntryDeposit || t == EntryTransferIn
}

// EntryStatus is always COMPLETED for persisted entries.
type EntryStatus string

const EntryCompleted EntryStatus = "COMPLETED"

// LedgerEntry is the immutable record of one balance change on one account.
// Seq is assigned by the store at commit and breaks ties between equal timestamps.
type LedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	Seq          int64           `json:"-"`
	AccountID    uuid.UUID       `json:"account_id"`
	Type         EntryType       `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	ReferenceID  *uuid.UUID      `json:"reference_id,omitempty"`
	Status       EntryStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Signed returns the amount with the sign it applies to the balance.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Type.IsCredit() {
		return e.Amount
	}
	return e.Amount.Neg()
}

// IdempotencyRecord binds a client key to the response produced by the first successful request.
type IdempotencyRecord struct {
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
