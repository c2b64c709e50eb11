package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/punchamoorthee/ledgerops/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrConflict means the stored version no longer matches the expected one.
	// Nothing was written; the caller should reload and retry.
	ErrConflict = errors.New("account version conflict")
	// ErrNegativeBalance is returned when a swap would leave a negative balance.
	ErrNegativeBalance = errors.New("balance cannot be negative")
	// ErrEntryNotFound is returned by FindByReference when no entry carries the reference.
	ErrEntryNotFound = errors.New("ledger entry not found")
	// ErrDuplicateReference means another committed transfer already owns the reference id.
	ErrDuplicateReference = errors.New("reference id already used")
)

// Accounts is the account store contract. Missing accounts yield domain.ErrAccountNotFound.
type Accounts interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// CompareAndSwap sets the balance only if the stored version equals expectedVersion,
	// and returns the account with its version incremented.
	CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (*domain.Account, error)
}

// Tx is the view handed to a transactional callback. Writes become visible to other
// readers only when the callback returns nil and the commit succeeds.
type Tx interface {
	Accounts
	// AppendEntry stages an entry. ID, Status and CreatedAt are filled in when empty;
	// Seq and the final CreatedAt are set once the transaction commits.
	AppendEntry(ctx context.Context, e *domain.LedgerEntry) error
	FindByReference(ctx context.Context, referenceID uuid.UUID) (*domain.LedgerEntry, error)
}

// Store is the ledger's single datastore: accounts, entries and a scoped transaction.
type Store interface {
	Tx

	CreateAccount(ctx context.Context, a *domain.Account) error
	// FindAccountsByOwner returns the owner's accounts, oldest first.
	FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error)
	// FindByAccount returns every entry of the account, newest first.
	FindByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerEntry, error)
	// QueryEntries returns one page of matching entries and the total match count.
	QueryEntries(ctx context.Context, f domain.EntryFilter, p domain.PageRequest) ([]domain.LedgerEntry, int, error)
	// InTx runs fn in a transaction that is rolled back on any error or panic.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close()
}

const defaultCurrency = "INR"

func prepareAccount(a *domain.Account) error {
	if a.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Currency == "" {
		a.Currency = defaultCurrency
	}
	if a.Status == "" {
		a.Status = domain.AccountActive
	}
	if a.AccountNumber == "" {
		a.AccountNumber = accountNumber(a.ID)
	}
	a.Version = 0
	return nil
}

// accountNumber derives a display-only number from the id.
func accountNumber(id uuid.UUID) string {
	var n uint64
	for _, b := range id[:8] {
		n = n<<8 | uint64(b)
	}
	return fmt.Sprintf("LO%012d", n%1_000_000_000_000)
}

func prepareEntry(e *domain.LedgerEntry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = domain.EntryCompleted
	}
}
