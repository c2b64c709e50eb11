package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositRequest credits an account.
type DepositRequest struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// WithdrawRequest debits an account.
type WithdrawRequest struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

// TransferRequest moves money between two accounts. ReferenceID is the business
// correlation id shared by both legs; one is generated when absent.
type TransferRequest struct {
	FromAccountID  uuid.UUID
	ToAccountID    uuid.UUID
	Amount         decimal.Decimal
	ReferenceID    *uuid.UUID
	IdempotencyKey string
}

// TransactionResponse is the caller-facing view of a ledger entry and the shape
// stored in the idempotency cache.
type TransactionResponse struct {
	ID           uuid.UUID       `json:"id"`
	AccountID    uuid.UUID       `json:"account_id"`
	ReferenceID  *uuid.UUID      `json:"reference_id,omitempty"`
	Type         EntryType       `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Status       EntryStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewTransactionResponse maps an entry to its response view.
func NewTransactionResponse(e LedgerEntry) TransactionResponse {
	return TransactionResponse{
		ID:           e.ID,
		AccountID:    e.AccountID,
		ReferenceID:  e.ReferenceID,
		Type:         e.Type,
		Amount:       e.Amount,
		BalanceAfter: e.BalanceAfter,
		Status:       e.Status,
		CreatedAt:    e.CreatedAt,
	}
}

// Result is what every mutation returns. Payload holds the canonical bytes that were
// (or will be) cached under the idempotency key; Replayed is set when the mutation
// was not executed because an earlier identical request already completed.
type Result struct {
	Transaction TransactionResponse
	Payload     []byte
	Replayed    bool
}

// AccountResponse is the balance enquiry view.
type AccountResponse struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	AccountNumber string          `json:"account_number"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	Status        AccountStatus   `json:"status"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
}

func NewAccountResponse(a Account) AccountResponse {
	return AccountResponse{
		ID:            a.ID,
		OwnerID:       a.OwnerID,
		AccountNumber: a.AccountNumber,
		Currency:      a.Currency,
		Balance:       a.Balance,
		Status:        a.Status,
		Version:       a.Version,
		CreatedAt:     a.CreatedAt,
	}
}

// SortField names a sortable column of the history query.
type SortField string

const (
	SortCreatedAt    SortField = "createdAt"
	SortAmount       SortField = "amount"
	SortBalanceAfter SortField = "balanceAfter"
	SortType         SortField = "type"
)

// Sort is a parsed "field,direction" query value.
type Sort struct {
	Field SortField
	Desc  bool
}

// EntryFilter is a conjunction: AccountID always applies, the rest only when set.
// From and To are inclusive.
type EntryFilter struct {
	AccountID uuid.UUID
	Type      *EntryType
	From      *time.Time
	To        *time.Time
}

// PageRequest is a zero-based page window with ordering.
type PageRequest struct {
	Page int
	Size int
	Sort Sort
}

// Page is the paginated history envelope.
type Page struct {
	Content       []TransactionResponse `json:"content"`
	Page          int                   `json:"page"`
	Size          int                   `json:"size"`
	TotalElements int                   `json:"total_elements"`
	TotalPages    int                   `json:"total_pages"`
	Last          bool                  `json:"last"`
}

// Summary aggregates an account's entries over an optional window.
type Summary struct {
	AccountID        uuid.UUID           `json:"account_id"`
	TotalDeposits    decimal.Decimal     `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal     `json:"total_withdrawals"`
	NetFlow          decimal.Decimal     `json:"net_flow"`
	Count            int64               `json:"count"`
	ByType           map[EntryType]int64 `json:"by_type"`
}
