package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/ledgerops/internal/domain"
	"github.com/punchamoorthee/ledgerops/internal/store"
	"github.com/shopspring/decimal"
)

// OpenAccountRequest creates an account with an opening balance.
type OpenAccountRequest struct {
	OwnerID        uuid.UUID
	Currency       string
	InitialBalance decimal.Decimal
}

// AccountService covers account bookkeeping around the ledger: opening, listing and balance enquiry.
type AccountService struct {
	store store.Store
	log   *slog.Logger
}

func NewAccountService(st store.Store, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{store: st, log: logger}
}

func (s *AccountService) Open(ctx context.Context, req OpenAccountRequest) (*domain.Account, error) {
	if req.InitialBalance.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	a := &domain.Account{
		OwnerID:  req.OwnerID,
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		Balance:  req.InitialBalance,
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info("account opened", "account_id", a.ID, "owner_id", a.OwnerID, "currency", a.Currency)
	return a, nil
}

func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.store.GetAccount(ctx, id)
}

// ListByOwner returns the owner's accounts, oldest first. Closed accounts are left out.
func (s *AccountService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	accounts, err := s.store.FindAccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	open := accounts[:0]
	for _, a := range accounts {
		if a.Status != domain.AccountClosed {
			open = append(open, a)
		}
	}
	return open, nil
}
