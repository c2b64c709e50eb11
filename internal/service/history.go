package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/ledgerops/internal/domain"
	"github.com/punchamoorthee/ledgerops/internal/store"
	"github.com/shopspring/decimal"
)

// HistoryParams are the raw query-string values of a paged history request.
type HistoryParams struct {
	Type string
	From string
	To   string
	Page int
	Size int
	Sort string
}

// HistoryService answers read-only questions over the ledger entries.
type HistoryService struct {
	store store.Store
	log   *slog.Logger
}

func NewHistoryService(st store.Store, logger *slog.Logger) *HistoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryService{store: st, log: logger}
}

// List returns every entry of the account, newest first.
func (h *HistoryService) List(ctx context.Context, accountID uuid.UUID) ([]domain.TransactionResponse, error) {
	if _, err := h.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	entries, err := h.store.FindByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return toResponses(entries), nil
}

// Query returns one page of the account's entries. Filters are ANDed; an unknown
// type or an unparseable date is dropped rather than rejected.
func (h *HistoryService) Query(ctx context.Context, accountID uuid.UUID, p HistoryParams) (*domain.Page, error) {
	if _, err := h.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	f := domain.EntryFilter{AccountID: accountID, From: ParseTime(p.From), To: ParseTime(p.To)}
	if t, ok := domain.ParseEntryType(p.Type); ok {
		f.Type = &t
	} else if p.Type != "" {
		h.log.Debug("ignoring unknown entry type filter", "type", p.Type)
	}
	req := pageRequest(p.Page, p.Size, p.Sort)

	entries, total, err := h.store.QueryEntries(ctx, f, req)
	if err != nil {
		return nil, err
	}

	totalPages := (total + req.Size - 1) / req.Size
	return &domain.Page{
		Content:       toResponses(entries),
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    totalPages,
		Last:          req.Page >= totalPages-1,
	}, nil
}

// Summarize totals credits and debits of the account within [from, to].
func (h *HistoryService) Summarize(ctx context.Context, accountID uuid.UUID, from, to string) (*domain.Summary, error) {
	if _, err := h.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	entries, err := h.store.FindByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return summarize(accountID, entries, ParseTime(from), ParseTime(to)), nil
}

func summarize(accountID uuid.UUID, entries []domain.LedgerEntry, from, to *time.Time) *domain.Summary {
	s := &domain.Summary{
		AccountID:        accountID,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		ByType:           make(map[domain.EntryType]int64, len(domain.EntryTypes)),
	}
	for _, t := range domain.EntryTypes {
		s.ByType[t] = 0
	}
	windowed := from != nil || to != nil
	for _, e := range entries {
		if windowed && e.CreatedAt.IsZero() {
			continue
		}
		if from != nil && e.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && e.CreatedAt.After(*to) {
			continue
		}
		s.Count++
		s.ByType[e.Type]++
		switch e.Type {
		case domain.EntryDeposit, domain.EntryTransferIn:
			s.TotalDeposits = s.TotalDeposits.Add(e.Amount)
		case domain.EntryWithdraw, domain.EntryTransferOut:
			s.TotalWithdrawals = s.TotalWithdrawals.Add(e.Amount)
		}
	}
	s.NetFlow = s.TotalDeposits.Sub(s.TotalWithdrawals)
	return s
}

func toResponses(entries []domain.LedgerEntry) []domain.TransactionResponse {
	out := make([]domain.TransactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.NewTransactionResponse(e))
	}
	return out
}
