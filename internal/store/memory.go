package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/ledgerops/internal/domain"
	"github.com/shopspring/decimal"
)

// Memory is an in-process Store. Transactions are optimistic: writes are staged
// and validated against the committed account versions under a single lock at commit.
type Memory struct {
	mu        sync.RWMutex
	accounts  map[uuid.UUID]domain.Account
	entries   []domain.LedgerEntry
	byAccount map[uuid.UUID][]int
	byRef     map[uuid.UUID][]int
	seq       int64
	now       func() time.Time
}

type MemoryOption func(*Memory)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		accounts:  make(map[uuid.UUID]domain.Account),
		byAccount: make(map[uuid.UUID][]int),
		byRef:     make(map[uuid.UUID][]int),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Close() {}

func (m *Memory) CreateAccount(ctx context.Context, a *domain.Account) error {
	if err := prepareAccount(a); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	a.CreatedAt, a.UpdatedAt = now, now
	m.accounts[a.ID] = *a
	return nil
}

func (m *Memory) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (m *Memory) FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	m.mu.RLock()
	out := make([]domain.Account, 0)
	for _, a := range m.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (m *Memory) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (*domain.Account, error) {
	if newBalance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if a.Version != expectedVersion {
		return nil, ErrConflict
	}
	a.Balance = newBalance
	a.Version++
	a.UpdatedAt = m.now()
	m.accounts[id] = a
	return &a, nil
}

func (m *Memory) AppendEntry(ctx context.Context, e *domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkReferencesLocked([]*domain.LedgerEntry{e}); err != nil {
		return err
	}
	m.appendLocked(e, m.now())
	return nil
}

func (m *Memory) appendLocked(e *domain.LedgerEntry, at time.Time) {
	prepareEntry(e)
	m.seq++
	e.Seq = m.seq
	e.CreatedAt = at
	idx := len(m.entries)
	m.entries = append(m.entries, *e)
	m.byAccount[e.AccountID] = append(m.byAccount[e.AccountID], idx)
	if e.ReferenceID != nil {
		m.byRef[*e.ReferenceID] = append(m.byRef[*e.ReferenceID], idx)
	}
}

// checkReferencesLocked rejects a reference id/type pair that is already committed.
func (m *Memory) checkReferencesLocked(staged []*domain.LedgerEntry) error {
	for _, e := range staged {
		if e.ReferenceID == nil {
			continue
		}
		for _, idx := range m.byRef[*e.ReferenceID] {
			if m.entries[idx].Type == e.Type {
				return ErrDuplicateReference
			}
		}
	}
	return nil
}

func (m *Memory) FindByReference(ctx context.Context, referenceID uuid.UUID) (*domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *domain.LedgerEntry
	for _, idx := range m.byRef[referenceID] {
		e := m.entries[idx]
		if e.Type == domain.EntryTransferOut {
			return &e, nil
		}
		if found == nil {
			found = &e
		}
	}
	if found == nil {
		return nil, ErrEntryNotFound
	}
	return found, nil
}

func (m *Memory) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.LedgerEntry, 0, len(m.byAccount[accountID]))
	for _, idx := range m.byAccount[accountID] {
		out = append(out, m.entries[idx])
	}
	sortEntries(out, domain.Sort{Field: domain.SortCreatedAt, Desc: true})
	return out, nil
}

func (m *Memory) QueryEntries(ctx context.Context, f domain.EntryFilter, p domain.PageRequest) ([]domain.LedgerEntry, int, error) {
	m.mu.RLock()
	matched := make([]domain.LedgerEntry, 0)
	for _, idx := range m.byAccount[f.AccountID] {
		if e := m.entries[idx]; matches(e, f) {
			matched = append(matched, e)
		}
	}
	m.mu.RUnlock()

	sortEntries(matched, p.Sort)
	total := len(matched)
	start := p.Page * p.Size
	if start >= total {
		return []domain.LedgerEntry{}, total, nil
	}
	end := min(start+p.Size, total)
	return matched[start:end], total, nil
}

func matches(e domain.LedgerEntry, f domain.EntryFilter) bool {
	if e.AccountID != f.AccountID {
		return false
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

func sortEntries(entries []domain.LedgerEntry, s domain.Sort) {
	slices.SortStableFunc(entries, func(a, b domain.LedgerEntry) int {
		c := compareField(a, b, s.Field)
		if c == 0 {
			c = cmp.Compare(a.Seq, b.Seq)
		}
		if s.Desc {
			return -c
		}
		return c
	})
}

func compareField(a, b domain.LedgerEntry, f domain.SortField) int {
	switch f {
	case domain.SortAmount:
		return a.Amount.Cmp(b.Amount)
	case domain.SortBalanceAfter:
		return a.BalanceAfter.Cmp(b.BalanceAfter)
	case domain.SortType:
		return cmp.Compare(a.Type, b.Type)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &memTx{
		m:        m,
		staged:   make(map[uuid.UUID]domain.Account),
		expected: make(map[uuid.UUID]int64),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return m.commit(tx)
}

func (m *Memory) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range tx.expected {
		cur, ok := m.accounts[id]
		if !ok {
			return domain.ErrAccountNotFound
		}
		if cur.Version != v {
			return ErrConflict
		}
	}
	if err := m.checkReferencesLocked(tx.entries); err != nil {
		return err
	}
	now := m.now()
	for id, a := range tx.staged {
		a.UpdatedAt = now
		m.accounts[id] = a
	}
	for _, e := range tx.entries {
		m.appendLocked(e, now)
	}
	return nil
}

// memTx stages account swaps and entries. Reads see the transaction's own writes
// on top of the committed state.
type memTx struct {
	m        *Memory
	staged   map[uuid.UUID]domain.Account
	expected map[uuid.UUID]int64
	entries  []*domain.LedgerEntry
}

func (t *memTx) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if a, ok := t.staged[id]; ok {
		return &a, nil
	}
	return t.m.GetAccount(ctx, id)
}

func (t *memTx) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (*domain.Account, error) {
	if newBalance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	cur, err := t.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Version != expectedVersion {
		return nil, ErrConflict
	}
	if _, seen := t.expected[id]; !seen {
		t.expected[id] = expectedVersion
	}
	cur.Balance = newBalance
	cur.Version++
	t.staged[id] = *cur
	return cur, nil
}

func (t *memTx) AppendEntry(ctx context.Context, e *domain.LedgerEntry) error {
	prepareEntry(e)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.m.now()
	}
	t.entries = append(t.entries, e)
	return nil
}

func (t *memTx) FindByReference(ctx context.Context, referenceID uuid.UUID) (*domain.LedgerEntry, error) {
	for _, e := range t.entries {
		if e.ReferenceID != nil && *e.ReferenceID == referenceID && e.Type == domain.EntryTransferOut {
			cp := *e
			return &cp, nil
		}
	}
	return t.m.FindByReference(ctx, referenceID)
}
