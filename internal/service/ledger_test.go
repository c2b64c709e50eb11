package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/punchamoorthee/ledgerops/internal/domain"
	"github.com/punchamoorthee/ledgerops/internal/idempotency"
	"github.com/punchamoorthee/ledgerops/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fastRetry = RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

type fixture struct {
	store  *store.Memory
	cache  *idempotency.Memory
	ledger *LedgerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	cache := idempotency.NewMemory()
	return &fixture{store: st, cache: cache, ledger: NewLedgerService(st, cache, fastRetry, nil)}
}

func (f *fixture) open(t *testing.T, balance string) uuid.UUID {
	t.Helper()
	a := &domain.Account{OwnerID: uuid.New(), Balance: dec(balance)}
	require.NoError(t, f.store.CreateAccount(context.Background(), a))
	return a.ID
}

func (f *fixture) account(t *testing.T, id uuid.UUID) *domain.Account {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (f *fixture) entries(t *testing.T, id uuid.UUID) []domain.LedgerEntry {
	t.Helper()
	es, err := f.store.FindByAccount(context.Background(), id)
	require.NoError(t, err)
	return es
}

func TestLedgerWorkedExample(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.open(t, "100.00")

	res, err := f.ledger.Deposit(ctx, domain.DepositRequest{AccountID: acc, Amount: dec("50.00")})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, domain.EntryDeposit, res.Transaction.Type)
	assert.True(t, res.Transaction.BalanceAfter.Equal(dec("150.00")))
	assert.True(t, f.account(t, acc).Balance.Equal(dec("150.00")))

	res, err = f.ledger.Withdraw(ctx, domain.WithdrawRequest{AccountID: acc, Amount: dec("30.00")})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryWithdraw, res.Transaction.Type)
	assert.True(t, f.account(t, acc).Balance.Equal(dec("120.00")))

	_, err = f.ledger.Withdraw(ctx, domain.WithdrawRequest{AccountID: acc, Amount: dec("200.00")})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, f.account(t, acc).Balance.Equal(dec("120.00")))

	other := f.open(t, "10.00")
	res, err = f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: acc, ToAccountID: other, Amount: dec("20.00")})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryTransferOut, res.Transaction.Type)
	assert.True(t, f.account(t, acc).Balance.Equal(dec("100.00")))
	assert.True(t, f.account(t, other).Balance.Equal(dec("30.00")))

	out := f.entries(t, acc)[0]
	in := f.entries(t, other)
	require.Len(t, in, 1)
	assert.Equal(t, domain.EntryTransferOut, out.Type)
	assert.Equal(t, domain.EntryTransferIn, in[0].Type)
	require.NotNil(t, out.ReferenceID)
	require.NotNil(t, in[0].ReferenceID)
	assert.Equal(t, *out.ReferenceID, *in[0].ReferenceID)
	assert.Len(t, f.entries(t, acc), 3)
}

func TestLedgerVersionIncrementsByOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.open(t, "10")
	other := f.open(t, "0")

	_, err := f.ledger.Deposit(ctx, domain.DepositRequest{AccountID: acc, Amount: dec("5")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.account(t, acc).Version)

	_, err = f.ledger.Withdraw(ctx, domain.WithdrawRequest{AccountID: acc, Amount: dec("1")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.account(t, acc).Version)

	_, err = f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: acc, ToAccountID: other, Amount: dec("2")})
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.account(t, acc).Version)
	assert.Equal(t, int64(1), f.account(t, other).Version)

	// failed operations leave the version alone
	_, err = f.ledger.Withdraw(ctx, domain.WithdrawRequest{AccountID: acc, Amount: dec("1000")})
	require.Error(t, err)
	assert.Equal(t, int64(3), f.account(t, acc).Version)
}

func TestLedgerBalanceChainIsContinuous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.open(t, "0")

	for _, amt := range []string{"10", "2.5", "7.25"} {
		_, err := f.ledger.Deposit(ctx, domain.DepositRequest{AccountID: acc, Amount: dec(amt)})
		require.NoError(t, err)
	}
	_, err := f.ledger.Withdraw(ctx, domain.WithdrawRequest{AccountID: acc, Amount: dec("4.75")})
	require.NoError(t, err)

	es := f.entries(t, acc) // newest first
	require.Len(t, es, 4)
	for i := 0; i < len(es)-1; i++ {
		newer, older := es[i], es[i+1]
		assert.True(t, newer.BalanceAfter.Sub(newer.Signed()).Equal(older.BalanceAfter),
			"entry %d does not continue from entry %d", i, i+1)
	}
	assert.True(t, es[0].BalanceAfter.Equal(dec("15")))
}

func TestLedgerRejectsInvalidRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.open(t, "10")
	other := f.open(t, "10")

	for _, amt := range []string{"0", "-1"} {
		_, err := f.ledger.Deposit(ctx, domain.DepositRequest{AccountID: acc, Amount: dec(amt)})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = f.ledger.Withdraw(ctx, domain.WithdrawRequest{AccountID: acc, Amount: dec(amt)})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		_, err = f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: acc, ToAccountID: other, Amount: dec(amt)})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}

	_, err := f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: acc, ToAccountID: acc, Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.ledger.Deposit(ctx, domain.DepositRequest{AccountID: uuid.New(), Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: acc, ToAccountID: uuid.New(), Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.True(t, f.account(t, acc).Balance.Equal(dec("10")))
	assert.Empty(t, f.entries(t, acc))
}

func TestLedgerRejectsInactiveAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	frozen := &domain.Account{Balance: dec("50"), Status: domain.AccountFrozen}
	require.NoError(t, f.store.CreateAccount(ctx, frozen))
	active := f.open(t, "50")

	_, err := f.ledger.Deposit(ctx, domain.DepositRequest{AccountID: frozen.ID, Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	_, err = f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: active, ToAccountID: frozen.ID, Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrAccountInactive)
	assert.True(t, f.account(t, active).Balance.Equal(dec("50")))
}

func TestLedgerRejectsClosedAccounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	closed := &domain.Account{Balance: dec("50"), Status: domain.AccountClosed}
	require.NoError(t, f.store.CreateAccount(ctx, closed))

	_, err := f.ledger.Withdraw(ctx, domain.WithdrawRequest{AccountID: closed.ID, Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrAccountInactive)
	assert.True(t, f.account(t, closed.ID).Balance.Equal(dec("50")))
}

func TestLedgerTransferCurrencyMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inr := f.open(t, "50")
	usd := &domain.Account{Balance: dec("50"), Currency: "USD"}
	require.NoError(t, f.store.CreateAccount(ctx, usd))

	_, err := f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: inr, ToAccountID: usd.ID, Amount: dec("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestLedgerIdempotentReplayIsByteIdentical(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.open(t, "100")
	other := f.open(t, "0")

	first, err := f.ledger.Deposit(ctx, domain.DepositRequest{AccountID: acc, Amount: dec("25"), IdempotencyKey: "dep-1"})
	require.NoError(t, err)
	second, err := f.ledger.Deposit(ctx, domain.DepositRequest{AccountID: acc, Amount: dec("25"), IdempotencyKey: "dep-1"})
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.True(t, f.account(t, acc).Balance.Equal(dec("125")))

	t1, err := f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: acc, ToAccountID: other, Amount: dec("5"), IdempotencyKey: "tr-1"})
	require.NoError(t, err)
	t2, err := f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: acc, ToAccountID: other, Amount: dec("5"), IdempotencyKey: "tr-1"})
	require.NoError(t, err)
	assert.Equal(t, t1.Payload, t2.Payload)
	assert.True(t, f.account(t, acc).Balance.Equal(dec("120")))
	assert.True(t, f.account(t, other).Balance.Equal(dec("5")))
}

func TestLedgerIdempotentConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.open(t, "0")

	const n = 8
	results := make([]*domain.Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.ledger.Deposit(ctx, domain.DepositRequest{AccountID: acc, Amount: dec("1"), IdempotencyKey: "same"})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	stored, found, err := f.cache.Lookup(ctx, "same")
	require.NoError(t, err)
	require.True(t, found)
	for _, r := range results {
		require.NotNil(t, r)
	}
	// every request but the first recorder answers with the recorded payload
	replays := 0
	for _, r := range results {
		if r.Replayed {
			replays++
			assert.Equal(t, stored, r.Payload)
		}
	}
	assert.Equal(t, n-1, replays)
}

func TestLedgerTransferReferenceDedup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	from := f.open(t, "100")
	to := f.open(t, "0")
	ref := uuid.New()

	first, err := f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: from, ToAccountID: to, Amount: dec("40"), ReferenceID: &ref, IdempotencyKey: "a"})
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: from, ToAccountID: to, Amount: dec("40"), ReferenceID: &ref, IdempotencyKey: "b"})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)

	third, err := f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: from, ToAccountID: to, Amount: dec("40"), ReferenceID: &ref})
	require.NoError(t, err)
	assert.True(t, third.Replayed)

	assert.True(t, f.account(t, from).Balance.Equal(dec("60")))
	assert.True(t, f.account(t, to).Balance.Equal(dec("40")))
	assert.Len(t, f.entries(t, from), 1)
	assert.Len(t, f.entries(t, to), 1)
	require.NotNil(t, first.Transaction.ReferenceID)
	assert.Equal(t, ref, *first.Transaction.ReferenceID)
}

func TestLedgerConcurrentReferenceDedup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	from := f.open(t, "100")
	to := f.open(t, "0")
	ref := uuid.New()

	var wg sync.WaitGroup
	var created atomic.Int32
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.ledger.Transfer(ctx, domain.TransferRequest{FromAccountID: from, ToAccountID: to, Amount: dec("10"), ReferenceID: &ref})
			if assert.NoError(t, err) && !res.Replayed {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.True(t, f.account(t, from).Balance.Equal(dec("90")))
	assert.True(t, f.account(t, to).Balance.Equal(dec("10")))
}

func TestLedgerConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	for trial := 0; trial < 20; trial++ {
		f := newFixture(t)
		acc := f.open(t, "100")

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range errs {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = f.ledger.Withdraw(ctx, domain.WithdrawRequest{AccountID: acc, Amount: dec("60")})
			}()
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			}
		}
		assert.Equal(t, 1, ok)
		assert.True(t, f.account(t, acc).Balance.Equal(dec("40")))
	}
}

func TestLedgerConcurrentTransfersConserveMoney(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	ledger := NewLedgerService(st, idempotency.NewMemory(), RetryPolicy{MaxAttempts: 50, InitialInterval: time.Microsecond, MaxInterval: time.Millisecond}, nil)

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		a := &domain.Account{Balance: dec("100")}
		require.NoError(t, st.CreateAccount(ctx, a))
		ids[i] = a.ID
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(w)))
			for i := 0; i < 50; i++ {
				a, b := rng.Intn(len(ids)), rng.Intn(len(ids))
				if a == b {
					continue
				}
				_, err := ledger.Transfer(ctx, domain.TransferRequest{
					FromAccountID: ids[a], ToAccountID: ids[b],
					Amount: decimal.NewFromInt(int64(rng.Intn(30) + 1)),
				})
				if err != nil && !errors.Is(err, domain.ErrInsufficientFunds) && !errors.Is(err, domain.ErrConcurrencyConflict) {
					t.Errorf("unexpected transfer error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	total := decimal.Zero
	for _, id := range ids {
		a, err := st.GetAccount(ctx, id)
		require.NoError(t, err)
		assert.False(t, a.Balance.IsNegative())
		total = total.Add(a.Balance)

		es, err := st.FindByAccount(ctx, id)
		require.NoError(t, err)
		if len(es) > 0 {
			assert.True(t, es[0].BalanceAfter.Equal(a.Balance))
		}
	}
	assert.True(t, total.Equal(dec("500")), "total %s", total)
}

// conflictingStore makes the first failures compare-and-swap calls lose.
type conflictingStore struct {
	store.Store
	failures int32
	attempts atomic.Int32
}

func (c *conflictingStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	n := c.attempts.Add(1)
	return c.Store.InTx(ctx, func(tx store.Tx) error {
		if n <= c.failures {
			return fn(conflictTx{tx})
		}
		return fn(tx)
	})
}

type conflictTx struct{ store.Tx }

func (conflictTx) CompareAndSwap(context.Context, uuid.UUID, int64, decimal.Decimal) (*domain.Account, error) {
	return nil, store.ErrConflict
}

func TestLedgerRetriesTransientConflicts(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	st := &conflictingStore{Store: mem, failures: 2}
	ledger := NewLedgerService(st, idempotency.NewMemory(), fastRetry, nil)

	a := &domain.Account{Balance: dec("10")}
	require.NoError(t, mem.CreateAccount(ctx, a))

	res, err := ledger.Deposit(ctx, domain.DepositRequest{AccountID: a.ID, Amount: dec("5")})
	require.NoError(t, err)
	assert.True(t, res.Transaction.BalanceAfter.Equal(dec("15")))
	assert.Equal(t, int32(3), st.attempts.Load())

	got, err := mem.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

func TestLedgerRetryExhaustion(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	st := &conflictingStore{Store: mem, failures: 1 << 30}
	policy := RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	ledger := NewLedgerService(st, idempotency.NewMemory(), policy, nil)

	a := &domain.Account{Balance: dec("10")}
	require.NoError(t, mem.CreateAccount(ctx, a))

	_, err := ledger.Withdraw(ctx, domain.WithdrawRequest{AccountID: a.ID, Amount: dec("1")})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, int32(3), st.attempts.Load())

	got, err := mem.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("10")))
}

func TestLedgerBusinessErrorsAreNotRetried(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	st := &conflictingStore{Store: mem}
	ledger := NewLedgerService(st, idempotency.NewMemory(), fastRetry, nil)

	a := &domain.Account{Balance: dec("1")}
	require.NoError(t, mem.CreateAccount(ctx, a))

	_, err := ledger.Withdraw(ctx, domain.WithdrawRequest{AccountID: a.ID, Amount: dec("2")})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int32(1), st.attempts.Load())
}

// lostCommitStore runs each transaction but reports a conflict for the first failures of them.
type lostCommitStore struct {
	store.Store
	failures int32
	attempts atomic.Int32
}

func (c *lostCommitStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := c.Store.InTx(ctx, fn); err != nil {
		return err
	}
	if c.attempts.Add(1) <= c.failures {
		return store.ErrConflict
	}
	return nil
}

func TestLedgerReferenceReplayCountedOncePerRequest(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	from := &domain.Account{Balance: dec("100")}
	to := &domain.Account{Balance: dec("0")}
	require.NoError(t, mem.CreateAccount(ctx, from))
	require.NoError(t, mem.CreateAccount(ctx, to))
	ref := uuid.New()
	req := domain.TransferRequest{FromAccountID: from.ID, ToAccountID: to.ID, Amount: dec("10"), ReferenceID: &ref}

	_, err := NewLedgerService(mem, idempotency.NewMemory(), fastRetry, nil).Transfer(ctx, req)
	require.NoError(t, err)

	counter := replays.WithLabelValues(string(opTransfer), "reference")
	before := testutil.ToFloat64(counter)

	st := &lostCommitStore{Store: mem, failures: 2}
	res, err := NewLedgerService(st, idempotency.NewMemory(), fastRetry, nil).Transfer(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, int32(3), st.attempts.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(counter)-before)

	got, err := mem.GetAccount(ctx, from.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("90")))
}

// scriptedCache misses on the first lookup and then serves whatever was stored by
// the "other" writer, simulating a lost race on the idempotency key.
type scriptedCache struct {
	mu       sync.Mutex
	lookups  int
	winner   []byte
	storeErr error
}

func (c *scriptedCache) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.lookups == 1 || c.winner == nil {
		return nil, false, nil
	}
	return c.winner, true, nil
}

func (c *scriptedCache) Store(ctx context.Context, key string, payload []byte) error {
	return c.storeErr
}

func TestLedgerLostIdempotencyRaceReturnsWinner(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	a := &domain.Account{Balance: dec("10")}
	require.NoError(t, st.CreateAccount(ctx, a))

	winner, err := encodePayload(domain.TransactionResponse{ID: uuid.New(), AccountID: a.ID, Type: domain.EntryDeposit, Amount: dec("1"), BalanceAfter: dec("11"), Status: domain.EntryCompleted})
	require.NoError(t, err)
	cache := &scriptedCache{winner: winner, storeErr: idempotency.ErrAlreadyExists}
	ledger := NewLedgerService(st, cache, fastRetry, nil)

	res, err := ledger.Deposit(ctx, domain.DepositRequest{AccountID: a.ID, Amount: dec("1"), IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, winner, res.Payload)
}

func TestLedgerCacheFailureAfterCommitStillSucceeds(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	a := &domain.Account{Balance: dec("10")}
	require.NoError(t, st.CreateAccount(ctx, a))
	ledger := NewLedgerService(st, &scriptedCache{storeErr: errors.New("redis down")}, fastRetry, nil)

	res, err := ledger.Deposit(ctx, domain.DepositRequest{AccountID: a.ID, Amount: dec("1"), IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.True(t, res.Transaction.BalanceAfter.Equal(dec("11")))
}

func TestEncodePayloadIsCanonical(t *testing.T) {
	resp := domain.TransactionResponse{
		ID:           uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		AccountID:    uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		Type:         domain.EntryDeposit,
		Amount:       dec("1.50"),
		BalanceAfter: dec("11.5"),
		Status:       domain.EntryCompleted,
		CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	payload, err := encodePayload(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"account_id":"00000000-0000-0000-0000-000000000002",
		"amount":"1.5",
		"balance_after":"11.5",
		"created_at":"2024-01-02T03:04:05Z",
		"id":"00000000-0000-0000-0000-000000000001",
		"status":"COMPLETED",
		"type":"DEPOSIT"}`, string(payload))
	assert.Equal(t, byte('{'), payload[0])
	assert.NotContains(t, string(payload), " ")

	decoded, err := decodePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, decoded.ID)
	assert.True(t, decoded.Amount.Equal(resp.Amount))
}
