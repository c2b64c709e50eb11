package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/punchamoorthee/ledgerops/internal/domain"
	"github.com/punchamoorthee/ledgerops/internal/idempotency"
	"github.com/punchamoorthee/ledgerops/internal/store"
)

// RetryPolicy bounds the automatic retry of operations that lost an optimistic update.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, InitialInterval: 5 * time.Millisecond, MaxInterval: 200 * time.Millisecond}
}

// LedgerService applies deposits, withdrawals and transfers. Every attempt runs inside
// one store transaction, so a failed or conflicting attempt leaves nothing behind.
type LedgerService struct {
	store  store.Store
	cache  idempotency.Cache
	policy RetryPolicy
	log    *slog.Logger
}

func NewLedgerService(st store.Store, cache idempotency.Cache, policy RetryPolicy, logger *slog.Logger) *LedgerService {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{store: st, cache: cache, policy: policy, log: logger}
}

// mutation runs inside a transaction and returns the canonical entry of the operation.
// replayed is true when an already committed entry is returned instead of a new one.
type mutation func(ctx context.Context, tx store.Tx) (entry *domain.LedgerEntry, replayed bool, err error)

func (s *LedgerService) Deposit(ctx context.Context, req domain.DepositRequest) (*domain.Result, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	return s.execute(ctx, opDeposit, req.IdempotencyKey, func(ctx context.Context, tx store.Tx) (*domain.LedgerEntry, bool, error) {
		acc, err := loadActive(ctx, tx, req.AccountID)
		if err != nil {
			return nil, false, err
		}
		updated, err := tx.CompareAndSwap(ctx, acc.ID, acc.Version, acc.Balance.Add(req.Amount))
		if err != nil {
			return nil, false, err
		}
		e := &domain.LedgerEntry{
			AccountID:    acc.ID,
			Type:         domain.EntryDeposit,
			Amount:       req.Amount,
			BalanceAfter: updated.Balance,
		}
		return e, false, tx.AppendEntry(ctx, e)
	})
}

func (s *LedgerService) Withdraw(ctx context.Context, req domain.WithdrawRequest) (*domain.Result, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	return s.execute(ctx, opWithdraw, req.IdempotencyKey, func(ctx context.Context, tx store.Tx) (*domain.LedgerEntry, bool, error) {
		acc, err := loadActive(ctx, tx, req.AccountID)
		if err != nil {
			return nil, false, err
		}
		if acc.Balance.LessThan(req.Amount) {
			return nil, false, domain.ErrInsufficientFunds
		}
		updated, err := tx.CompareAndSwap(ctx, acc.ID, acc.Version, acc.Balance.Sub(req.Amount))
		if err != nil {
			return nil, false, err
		}
		e := &domain.LedgerEntry{
			AccountID:    acc.ID,
			Type:         domain.EntryWithdraw,
			Amount:       req.Amount,
			BalanceAfter: updated.Balance,
		}
		return e, false, tx.AppendEntry(ctx, e)
	})
}

// Transfer debits the source and credits the destination in one transaction and
// returns the TRANSFER_OUT leg. A transfer whose reference id is already committed
// is not applied again; the existing TRANSFER_OUT leg is returned instead.
func (s *LedgerService) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.Result, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, fmt.Errorf("%w: source and destination accounts must differ", domain.ErrInvalidRequest)
	}

	ref := uuid.New()
	dedupByRef := req.ReferenceID != nil
	if dedupByRef {
		ref = *req.ReferenceID
	}

	return s.execute(ctx, opTransfer, req.IdempotencyKey, func(ctx context.Context, tx store.Tx) (*domain.LedgerEntry, bool, error) {
		if dedupByRef {
			existing, err := tx.FindByReference(ctx, ref)
			if err == nil {
				return existing, true, nil
			}
			if !errors.Is(err, store.ErrEntryNotFound) {
				return nil, false, err
			}
		}

		from, err := loadActive(ctx, tx, req.FromAccountID)
		if err != nil {
			return nil, false, err
		}
		if from.Balance.LessThan(req.Amount) {
			return nil, false, domain.ErrInsufficientFunds
		}
		to, err := loadActive(ctx, tx, req.ToAccountID)
		if err != nil {
			return nil, false, err
		}
		if from.Currency != to.Currency {
			return nil, false, fmt.Errorf("%w: currency mismatch %s/%s", domain.ErrInvalidRequest, from.Currency, to.Currency)
		}

		debited, err := tx.CompareAndSwap(ctx, from.ID, from.Version, from.Balance.Sub(req.Amount))
		if err != nil {
			return nil, false, err
		}
		credited, err := tx.CompareAndSwap(ctx, to.ID, to.Version, to.Balance.Add(req.Amount))
		if err != nil {
			return nil, false, err
		}

		out := &domain.LedgerEntry{
			AccountID:    from.ID,
			Type:         domain.EntryTransferOut,
			Amount:       req.Amount,
			BalanceAfter: debited.Balance,
			ReferenceID:  &ref,
		}
		in := &domain.LedgerEntry{
			AccountID:    to.ID,
			Type:         domain.EntryTransferIn,
			Amount:       req.Amount,
			BalanceAfter: credited.Balance,
			ReferenceID:  &ref,
		}
		if err := tx.AppendEntry(ctx, out); err != nil {
			return nil, false, err
		}
		if err := tx.AppendEntry(ctx, in); err != nil {
			return nil, false, err
		}
		return out, false, nil
	})
}

// execute is the single entry point shared by all mutations: idempotency replay,
// the retried transactional attempt, then recording the response under the key.
func (s *LedgerService) execute(ctx context.Context, op operation, key string, fn mutation) (*domain.Result, error) {
	if key != "" {
		res, found, err := s.replay(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			replays.WithLabelValues(string(op), "idempotency_key").Inc()
			return res, nil
		}
	}

	var (
		entry    *domain.LedgerEntry
		replayed bool
	)
	err := s.withRetry(ctx, op, func() error {
		return s.store.InTx(ctx, func(tx store.Tx) error {
			var err error
			entry, replayed, err = fn(ctx, tx)
			return err
		})
	})
	if err != nil {
		operations.WithLabelValues(string(op), outcome(err)).Inc()
		return nil, err
	}
	operations.WithLabelValues(string(op), "ok").Inc()
	if replayed {
		replays.WithLabelValues(string(op), "reference").Inc()
	}

	resp := domain.NewTransactionResponse(*entry)
	payload, err := encodePayload(resp)
	if err != nil {
		return nil, err
	}
	res := &domain.Result{Transaction: resp, Payload: payload, Replayed: replayed}
	if key == "" {
		return res, nil
	}

	err = s.cache.Store(ctx, key, payload)
	switch {
	case err == nil:
	case errors.Is(err, idempotency.ErrAlreadyExists):
		// A concurrent request with the same key recorded first; its answer stands.
		if winner, found, lerr := s.replay(ctx, key); lerr == nil && found {
			return winner, nil
		}
	default:
		// The mutation is committed; failing here would invite a second execution.
		s.log.Warn("idempotency record not stored", "operation", op, "key", key, "error", err)
	}
	return res, nil
}

func (s *LedgerService) replay(ctx context.Context, key string) (*domain.Result, bool, error) {
	payload, found, err := s.cache.Lookup(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	resp, err := decodePayload(payload)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency key %q: %w", key, err)
	}
	return &domain.Result{Transaction: resp, Payload: payload, Replayed: true}, true, nil
}

// withRetry re-runs attempt while it fails with a version conflict, with exponential
// backoff, and gives up after MaxAttempts with domain.ErrConcurrencyConflict.
func (s *LedgerService) withRetry(ctx context.Context, op operation, attempt func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.policy.InitialInterval
	eb.MaxInterval = s.policy.MaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.policy.MaxAttempts-1)), ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := attempt()
		if err == nil {
			return nil
		}
		if retryable(err) {
			conflictRetries.WithLabelValues(string(op)).Inc()
			s.log.Debug("optimistic update lost, retrying", "operation", op, "attempt", attempts, "error", err)
			return err
		}
		return backoff.Permanent(classify(err))
	}, b)

	if err != nil && retryable(err) {
		s.log.Warn("retries exhausted", "operation", op, "attempts", attempts)
		return fmt.Errorf("%s after %d attempts: %w", op, attempts, domain.ErrConcurrencyConflict)
	}
	return err
}

func retryable(err error) bool {
	return errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrDuplicateReference)
}

// classify maps store errors that reach the caller onto the domain taxonomy.
func classify(err error) error {
	if errors.Is(err, store.ErrNegativeBalance) {
		return domain.ErrInsufficientFunds
	}
	return err
}

func loadActive(ctx context.Context, tx store.Tx, id uuid.UUID) (*domain.Account, error) {
	acc, err := tx.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Status != domain.AccountActive {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrAccountInactive, acc.ID, acc.Status)
	}
	return acc, nil
}
