package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/ledgerops/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	accountColumns = `id, owner_id, account_number, currency, balance::text, status, version, created_at, updated_at`
	entryColumns   = `seq, id, account_id, type, amount::text, balance_after::text, reference_id, status, created_at`
)

var sortColumns = map[domain.SortField]string{
	domain.SortCreatedAt:    "created_at",
	domain.SortAmount:       "amount",
	domain.SortBalanceAfter: "balance_after",
	domain.SortType:         "type",
}

// Postgres is the pgx-backed Store. Transactions run at REPEATABLE READ and every
// balance write is a version-checked UPDATE.
type Postgres struct {
	queries
	db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return NewPostgresFromPool(pool), nil
}

func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{queries: queries{q: pool}, db: pool}
}

// Pool exposes the underlying pool for collaborators sharing the database.
func (p *Postgres) Pool() *pgxpool.Pool { return p.db }

func (p *Postgres) Close() {
	p.db.Close()
}

func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("tx commit failed: %w", err))
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries implements the read/write statements on top of either the pool or a tx.
type queries struct {
	q querier
}

func (s queries) CreateAccount(ctx context.Context, a *domain.Account) error {
	if err := prepareAccount(a); err != nil {
		return err
	}
	err := s.q.QueryRow(ctx,
		`INSERT INTO accounts (id, owner_id, account_number, currency, balance, status, version)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, 0)
		 RETURNING created_at, updated_at`,
		a.ID, a.OwnerID, a.AccountNumber, a.Currency, a.Balance.String(), string(a.Status),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return mapPgError(fmt.Errorf("account insert failed: %w", err))
	}
	return nil
}

// GetAccount retrieves a single account by ID.
func (s queries) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := scanAccount(s.q.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, mapPgError(err)
	}
	return a, nil
}

func (s queries) FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	rows, err := s.q.Query(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE owner_id = $1 ORDER BY created_at, id",
		ownerID)
	if err != nil {
		return nil, mapPgError(err)
	}
	accounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Account, error) {
		a, err := scanAccount(row)
		if err != nil {
			return domain.Account{}, err
		}
		return *a, nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return accounts, nil
}

func (s queries) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (*domain.Account, error) {
	if newBalance.IsNegative() {
		return nil, ErrNegativeBalance
	}
	a, err := scanAccount(s.q.QueryRow(ctx,
		`UPDATE accounts
		    SET balance = $1::numeric, version = version + 1, updated_at = now()
		  WHERE id = $2 AND version = $3
		 RETURNING `+accountColumns,
		newBalance.String(), id, expectedVersion,
	))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapPgError(err)
	}

	var exists bool
	if err := s.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)", id).Scan(&exists); err != nil {
		return nil, mapPgError(err)
	}
	if !exists {
		return nil, domain.ErrAccountNotFound
	}
	return nil, ErrConflict
}

func (s queries) AppendEntry(ctx context.Context, e *domain.LedgerEntry) error {
	prepareEntry(e)
	err := s.q.QueryRow(ctx,
		`INSERT INTO ledger_entries (id, account_id, type, amount, balance_after, reference_id, status)
		 VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7)
		 RETURNING seq, created_at`,
		e.ID, e.AccountID, string(e.Type), e.Amount.String(), e.BalanceAfter.String(), e.ReferenceID, string(e.Status),
	).Scan(&e.Seq, &e.CreatedAt)
	if err != nil {
		return mapPgError(fmt.Errorf("ledger entry failed: %w", err))
	}
	return nil
}

func (s queries) FindByReference(ctx context.Context, referenceID uuid.UUID) (*domain.LedgerEntry, error) {
	e, err := scanEntry(s.q.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		  WHERE reference_id = $1
		  ORDER BY (type = 'TRANSFER_OUT') DESC, seq
		  LIMIT 1`,
		referenceID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, mapPgError(err)
	}
	return e, nil
}

// FindByAccount retrieves ledger entries for a specific account, newest first.
func (s queries) FindByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		  WHERE account_id = $1
		  ORDER BY created_at DESC, seq DESC`,
		accountID)
	if err != nil {
		return nil, mapPgError(err)
	}
	return collectEntries(rows)
}

func (s queries) QueryEntries(ctx context.Context, f domain.EntryFilter, p domain.PageRequest) ([]domain.LedgerEntry, int, error) {
	where := []string{"account_id = $1"}
	args := []any{f.AccountID}
	if f.Type != nil {
		args = append(args, string(*f.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.q.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_entries WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapPgError(err)
	}

	column, ok := sortColumns[p.Sort.Field]
	if !ok {
		column = "created_at"
	}
	dir := "ASC"
	if p.Sort.Desc {
		dir = "DESC"
	}
	args = append(args, p.Size, p.Page*p.Size)
	rows, err := s.q.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM ledger_entries WHERE %s ORDER BY %s %s, seq %s LIMIT $%d OFFSET $%d`,
			entryColumns, cond, column, dir, dir, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, mapPgError(err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func collectEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LedgerEntry, error) {
		e, err := scanEntry(row)
		if err != nil {
			return domain.LedgerEntry{}, err
		}
		return *e, nil
	})
	if err != nil {
		return nil, mapPgError(err)
	}
	return entries, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var balance, status string
	if err := row.Scan(&a.ID, &a.OwnerID, &a.AccountNumber, &a.Currency, &balance, &status, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("account %s balance %q: %w", a.ID, balance, err)
	}
	a.Balance = b
	a.Status = domain.AccountStatus(status)
	return &a, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var typ, amount, balanceAfter, status string
	if err := row.Scan(&e.Seq, &e.ID, &e.AccountID, &typ, &amount, &balanceAfter, &e.ReferenceID, &status, &e.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("entry %s amount %q: %w", e.ID, amount, err)
	}
	if e.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
		return nil, fmt.Errorf("entry %s balance_after %q: %w", e.ID, balanceAfter, err)
	}
	e.Type = domain.EntryType(typ)
	e.Status = domain.EntryStatus(status)
	return &e, nil
}

// mapPgError translates SQLSTATEs the engine reacts to into store errors.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	case "23505":
		if pgErr.ConstraintName == "uniq_ledger_entries_reference_type" {
			return ErrDuplicateReference
		}
	case "23514":
		return ErrNegativeBalance
	}
	return err
}
