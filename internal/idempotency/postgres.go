package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps records in the idempotency_keys table next to the ledger.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	var body []byte
	err := p.db.QueryRow(ctx, "SELECT response_body FROM idempotency_keys WHERE key = $1", key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency query failed: %w", err)
	}
	return body, true, nil
}

func (p *Postgres) Store(ctx context.Context, key string, payload []byte) error {
	tag, err := p.db.Exec(ctx,
		`INSERT INTO idempotency_keys (key, response_body) VALUES ($1, $2)
		 ON CONFLICT (key) DO NOTHING`,
		key, payload,
	)
	if err != nil {
		return fmt.Errorf("idempotency insert failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}
