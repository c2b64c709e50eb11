package idempotency

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/punchamoorthee/ledgerops/internal/domain"
)

// Memory keeps records in a sync.Map; LoadOrStore gives first-writer-wins without locking.
type Memory struct {
	records sync.Map // string -> domain.IdempotencyRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.records.Load(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v.(domain.IdempotencyRecord).Payload), true, nil
}

func (m *Memory) Store(ctx context.Context, key string, payload []byte) error {
	rec := domain.IdempotencyRecord{Key: key, Payload: slices.Clone(payload), CreatedAt: time.Now().UTC()}
	if _, loaded := m.records.LoadOrStore(key, rec); loaded {
		return ErrAlreadyExists
	}
	return nil
}
