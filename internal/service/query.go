package service

import (
	"math"
	"strings"
	"time"

	"github.com/punchamoorthee/ledgerops/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var defaultSort = domain.Sort{Field: domain.SortCreatedAt, Desc: true}

var sortFields = map[string]domain.SortField{
	"createdat":     domain.SortCreatedAt,
	"created_at":    domain.SortCreatedAt,
	"amount":        domain.SortAmount,
	"balanceafter":  domain.SortBalanceAfter,
	"balance_after": domain.SortBalanceAfter,
	"type":          domain.SortType,
}

// ParseSort reads "field,direction". Unknown or missing fields fall back to
// createdAt descending; a missing direction means descending.
func ParseSort(raw string) domain.Sort {
	field, dir, _ := strings.Cut(strings.TrimSpace(raw), ",")
	f, ok := sortFields[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return defaultSort
	}
	return domain.Sort{Field: f, Desc: !strings.EqualFold(strings.TrimSpace(dir), "asc")}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp. Blank or malformed input yields nil,
// which callers treat as "no bound".
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// pageRequest clamps a client page window to sane bounds.
func pageRequest(page, size int, sort string) domain.PageRequest {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	// page*size is the store offset and must not overflow
	if page > math.MaxInt/size-1 {
		page = math.MaxInt/size - 1
	}
	return domain.PageRequest{Page: page, Size: size, Sort: ParseSort(sort)}
}
