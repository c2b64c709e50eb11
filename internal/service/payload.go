package service

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"github.com/punchamoorthee/ledgerops/internal/domain"
)

// encodePayload renders the response as RFC 8785 canonical JSON so the bytes cached
// under an idempotency key do not depend on encoder field order or spacing.
func encodePayload(resp domain.TransactionResponse) ([]byte, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize response: %w", err)
	}
	return canon, nil
}

func decodePayload(payload []byte) (domain.TransactionResponse, error) {
	var resp domain.TransactionResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return domain.TransactionResponse{}, fmt.Errorf("decode cached response: %w", err)
	}
	return resp, nil
}
