package feed

import (
	"context"
	"encoding/json"
)

// RawToken is one listing record as received from the feed. Numeric fields
// stay raw because the gateway is loosely typed: depending on endpoint
// version they arrive as JSON numbers or as numeric strings. Interpretation
// belongs to the normalizer.
type RawToken struct {
	TokenAddress string          `json:"tokenAddress"`
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	Liquidity    json.RawMessage `json:"liquidity,omitempty"`
	PriceUSD     json.RawMessage `json:"priceUsd,omitempty"`
	Txns         json.RawMessage `json:"txns,omitempty"`
	CreatedAt    json.RawMessage `json:"createdAt,omitempty"`
}

// Source produces raw listing records for one scan cycle.
type Source interface {
	// Fetch returns up to limit newest listings. An error means no usable
	// list this cycle; the caller aborts the cycle, not the process.
	Fetch(ctx context.Context, limit int) ([]RawToken, error)
}
