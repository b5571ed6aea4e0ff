package domain

import "time"

// HistoryRecord is the persisted per-token state used for trend comparison
// and alert deduplication. One record per token ever observed.
type HistoryRecord struct {
	Address             string
	LastLiquidityUSD    float64
	LastPriceUSD        *float64   // nil if the last observation lacked a price
	LastTxnCount        *int64     // nil if the last observation lacked a txn count
	LastObservedAt      time.Time  // updated on every upsert
	FirstSeenAt         time.Time  // set once, on the first upsert
	LastAlertAt         *time.Time // nil until the first emitted alert
	LastAlertIndicators []string   // indicator kinds of the last emitted alert
}

// HasAlerted reports whether any alert has ever been emitted for the token.
func (r *HistoryRecord) HasAlerted() bool {
	return r.LastAlertAt != nil
}
