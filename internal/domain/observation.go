package domain

import "time"

// TokenObservation is one normalized snapshot of a token's market state,
// produced fresh on every scan cycle. Observations are ephemeral; only the
// fields needed for the next comparison survive in HistoryRecord.
type TokenObservation struct {
	Address      string    // mint address, sole join key
	Symbol       string    // may be empty
	Name         string    // may be empty
	LiquidityUSD float64   // missing upstream -> 0
	PriceUSD     *float64  // nil when the feed omits price; 0 is a real value
	TxnCount     *int64    // recent transaction count; nil when absent
	AgeHours     float64   // hours since token creation at scan time
	AgeClamped   bool      // true when a negative age was clamped to 0
	ObservedAt   time.Time // scan timestamp
}
