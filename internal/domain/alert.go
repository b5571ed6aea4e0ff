package domain

import "time"

// AlertRecord captures one emitted alert for the append-only archive.
type AlertRecord struct {
	Address      string
	Symbol       string
	Kind         AlertKind
	Indicators   []string // kinds that fired, in firing order
	LiquidityUSD float64
	AgeHours     float64
	EmittedAt    time.Time
}
