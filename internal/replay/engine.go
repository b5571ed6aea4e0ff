package replay

import (
	"context"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
)

// WouldAlert is one alert the policy would have emitted for an archived
// observation.
type WouldAlert struct {
	Address      string
	Symbol       string
	Name         string
	Kind         domain.AlertKind
	Indicators   []domain.Indicator
	LiquidityUSD float64
	AgeHours     float64
	At           time.Time
}

// Sink receives replay output in observation order.
type Sink interface {
	// OnAlert is called for each would-be alert. Returning an error stops
	// the replay.
	OnAlert(ctx context.Context, alert *WouldAlert) error
}

// Summary aggregates one replay pass.
type Summary struct {
	Observations int
	Tokens       int
	Alerts       int
	FirstAlerts  int
	Suppressed   map[domain.SuppressReason]int
}
