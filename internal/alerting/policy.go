package alerting

import (
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
)

// Policy holds the eligibility gates and the re-alert cooldown.
type Policy struct {
	// MinLiquidityUSD is the eligibility floor, below which a token is
	// never alerted no matter what fired.
	MinLiquidityUSD float64

	// MinAgeHours and MaxAgeHours bound the alertable age window,
	// inclusive on both ends.
	MinAgeHours float64
	MaxAgeHours float64

	// RealertWindow is the minimum gap between alerts for one token.
	// Zero disables the cooldown: every eligible scan re-alerts.
	RealertWindow time.Duration
}

// Decider applies the alert policy to one evaluated observation.
type Decider struct {
	policy Policy
}

// NewDecider creates a decider with the given policy.
func NewDecider(p Policy) *Decider {
	return &Decider{policy: p}
}

// Decide applies the gates in order: eligibility, signal, dedup. hist == nil
// means the token has no history yet. The fired set is carried in the
// decision either way, so callers can log suppressed signals.
func (d *Decider) Decide(cur *domain.TokenObservation, hist *domain.HistoryRecord, fired []domain.Indicator, now time.Time) domain.Decision {
	if cur.AgeHours < d.policy.MinAgeHours {
		return suppress(domain.SuppressTooYoung, fired)
	}
	if cur.AgeHours > d.policy.MaxAgeHours {
		return suppress(domain.SuppressTooOld, fired)
	}
	if cur.LiquidityUSD < d.policy.MinLiquidityUSD {
		return suppress(domain.SuppressLowLiquidity, fired)
	}

	if len(fired) == 0 {
		return suppress(domain.SuppressNoIndicators, nil)
	}

	if hist == nil || hist.LastAlertAt == nil {
		return emit(domain.AlertFirst, fired)
	}

	if d.policy.RealertWindow > 0 && now.Sub(*hist.LastAlertAt) < d.policy.RealertWindow {
		return suppress(domain.SuppressCooldown, fired)
	}
	return emit(domain.AlertRepeat, fired)
}

func emit(kind domain.AlertKind, fired []domain.Indicator) domain.Decision {
	return domain.Decision{
		Outcome:    domain.OutcomeEmit,
		AlertKind:  kind,
		Indicators: fired,
	}
}

func suppress(reason domain.SuppressReason, fired []domain.Indicator) domain.Decision {
	return domain.Decision{
		Outcome:    domain.OutcomeSuppress,
		Reason:     reason,
		Indicators: fired,
	}
}
