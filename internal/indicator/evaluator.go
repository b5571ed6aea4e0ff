package indicator

import (
	"github.com/armpit-symphony/pump-me-fun/internal/domain"
)

// Thresholds holds the trigger levels for all trend rules.
type Thresholds struct {
	// MinAbsoluteLiquidityUSD fires AbsoluteLiquidity; the only rule that
	// needs no history.
	MinAbsoluteLiquidityUSD float64

	// MinPriceMomentum is the minimum fractional price change (0.20 = +20%).
	MinPriceMomentum float64

	// MinLiquidityGrowth is the minimum fractional liquidity change
	// (0.50 = grew to 1.5x).
	MinLiquidityGrowth float64

	// MinVolumeSpike is the minimum txn-count ratio (5.0 = 5x).
	MinVolumeSpike float64

	// MinTxnsForSpike is the noise floor: a spike only counts when the
	// previous observation already had at least this many txns.
	MinTxnsForSpike int64

	// WeekOldAgeHours is the age at which the survivor rule activates.
	WeekOldAgeHours float64

	// WeekOldLiquidityMultiplier is the liquidity ratio a survivor must
	// reach.
	WeekOldLiquidityMultiplier float64
}

// Evaluator classifies which trend indicators fire for an observation.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an evaluator with the given trigger levels.
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{thresholds: t}
}

// Evaluate returns the indicators that fire for cur compared against prev,
// in a fixed order: PriceMomentum, LiquidityGrowth, VolumeSpike,
// WeekOldMultiplier, AbsoluteLiquidity.
//
// prev == nil means first sighting: all delta rules stay silent (a missing
// baseline is never treated as infinite growth), only AbsoluteLiquidity can
// fire. No input combination divides by zero.
func (e *Evaluator) Evaluate(cur *domain.TokenObservation, prev *domain.HistoryRecord) []domain.Indicator {
	var fired []domain.Indicator

	if prev != nil {
		if ind, ok := e.priceMomentum(cur, prev); ok {
			fired = append(fired, ind)
		}
		if ind, ok := e.liquidityGrowth(cur, prev); ok {
			fired = append(fired, ind)
		}
		if ind, ok := e.volumeSpike(cur, prev); ok {
			fired = append(fired, ind)
		}
		if ind, ok := e.weekOldMultiplier(cur, prev); ok {
			fired = append(fired, ind)
		}
	}

	if cur.LiquidityUSD >= e.thresholds.MinAbsoluteLiquidityUSD {
		fired = append(fired, domain.Indicator{
			Kind:  domain.IndicatorAbsoluteLiquidity,
			Value: cur.LiquidityUSD,
		})
	}

	return fired
}

// priceMomentum fires when the fractional price change since the previous
// observation reaches MinPriceMomentum. Both prices must be present and the
// previous price positive.
func (e *Evaluator) priceMomentum(cur *domain.TokenObservation, prev *domain.HistoryRecord) (domain.Indicator, bool) {
	if cur.PriceUSD == nil || prev.LastPriceUSD == nil {
		return domain.Indicator{}, false
	}
	prevPrice := *prev.LastPriceUSD
	if prevPrice <= 0 {
		return domain.Indicator{}, false
	}

	change := (*cur.PriceUSD - prevPrice) / prevPrice
	if change < e.thresholds.MinPriceMomentum {
		return domain.Indicator{}, false
	}
	return domain.Indicator{Kind: domain.IndicatorPriceMomentum, Value: change}, true
}

// liquidityGrowth fires when the fractional liquidity change reaches
// MinLiquidityGrowth. A zero previous liquidity never fires: growth from
// nothing is not measurable.
func (e *Evaluator) liquidityGrowth(cur *domain.TokenObservation, prev *domain.HistoryRecord) (domain.Indicator, bool) {
	prevLiq := prev.LastLiquidityUSD
	if prevLiq <= 0 {
		return domain.Indicator{}, false
	}

	growth := (cur.LiquidityUSD - prevLiq) / prevLiq
	if growth < e.thresholds.MinLiquidityGrowth {
		return domain.Indicator{}, false
	}
	return domain.Indicator{Kind: domain.IndicatorLiquidityGrowth, Value: growth}, true
}

// volumeSpike fires when the txn-count ratio reaches MinVolumeSpike. Both
// counts must be present and the previous count must clear the noise floor,
// so 2 -> 24 txns never alerts.
func (e *Evaluator) volumeSpike(cur *domain.TokenObservation, prev *domain.HistoryRecord) (domain.Indicator, bool) {
	if cur.TxnCount == nil || prev.LastTxnCount == nil {
		return domain.Indicator{}, false
	}
	prevTxns := *prev.LastTxnCount
	if prevTxns <= 0 {
		return domain.Indicator{}, false
	}
	if prevTxns < e.thresholds.MinTxnsForSpike {
		return domain.Indicator{}, false
	}

	ratio := float64(*cur.TxnCount) / float64(prevTxns)
	if ratio < e.thresholds.MinVolumeSpike {
		return domain.Indicator{}, false
	}
	return domain.Indicator{Kind: domain.IndicatorVolumeSpike, Value: ratio}, true
}

// weekOldMultiplier fires for tokens at least WeekOldAgeHours old whose
// liquidity reached WeekOldLiquidityMultiplier times the previous value.
func (e *Evaluator) weekOldMultiplier(cur *domain.TokenObservation, prev *domain.HistoryRecord) (domain.Indicator, bool) {
	if cur.AgeHours < e.thresholds.WeekOldAgeHours {
		return domain.Indicator{}, false
	}
	prevLiq := prev.LastLiquidityUSD
	if prevLiq <= 0 {
		return domain.Indicator{}, false
	}

	ratio := cur.LiquidityUSD / prevLiq
	if ratio < e.thresholds.WeekOldLiquidityMultiplier {
		return domain.Indicator{}, false
	}
	return domain.Indicator{Kind: domain.IndicatorWeekOldMultiplier, Value: ratio}, true
}
