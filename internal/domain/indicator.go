package domain

// IndicatorKind identifies one trend signal.
type IndicatorKind string

const (
	IndicatorPriceMomentum     IndicatorKind = "PRICE_MOMENTUM"
	IndicatorLiquidityGrowth   IndicatorKind = "LIQUIDITY_GROWTH"
	IndicatorVolumeSpike       IndicatorKind = "VOLUME_SPIKE"
	IndicatorWeekOldMultiplier IndicatorKind = "WEEK_OLD_MULTIPLIER"
	IndicatorAbsoluteLiquidity IndicatorKind = "ABSOLUTE_LIQUIDITY"
)

// String returns the string representation of the kind.
func (k IndicatorKind) String() string {
	return string(k)
}

// IsValid checks if the kind is one of the closed set.
func (k IndicatorKind) IsValid() bool {
	switch k {
	case IndicatorPriceMomentum, IndicatorLiquidityGrowth, IndicatorVolumeSpike,
		IndicatorWeekOldMultiplier, IndicatorAbsoluteLiquidity:
		return true
	}
	return false
}

// Indicator is one fired trend signal together with the magnitude that fired
// it: fractional change for momentum/growth, ratio for spike/multiplier, USD
// value for absolute liquidity.
type Indicator struct {
	Kind  IndicatorKind
	Value float64
}

// IndicatorKinds extracts the kind names from a fired set, in firing order.
func IndicatorKinds(fired []Indicator) []string {
	if len(fired) == 0 {
		return nil
	}
	kinds := make([]string, 0, len(fired))
	for _, ind := range fired {
		kinds = append(kinds, ind.Kind.String())
	}
	return kinds
}
