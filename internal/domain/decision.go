package domain

// Outcome represents the final emit/suppress result for one observation.
type Outcome string

const (
	OutcomeEmit     Outcome = "EMIT"
	OutcomeSuppress Outcome = "SUPPRESS"
)

// AlertKind distinguishes a token's first alert from later re-alerts.
type AlertKind string

const (
	AlertFirst  AlertKind = "FIRST"
	AlertRepeat AlertKind = "RE-ALERT"
)

// SuppressReason is the machine-readable reason a token was not alerted.
type SuppressReason string

const (
	SuppressTooYoung     SuppressReason = "TOO_YOUNG"
	SuppressTooOld       SuppressReason = "TOO_OLD"
	SuppressLowLiquidity SuppressReason = "LOW_LIQUIDITY"
	SuppressNoIndicators SuppressReason = "NO_INDICATORS"
	SuppressCooldown     SuppressReason = "COOLDOWN"
)

// Decision is the alert policy verdict for one observation.
type Decision struct {
	Outcome    Outcome
	AlertKind  AlertKind      // set when Outcome is EMIT
	Reason     SuppressReason // set when Outcome is SUPPRESS
	Indicators []Indicator    // indicators that fired for this observation
}

// Emit reports whether the decision is to send an alert.
func (d Decision) Emit() bool {
	return d.Outcome == OutcomeEmit
}
