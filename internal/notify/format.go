package notify

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
)

// Alert headers.
const (
	headerFirst  = "💎 *PUMP.FUN GEM FOUND*"
	headerRepeat = "🔁 *PUMP.FUN GEM UPDATE*"
)

// shortAddrLen is how much of the mint address the message shows.
const shortAddrLen = 20

// FormatAlert renders the Telegram message for an emitted decision: header,
// name and symbol, shortened address, liquidity and age, one line per fired
// indicator, pump.fun link.
func FormatAlert(obs *domain.TokenObservation, dec domain.Decision) Message {
	header := headerFirst
	if dec.AlertKind == domain.AlertRepeat {
		header = headerRepeat
	}

	name := obs.Name
	if name == "" {
		name = "Unknown"
	}
	symbol := obs.Symbol
	if symbol == "" {
		symbol = "???"
	}

	shortAddr := obs.Address
	if len(shortAddr) > shortAddrLen {
		shortAddr = shortAddr[:shortAddrLen] + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", header)
	fmt.Fprintf(&b, "*%s* (%s)\n", name, symbol)
	fmt.Fprintf(&b, "`%s`\n\n", shortAddr)
	fmt.Fprintf(&b, "💧 Liquidity: $%s\n", formatUSD(obs.LiquidityUSD))
	fmt.Fprintf(&b, "⏰ %.1fh old\n", obs.AgeHours)
	for _, ind := range dec.Indicators {
		b.WriteString(indicatorLine(ind))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\n🔗 https://pump.fun/%s", obs.Address)

	return Message{Text: b.String()}
}

func indicatorLine(ind domain.Indicator) string {
	switch ind.Kind {
	case domain.IndicatorPriceMomentum:
		return fmt.Sprintf("📈 Price +%.0f%%", ind.Value*100)
	case domain.IndicatorLiquidityGrowth:
		return fmt.Sprintf("📊 Liquidity +%.0f%%", ind.Value*100)
	case domain.IndicatorVolumeSpike:
		return fmt.Sprintf("🔥 Volume x%.1f", ind.Value)
	case domain.IndicatorWeekOldMultiplier:
		return fmt.Sprintf("🏆 Survivor liquidity x%.1f", ind.Value)
	case domain.IndicatorAbsoluteLiquidity:
		return fmt.Sprintf("💰 Deep pool $%s", formatUSD(ind.Value))
	default:
		return ind.Kind.String()
	}
}

// formatUSD renders whole dollars with thousands separators.
func formatUSD(v float64) string {
	s := strconv.FormatFloat(math.Round(v), 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	if len(s) > 3 {
		var b strings.Builder
		pre := len(s) % 3
		if pre > 0 {
			b.WriteString(s[:pre])
		}
		for i := pre; i < len(s); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}

	if neg {
		return "-" + s
	}
	return s
}
