package alerting

import (
	"testing"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func defaultPolicy() Policy {
	return Policy{
		MinLiquidityUSD: 20000,
		MinAgeHours:     4,
		MaxAgeHours:     168,
		RealertWindow:   6 * time.Hour,
	}
}

func growthFired() []domain.Indicator {
	return []domain.Indicator{{Kind: domain.IndicatorLiquidityGrowth, Value: 0.6}}
}

func eligibleObs() *domain.TokenObservation {
	return &domain.TokenObservation{
		Address:      "mint1",
		LiquidityUSD: 530000,
		AgeHours:     6.5,
		ObservedAt:   now,
	}
}

func TestDecide_FirstSightingEmits(t *testing.T) {
	d := NewDecider(defaultPolicy())

	dec := d.Decide(eligibleObs(), nil, growthFired(), now)

	if !dec.Emit() {
		t.Fatalf("Expected emit, got %+v", dec)
	}
	if dec.AlertKind != domain.AlertFirst {
		t.Errorf("AlertKind: got %s, want FIRST", dec.AlertKind)
	}
	if len(dec.Indicators) != 1 {
		t.Errorf("Decision should carry the fired set, got %v", dec.Indicators)
	}
}

func TestDecide_KnownTokenWithoutAlertEmitsFirst(t *testing.T) {
	d := NewDecider(defaultPolicy())

	// Seen before, but never alerted: still a first alert.
	hist := &domain.HistoryRecord{Address: "mint1", LastLiquidityUSD: 330000}

	dec := d.Decide(eligibleObs(), hist, growthFired(), now)

	if !dec.Emit() || dec.AlertKind != domain.AlertFirst {
		t.Errorf("Expected first-alert emit, got %+v", dec)
	}
}

func TestDecide_CooldownSuppresses(t *testing.T) {
	d := NewDecider(defaultPolicy())

	// Last alert 2h ago with a 6h window: suppress even though signals fire.
	lastAlert := now.Add(-2 * time.Hour)
	hist := &domain.HistoryRecord{
		Address:     "mint1",
		LastAlertAt: &lastAlert,
	}

	dec := d.Decide(eligibleObs(), hist, growthFired(), now)

	if dec.Emit() {
		t.Fatalf("Expected suppress, got %+v", dec)
	}
	if dec.Reason != domain.SuppressCooldown {
		t.Errorf("Reason: got %s, want COOLDOWN", dec.Reason)
	}
	if len(dec.Indicators) != 1 {
		t.Errorf("Suppressed decision should still carry the fired set")
	}
}

func TestDecide_CooldownExpiryReAlerts(t *testing.T) {
	d := NewDecider(defaultPolicy())

	cases := []struct {
		name     string
		since    time.Duration
		wantEmit bool
	}{
		{"just inside the window", 6*time.Hour - time.Second, false},
		{"exactly at the window", 6 * time.Hour, true},
		{"past the window", 7 * time.Hour, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lastAlert := now.Add(-tc.since)
			hist := &domain.HistoryRecord{Address: "mint1", LastAlertAt: &lastAlert}

			dec := d.Decide(eligibleObs(), hist, growthFired(), now)
			if dec.Emit() != tc.wantEmit {
				t.Fatalf("emit=%v, want %v (%+v)", dec.Emit(), tc.wantEmit, dec)
			}
			if tc.wantEmit && dec.AlertKind != domain.AlertRepeat {
				t.Errorf("AlertKind: got %s, want RE-ALERT", dec.AlertKind)
			}
		})
	}
}

func TestDecide_ZeroWindowDisablesCooldown(t *testing.T) {
	p := defaultPolicy()
	p.RealertWindow = 0
	d := NewDecider(p)

	lastAlert := now.Add(-time.Minute)
	hist := &domain.HistoryRecord{Address: "mint1", LastAlertAt: &lastAlert}

	dec := d.Decide(eligibleObs(), hist, growthFired(), now)

	if !dec.Emit() {
		t.Fatalf("Zero window must re-alert every eligible scan, got %+v", dec)
	}
	if dec.AlertKind != domain.AlertRepeat {
		t.Errorf("AlertKind: got %s, want RE-ALERT", dec.AlertKind)
	}
}

func TestDecide_AgeGate(t *testing.T) {
	d := NewDecider(defaultPolicy())

	cases := []struct {
		name       string
		age        float64
		wantEmit   bool
		wantReason domain.SuppressReason
	}{
		{"too young", 3, false, domain.SuppressTooYoung},
		{"exactly min age", 4, true, ""},
		{"exactly max age", 168, true, ""},
		{"too old", 168.1, false, domain.SuppressTooOld},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := eligibleObs()
			obs.AgeHours = tc.age

			dec := d.Decide(obs, nil, growthFired(), now)
			if dec.Emit() != tc.wantEmit {
				t.Fatalf("emit=%v, want %v (%+v)", dec.Emit(), tc.wantEmit, dec)
			}
			if !tc.wantEmit && dec.Reason != tc.wantReason {
				t.Errorf("Reason: got %s, want %s", dec.Reason, tc.wantReason)
			}
		})
	}
}

func TestDecide_LiquidityGate(t *testing.T) {
	d := NewDecider(defaultPolicy())

	obs := eligibleObs()
	obs.LiquidityUSD = 19999

	dec := d.Decide(obs, nil, growthFired(), now)
	if dec.Emit() {
		t.Fatalf("Expected suppress below the liquidity floor, got %+v", dec)
	}
	if dec.Reason != domain.SuppressLowLiquidity {
		t.Errorf("Reason: got %s, want LOW_LIQUIDITY", dec.Reason)
	}

	obs.LiquidityUSD = 20000
	if dec := d.Decide(obs, nil, growthFired(), now); !dec.Emit() {
		t.Errorf("Exactly at the floor should be eligible, got %+v", dec)
	}
}

func TestDecide_NoIndicatorsSuppresses(t *testing.T) {
	d := NewDecider(defaultPolicy())

	dec := d.Decide(eligibleObs(), nil, nil, now)

	if dec.Emit() {
		t.Fatalf("Expected suppress with no indicators, got %+v", dec)
	}
	if dec.Reason != domain.SuppressNoIndicators {
		t.Errorf("Reason: got %s, want NO_INDICATORS", dec.Reason)
	}
}

func TestDecide_EligibilityCheckedBeforeSignal(t *testing.T) {
	d := NewDecider(defaultPolicy())

	// Ineligible age wins over the indicator state: the reported reason is
	// the gate, not the missing signal.
	obs := eligibleObs()
	obs.AgeHours = 3

	dec := d.Decide(obs, nil, nil, now)
	if dec.Reason != domain.SuppressTooYoung {
		t.Errorf("Reason: got %s, want TOO_YOUNG", dec.Reason)
	}
}

func TestDecide_CooldownIdempotentOverWindow(t *testing.T) {
	d := NewDecider(defaultPolicy())

	// Identical eligible observations every 30m: exactly one emit per 6h
	// window, at the first tick at or past expiry.
	lastAlert := now
	hist := &domain.HistoryRecord{Address: "mint1", LastAlertAt: &lastAlert}

	emits := 0
	for tick := 1; tick <= 12; tick++ { // 30m steps over 6h
		at := now.Add(time.Duration(tick) * 30 * time.Minute)
		dec := d.Decide(eligibleObs(), hist, growthFired(), at)
		if dec.Emit() {
			emits++
			alertedAt := at
			hist.LastAlertAt = &alertedAt
		}
	}

	if emits != 1 {
		t.Errorf("Expected exactly 1 emit across the 6h window, got %d", emits)
	}
}
