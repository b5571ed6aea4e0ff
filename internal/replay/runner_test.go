package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/alerting"
	"github.com/armpit-symphony/pump-me-fun/internal/domain"
	"github.com/armpit-symphony/pump-me-fun/internal/indicator"
)

const (
	wsolMint = "So11111111111111111111111111111111111111112"
	rayMint  = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// collectingSink collects would-be alerts for verification.
type collectingSink struct {
	alerts []*WouldAlert
	err    error
}

func (s *collectingSink) OnAlert(_ context.Context, alert *WouldAlert) error {
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

// stubArchive serves canned observations filtered by the requested range.
type stubArchive struct {
	observations []*domain.TokenObservation
	err          error
}

func (a *stubArchive) AppendObservations(context.Context, []*domain.TokenObservation) error {
	return nil
}

func (a *stubArchive) AppendAlert(context.Context, *domain.AlertRecord) error {
	return nil
}

func (a *stubArchive) GetObservationsByTimeRange(_ context.Context, from, to time.Time) ([]*domain.TokenObservation, error) {
	if a.err != nil {
		return nil, a.err
	}
	var out []*domain.TokenObservation
	for _, obs := range a.observations {
		if obs.ObservedAt.Before(from) || obs.ObservedAt.After(to) {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

func (a *stubArchive) Close() error { return nil }

func defaultThresholds() indicator.Thresholds {
	return indicator.Thresholds{
		MinAbsoluteLiquidityUSD:    200000,
		MinPriceMomentum:           0.20,
		MinLiquidityGrowth:         0.50,
		MinVolumeSpike:             5.0,
		MinTxnsForSpike:            10,
		WeekOldAgeHours:            168,
		WeekOldLiquidityMultiplier: 2.0,
	}
}

func defaultPolicy() alerting.Policy {
	return alerting.Policy{
		MinLiquidityUSD: 20000,
		MinAgeHours:     4,
		MaxAgeHours:     168,
		RealertWindow:   6 * time.Hour,
	}
}

func newTestRunner(archive *stubArchive, thresholds indicator.Thresholds, policy alerting.Policy) *Runner {
	return NewRunner(archive, indicator.NewEvaluator(thresholds), alerting.NewDecider(policy))
}

func observation(address string, liquidityUSD, ageHours float64, observedAt time.Time) *domain.TokenObservation {
	return &domain.TokenObservation{
		Address:      address,
		Symbol:       "GEM",
		Name:         "Gem Token",
		LiquidityUSD: liquidityUSD,
		AgeHours:     ageHours,
		ObservedAt:   observedAt,
	}
}

func TestRunner_FirstSightingThenCooldown(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	archive := &stubArchive{observations: []*domain.TokenObservation{
		observation(wsolMint, 330000, 6.5, t0),
		observation(wsolMint, 530000, 8.5, t0.Add(2*time.Hour)),
	}}

	runner := newTestRunner(archive, defaultThresholds(), defaultPolicy())
	sink := &collectingSink{}

	summary, err := runner.Run(context.Background(), t0, t0.Add(3*time.Hour), sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Observations != 2 {
		t.Errorf("Observations = %d, want 2", summary.Observations)
	}
	if summary.Tokens != 1 {
		t.Errorf("Tokens = %d, want 1", summary.Tokens)
	}
	if summary.Alerts != 1 {
		t.Errorf("Alerts = %d, want 1", summary.Alerts)
	}
	if summary.FirstAlerts != 1 {
		t.Errorf("FirstAlerts = %d, want 1", summary.FirstAlerts)
	}
	if summary.Suppressed[domain.SuppressCooldown] != 1 {
		t.Errorf("Suppressed[cooldown] = %d, want 1", summary.Suppressed[domain.SuppressCooldown])
	}

	if len(sink.alerts) != 1 {
		t.Fatalf("sink received %d alerts, want 1", len(sink.alerts))
	}
	alert := sink.alerts[0]
	if alert.Address != wsolMint {
		t.Errorf("alert address = %s, want %s", alert.Address, wsolMint)
	}
	if alert.Kind != domain.AlertFirst {
		t.Errorf("alert kind = %s, want %s", alert.Kind, domain.AlertFirst)
	}
	if !alert.At.Equal(t0) {
		t.Errorf("alert at = %v, want %v", alert.At, t0)
	}
	if len(alert.Indicators) != 1 || alert.Indicators[0].Kind != domain.IndicatorAbsoluteLiquidity {
		t.Errorf("alert indicators = %v, want only %s", alert.Indicators, domain.IndicatorAbsoluteLiquidity)
	}
}

func TestRunner_AlternativeThresholdsChangeOutcome(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	observations := []*domain.TokenObservation{
		observation(wsolMint, 330000, 6.5, t0),
		observation(wsolMint, 530000, 8.5, t0.Add(2*time.Hour)),
	}

	live, err := newTestRunner(&stubArchive{observations: observations}, defaultThresholds(), defaultPolicy()).
		Run(context.Background(), t0, t0.Add(3*time.Hour), nil)
	if err != nil {
		t.Fatalf("Run with live thresholds failed: %v", err)
	}

	strict := defaultThresholds()
	strict.MinAbsoluteLiquidityUSD = 1e9
	strict.MinLiquidityGrowth = 0.90

	whatIf, err := newTestRunner(&stubArchive{observations: observations}, strict, defaultPolicy()).
		Run(context.Background(), t0, t0.Add(3*time.Hour), nil)
	if err != nil {
		t.Fatalf("Run with strict thresholds failed: %v", err)
	}

	if live.Alerts != 1 {
		t.Errorf("live Alerts = %d, want 1", live.Alerts)
	}
	if whatIf.Alerts != 0 {
		t.Errorf("what-if Alerts = %d, want 0", whatIf.Alerts)
	}
	if whatIf.Suppressed[domain.SuppressNoIndicators] != 2 {
		t.Errorf("what-if Suppressed[no indicators] = %d, want 2",
			whatIf.Suppressed[domain.SuppressNoIndicators])
	}
}

func TestRunner_SortsObservationsBeforeReplay(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	// Served newest-first: only a sorted replay sees the 60k -> 120k growth.
	archive := &stubArchive{observations: []*domain.TokenObservation{
		observation(wsolMint, 120000, 7.0, t0.Add(time.Hour)),
		observation(wsolMint, 60000, 6.0, t0),
	}}

	runner := newTestRunner(archive, defaultThresholds(), defaultPolicy())
	sink := &collectingSink{}

	summary, err := runner.Run(context.Background(), t0, t0.Add(2*time.Hour), sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Alerts != 1 {
		t.Fatalf("Alerts = %d, want 1", summary.Alerts)
	}
	alert := sink.alerts[0]
	if !alert.At.Equal(t0.Add(time.Hour)) {
		t.Errorf("alert at = %v, want %v", alert.At, t0.Add(time.Hour))
	}
	if len(alert.Indicators) != 1 || alert.Indicators[0].Kind != domain.IndicatorLiquidityGrowth {
		t.Errorf("alert indicators = %v, want only %s", alert.Indicators, domain.IndicatorLiquidityGrowth)
	}
}

func TestRunner_AddressBreaksTimestampTies(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	archive := &stubArchive{observations: []*domain.TokenObservation{
		observation(wsolMint, 300000, 6.0, t0),
		observation(usdcMint, 300000, 6.0, t0),
		observation(rayMint, 300000, 6.0, t0),
	}}

	runner := newTestRunner(archive, defaultThresholds(), defaultPolicy())
	sink := &collectingSink{}

	if _, err := runner.Run(context.Background(), t0, t0, sink); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(sink.alerts) != 3 {
		t.Fatalf("sink received %d alerts, want 3", len(sink.alerts))
	}
	want := []string{rayMint, usdcMint, wsolMint}
	for i, alert := range sink.alerts {
		if alert.Address != want[i] {
			t.Errorf("alert[%d].Address = %s, want %s", i, alert.Address, want[i])
		}
	}
}

func TestRunner_CooldownZeroReemits(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	archive := &stubArchive{observations: []*domain.TokenObservation{
		observation(wsolMint, 330000, 6.5, t0),
		observation(wsolMint, 530000, 8.5, t0.Add(2*time.Hour)),
	}}

	policy := defaultPolicy()
	policy.RealertWindow = 0

	runner := newTestRunner(archive, defaultThresholds(), policy)
	sink := &collectingSink{}

	summary, err := runner.Run(context.Background(), t0, t0.Add(3*time.Hour), sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.Alerts != 2 {
		t.Errorf("Alerts = %d, want 2", summary.Alerts)
	}
	if summary.FirstAlerts != 1 {
		t.Errorf("FirstAlerts = %d, want 1", summary.FirstAlerts)
	}
	if len(sink.alerts) != 2 {
		t.Fatalf("sink received %d alerts, want 2", len(sink.alerts))
	}
	if sink.alerts[1].Kind != domain.AlertRepeat {
		t.Errorf("second alert kind = %s, want %s", sink.alerts[1].Kind, domain.AlertRepeat)
	}
}

func TestRunner_InvalidRange(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	runner := newTestRunner(&stubArchive{}, defaultThresholds(), defaultPolicy())

	_, err := runner.Run(context.Background(), t0.Add(time.Hour), t0, nil)
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("err = %v, want ErrInvalidRange", err)
	}
}

func TestRunner_EmptyRange(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	runner := newTestRunner(&stubArchive{}, defaultThresholds(), defaultPolicy())

	summary, err := runner.Run(context.Background(), t0, t0.Add(time.Hour), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Observations != 0 || summary.Alerts != 0 || summary.Tokens != 0 {
		t.Errorf("summary = %+v, want all zero", summary)
	}
}

func TestRunner_ArchiveErrorPropagates(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	archiveErr := errors.New("connection refused")
	runner := newTestRunner(&stubArchive{err: archiveErr}, defaultThresholds(), defaultPolicy())

	_, err := runner.Run(context.Background(), t0, t0.Add(time.Hour), nil)
	if !errors.Is(err, archiveErr) {
		t.Errorf("err = %v, want wrapped %v", err, archiveErr)
	}
}

func TestRunner_SinkErrorStopsReplay(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	archive := &stubArchive{observations: []*domain.TokenObservation{
		observation(wsolMint, 330000, 6.5, t0),
	}}

	sinkErr := errors.New("pipe closed")
	runner := newTestRunner(archive, defaultThresholds(), defaultPolicy())

	_, err := runner.Run(context.Background(), t0, t0.Add(time.Hour), &collectingSink{err: sinkErr})
	if !errors.Is(err, sinkErr) {
		t.Errorf("err = %v, want wrapped %v", err, sinkErr)
	}
}
