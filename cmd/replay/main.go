// Package main re-runs the alert engine over archived observations, usually
// with alternative thresholds, and reports what would have been alerted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/armpit-symphony/pump-me-fun/internal/alerting"
	"github.com/armpit-symphony/pump-me-fun/internal/config"
	"github.com/armpit-symphony/pump-me-fun/internal/domain"
	"github.com/armpit-symphony/pump-me-fun/internal/indicator"
	"github.com/armpit-symphony/pump-me-fun/internal/replay"
	chstore "github.com/armpit-symphony/pump-me-fun/internal/storage/clickhouse"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to JSON config file")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	fromTime := flag.String("from-time", "", "Start time (RFC3339)")
	toTime := flag.String("to-time", "", "End time (RFC3339)")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	// What-if overrides; a negative value keeps the configured threshold.
	minLiquidity := flag.Float64("min-liquidity-usd", -1, "Eligibility liquidity floor override")
	minAbsolute := flag.Float64("min-absolute-liquidity-usd", -1, "Absolute-liquidity trigger override")
	minAge := flag.Float64("min-age-hours", -1, "Minimum alertable age override")
	maxAge := flag.Float64("max-age-hours", -1, "Maximum alertable age override")
	minMomentum := flag.Float64("min-price-momentum", -1, "Price momentum trigger override (0.20 = +20%)")
	minGrowth := flag.Float64("min-liquidity-growth", -1, "Liquidity growth trigger override (0.50 = 1.5x)")
	minSpike := flag.Float64("min-volume-spike", -1, "Volume spike trigger override (5.0 = 5x)")
	minTxns := flag.Int64("min-txns-for-spike", -1, "Volume spike noise floor override")
	weekOldAge := flag.Float64("week-old-age-hours", -1, "Survivor rule activation age override")
	weekOldMult := flag.Float64("week-old-multiplier", -1, "Survivor rule liquidity ratio override")
	realertHours := flag.Float64("realert-hours", -1, "Re-alert cooldown override (0 disables)")

	flag.Parse()

	// Setup logger; stdout stays clean for the report
	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	if *minLiquidity >= 0 {
		cfg.Thresholds.MinLiquidityUSD = *minLiquidity
	}
	if *minAbsolute >= 0 {
		cfg.Thresholds.MinAbsoluteLiquidityUSD = *minAbsolute
	}
	if *minAge >= 0 {
		cfg.Thresholds.MinAgeHours = *minAge
	}
	if *maxAge >= 0 {
		cfg.Thresholds.MaxAgeHours = *maxAge
	}
	if *minMomentum >= 0 {
		cfg.Thresholds.MinPriceMomentum = *minMomentum
	}
	if *minGrowth >= 0 {
		cfg.Thresholds.MinLiquidityGrowth = *minGrowth
	}
	if *minSpike >= 0 {
		cfg.Thresholds.MinVolumeSpike = *minSpike
	}
	if *minTxns >= 0 {
		cfg.Thresholds.MinTxnsForSpike = *minTxns
	}
	if *weekOldAge >= 0 {
		cfg.Thresholds.WeekOldAgeHours = *weekOldAge
	}
	if *weekOldMult >= 0 {
		cfg.Thresholds.WeekOldLiquidityMultiplier = *weekOldMult
	}
	if *realertHours >= 0 {
		cfg.Scan.RealertHours = *realertHours
	}
	if cfg.Thresholds.MinAgeHours > cfg.Thresholds.MaxAgeHours {
		logger.Fatalf("min-age-hours %.1f exceeds max-age-hours %.1f",
			cfg.Thresholds.MinAgeHours, cfg.Thresholds.MaxAgeHours)
	}

	dsn := *clickhouseDSN
	if dsn == "" {
		dsn = cfg.Storage.ClickHouseDSN
	}
	if dsn == "" {
		logger.Fatal("--clickhouse-dsn is required (set CLICKHOUSE_DSN or storage.clickhouse_dsn)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		logger.Fatalf("connect to clickhouse: %v", err)
	}
	archive := chstore.NewObservationArchive(conn)
	defer archive.Close()

	// Determine time range
	var from, to time.Time
	if *fromTime != "" {
		from, err = time.Parse(time.RFC3339, *fromTime)
		if err != nil {
			logger.Fatalf("parse from-time: %v", err)
		}
	} else {
		from = time.Now().Add(-24 * time.Hour)
	}
	if *toTime != "" {
		to, err = time.Parse(time.RFC3339, *toTime)
		if err != nil {
			logger.Fatalf("parse to-time: %v", err)
		}
	} else {
		to = time.Now()
	}

	runner := replay.NewRunner(archive,
		indicator.NewEvaluator(thresholds(cfg)),
		alerting.NewDecider(policy(cfg)))

	logger.Printf("Replaying observations from %s to %s",
		from.Format(time.RFC3339), to.Format(time.RFC3339))

	sink := &printSink{outputJSON: *outputJSON}
	summary, err := runner.Run(ctx, from, to, sink)
	if err != nil {
		logger.Fatalf("replay failed: %v", err)
	}

	// Output summary
	if *outputJSON {
		output, _ := json.MarshalIndent(buildReport(from, to, summary, sink.alerts), "", "  ")
		fmt.Println(string(output))
	} else {
		printSummary(from, to, summary)
	}
}

// printSink prints would-be alerts as the replay produces them and keeps
// them for the JSON report.
type printSink struct {
	outputJSON bool
	alerts     []alertReport
}

// alertReport is one would-be alert in output form.
type alertReport struct {
	At           string   `json:"at"`
	Kind         string   `json:"kind"`
	Address      string   `json:"address"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name,omitempty"`
	LiquidityUSD float64  `json:"liquidity_usd"`
	AgeHours     float64  `json:"age_hours"`
	Indicators   []string `json:"indicators"`
}

// OnAlert records one would-be alert.
func (p *printSink) OnAlert(_ context.Context, a *replay.WouldAlert) error {
	rep := alertReport{
		At:           a.At.Format(time.RFC3339),
		Kind:         string(a.Kind),
		Address:      a.Address,
		Symbol:       a.Symbol,
		Name:         a.Name,
		LiquidityUSD: a.LiquidityUSD,
		AgeHours:     a.AgeHours,
		Indicators:   domain.IndicatorKinds(a.Indicators),
	}
	p.alerts = append(p.alerts, rep)

	if !p.outputJSON {
		fmt.Printf("[%s] %s %s (%s) liquidity=$%.0f age=%.1fh indicators=%v\n",
			rep.At, rep.Kind, rep.Symbol, rep.Address, rep.LiquidityUSD, rep.AgeHours, rep.Indicators)
	}
	return nil
}

// Ensure printSink implements replay.Sink
var _ replay.Sink = (*printSink)(nil)

// replayReport is the JSON output document.
type replayReport struct {
	From         string         `json:"from"`
	To           string         `json:"to"`
	Observations int            `json:"observations"`
	Tokens       int            `json:"tokens"`
	Alerts       int            `json:"alerts"`
	FirstAlerts  int            `json:"first_alerts"`
	Suppressed   map[string]int `json:"suppressed"`
	WouldAlert   []alertReport  `json:"would_alert"`
}

func buildReport(from, to time.Time, s *replay.Summary, alerts []alertReport) replayReport {
	suppressed := make(map[string]int, len(s.Suppressed))
	for reason, n := range s.Suppressed {
		suppressed[string(reason)] = n
	}
	if alerts == nil {
		alerts = []alertReport{}
	}
	return replayReport{
		From:         from.Format(time.RFC3339),
		To:           to.Format(time.RFC3339),
		Observations: s.Observations,
		Tokens:       s.Tokens,
		Alerts:       s.Alerts,
		FirstAlerts:  s.FirstAlerts,
		Suppressed:   suppressed,
		WouldAlert:   alerts,
	}
}

func printSummary(from, to time.Time, s *replay.Summary) {
	fmt.Printf("\n=== Replay Summary ===\n")
	fmt.Printf("Window:        %s to %s\n", from.Format(time.RFC3339), to.Format(time.RFC3339))
	fmt.Printf("Observations:  %d\n", s.Observations)
	fmt.Printf("Tokens:        %d\n", s.Tokens)
	fmt.Printf("Would alert:   %d (%d first, %d repeat)\n", s.Alerts, s.FirstAlerts, s.Alerts-s.FirstAlerts)
	if len(s.Suppressed) > 0 {
		reasons := make([]string, 0, len(s.Suppressed))
		for reason := range s.Suppressed {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		fmt.Printf("Suppressed:\n")
		for _, reason := range reasons {
			fmt.Printf("  %-16s %d\n", reason, s.Suppressed[domain.SuppressReason(reason)])
		}
	}
}

// thresholds maps configuration onto the indicator trigger levels.
func thresholds(cfg *config.Config) indicator.Thresholds {
	return indicator.Thresholds{
		MinAbsoluteLiquidityUSD:    cfg.Thresholds.MinAbsoluteLiquidityUSD,
		MinPriceMomentum:           cfg.Thresholds.MinPriceMomentum,
		MinLiquidityGrowth:         cfg.Thresholds.MinLiquidityGrowth,
		MinVolumeSpike:             cfg.Thresholds.MinVolumeSpike,
		MinTxnsForSpike:            cfg.Thresholds.MinTxnsForSpike,
		WeekOldAgeHours:            cfg.Thresholds.WeekOldAgeHours,
		WeekOldLiquidityMultiplier: cfg.Thresholds.WeekOldLiquidityMultiplier,
	}
}

// policy maps configuration onto the alert gates.
func policy(cfg *config.Config) alerting.Policy {
	return alerting.Policy{
		MinLiquidityUSD: cfg.Thresholds.MinLiquidityUSD,
		MinAgeHours:     cfg.Thresholds.MinAgeHours,
		MaxAgeHours:     cfg.Thresholds.MaxAgeHours,
		RealertWindow:   cfg.RealertWindow(),
	}
}
