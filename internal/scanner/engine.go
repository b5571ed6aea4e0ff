// Package scanner runs the poll loop: fetch the new-token listing, evaluate
// every token against its history, deliver alerts, and persist the outcome.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/alerting"
	"github.com/armpit-symphony/pump-me-fun/internal/domain"
	"github.com/armpit-symphony/pump-me-fun/internal/feed"
	"github.com/armpit-symphony/pump-me-fun/internal/indicator"
	"github.com/armpit-symphony/pump-me-fun/internal/normalization"
	"github.com/armpit-symphony/pump-me-fun/internal/notify"
	"github.com/armpit-symphony/pump-me-fun/internal/observability"
	"github.com/armpit-symphony/pump-me-fun/internal/storage"
)

// Engine drives scan cycles. One goroutine owns it; cycles never overlap.
type Engine struct {
	source    feed.Source
	watcher   *feed.Watcher
	store     storage.HistoryStore
	archive   storage.ObservationArchive
	evaluator *indicator.Evaluator
	decider   *alerting.Decider
	notifier  notify.Notifier

	fetchLimit   int
	fetchTimeout time.Duration
	pollInterval time.Duration
	retention    time.Duration

	logger *log.Logger
	now    func() time.Time

	// lastDropped tracks the watcher's cumulative eviction count between
	// cycles so each cycle records only the new drops.
	lastDropped uint64
}

// EngineOptions contains configuration for creating an Engine.
// Source, Store, Evaluator, Decider and Notifier are required.
// Watcher and Archive are optional.
type EngineOptions struct {
	Source    feed.Source
	Watcher   *feed.Watcher
	Store     storage.HistoryStore
	Archive   storage.ObservationArchive
	Evaluator *indicator.Evaluator
	Decider   *alerting.Decider
	Notifier  notify.Notifier

	FetchLimit   int           // Default: 200 tokens per listing
	FetchTimeout time.Duration // Default: 30s
	PollInterval time.Duration // Default: 5m
	Retention    time.Duration // Default: 200h - history records older than this are pruned

	Logger *log.Logger
	Now    func() time.Time
}

// NewEngine creates a scan engine.
func NewEngine(opts EngineOptions) *Engine {
	fetchLimit := opts.FetchLimit
	if fetchLimit == 0 {
		fetchLimit = 200
	}

	fetchTimeout := opts.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = 30 * time.Second
	}

	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = 5 * time.Minute
	}

	retention := opts.Retention
	if retention == 0 {
		retention = 200 * time.Hour
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		source:       opts.Source,
		watcher:      opts.Watcher,
		store:        opts.Store,
		archive:      opts.Archive,
		evaluator:    opts.Evaluator,
		decider:      opts.Decider,
		notifier:     opts.Notifier,
		fetchLimit:   fetchLimit,
		fetchTimeout: fetchTimeout,
		pollInterval: pollInterval,
		retention:    retention,
		logger:       logger,
		now:          now,
	}
}

// CycleStats summarizes one scan cycle.
type CycleStats struct {
	Fetched      int // tokens returned by the feed
	Merged       int // creation-stream events added to the cycle
	Evaluated    int // tokens that passed normalization
	Rejected     int // feed entries dropped by normalization
	Emitted      int // alerts delivered
	Suppressed   int // decisions below the bar
	SendFailures int // alerts that could not be delivered
	Pruned       int // history records removed
}

// Run scans immediately, then on every tick until the context is cancelled.
// A failed cycle is logged and the loop keeps going; only cancellation stops it.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Printf("Scanner started, poll interval: %v, fetch limit: %d, retention: %v",
		e.pollInterval, e.fetchLimit, e.retention)

	if _, err := e.RunCycle(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Printf("Scan cycle failed: %v", err)
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Println("Scanner stopping...")
			return ctx.Err()

		case <-ticker.C:
			if _, err := e.RunCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Printf("Scan cycle failed: %v", err)
			}
		}
	}
}

// RunCycle executes one scan pass. A fetch failure aborts the cycle before
// any state changes; every later error affects only its own token and is
// logged. Cancellation is honored between tokens, never between a delivered
// alert and its history write.
func (e *Engine) RunCycle(ctx context.Context) (CycleStats, error) {
	var stats CycleStats
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	listing, err := e.source.Fetch(fetchCtx, e.fetchLimit)
	cancel()
	if err != nil {
		observability.RecordCycle("fetch_failed", time.Since(start).Seconds())
		return stats, fmt.Errorf("fetch listing: %w", err)
	}
	stats.Fetched = len(listing)
	observability.RecordTokensFetched(len(listing))

	if e.watcher != nil {
		events := e.watcher.Drain()
		var added int
		listing, added = mergeCreationEvents(listing, events)
		stats.Merged = added
		observability.RecordStreamMerged(added)

		if d := e.watcher.Dropped(); d > e.lastDropped {
			observability.RecordStreamDropped(int(d - e.lastDropped))
			e.lastDropped = d
		}
	}

	scanTime := e.now()
	observed := make([]*domain.TokenObservation, 0, len(listing))

	for _, raw := range listing {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if obs := e.processToken(ctx, raw, scanTime, &stats); obs != nil {
			observed = append(observed, obs)
		}
	}

	pruned, err := e.store.Prune(ctx, scanTime, e.retention)
	if err != nil {
		e.logger.Printf("Error pruning history: %v", err)
	} else if pruned > 0 {
		stats.Pruned = pruned
		observability.RecordPruned(pruned)
	}

	if n, err := e.store.Len(ctx); err == nil {
		observability.UpdateHistorySize(n)
	}

	if e.archive != nil && len(observed) > 0 {
		if err := e.archive.AppendObservations(ctx, observed); err != nil {
			e.logger.Printf("Error archiving observations: %v", err)
		}
	}

	if err := e.store.Flush(ctx); err != nil {
		e.logger.Printf("Error flushing history: %v", err)
	}

	elapsed := time.Since(start)
	observability.RecordCycle("ok", elapsed.Seconds())
	observability.MarkScanSuccess(scanTime.Unix())

	e.logger.Printf("Scan done: %d fetched, %d stream-merged, %d evaluated, %d alerts, %d suppressed, %d pruned (%.2fs)",
		stats.Fetched, stats.Merged, stats.Evaluated, stats.Emitted, stats.Suppressed, stats.Pruned, elapsed.Seconds())

	return stats, nil
}

// processToken takes one feed entry through normalize, evaluate, decide,
// deliver and persist. Returns the observation for archiving, or nil if the
// entry was rejected.
func (e *Engine) processToken(ctx context.Context, raw feed.RawToken, scanTime time.Time, stats *CycleStats) *domain.TokenObservation {
	obs, err := normalization.Normalize(raw, scanTime)
	if err != nil {
		stats.Rejected++
		observability.RecordTokenRejected(rejectReason(err))
		return nil
	}
	stats.Evaluated++

	prev, err := e.store.Get(ctx, obs.Address)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		// Bad state must not masquerade as a first sighting
		e.logger.Printf("Error loading history for %s: %v", obs.Address, err)
		return obs
	}

	fired := e.evaluator.Evaluate(obs, prev)
	for _, ind := range fired {
		observability.RecordIndicatorFired(ind.Kind.String())
	}

	dec := e.decider.Decide(obs, prev, fired, scanTime)

	alertFired := false
	if dec.Emit() {
		sendStart := time.Now()
		err := e.notifier.Send(ctx, notify.FormatAlert(obs, dec))
		if err != nil {
			stats.SendFailures++
			observability.RecordDelivery("failed", time.Since(sendStart).Seconds())
			e.logger.Printf("Error delivering alert for %s: %v", obs.Address, err)
		} else {
			alertFired = true
			stats.Emitted++
			observability.RecordDelivery("ok", time.Since(sendStart).Seconds())
			observability.RecordAlertEmitted(string(dec.AlertKind))
			e.logger.Printf("Alert sent: %s %s (%s) liquidity=$%.0f age=%.1fh indicators=%v",
				dec.AlertKind, obs.Symbol, obs.Address, obs.LiquidityUSD, obs.AgeHours,
				domain.IndicatorKinds(dec.Indicators))
		}
	} else {
		stats.Suppressed++
		observability.RecordAlertSuppressed(string(dec.Reason))
	}

	upsertCtx := ctx
	if alertFired {
		// A delivered alert must reach the store even if shutdown began
		// mid-token, or the token would re-alert on restart.
		upsertCtx = context.WithoutCancel(ctx)
	}
	if err := e.store.Upsert(upsertCtx, obs, alertFired, dec.Indicators); err != nil {
		e.logger.Printf("Error upserting history for %s: %v", obs.Address, err)
	}

	if alertFired && e.archive != nil {
		rec := &domain.AlertRecord{
			Address:      obs.Address,
			Symbol:       obs.Symbol,
			Kind:         dec.AlertKind,
			Indicators:   domain.IndicatorKinds(dec.Indicators),
			LiquidityUSD: obs.LiquidityUSD,
			AgeHours:     obs.AgeHours,
			EmittedAt:    scanTime,
		}
		if err := e.archive.AppendAlert(upsertCtx, rec); err != nil {
			e.logger.Printf("Error archiving alert for %s: %v", obs.Address, err)
		}
	}

	return obs
}

// mergeCreationEvents appends stream events for addresses the listing does
// not already cover. The polled listing wins: it carries liquidity and price,
// creation events only the mint. Duplicates within either input collapse to
// the first occurrence. Returns the merged listing and how many events were
// added.
func mergeCreationEvents(listing, events []feed.RawToken) ([]feed.RawToken, int) {
	seen := make(map[string]struct{}, len(listing)+len(events))
	out := make([]feed.RawToken, 0, len(listing)+len(events))

	for _, t := range listing {
		if t.TokenAddress == "" {
			out = append(out, t) // let normalization reject it
			continue
		}
		if _, ok := seen[t.TokenAddress]; ok {
			continue
		}
		seen[t.TokenAddress] = struct{}{}
		out = append(out, t)
	}

	added := 0
	for _, ev := range events {
		if ev.TokenAddress == "" {
			continue
		}
		if _, ok := seen[ev.TokenAddress]; ok {
			continue
		}
		seen[ev.TokenAddress] = struct{}{}
		out = append(out, ev)
		added++
	}

	return out, added
}

// rejectReason maps a normalization error to a metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, normalization.ErrMissingAddress):
		return "missing_address"
	case errors.Is(err, normalization.ErrBadAddress):
		return "bad_address"
	case errors.Is(err, normalization.ErrBadTimestamp):
		return "bad_timestamp"
	case errors.Is(err, normalization.ErrNegativeValue):
		return "negative_value"
	default:
		return "invalid"
	}
}
