package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/alerting"
	"github.com/armpit-symphony/pump-me-fun/internal/domain"
	"github.com/armpit-symphony/pump-me-fun/internal/indicator"
	"github.com/armpit-symphony/pump-me-fun/internal/storage"
	"github.com/armpit-symphony/pump-me-fun/internal/storage/memory"
)

// Runner re-runs the indicator and policy stages over archived observations,
// usually with thresholds that differ from the ones the live scanner ran
// with. History builds up from the replayed observations themselves,
// starting empty, so the pass answers "what would this policy have alerted
// on" rather than mixing in live state.
type Runner struct {
	archive   storage.ObservationArchive
	evaluator *indicator.Evaluator
	decider   *alerting.Decider
}

// NewRunner creates a replay runner.
func NewRunner(archive storage.ObservationArchive, evaluator *indicator.Evaluator, decider *alerting.Decider) *Runner {
	return &Runner{
		archive:   archive,
		evaluator: evaluator,
		decider:   decider,
	}
}

// Run replays observations with ObservedAt in [from, to] in deterministic
// order, sending every would-be alert to sink. A nil sink collects the
// summary only.
func (r *Runner) Run(ctx context.Context, from, to time.Time, sink Sink) (*Summary, error) {
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	observations, err := r.archive.GetObservationsByTimeRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}

	return r.replay(ctx, observations, sink)
}

func (r *Runner) replay(ctx context.Context, observations []*domain.TokenObservation, sink Sink) (*Summary, error) {
	SortObservations(observations)

	store := memory.NewHistoryStore()
	summary := &Summary{
		Suppressed: make(map[domain.SuppressReason]int),
	}

	for _, obs := range observations {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		summary.Observations++

		prev, err := store.Get(ctx, obs.Address)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load history for %s: %w", obs.Address, err)
		}

		fired := r.evaluator.Evaluate(obs, prev)
		// The observation's own timestamp is "now": cooldown math replays
		// exactly as it would have run live.
		decision := r.decider.Decide(obs, prev, fired, obs.ObservedAt)

		if decision.Emit() {
			summary.Alerts++
			if decision.AlertKind == domain.AlertFirst {
				summary.FirstAlerts++
			}
			if sink != nil {
				alert := &WouldAlert{
					Address:      obs.Address,
					Symbol:       obs.Symbol,
					Name:         obs.Name,
					Kind:         decision.AlertKind,
					Indicators:   decision.Indicators,
					LiquidityUSD: obs.LiquidityUSD,
					AgeHours:     obs.AgeHours,
					At:           obs.ObservedAt,
				}
				if err := sink.OnAlert(ctx, alert); err != nil {
					return nil, fmt.Errorf("deliver replay alert: %w", err)
				}
			}
		} else {
			summary.Suppressed[decision.Reason]++
		}

		if err := store.Upsert(ctx, obs, decision.Emit(), decision.Indicators); err != nil {
			return nil, fmt.Errorf("record observation for %s: %w", obs.Address, err)
		}
	}

	n, err := store.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("count replayed tokens: %w", err)
	}
	summary.Tokens = n

	return summary, nil
}
