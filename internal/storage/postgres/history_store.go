package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
	"github.com/armpit-symphony/pump-me-fun/internal/observability"
	"github.com/armpit-symphony/pump-me-fun/internal/storage"
)

// HistoryStore persists per-token scan history in PostgreSQL. Every write
// is durable on its own, so Flush has nothing to do.
type HistoryStore struct {
	pool *Pool
}

// NewHistoryStore creates a store backed by the given pool. The pool is
// owned by the caller and survives Close.
func NewHistoryStore(pool *Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

var _ storage.HistoryStore = (*HistoryStore)(nil)

// recordQuery reports query timing and outcome. A miss is not a failure.
func recordQuery(operation string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), err)
}

// Get retrieves the record for a mint address.
func (s *HistoryStore) Get(ctx context.Context, address string) (rec *domain.HistoryRecord, err error) {
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", storage.ErrInvalidInput)
	}
	defer recordQuery("get", time.Now(), &err)

	query := `
		SELECT address, last_liquidity_usd, last_price_usd, last_txn_count,
		       last_observed_at, first_seen_at, last_alert_at, last_alert_indicators
		FROM token_history
		WHERE address = $1
	`

	var r domain.HistoryRecord
	err = s.pool.QueryRow(ctx, query, address).Scan(
		&r.Address,
		&r.LastLiquidityUSD,
		&r.LastPriceUSD,
		&r.LastTxnCount,
		&r.LastObservedAt,
		&r.FirstSeenAt,
		&r.LastAlertAt,
		&r.LastAlertIndicators,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get history record: %w", err)
	}

	r.LastObservedAt = r.LastObservedAt.UTC()
	r.FirstSeenAt = r.FirstSeenAt.UTC()
	if r.LastAlertAt != nil {
		utc := r.LastAlertAt.UTC()
		r.LastAlertAt = &utc
	}

	return &r, nil
}

// Upsert records an observation. The first write for an address fixes
// first_seen_at; later writes never move it. Alert fields move only when
// alertFired is true.
func (s *HistoryStore) Upsert(ctx context.Context, obs *domain.TokenObservation, alertFired bool, indicators []domain.Indicator) (err error) {
	if obs == nil || obs.Address == "" {
		return fmt.Errorf("%w: observation without address", storage.ErrInvalidInput)
	}
	defer recordQuery("upsert", time.Now(), &err)

	query := `
		INSERT INTO token_history (
			address, last_liquidity_usd, last_price_usd, last_txn_count,
			last_observed_at, first_seen_at, last_alert_at, last_alert_indicators
		) VALUES (
			$1, $2, $3, $4, $5, $5,
			CASE WHEN $6 THEN $5 END,
			CASE WHEN $6 THEN $7::text[] END
		)
		ON CONFLICT (address) DO UPDATE SET
			last_liquidity_usd    = EXCLUDED.last_liquidity_usd,
			last_price_usd        = EXCLUDED.last_price_usd,
			last_txn_count        = EXCLUDED.last_txn_count,
			last_observed_at      = EXCLUDED.last_observed_at,
			last_alert_at         = CASE WHEN $6 THEN EXCLUDED.last_observed_at
			                             ELSE token_history.last_alert_at END,
			last_alert_indicators = CASE WHEN $6 THEN EXCLUDED.last_alert_indicators
			                             ELSE token_history.last_alert_indicators END,
			updated_at            = now()
	`

	_, err = s.pool.Exec(ctx, query,
		obs.Address,
		obs.LiquidityUSD,
		obs.PriceUSD,
		obs.TxnCount,
		obs.ObservedAt,
		alertFired,
		domain.IndicatorKinds(indicators),
	)
	if err != nil {
		return fmt.Errorf("upsert history record: %w", err)
	}

	return nil
}

// Prune removes records whose last observation is older than now minus
// retention, returning how many rows were deleted.
func (s *HistoryStore) Prune(ctx context.Context, now time.Time, retention time.Duration) (n int, err error) {
	defer recordQuery("prune", time.Now(), &err)

	cutoff := now.Add(-retention)
	tag, err := s.pool.Exec(ctx, `DELETE FROM token_history WHERE last_observed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// Len returns the number of records currently held.
func (s *HistoryStore) Len(ctx context.Context) (n int, err error) {
	defer recordQuery("len", time.Now(), &err)

	var count int64
	if err = s.pool.QueryRow(ctx, `SELECT count(*) FROM token_history`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history records: %w", err)
	}

	return int(count), nil
}

// Flush is a no-op: rows are durable as soon as Upsert returns.
func (s *HistoryStore) Flush(_ context.Context) error {
	return nil
}

// Close is a no-op; the pool is closed by its owner.
func (s *HistoryStore) Close() error {
	return nil
}
