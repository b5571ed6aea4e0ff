package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
	"github.com/armpit-symphony/pump-me-fun/internal/observability"
	"github.com/armpit-symphony/pump-me-fun/internal/storage"
)

const (
	// recordKeyPrefix namespaces the per-token JSON documents.
	recordKeyPrefix = "history:token:"
	// indexKey is a sorted set of addresses scored by last observation time
	// in milliseconds. Prune and Len work off the index alone.
	indexKey = "history:index"
)

// HistoryStore implements storage.HistoryStore on Redis. Each token is one
// JSON document plus an entry in a time-scored index. Upsert is a
// read-modify-write cycle; the engine is the only writer.
type HistoryStore struct {
	client *redis.Client
}

// NewHistoryStore creates a store around the given client. The store takes
// ownership of the client and closes it on Close.
func NewHistoryStore(client *redis.Client) *HistoryStore {
	return &HistoryStore{client: client}
}

var _ storage.HistoryStore = (*HistoryStore)(nil)

// historyDocument is the stored form of a HistoryRecord, tagged to match the
// file backend's snapshot encoding.
type historyDocument struct {
	Address             string     `json:"address"`
	LastLiquidityUSD    float64    `json:"last_liquidity_usd"`
	LastPriceUSD        *float64   `json:"last_price_usd,omitempty"`
	LastTxnCount        *int64     `json:"last_txn_count,omitempty"`
	LastObservedAt      time.Time  `json:"last_observed_at"`
	FirstSeenAt         time.Time  `json:"first_seen_at"`
	LastAlertAt         *time.Time `json:"last_alert_at,omitempty"`
	LastAlertIndicators []string   `json:"last_alert_indicators,omitempty"`
}

func (d *historyDocument) toDomain() *domain.HistoryRecord {
	return &domain.HistoryRecord{
		Address:             d.Address,
		LastLiquidityUSD:    d.LastLiquidityUSD,
		LastPriceUSD:        d.LastPriceUSD,
		LastTxnCount:        d.LastTxnCount,
		LastObservedAt:      d.LastObservedAt,
		FirstSeenAt:         d.FirstSeenAt,
		LastAlertAt:         d.LastAlertAt,
		LastAlertIndicators: d.LastAlertIndicators,
	}
}

// recordQuery reports query timing and outcome. A miss is not a failure.
func recordQuery(operation string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	observability.RecordDBQuery("redis", operation, time.Since(start).Seconds(), err)
}

// fetch loads one document without touching metrics so Upsert's internal
// read does not count as a separate query.
func (s *HistoryStore) fetch(ctx context.Context, address string) (*historyDocument, error) {
	raw, err := s.client.Get(ctx, recordKeyPrefix+address).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get history record: %w", err)
	}

	var doc historyDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode history record %s: %w", address, err)
	}
	return &doc, nil
}

// Get retrieves the record for a mint address.
func (s *HistoryStore) Get(ctx context.Context, address string) (rec *domain.HistoryRecord, err error) {
	if address == "" {
		return nil, fmt.Errorf("%w: empty address", storage.ErrInvalidInput)
	}
	defer recordQuery("get", time.Now(), &err)

	doc, err := s.fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

// Upsert records an observation. The first write for an address fixes
// FirstSeenAt; alert fields move only when alertFired is true.
func (s *HistoryStore) Upsert(ctx context.Context, obs *domain.TokenObservation, alertFired bool, indicators []domain.Indicator) (err error) {
	if obs == nil || obs.Address == "" {
		return fmt.Errorf("%w: observation without address", storage.ErrInvalidInput)
	}
	defer recordQuery("upsert", time.Now(), &err)

	doc := historyDocument{
		Address:          obs.Address,
		LastLiquidityUSD: obs.LiquidityUSD,
		LastPriceUSD:     obs.PriceUSD,
		LastTxnCount:     obs.TxnCount,
		LastObservedAt:   obs.ObservedAt,
		FirstSeenAt:      obs.ObservedAt,
	}

	prev, err := s.fetch(ctx, obs.Address)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if prev != nil {
		doc.FirstSeenAt = prev.FirstSeenAt
		doc.LastAlertAt = prev.LastAlertAt
		doc.LastAlertIndicators = prev.LastAlertIndicators
	}
	if alertFired {
		alertAt := obs.ObservedAt
		doc.LastAlertAt = &alertAt
		doc.LastAlertIndicators = domain.IndicatorKinds(indicators)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+obs.Address, raw, 0)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(obs.ObservedAt.UnixMilli()),
		Member: obs.Address,
	})
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write history record: %w", err)
	}

	return nil
}

// Prune removes records whose last observation is older than now minus
// retention, returning how many were removed.
func (s *HistoryStore) Prune(ctx context.Context, now time.Time, retention time.Duration) (n int, err error) {
	defer recordQuery("prune", time.Now(), &err)

	cutoff := now.Add(-retention)
	// Exclusive bound: a record observed exactly at the cutoff stays.
	stale, err := s.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list stale history records: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(stale))
	members := make([]any, 0, len(stale))
	for _, address := range stale {
		keys = append(keys, recordKeyPrefix+address)
		members = append(members, address)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, indexKey, members...)
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("prune history records: %w", err)
	}

	return len(stale), nil
}

// Len returns the number of records currently held.
func (s *HistoryStore) Len(ctx context.Context) (n int, err error) {
	defer recordQuery("len", time.Now(), &err)

	count, err := s.client.ZCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count history records: %w", err)
	}
	return int(count), nil
}

// Flush is a no-op: every write is already durable on the server.
func (s *HistoryStore) Flush(_ context.Context) error {
	return nil
}

// Close closes the underlying client.
func (s *HistoryStore) Close() error {
	return s.client.Close()
}
