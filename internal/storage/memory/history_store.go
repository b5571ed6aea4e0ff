package memory

import (
	"context"
	"sync"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
	"github.com/armpit-symphony/pump-me-fun/internal/storage"
)

// HistoryStore is an in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.HistoryRecord // keyed by mint address
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		data: make(map[string]*domain.HistoryRecord),
	}
}

// Get retrieves the record for a mint address. Returns ErrNotFound if the
// token has never been observed.
func (s *HistoryStore) Get(_ context.Context, address string) (*domain.HistoryRecord, error) {
	if address == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return cloneRecord(rec), nil
}

// Upsert records an observation. Last-observation fields are always
// overwritten; alert fields move only when alertFired is true.
func (s *HistoryStore) Upsert(_ context.Context, obs *domain.TokenObservation, alertFired bool, indicators []domain.Indicator) error {
	if obs == nil || obs.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.data[obs.Address]
	if !exists {
		rec = &domain.HistoryRecord{
			Address:     obs.Address,
			FirstSeenAt: obs.ObservedAt,
		}
		s.data[obs.Address] = rec
	}

	rec.LastLiquidityUSD = obs.LiquidityUSD
	rec.LastPriceUSD = clonePtr(obs.PriceUSD)
	rec.LastTxnCount = clonePtr(obs.TxnCount)
	rec.LastObservedAt = obs.ObservedAt

	if alertFired {
		alertedAt := obs.ObservedAt
		rec.LastAlertAt = &alertedAt
		rec.LastAlertIndicators = domain.IndicatorKinds(indicators)
	}

	return nil
}

// Prune removes records whose LastObservedAt is older than now minus
// retention, returning how many were removed.
func (s *HistoryStore) Prune(_ context.Context, now time.Time, retention time.Duration) (int, error) {
	cutoff := now.Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for addr, rec := range s.data {
		if rec.LastObservedAt.Before(cutoff) {
			delete(s.data, addr)
			removed++
		}
	}

	return removed, nil
}

// Len returns the number of records currently held.
func (s *HistoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data), nil
}

// Flush is a no-op: the store has no durable backing.
func (s *HistoryStore) Flush(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *HistoryStore) Close() error {
	return nil
}

// Snapshot returns copies of all records. Used by snapshot-persisting
// wrappers and tests; not part of storage.HistoryStore.
func (s *HistoryStore) Snapshot(_ context.Context) ([]*domain.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*domain.HistoryRecord, 0, len(s.data))
	for _, rec := range s.data {
		records = append(records, cloneRecord(rec))
	}

	return records, nil
}

// Restore replaces the store contents with the given records. Records with
// an empty address are rejected.
func (s *HistoryStore) Restore(_ context.Context, records []*domain.HistoryRecord) error {
	data := make(map[string]*domain.HistoryRecord, len(records))
	for _, rec := range records {
		if rec == nil || rec.Address == "" {
			return storage.ErrInvalidInput
		}
		data[rec.Address] = cloneRecord(rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = data
	return nil
}

// cloneRecord copies a record including pointer fields, so callers can
// never mutate stored state through a returned record.
func cloneRecord(rec *domain.HistoryRecord) *domain.HistoryRecord {
	recCopy := *rec
	recCopy.LastPriceUSD = clonePtr(rec.LastPriceUSD)
	recCopy.LastTxnCount = clonePtr(rec.LastTxnCount)
	recCopy.LastAlertAt = clonePtr(rec.LastAlertAt)
	if rec.LastAlertIndicators != nil {
		recCopy.LastAlertIndicators = append([]string(nil), rec.LastAlertIndicators...)
	}
	return &recCopy
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Verify interface compliance at compile time.
var _ storage.HistoryStore = (*HistoryStore)(nil)
