package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
	"github.com/armpit-symphony/pump-me-fun/internal/storage"
	"github.com/armpit-symphony/pump-me-fun/internal/storage/memory"
)

// snapshotVersion is bumped when the on-disk format changes.
const snapshotVersion = 1

// HistoryStore is a storage.HistoryStore persisted as a single JSON snapshot
// file. All reads and writes go through an in-memory store; Flush serializes
// the full state and replaces the file atomically via temp + rename.
type HistoryStore struct {
	path    string
	mem     *memory.HistoryStore
	flushMu sync.Mutex
}

type snapshot struct {
	Version int              `json:"version"`
	SavedAt time.Time        `json:"saved_at"`
	Records []snapshotRecord `json:"records"`
}

type snapshotRecord struct {
	Address             string     `json:"address"`
	LastLiquidityUSD    float64    `json:"last_liquidity_usd"`
	LastPriceUSD        *float64   `json:"last_price_usd,omitempty"`
	LastTxnCount        *int64     `json:"last_txn_count,omitempty"`
	LastObservedAt      time.Time  `json:"last_observed_at"`
	FirstSeenAt         time.Time  `json:"first_seen_at"`
	LastAlertAt         *time.Time `json:"last_alert_at,omitempty"`
	LastAlertIndicators []string   `json:"last_alert_indicators,omitempty"`
}

// NewHistoryStore opens the snapshot at path, creating parent directories as
// needed. A missing file starts an empty store; an unreadable or undecodable
// file returns ErrCorruptState so the caller fails loudly instead of
// re-alerting on every known token.
func NewHistoryStore(path string) (*HistoryStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history file: %w: empty path", storage.ErrInvalidInput)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history file: create dir: %w", err)
		}
	}

	s := &HistoryStore{
		path: path,
		mem:  memory.NewHistoryStore(),
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *HistoryStore) load() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("history file %s: %w: %v", s.path, storage.ErrCorruptState, err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("history file %s: %w: %v", s.path, storage.ErrCorruptState, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("history file %s: %w: unsupported version %d", s.path, storage.ErrCorruptState, snap.Version)
	}

	records := make([]*domain.HistoryRecord, 0, len(snap.Records))
	for _, r := range snap.Records {
		records = append(records, r.toDomain())
	}
	if err := s.mem.Restore(context.Background(), records); err != nil {
		return fmt.Errorf("history file %s: %w: %v", s.path, storage.ErrCorruptState, err)
	}
	return nil
}

// Get retrieves the record for a mint address. Returns ErrNotFound if the
// token has never been observed.
func (s *HistoryStore) Get(ctx context.Context, address string) (*domain.HistoryRecord, error) {
	return s.mem.Get(ctx, address)
}

// Upsert records an observation in memory. Durability happens on Flush.
func (s *HistoryStore) Upsert(ctx context.Context, obs *domain.TokenObservation, alertFired bool, indicators []domain.Indicator) error {
	return s.mem.Upsert(ctx, obs, alertFired, indicators)
}

// Prune removes records whose LastObservedAt is older than now minus retention.
func (s *HistoryStore) Prune(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	return s.mem.Prune(ctx, now, retention)
}

// Len returns the number of records currently held.
func (s *HistoryStore) Len(ctx context.Context) (int, error) {
	return s.mem.Len(ctx)
}

// Flush writes the full snapshot to a temp file in the same directory and
// renames it over the target, so a crash mid-write never leaves a truncated
// snapshot behind.
func (s *HistoryStore) Flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	records, err := s.mem.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("history file: snapshot: %w", err)
	}

	snap := snapshot{
		Version: snapshotVersion,
		SavedAt: time.Now().UTC(),
		Records: make([]snapshotRecord, 0, len(records)),
	}
	for _, rec := range records {
		snap.Records = append(snap.Records, fromDomain(rec))
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("history file: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("history file: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("history file: rename %s: %w", tmp, err)
	}
	return nil
}

// Close flushes the snapshot one last time.
func (s *HistoryStore) Close() error {
	return s.Flush(context.Background())
}

func (r snapshotRecord) toDomain() *domain.HistoryRecord {
	return &domain.HistoryRecord{
		Address:             r.Address,
		LastLiquidityUSD:    r.LastLiquidityUSD,
		LastPriceUSD:        r.LastPriceUSD,
		LastTxnCount:        r.LastTxnCount,
		LastObservedAt:      r.LastObservedAt,
		FirstSeenAt:         r.FirstSeenAt,
		LastAlertAt:         r.LastAlertAt,
		LastAlertIndicators: r.LastAlertIndicators,
	}
}

func fromDomain(rec *domain.HistoryRecord) snapshotRecord {
	return snapshotRecord{
		Address:             rec.Address,
		LastLiquidityUSD:    rec.LastLiquidityUSD,
		LastPriceUSD:        rec.LastPriceUSD,
		LastTxnCount:        rec.LastTxnCount,
		LastObservedAt:      rec.LastObservedAt,
		FirstSeenAt:         rec.FirstSeenAt,
		LastAlertAt:         rec.LastAlertAt,
		LastAlertIndicators: rec.LastAlertIndicators,
	}
}

// Verify interface compliance at compile time.
var _ storage.HistoryStore = (*HistoryStore)(nil)
