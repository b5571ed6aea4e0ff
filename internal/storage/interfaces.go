package storage

import (
	"context"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
)

// HistoryStore provides access to per-token scan history. Exactly one
// goroutine writes to a store at a time; implementations still guard
// internal state so read-only callers (metrics, health) stay safe.
type HistoryStore interface {
	// Get retrieves the record for a mint address. Returns ErrNotFound if
	// the token has never been observed.
	Get(ctx context.Context, address string) (*domain.HistoryRecord, error)

	// Upsert records an observation. Last-observation fields are always
	// overwritten; LastAlertAt and LastAlertIndicators move only when
	// alertFired is true. FirstSeenAt is set on the first upsert and never
	// changes afterwards.
	Upsert(ctx context.Context, obs *domain.TokenObservation, alertFired bool, indicators []domain.Indicator) error

	// Prune removes records whose LastObservedAt is older than now minus
	// retention, returning how many were removed.
	Prune(ctx context.Context, now time.Time, retention time.Duration) (int, error)

	// Len returns the number of records currently held.
	Len(ctx context.Context) (int, error)

	// Flush forces buffered state to durable storage. No-op for backends
	// that persist on every write.
	Flush(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}

// ObservationArchive is an append-only log of every normalized observation
// and every emitted alert. Writes are best-effort: the scan cycle logs
// archive failures and moves on.
type ObservationArchive interface {
	// AppendObservations adds a batch of observations.
	AppendObservations(ctx context.Context, observations []*domain.TokenObservation) error

	// AppendAlert adds one emitted alert.
	AppendAlert(ctx context.Context, alert *domain.AlertRecord) error

	// GetObservationsByTimeRange retrieves observations with ObservedAt in
	// [from, to], ordered by ObservedAt ASC then Address ASC.
	GetObservationsByTimeRange(ctx context.Context, from, to time.Time) ([]*domain.TokenObservation, error)

	// Close releases underlying resources.
	Close() error
}
