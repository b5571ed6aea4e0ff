package stub

import (
	"context"
	"sync"

	"github.com/armpit-symphony/pump-me-fun/internal/feed"
)

// StubSource replays fixed batches of raw tokens for testing, one batch per
// Fetch call. An exhausted source returns empty listings.
// Implements feed.Source interface.
type StubSource struct {
	mu      sync.Mutex
	batches [][]feed.RawToken
	err     error
	calls   int
}

// NewStubSource creates a stub source replaying the given batches in order.
func NewStubSource(batches ...[]feed.RawToken) *StubSource {
	return &StubSource{batches: batches}
}

// SetError makes every following Fetch fail with err. Pass nil to clear.
func (s *StubSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns how many times Fetch was invoked.
func (s *StubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Fetch returns the next batch, truncated to limit.
// Returns copies to prevent mutation.
func (s *StubSource) Fetch(_ context.Context, limit int) ([]feed.RawToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}

	batch := s.batches[0]
	s.batches = s.batches[1:]

	if limit > 0 && len(batch) > limit {
		batch = batch[:limit]
	}

	out := make([]feed.RawToken, len(batch))
	copy(out, batch)
	return out, nil
}

var _ feed.Source = (*StubSource)(nil)
