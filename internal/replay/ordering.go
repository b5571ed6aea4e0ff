package replay

import (
	"sort"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
)

// SortObservations orders observations by (ObservedAt ASC, Address ASC).
// Replaying in scan order is what makes the pass deterministic; the sort
// runs even when the archive claims its rows are ordered, so correctness
// never depends on backend behavior.
func SortObservations(observations []*domain.TokenObservation) {
	sort.SliceStable(observations, func(i, j int) bool {
		return compareObservations(observations[i], observations[j]) < 0
	})
}

// compareObservations returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (ObservedAt ASC, Address ASC)
func compareObservations(a, b *domain.TokenObservation) int {
	if !a.ObservedAt.Equal(b.ObservedAt) {
		if a.ObservedAt.Before(b.ObservedAt) {
			return -1
		}
		return 1
	}
	if a.Address != b.Address {
		if a.Address < b.Address {
			return -1
		}
		return 1
	}
	return 0
}
