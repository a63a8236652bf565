// Package detector groups visually similar images into duplicate clusters
// and orchestrates the detection pipeline over a set of scanned records.
package detector

import (
	"context"
	"fmt"
)

// MatchFunc reports whether candidate falls within the configured threshold
// of seed, and the similarity recorded for the pair. Distance-based
// algorithms compare with <= against their threshold, similarity-based ones
// with >=; both are expressed through this single predicate.
type MatchFunc[F any] func(seed, candidate F) (matched bool, similarity float64)

type groupMember struct {
	id         string
	similarity float64
}

type fingerprintGroup[F any] struct {
	id             string
	representative F
	members        []groupMember
}

// groupFingerprints partitions fingerprints into duplicate groups using
// greedy single-link clustering: each unassigned id in input order becomes a
// seed, and every later unassigned id matching the seed joins its group.
// Matching is evaluated only against the seed, never among members, so a
// group is not guaranteed to be a clique under the threshold relation.
// Membership is deterministic for a fixed input order.
//
// Group ids are assigned sequentially with the given prefix in finalization
// order. Cancellation is checked on every outer and inner iteration; on
// cancel the scan unwinds, returning only the groups finalized so far (a
// group still being filled is discarded).
func groupFingerprints[F any](ctx context.Context, ids []string, fingerprints map[string]F, prefix string, match MatchFunc[F]) []fingerprintGroup[F] {
	assigned := make(map[string]bool, len(ids))
	var groups []fingerprintGroup[F]

	for i, seedID := range ids {
		if ctx.Err() != nil {
			return groups
		}
		if assigned[seedID] {
			continue
		}
		seed, ok := fingerprints[seedID]
		if !ok {
			continue
		}

		var current *fingerprintGroup[F]
		for _, candidateID := range ids[i+1:] {
			if ctx.Err() != nil {
				return groups
			}
			if assigned[candidateID] {
				continue
			}
			candidate, ok := fingerprints[candidateID]
			if !ok {
				continue
			}

			matched, similarity := match(seed, candidate)
			if !matched {
				continue
			}

			if current == nil {
				// Lazily open the group; the seed's fingerprint is the
				// representative and never changes afterwards.
				current = &fingerprintGroup[F]{
					id:             fmt.Sprintf("%s%d", prefix, len(groups)),
					representative: seed,
					members:        []groupMember{{id: seedID, similarity: 1.0}},
				}
				assigned[seedID] = true
			}
			current.members = append(current.members, groupMember{id: candidateID, similarity: similarity})
			assigned[candidateID] = true
		}

		if current != nil && len(current.members) >= 2 {
			groups = append(groups, *current)
		}
	}

	return groups
}
