// Package merger implements the Profile Merger: when a profile's
// Operation carries merge keys, duplicate profiles sharing those trait
// values are found and collapsed into one.
package merger

import (
	"context"

	"github.com/tracardi/tracker-core/internal/domain"
)

// Lookup loads candidate profiles sharing the given trait key/value
// pairs, excluding the profile being merged. The production
// implementation queries internal/storage; tests supply a fake.
type Lookup func(ctx context.Context, mergeBy map[string]any, excludeID string, limit int) ([]*domain.Profile, error)

// Merger collapses duplicate profiles found via mergeBy into a single
// canonical profile.
type Merger struct {
	lookup Lookup
	limit  int
}

// New builds a Merger backed by lookup, searching at most limit
// candidate profiles.
func New(lookup Lookup, limit int) *Merger {
	if limit <= 0 {
		limit = 1000
	}
	return &Merger{lookup: lookup, limit: limit}
}

// MergeKeyValues extracts the trait key/value pairs a profile should
// be merged by, from its pending Operation.MergeKeys.
func MergeKeyValues(profile *domain.Profile) map[string]any {
	if profile == nil {
		return nil
	}
	return profile.Operation.MergeKeys
}

// Invoke finds and merges duplicates of profile. Returns nil, nil when
// no duplicates are found — the caller keeps the original profile.
// overrideOldData decides trait precedence: when true, the surviving
// profile's traits win over a duplicate's on key conflict.
func (m *Merger) Invoke(ctx context.Context, profile *domain.Profile, mergeBy map[string]any, overrideOldData bool) (*domain.Profile, error) {
	if len(mergeBy) == 0 {
		return nil, nil
	}

	candidates, err := m.lookup(ctx, mergeBy, profile.ID, m.limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	merged := profile.Snapshot()
	merged.Operation = profile.Operation
	merged.Operation.Update = true
	merged.Operation.MergeKeys = nil

	for _, candidate := range candidates {
		mergeTraits(merged, candidate, overrideOldData)
	}

	return merged, nil
}

// mergeTraits folds a duplicate's traits into the surviving profile.
// On a key conflict, overrideOldData decides which value wins: true
// keeps the surviving profile's own (newer) value, false takes the
// duplicate's.
func mergeTraits(into *domain.Profile, from *domain.Profile, overrideOldData bool) {
	if from.Traits == nil {
		return
	}
	if into.Traits == nil {
		into.Traits = map[string]any{}
	}
	for k, v := range from.Traits {
		_, exists := into.Traits[k]
		if !exists || !overrideOldData {
			into.Traits[k] = v
		}
	}
}
