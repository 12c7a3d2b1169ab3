// This file wires the Tracker's loader hooks (SourceLoader,
// ProfileLoader, ...) to the concrete internal/cache and
// internal/storage packages. Kept separate from tracker.go so tests
// can build a Deps value with fakes instead, without needing a live
// Postgres/Redis pair.
package tracker

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/tracardi/tracker-core/internal/cache"
	"github.com/tracardi/tracker-core/internal/domain"
	"github.com/tracardi/tracker-core/internal/rules"
	"github.com/tracardi/tracker-core/internal/segment"
	"github.com/tracardi/tracker-core/internal/storage"
)

// NewSourceLoader resolves a source id to its configuration, cached
// under the "source" namespace.
func NewSourceLoader(store *storage.Store, cacheStore *cache.Store) SourceLoader {
	return func(ctx context.Context, id string) (*domain.EventSource, error) {
		return cache.Load(ctx, cacheStore, cache.NamespaceSource, id, func(ctx context.Context) (*domain.EventSource, error) {
			var source domain.EventSource
			if err := store.Get(ctx, storage.IndexSource, id, &source); err != nil {
				if err == sql.ErrNoRows {
					return nil, nil
				}
				return nil, err
			}
			return &source, nil
		})
	}
}

// NewProfileLoader loads a profile directly from storage — profile is
// deliberately not one of the six cached namespaces,
// since the resolver and profile merger both need a read-your-writes
// view of it within the same request.
func NewProfileLoader(store *storage.Store) ProfileLoader {
	return func(ctx context.Context, id string) (*domain.Profile, error) {
		var profile domain.Profile
		if err := store.Get(ctx, storage.IndexProfile, id, &profile); err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, err
		}
		return &profile, nil
	}
}

// NewSessionLoader loads a session, cached under the "session"
// namespace.
func NewSessionLoader(store *storage.Store, cacheStore *cache.Store) SessionLoader {
	return func(ctx context.Context, id string) (*domain.Session, error) {
		return cache.Load(ctx, cacheStore, cache.NamespaceSession, id, func(ctx context.Context) (*domain.Session, error) {
			var session domain.Session
			if err := store.Get(ctx, storage.IndexSession, id, &session); err != nil {
				if err == sql.ErrNoRows {
					return nil, nil
				}
				return nil, err
			}
			return &session, nil
		})
	}
}

// NewSessionExister reports whether a session document exists, used by
// the persistence coordinator to decide whether to null out an
// event's session reference when saveSession is false.
func NewSessionExister(store *storage.Store) SessionExister {
	return func(ctx context.Context, id string) (bool, error) {
		var session domain.Session
		err := store.Get(ctx, storage.IndexSession, id, &session)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
}

// NewSessionCorrector recovers the profile id referenced by an
// existing session sharing a duplicated id. This backend's document
// store is keyed by primary key, so true duplicates cannot occur; the
// corrector still performs a real lookup (the session's own bound
// profile, if any) so the call site and its contract stay exercised by
// a fake in tests that inject an actual duplicate condition.
func NewSessionCorrector(store *storage.Store) SessionCorrector {
	return func(ctx context.Context, id string) ([]string, error) {
		var session domain.Session
		err := store.Get(ctx, storage.IndexSession, id, &session)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if session.Profile == nil {
			return nil, nil
		}
		return []string{session.Profile.ID}, nil
	}
}

// NewRuleLoader loads the routing rules for a source's event types,
// cached per (source, event type) pair under the "rule" namespace. A
// nil result (no rules for any of the event types) tells runPipeline
// to skip the rules/segmentation/merge stages entirely.
func NewRuleLoader(store *storage.Store, cacheStore *cache.Store) RuleLoader {
	return func(ctx context.Context, sourceID string, eventTypes []string) ([]rules.Rule, error) {
		var matched []rules.Rule
		for _, eventType := range eventTypes {
			// cache.Load prefixes the namespace, so the cache key is
			// cache.RuleKey(sourceID, eventType).
			id := sourceID + ":" + eventType
			loaded, err := cache.Load(ctx, cacheStore, cache.NamespaceRule, id, func(ctx context.Context) ([]rules.Rule, error) {
				var rs []rules.Rule
				if err := store.Get(ctx, storage.IndexRule, id, &rs); err != nil {
					if err == sql.ErrNoRows {
						return nil, nil
					}
					return nil, err
				}
				return rs, nil
			})
			if err != nil {
				return nil, err
			}
			matched = append(matched, loaded...)
		}
		if len(matched) == 0 {
			return nil, nil
		}
		return matched, nil
	}
}

// NewSegmentLoader loads segment definitions eligible to re-run given
// the event types the rules engine invoked, cached under the
// "segment" namespace keyed by the joined, sorted event-type list.
func NewSegmentLoader(store *storage.Store, cacheStore *cache.Store) SegmentLoader {
	return func(ctx context.Context, eventTypes []string) ([]segment.Definition, error) {
		sorted := append([]string(nil), eventTypes...)
		sort.Strings(sorted)
		key := strings.Join(sorted, ",")
		return cache.Load(ctx, cacheStore, cache.NamespaceSegment, key, func(ctx context.Context) ([]segment.Definition, error) {
			var defs []segment.Definition
			if err := store.Get(ctx, storage.IndexSegment, key, &defs); err != nil {
				if err == sql.ErrNoRows {
					return nil, nil
				}
				return nil, err
			}
			return defs, nil
		})
	}
}

// NewEventTagLoader loads the extra tags configured for an event
// type, cached under the "event_tag" namespace.
func NewEventTagLoader(store *storage.Store, cacheStore *cache.Store) EventTagLoader {
	return func(ctx context.Context, eventType string) ([]string, error) {
		return cache.Load(ctx, cacheStore, cache.NamespaceEventTag, eventType, func(ctx context.Context) ([]string, error) {
			var tags []string
			if err := store.Get(ctx, storage.IndexEventTag, eventType, &tags); err != nil {
				if err == sql.ErrNoRows {
					return nil, nil
				}
				return nil, err
			}
			return tags, nil
		})
	}
}
