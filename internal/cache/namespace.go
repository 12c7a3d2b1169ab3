package cache

import (
	"context"
	"time"
)

// TTLs holds the per-namespace TTL the cache layer applies on every
// Set/Load for that namespace — six cache namespaces, each
// independently expiring.
type TTLs struct {
	Session  time.Duration
	Source   time.Duration
	EventTag time.Duration
	Flow     time.Duration
	Segment  time.Duration
	Rule     time.Duration
}

func (t TTLs) forNamespace(ns Namespace) time.Duration {
	switch ns {
	case NamespaceSession:
		return t.Session
	case NamespaceSource:
		return t.Source
	case NamespaceEventTag:
		return t.EventTag
	case NamespaceFlow:
		return t.Flow
	case NamespaceSegment:
		return t.Segment
	case NamespaceRule:
		return t.Rule
	default:
		return 5 * time.Minute
	}
}

// Store wraps Cache with namespace-aware TTLs: check cache; on miss,
// load from storage and populate the cache before returning.
type Store struct {
	cache *Cache
	ttls  TTLs
}

// NewStore builds a namespace-aware cache wrapper around an existing
// Redis-backed Cache.
func NewStore(c *Cache, ttls TTLs) *Store {
	return &Store{cache: c, ttls: ttls}
}

// Invalidate removes a single id from a namespace.
func (s *Store) Invalidate(ctx context.Context, ns Namespace, id string) error {
	return s.cache.Delete(ctx, Key(ns, id))
}

// InvalidateNamespace removes every key in a namespace.
func (s *Store) InvalidateNamespace(ctx context.Context, ns Namespace) error {
	return s.cache.DeletePattern(ctx, Pattern(ns))
}

// Load fetches id from ns; on a cache miss (or when caching is
// disabled) it invokes loader, stores the result under ns's TTL, and
// returns it. loader errors propagate unchanged and are never cached.
//
// A standalone generic function rather than a Store method: Go
// methods cannot carry their own type parameters.
func Load[T any](ctx context.Context, s *Store, ns Namespace, id string, loader func(ctx context.Context) (T, error)) (T, error) {
	var out T
	key := Key(ns, id)

	if s.cache.IsEnabled() {
		if err := s.cache.Get(ctx, key, &out); err == nil {
			return out, nil
		}
	}

	loaded, err := loader(ctx)
	if err != nil {
		return out, err
	}

	_ = s.cache.Set(ctx, key, loaded, s.ttls.forNamespace(ns))
	return loaded, nil
}
