// Package sync implements the Profile Synchronizer: for sources with
// synchronize_profiles=true, concurrent requests touching the same
// profile id are serialized to avoid lost-update races on the profile
// document, via a Redis SetNX-based distributed lock with a scoped
// acquire/release and bounded retry.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	ierrors "github.com/tracardi/tracker-core/internal/errors"
	"github.com/tracardi/tracker-core/internal/logger"
)

// Locker is the subset of the cache client the synchronizer needs —
// satisfied by *cache.Cache.
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Synchronizer serializes access to a profile id across requests.
type Synchronizer struct {
	locker     Locker
	wait       time.Duration
	maxRepeats int
}

// New builds a Synchronizer. wait is the pause between lock-acquire
// retries; maxRepeats bounds how many times it retries before giving
// up.
func New(locker Locker, wait time.Duration, maxRepeats int) *Synchronizer {
	return &Synchronizer{locker: locker, wait: wait, maxRepeats: maxRepeats}
}

// release unlocks a previously acquired profile lock. A no-op release
// is returned for the profile-less case.
type release func(ctx context.Context)

func noopRelease(ctx context.Context) {}

// Acquire locks profileID for the duration of the caller's scope. An
// empty profileID (profile-less payload) resolves to a no-op scope.
// On success, call the returned release func on every exit path
// (success or failure) — defer it immediately.
func (s *Synchronizer) Acquire(ctx context.Context, profileID string) (release, error) {
	if profileID == "" {
		return noopRelease, nil
	}

	key := lockKey(profileID)
	token := uuid.New().String()
	ttl := s.wait * time.Duration(s.maxRepeats+1)

	for attempt := 0; attempt <= s.maxRepeats; attempt++ {
		acquired, err := s.locker.SetNX(ctx, key, token, ttl)
		if err != nil {
			return noopRelease, ierrors.TransientDependency(fmt.Errorf("acquiring profile lock %s: %w", profileID, err))
		}
		if acquired {
			return func(ctx context.Context) {
				if err := s.locker.Delete(ctx, key); err != nil {
					logger.Synchronizer().Warn().Err(err).Str("profile_id", profileID).Msg("failed to release profile lock")
				}
			}, nil
		}

		if attempt == s.maxRepeats {
			break
		}

		select {
		case <-ctx.Done():
			return noopRelease, ierrors.TransientDependency(ctx.Err())
		case <-time.After(s.wait):
		}
	}

	return noopRelease, ierrors.TransientDependency(fmt.Errorf("timed out waiting for profile lock %s after %d attempts", profileID, s.maxRepeats+1))
}

func lockKey(profileID string) string {
	return fmt.Sprintf("sync:profile:%s", profileID)
}
