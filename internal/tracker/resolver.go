package tracker

import (
	"context"

	"github.com/tracardi/tracker-core/internal/domain"
	ierrors "github.com/tracardi/tracker-core/internal/errors"
)

// resolveSession loads the session referenced by the payload, recovering
// from a duplicated-record condition by synthesizing a fresh session
// and, when exactly one profile id was recovered, binding it.
func (t *Tracker) resolveSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := t.deps.LoadSession(ctx, sessionID)
	if err == nil {
		return session, nil
	}

	appErr, ok := err.(*ierrors.AppError)
	if !ok || appErr.Code != ierrors.ErrCodeDuplicatedRecord {
		return nil, err
	}

	profileIDs, correctErr := t.deps.CorrectSession(ctx, sessionID)
	if correctErr != nil {
		return nil, correctErr
	}

	fresh := domain.NewSession(sessionID, t.deps.Now().UTC())
	if len(profileIDs) == 1 {
		fresh.BindProfile(profileIDs[0])
	}
	return fresh, nil
}

// resolveProfileAndSession implements the dynamic five-branch
// resolution table: new/existing session crossed with new/existing/
// absent profile. profileLess payloads never touch storage for a
// profile and always return a nil profile.
func (t *Tracker) resolveProfileAndSession(ctx context.Context, payload *domain.TrackerPayload, session *domain.Session, profileLess bool) (*domain.Profile, *domain.Session, error) {
	now := t.deps.Now().UTC()
	isNewProfile := false
	isNewSession := false
	var profile *domain.Profile

	if session == nil {
		session = domain.NewSession(payload.Session.ID, now)
		isNewSession = true

		if !profileLess {
			if payload.Profile == nil {
				profile = domain.NewProfile(now)
				isNewProfile = true
			} else {
				loaded, err := t.deps.LoadProfile(ctx, payload.Profile.ID)
				if err != nil {
					return nil, nil, err
				}
				if loaded == nil {
					profile = domain.NewProfileWithID(payload.Profile.ID, now)
					isNewProfile = true
				} else {
					profile = loaded
				}
			}
			session.BindProfile(profile.ID)
		}
	} else {
		if !profileLess {
			if session.Profile != nil {
				loaded, err := t.deps.LoadProfile(ctx, session.Profile.ID)
				if err != nil {
					return nil, nil, err
				}
				profile = loaded
				if profile != nil && session.Profile.ID != profile.ID {
					session.Profile.ID = profile.ID
					session.Metadata.Time.Last = now
					isNewSession = true
				}
			}

			if profile == nil {
				profile = domain.NewProfile(now)
				isNewProfile = true
				session.BindProfile(profile.ID)
				isNewSession = true
			}
		}
	}

	session.MergeContextAndProperties(payload.Context, payload.Properties)
	session.Operation.New = isNewSession

	if !profileLess && profile != nil {
		profile.Operation.New = isNewProfile
	}

	return profile, session, nil
}

// resolveStaticProfileAndSession implements the static-profile-id
// resolution mode: the caller asserts a known profile id rather than
// letting the resolver derive one from the session.
func (t *Tracker) resolveStaticProfileAndSession(ctx context.Context, payload *domain.TrackerPayload, session *domain.Session, profileLess bool) (*domain.Profile, *domain.Session, error) {
	now := t.deps.Now().UTC()

	if profileLess {
		if session == nil {
			session = domain.NewSession(payload.Session.ID, now)
			session.Operation.New = true
		}
		session.MergeContextAndProperties(payload.Context, payload.Properties)
		return nil, session, nil
	}

	if payload.Profile == nil || payload.Profile.ID == "" {
		return nil, nil, ierrors.InvalidArgument("static profile resolution requires a non-empty profile id")
	}

	profile, err := t.deps.LoadProfile(ctx, payload.Profile.ID)
	if err != nil {
		return nil, nil, err
	}
	if profile == nil {
		profile = domain.NewProfileWithID(payload.Profile.ID, now)
		profile.Operation.New = true
	}

	if session == nil {
		session = domain.NewSession(payload.Session.ID, now)
		session.Operation.New = true
	}
	session.BindProfile(profile.ID)
	session.MergeContextAndProperties(payload.Context, payload.Properties)

	return profile, session, nil
}
