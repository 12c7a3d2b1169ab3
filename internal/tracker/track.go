package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/tracardi/tracker-core/internal/domain"
	ierrors "github.com/tracardi/tracker-core/internal/errors"
	"github.com/tracardi/tracker-core/internal/logger"
)

// TrackOptions carries the per-call parameters the track contract
// takes beyond the payload itself.
type TrackOptions struct {
	ClientIP        string
	ProfileLess     bool
	AllowedBridges  []string
	InternalSource  *domain.EventSource
	RunAsync        bool
	StaticProfileID bool
}

// Track is the event-tracking core's single entry point: it resolves
// the source, session, and profile, runs the pipeline, persists the
// results, and assembles the caller-facing Response.
func (t *Tracker) Track(ctx context.Context, payload *domain.TrackerPayload, opts TrackOptions) (*Response, error) {
	trimIDs(payload)
	stampClientIP(payload, opts.ClientIP)

	source, err := t.validateSource(ctx, payload, opts.InternalSource, opts.AllowedBridges)
	if err != nil {
		return nil, err
	}

	payload.ForceSession(t.deps.GenID)

	profileID := ""
	if payload.Profile != nil {
		profileID = payload.Profile.ID
	}

	if source.SynchronizeProfiles {
		release, err := t.deps.Synchronizer.Acquire(ctx, profileID)
		if err != nil {
			return nil, err
		}
		defer release(ctx)
	}

	return t.resolveAndRunPipeline(ctx, payload, source, opts)
}

// stampClientIP merges the caller's resolved client IP into the
// payload's request map, applied before event materialization.
func stampClientIP(payload *domain.TrackerPayload, clientIP string) {
	if clientIP == "" {
		return
	}
	if payload.Request == nil {
		payload.Request = map[string]any{}
	}
	payload.Request["ip"] = clientIP
}

func trimIDs(payload *domain.TrackerPayload) {
	payload.Source.Ref.ID = strings.TrimSpace(payload.Source.Ref.ID)
	if payload.Session != nil {
		payload.Session.ID = strings.TrimSpace(payload.Session.ID)
	}
	if payload.Profile != nil {
		payload.Profile.ID = strings.TrimSpace(payload.Profile.ID)
	}
}

func (t *Tracker) validateSource(ctx context.Context, payload *domain.TrackerPayload, internalSource *domain.EventSource, allowedBridges []string) (*domain.EventSource, error) {
	if internalSource != nil {
		if internalSource.ID != payload.Source.ID() {
			return nil, ierrors.Unauthorized(fmt.Sprintf("invalid event source `%s`", payload.Source.ID()))
		}
		return internalSource, nil
	}

	source, err := t.deps.LoadSource(ctx, payload.Source.ID())
	if err != nil {
		return nil, ierrors.TransientDependency(err)
	}
	if source == nil || !source.BridgeAllowed(allowedBridges) {
		return nil, ierrors.Unauthorized(fmt.Sprintf("invalid event source `%s`", payload.Source.ID()))
	}
	payload.Source.Resolve(source)
	return source, nil
}

// resolveAndRunPipeline loads the session, resolves profile+session,
// and either runs the pipeline inline or detaches it (run_async).
func (t *Tracker) resolveAndRunPipeline(ctx context.Context, payload *domain.TrackerPayload, source *domain.EventSource, opts TrackOptions) (*Response, error) {
	session, err := t.resolveSession(ctx, payload.Session.ID)
	if err != nil {
		return nil, err
	}

	var profile *domain.Profile
	if opts.StaticProfileID {
		profile, session, err = t.resolveStaticProfileAndSession(ctx, payload, session, opts.ProfileLess)
	} else {
		profile, session, err = t.resolveProfileAndSession(ctx, payload, session, opts.ProfileLess)
	}
	if err != nil {
		return nil, err
	}

	if opts.RunAsync {
		detachedCtx := context.WithoutCancel(ctx)
		go func() {
			if _, err := t.runPipeline(detachedCtx, payload, source, opts.ProfileLess, profile, session); err != nil {
				logger.Tracker().Error().Err(err).Str("payload_id", payload.ID).Msg("detached pipeline run failed")
			}
		}()

		resp := &Response{Source: SourceView{Consent: source.Consent}, UX: []any{}, Response: map[string]any{}}
		if profile != nil {
			resp.Profile = &ProfileView{ID: profile.ID}
		}
		return resp, nil
	}

	return t.runPipeline(ctx, payload, source, opts.ProfileLess, profile, session)
}
