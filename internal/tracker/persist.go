package tracker

import (
	"context"

	"github.com/tracardi/tracker-core/internal/domain"
	ierrors "github.com/tracardi/tracker-core/internal/errors"
	"github.com/tracardi/tracker-core/internal/storage"
	"golang.org/x/sync/errgroup"
)

// WriteResult records whether a document write actually ran.
type WriteResult struct {
	Written bool `json:"written"`
}

// EventsWriteResult records how many events were written and their
// distinct types.
type EventsWriteResult struct {
	Count int      `json:"count"`
	Types []string `json:"types,omitempty"`
}

// CollectResult is the persistence coordinator's return value,
// summarizing what was written for the profile, session, and events.
type CollectResult struct {
	Profile WriteResult       `json:"profile"`
	Session WriteResult       `json:"session"`
	Events  EventsWriteResult `json:"events"`
}

// effectiveSaveSession / effectiveSaveEvents fold source.transitional
// into the saveSession/saveEvents options without mutating payload.Options.
func effectiveSaveSession(payload *domain.TrackerPayload, source *domain.EventSource) bool {
	if source != nil && source.Transitional {
		return false
	}
	return payload.OptionBool("saveSession", true)
}

func effectiveSaveEvents(payload *domain.TrackerPayload, source *domain.EventSource) bool {
	if source != nil && source.Transitional {
		return false
	}
	return payload.OptionBool("saveEvents", true)
}

// persist runs a three-way parallel write of the profile, session, and
// events, then fire-and-forget writes the console log in the same
// request task group, awaited before return. A failed write is
// returned as a FieldTypeConflict error. No debug-info document is
// written.
func (t *Tracker) persist(ctx context.Context, consoleLog *domain.ConsoleLog, session *domain.Session, events []*domain.Event, payload *domain.TrackerPayload, source *domain.EventSource, profile *domain.Profile) (*CollectResult, error) {
	saveSession := effectiveSaveSession(payload, source)
	saveEvents := effectiveSaveEvents(payload, source)

	group, gctx := errgroup.WithContext(ctx)
	result := &CollectResult{}

	group.Go(func() error {
		written, err := t.saveProfile(gctx, profile)
		if err != nil {
			return err
		}
		result.Profile = WriteResult{Written: written}
		return nil
	})

	group.Go(func() error {
		written, err := t.saveSession(gctx, session, saveSession)
		if err != nil {
			return err
		}
		result.Session = WriteResult{Written: written}
		return nil
	})

	group.Go(func() error {
		eventsResult, err := t.saveEvents(gctx, payload, consoleLog, events, saveSession, saveEvents)
		if err != nil {
			return err
		}
		result.Events = eventsResult
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, ierrors.FieldTypeConflict("failed to persist tracking results", err.Error())
	}

	// Fire-and-forget: console log, launched into the same request task
	// group and awaited before response return.
	tasks, tctx := errgroup.WithContext(ctx)
	if consoleLog.Len() > 0 {
		tasks.Go(func() error {
			return t.deps.Storage.Put(tctx, storage.IndexConsoleLog, payload.ID, consoleLog.Entries())
		})
	}
	if err := tasks.Wait(); err != nil {
		// Console-log writes are diagnostic, not
		// load-bearing: log and continue, never fail the request.
		consoleLog.Append(domain.Console{
			Origin:    "tracker",
			ClassName: "persist",
			Module:    "tracker",
			Type:      domain.ConsoleWarn,
			Message:   "failed to persist console log: " + err.Error(),
		})
	}

	return result, nil
}

func (t *Tracker) saveProfile(ctx context.Context, profile *domain.Profile) (bool, error) {
	if profile == nil {
		return false, nil
	}
	if !profile.Operation.New && !profile.Operation.NeedsUpdate() {
		return false, nil
	}
	if err := t.deps.Storage.Put(ctx, storage.IndexProfile, profile.ID, profile); err != nil {
		return false, err
	}
	profile.Operation.New = false
	return true, nil
}

func (t *Tracker) saveSession(ctx context.Context, session *domain.Session, saveSession bool) (bool, error) {
	if !saveSession || session == nil {
		return false, nil
	}
	if err := t.deps.Storage.Put(ctx, storage.IndexSession, session.ID, session); err != nil {
		return false, err
	}
	if session.Operation.New {
		// Closes the read-after-write window: a subsequent request must
		// never observe "session missing".
		if err := t.deps.Storage.Refresh(ctx, storage.IndexSession); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (t *Tracker) saveEvents(ctx context.Context, payload *domain.TrackerPayload, consoleLog *domain.ConsoleLog, events []*domain.Event, saveSession bool, saveEvents bool) (EventsWriteResult, error) {
	if !saveEvents {
		return EventsWriteResult{}, nil
	}

	now := t.deps.Now().UTC()
	journal := consoleLog.IndexedByEvent()
	types := make([]string, 0, len(events))

	for _, ev := range events {
		ev.Metadata.Time.ProcessTime = now.Sub(ev.Metadata.Time.Insert).Seconds()

		if !saveSession && ev.Session != nil {
			exists := false
			if t.deps.SessionExists != nil {
				existsResult, err := t.deps.SessionExists(ctx, ev.Session.ID)
				if err == nil {
					exists = existsResult
				}
			}
			if !exists {
				ev.Session = nil
			}
		}

		if entry, ok := journal[ev.ID]; ok {
			switch {
			case entry.IsError():
				ev.Metadata.Error = true
			case entry.IsWarning():
				ev.Metadata.Warning = true
			default:
				ev.Metadata.Status = domain.EventProcessed
			}
		} else {
			ev.Metadata.Status = domain.EventProcessed
		}

		if t.deps.LoadEventTags != nil {
			if extra, err := t.deps.LoadEventTags(ctx, ev.Type); err == nil {
				ev.Tags.Union(extra)
			}
		}

		types = append(types, ev.Type)
	}

	written := 0
	for _, ev := range events {
		if !ev.IsPersistent() {
			continue
		}
		if err := t.deps.Storage.Put(ctx, storage.IndexEvent, ev.ID, ev); err != nil {
			return EventsWriteResult{}, err
		}
		written++
	}

	return EventsWriteResult{Count: written, Types: types}, nil
}
