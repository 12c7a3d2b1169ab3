package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tracardi/tracker-core/internal/destination"
	"github.com/tracardi/tracker-core/internal/domain"
	"github.com/tracardi/tracker-core/internal/dotpath"
	"github.com/tracardi/tracker-core/internal/logger"
	"github.com/tracardi/tracker-core/internal/merger"
	"github.com/tracardi/tracker-core/internal/rules"
	"github.com/tracardi/tracker-core/internal/segment"
	"github.com/tracardi/tracker-core/internal/validator"
)

// profileDeltaSubject is the single NATS subject profile deltas are
// published on; destinations subscribe downstream of this core.
const profileDeltaSubject destination.Subject = "tracker.profile.delta"

// materializeEvents builds Event instances off the wire EventPayloads,
// stamping session/profile references and merging payload-level
// request data into each event's own request map.
func materializeEvents(payload *domain.TrackerPayload, session *domain.Session, profile *domain.Profile, hasProfile bool, debug bool) []*domain.Event {
	events := make([]*domain.Event, 0, len(payload.Events))
	for i := range payload.Events {
		ev := payload.Events[i].ToEvent(payload.Metadata, session, profile, hasProfile, debug)
		mergeEventRequest(ev, payload.Request)
		events = append(events, ev)
	}
	// TODO: a dedicated payload.GetEvents accessor would belong here
	// once a concrete caller needs one.
	return events
}

// mergeEventRequest folds payload.request into an event's own request
// map, payload-level keys overwriting any same-named event key.
func mergeEventRequest(ev *domain.Event, payloadRequest map[string]any) {
	if len(payloadRequest) == 0 {
		return
	}
	if ev.Request == nil {
		ev.Request = map[string]any{}
	}
	for k, v := range payloadRequest {
		ev.Request[k] = v
	}
}

// validateAndReshapeEvents runs per-event JSON-schema validation
// followed by property reshape, both wrapped so a failure becomes a
// console-log entry and never drops the event.
func (t *Tracker) validateAndReshapeEvents(events []*domain.Event, profile *domain.Profile, session *domain.Session, consoleLog *domain.ConsoleLog) []*domain.Event {
	dot := dotpath.New()
	_ = dot.SetStorage(dotpath.ScopeProfile, profile)
	_ = dot.SetStorage(dotpath.ScopeSession, session)

	for _, ev := range events {
		_ = dot.SetStorage(dotpath.ScopeEvent, ev)

		if t.deps.Schemas != nil {
			violations, err := t.deps.Schemas.ValidateEvent(ev)
			if err != nil {
				consoleLog.Append(domain.Console{
					EventID:   ev.ID,
					ProfileID: profileID(profile),
					Origin:    "tracker",
					ClassName: "tracker",
					Module:    "validateAndReshapeEvents",
					Type:      domain.ConsoleError,
					Message:   err.Error(),
				})
			} else if len(violations) > 0 {
				ev.Valid = false
				for _, v := range violations {
					consoleLog.Append(domain.Console{
						EventID:   ev.ID,
						ProfileID: profileID(profile),
						Origin:    "tracker",
						ClassName: "tracker",
						Module:    "validateAndReshapeEvents",
						Type:      domain.ConsoleWarn,
						Message:   v,
					})
				}
			}
		}

		if err := reshapeEvent(ev); err != nil {
			consoleLog.Append(domain.Console{
				EventID:   ev.ID,
				ProfileID: profileID(profile),
				Origin:    "tracker",
				ClassName: "tracker",
				Module:    "validateAndReshapeEvents",
				Type:      domain.ConsoleError,
				Message:   err.Error(),
				Traceback: err.Error(),
			})
		}
	}

	return events
}

// reshapeEvent recovers from a panicking sanitizer — the event is
// always retained regardless of outcome.
func reshapeEvent(ev *domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reshape panicked: %v", r)
		}
	}()
	validator.Reshape(ev)
	return nil
}

func profileID(profile *domain.Profile) string {
	if profile == nil {
		return ""
	}
	return profile.ID
}

// pipelineResult carries everything runPipeline accumulates for
// response assembly and debugging output.
type pipelineResult struct {
	profile          *domain.Profile
	session          *domain.Session
	events           []*domain.Event
	consoleLog       *domain.ConsoleLog
	collectResult    *CollectResult
	invokeResult     *invokeOutcome
	segmentationDone bool
}

type invokeOutcome struct {
	ux            []any
	flowResponses map[string]any
}

// runPipeline executes the full tracking pipeline once resolution has
// produced (profile, session): visit accounting, diff snapshot, event
// materialization, rules, segmentation, merge, and response assembly.
func (t *Tracker) runPipeline(ctx context.Context, payload *domain.TrackerPayload, source *domain.EventSource, profileLess bool, profile *domain.Profile, session *domain.Session) (*Response, error) {
	consoleLog := &domain.ConsoleLog{}
	hasProfile := !profileLess && profile != nil

	// Step 1: visit accounting.
	if hasProfile && session.Operation.New {
		tz, _ := session.Timezone()
		profile.RegisterVisit(t.deps.Now().UTC(), tz)
	}

	// Step 2: profile snapshot for the destination diff.
	var snapshot map[string]any
	if hasProfile {
		snapshot = profileToMap(profile)
	}

	// Step 3: materialize events.
	debug := payload.IsDebuggingOn(t.cfg.TrackDebug)
	events := materializeEvents(payload, session, profile, hasProfile, debug)

	// Step 4: validate & reshape.
	events = t.validateAndReshapeEvents(events, profile, session, consoleLog)

	// Step 5: rule loading.
	eventTypes := eventTypesOf(events)
	var loadedRules []rules.Rule
	if t.deps.LoadRules != nil {
		rs, err := t.deps.LoadRules(ctx, source.ID, eventTypes)
		if err != nil {
			consoleLog.Append(pipelineError(profile, "tracker", "runPipeline", "loading routing rules: "+err.Error()))
		} else {
			loadedRules = rs
		}
	}

	var outcome *invokeOutcome
	runRulesStage := loadedRules != nil

	if runRulesStage {
		// Steps 6–9: rules invocation, replacement, annotation, segmentation.
		// Events that failed validation stay in the batch but are not
		// handed to the rules engine.
		validEvents := make([]*domain.Event, 0, len(events))
		for _, ev := range events {
			if ev.Valid {
				validEvents = append(validEvents, ev)
			}
		}
		result, err := t.deps.Rules.Invoke(ctx, session, profile, loadedRules, validEvents)
		if err != nil {
			consoleLog.Append(pipelineError(profile, "profile", "runPipeline", "rules engine or segmentation returned an error: "+err.Error()))
		} else {
			if profile != result.Profile {
				profile = result.Profile
				hasProfile = !profileLess && profile != nil
			}
			if session != result.Session {
				session = result.Session
			}

			for _, ev := range events {
				if rulesRan, ok := result.InvokedRules[ev.Type]; ok {
					ev.Metadata.ProcessedBy.Rules = rulesRan
				}
			}

			if result.PostInvokeEvents != nil {
				events = syncPostInvokeEvents(events, result.PostInvokeEvents)
			}

			outcome = &invokeOutcome{ux: result.UX, flowResponses: result.MergeFlowResponses()}

			if hasProfile && t.deps.Segment != nil {
				var definitions []segment.Definition
				if t.deps.LoadSegments != nil {
					definitions, err = t.deps.LoadSegments(ctx, result.RanEventTypes)
					if err != nil {
						consoleLog.Append(pipelineError(profile, "profile", "runPipeline", "loading segments: "+err.Error()))
						definitions = nil
					}
				}
				if err := t.deps.Segment.Segment(ctx, profile, result.RanEventTypes, definitions); err != nil {
					consoleLog.Append(pipelineError(profile, "profile", "runPipeline", "segmentation returned an error: "+err.Error()))
				}
			}
		}

		// Step 10: profile merge.
		if profile != nil && profile.Operation.NeedsMerging() && t.deps.Merger != nil {
			mergeBy := merger.MergeKeyValues(profile)
			merged, err := t.deps.Merger.Invoke(ctx, profile, mergeBy, true)
			if err != nil {
				consoleLog.Append(pipelineError(profile, "profile", "runPipeline", "profile merging returned an error: "+err.Error()))
			} else if merged != nil {
				profile = merged
			}
		}
	}

	// Step 12: persist.
	collectResult, err := t.persist(ctx, consoleLog, session, events, payload, source, profile)
	if err != nil {
		return nil, err
	}

	// Step 13: destination dispatch.
	if hasProfile && snapshot != nil {
		newSnapshot := profileToMap(profile)
		keys, values := destination.Diff(snapshot, newSnapshot)
		if len(keys) > 0 {
			logger.Tracker().Info().Str("profile_id", profile.ID).Msg("profile changed, destination dispatch scheduled")
			delta := destination.Delta{ProfileID: profile.ID, ChangedKeys: keys, Values: values}
			if err := t.deps.Destination.Publish(ctx, profileDeltaSubject, delta); err != nil {
				consoleLog.Append(pipelineError(profile, "destination", "runPipeline", err.Error()))
			}
		}
	}

	// Step 14: response assembly.
	return t.assembleResponse(payload, source, profileLess, profile, events, consoleLog, collectResult, outcome), nil
}

func eventTypesOf(events []*domain.Event) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.Type]; ok {
			continue
		}
		seen[ev.Type] = struct{}{}
		out = append(out, ev.Type)
	}
	return out
}

func syncPostInvokeEvents(events []*domain.Event, postInvoke map[string]*domain.Event) []*domain.Event {
	synced := make([]*domain.Event, len(events))
	for i, ev := range events {
		if ev.Update {
			if replacement, ok := postInvoke[ev.ID]; ok {
				synced[i] = replacement
				continue
			}
		}
		synced[i] = ev
	}
	return synced
}

func pipelineError(profile *domain.Profile, origin, class, message string) domain.Console {
	return domain.Console{
		ProfileID: profileID(profile),
		Origin:    origin,
		ClassName: class,
		Module:    "tracker",
		Type:      domain.ConsoleError,
		Message:   message,
	}
}

// profileToMap renders a profile's id, metadata, traits and pii,
// excluding operation, as a plain map for structural diffing.
func profileToMap(profile *domain.Profile) map[string]any {
	if profile == nil {
		return nil
	}
	data, err := json.Marshal(struct {
		ID       string                 `json:"id"`
		Metadata domain.ProfileMetadata `json:"metadata"`
		Traits   map[string]any         `json:"traits,omitempty"`
		PII      map[string]any         `json:"pii,omitempty"`
	}{ID: profile.ID, Metadata: profile.Metadata, Traits: profile.Traits, PII: profile.PII})
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
