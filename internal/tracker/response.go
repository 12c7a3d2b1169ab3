package tracker

import "github.com/tracardi/tracker-core/internal/domain"

// ProfileView is what the response ever exposes of a profile —
// either the full (minus private traits/pii/operation) document or
// just its id.
type ProfileView struct {
	ID       string                  `json:"id"`
	Metadata *domain.ProfileMetadata `json:"metadata,omitempty"`
	Traits   map[string]any          `json:"traits,omitempty"`
}

// SourceView echoes only a source's consent block back to the caller.
type SourceView struct {
	Consent domain.Consent `json:"consent"`
}

// DebugResult is the optional "debugging" response block, present
// only when debugging is enabled for the request.
type DebugResult struct {
	CollectResult CollectResult  `json:"collect_result"`
	Execution     any            `json:"execution,omitempty"`
	Segmentation  any            `json:"segmentation,omitempty"`
	Logs          []domain.Console `json:"logs"`
}

// Response is the final result assembled at the end of Track().
type Response struct {
	Profile   *ProfileView `json:"profile,omitempty"`
	Source    SourceView   `json:"source"`
	UX        []any        `json:"ux"`
	Response  map[string]any `json:"response"`
	Debugging *DebugResult `json:"debugging,omitempty"`
}

// assembleResponse builds the Response, shaping the profile/source/
// debugging blocks according to the caller's request options.
func (t *Tracker) assembleResponse(payload *domain.TrackerPayload, source *domain.EventSource, profileLess bool, profile *domain.Profile, events []*domain.Event, consoleLog *domain.ConsoleLog, collectResult *CollectResult, outcome *invokeOutcome) *Response {
	resp := &Response{
		Source: SourceView{Consent: source.Consent},
		UX:     []any{},
	}

	if outcome != nil {
		resp.UX = outcome.ux
		resp.Response = outcome.flowResponses
	}
	if resp.UX == nil {
		resp.UX = []any{}
	}
	if resp.Response == nil {
		resp.Response = map[string]any{}
	}

	if !profileLess && profile != nil {
		if payload.ReturnProfile(source) {
			metadata := profile.Metadata
			resp.Profile = &ProfileView{ID: profile.ID, Metadata: &metadata, Traits: publicTraits(profile.Traits)}
		} else {
			resp.Profile = &ProfileView{ID: profile.ID}
		}
	}

	if payload.IsDebuggingOn(t.cfg.TrackDebug) {
		var exec any
		if outcome != nil {
			exec = outcome
		}
		resp.Debugging = &DebugResult{
			CollectResult: *collectResult,
			Execution:     exec,
			Logs:          consoleLog.Entries(),
		}
	}

	return resp
}

// publicTraits strips the "private" trait namespace before a profile
// is echoed back to the caller.
func publicTraits(traits map[string]any) map[string]any {
	if traits == nil {
		return nil
	}
	out := make(map[string]any, len(traits))
	for k, v := range traits {
		if k == "private" {
			continue
		}
		out[k] = v
	}
	return out
}
