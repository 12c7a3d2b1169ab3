package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tracardi/tracker-core/internal/domain"
)

func TestPublicTraits_StripsPrivateNamespace(t *testing.T) {
	traits := map[string]any{
		"name":    "Ada",
		"private": map[string]any{"ssn": "secret"},
	}

	out := publicTraits(traits)
	assert.Equal(t, "Ada", out["name"])
	_, hasPrivate := out["private"]
	assert.False(t, hasPrivate)
}

func TestPublicTraits_NilInputReturnsNil(t *testing.T) {
	assert.Nil(t, publicTraits(nil))
}

func TestAssembleResponse_OmitsProfileWhenProfileLess(t *testing.T) {
	tr := newTestTracker(Deps{})
	payload := &domain.TrackerPayload{}
	source := &domain.EventSource{Consent: domain.Consent{Description: "v1"}}
	profile := &domain.Profile{ID: "p1"}

	resp := tr.assembleResponse(payload, source, true, profile, nil, &domain.ConsoleLog{}, &CollectResult{}, nil)
	assert.Nil(t, resp.Profile)
	assert.Equal(t, "v1", resp.Source.Consent.Description)
}

func TestAssembleResponse_IDOnlyProfileByDefault(t *testing.T) {
	tr := newTestTracker(Deps{})
	payload := &domain.TrackerPayload{}
	source := &domain.EventSource{}
	profile := &domain.Profile{ID: "p1", Traits: map[string]any{"name": "Ada"}}

	resp := tr.assembleResponse(payload, source, false, profile, nil, &domain.ConsoleLog{}, &CollectResult{}, nil)
	require := assert.New(t)
	require.NotNil(resp.Profile)
	require.Equal("p1", resp.Profile.ID)
	require.Nil(resp.Profile.Traits)
}

func TestAssembleResponse_FullProfileWhenSourceAndRequestBothOptIn(t *testing.T) {
	tr := newTestTracker(Deps{})
	payload := &domain.TrackerPayload{Options: map[string]any{"profile": true}}
	source := &domain.EventSource{ReturnsProfile: true}
	profile := &domain.Profile{ID: "p1", Traits: map[string]any{"name": "Ada", "private": map[string]any{"ssn": "x"}}}

	resp := tr.assembleResponse(payload, source, false, profile, nil, &domain.ConsoleLog{}, &CollectResult{}, nil)
	require := assert.New(t)
	require.NotNil(resp.Profile)
	require.Equal("Ada", resp.Profile.Traits["name"])
	_, hasPrivate := resp.Profile.Traits["private"]
	require.False(hasPrivate)
}

func TestAssembleResponse_IDOnlyWhenSourceDoesNotReturnProfile(t *testing.T) {
	tr := newTestTracker(Deps{})
	payload := &domain.TrackerPayload{Options: map[string]any{"profile": true}}
	source := &domain.EventSource{}
	profile := &domain.Profile{ID: "p1", Traits: map[string]any{"name": "Ada"}}

	resp := tr.assembleResponse(payload, source, false, profile, nil, &domain.ConsoleLog{}, &CollectResult{}, nil)
	assert.Nil(t, resp.Profile.Traits)
}

func TestAssembleResponse_IDOnlyWhenRequestDoesNotOptIn(t *testing.T) {
	tr := newTestTracker(Deps{})
	payload := &domain.TrackerPayload{}
	source := &domain.EventSource{ReturnsProfile: true}
	profile := &domain.Profile{ID: "p1", Traits: map[string]any{"name": "Ada"}}

	resp := tr.assembleResponse(payload, source, false, profile, nil, &domain.ConsoleLog{}, &CollectResult{}, nil)
	assert.Nil(t, resp.Profile.Traits)
}

func TestAssembleResponse_DebuggingBlockOnlyWhenEnabled(t *testing.T) {
	tr := newTestTracker(Deps{})
	tr.cfg.TrackDebug = true
	payload := &domain.TrackerPayload{Options: map[string]any{"debugger": true}}
	source := &domain.EventSource{}
	consoleLog := &domain.ConsoleLog{}
	consoleLog.Append(domain.Console{Type: domain.ConsoleInfo, Message: "ran"})

	resp := tr.assembleResponse(payload, source, true, nil, nil, consoleLog, &CollectResult{}, nil)
	require := assert.New(t)
	require.NotNil(resp.Debugging)
	require.Len(resp.Debugging.Logs, 1)
}

func TestAssembleResponse_DebuggingBlockAbsentWhenGlobalSwitchOff(t *testing.T) {
	tr := newTestTracker(Deps{})
	tr.cfg.TrackDebug = false
	payload := &domain.TrackerPayload{Options: map[string]any{"debugger": true}}
	source := &domain.EventSource{}

	resp := tr.assembleResponse(payload, source, true, nil, nil, &domain.ConsoleLog{}, &CollectResult{}, nil)
	assert.Nil(t, resp.Debugging)
}

func TestAssembleResponse_UXAndResponseDefaultToEmptyNotNil(t *testing.T) {
	tr := newTestTracker(Deps{})
	payload := &domain.TrackerPayload{}
	source := &domain.EventSource{}

	resp := tr.assembleResponse(payload, source, true, nil, nil, &domain.ConsoleLog{}, &CollectResult{}, nil)
	assert.NotNil(t, resp.UX)
	assert.NotNil(t, resp.Response)
	assert.Empty(t, resp.UX)
	assert.Empty(t, resp.Response)
}

func TestAssembleResponse_CarriesUXAndMergedFlowResponses(t *testing.T) {
	tr := newTestTracker(Deps{})
	payload := &domain.TrackerPayload{}
	source := &domain.EventSource{}
	outcome := &invokeOutcome{
		ux:            []any{"modal"},
		flowResponses: map[string]any{"greeting": "hi"},
	}

	resp := tr.assembleResponse(payload, source, true, nil, nil, &domain.ConsoleLog{}, &CollectResult{}, outcome)
	assert.Equal(t, []any{"modal"}, resp.UX)
	assert.Equal(t, "hi", resp.Response["greeting"])
}
