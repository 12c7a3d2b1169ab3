package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerPayload_SetHeaders_RedactsSensitive(t *testing.T) {
	p := NewTrackerPayload(time.Now())
	p.SetHeaders(map[string]string{
		"Authorization": "Bearer secret",
		"Cookie":        "session=abc",
		"User-Agent":    "test-agent",
	})

	headers := p.Request["headers"].(map[string]any)
	assert.NotContains(t, headers, "Authorization")
	assert.NotContains(t, headers, "Cookie")
	assert.Equal(t, "test-agent", headers["User-Agent"])
}

func TestTrackerPayload_ForceSession_MintsWhenAbsent(t *testing.T) {
	p := NewTrackerPayload(time.Now())
	p.ForceSession(func() string { return "generated-id" })

	assert.NotNil(t, p.Session)
	assert.Equal(t, "generated-id", p.Session.ID)
}

func TestTrackerPayload_ForceSession_KeepsExisting(t *testing.T) {
	p := NewTrackerPayload(time.Now())
	p.Session = NewEntity("existing")
	p.ForceSession(func() string { return "generated-id" })

	assert.Equal(t, "existing", p.Session.ID)
}

func TestTrackerPayload_OptionBool_FallsBackOnWrongType(t *testing.T) {
	p := NewTrackerPayload(time.Now())
	p.Options = map[string]any{"debugger": "yes"}

	assert.False(t, p.OptionBool("debugger", false))
	assert.True(t, p.OptionBool("missing", true))
}

func TestTrackerPayload_OptionBool_ReadsBool(t *testing.T) {
	p := NewTrackerPayload(time.Now())
	p.Options = map[string]any{"debugger": true}

	assert.True(t, p.OptionBool("debugger", false))
}

func TestTrackerPayload_IsDebuggingOn_RespectsGlobalSwitch(t *testing.T) {
	p := NewTrackerPayload(time.Now())
	p.Options = map[string]any{"debugger": true}

	assert.False(t, p.IsDebuggingOn(false))
	assert.True(t, p.IsDebuggingOn(true))
}

func TestTrackerPayload_ReturnProfile_RequiresSourceAndOption(t *testing.T) {
	source := &EventSource{ID: "src-1", ReturnsProfile: true}

	p := NewTrackerPayload(time.Now())
	assert.False(t, p.ReturnProfile(source), "source alone must not be enough")

	p.Options = map[string]any{"profile": true}
	assert.True(t, p.ReturnProfile(source), "source and option together return the full profile")

	p.Options = map[string]any{"profile": true}
	assert.False(t, p.ReturnProfile(&EventSource{ID: "src-2"}), "option alone must not be enough")
}
