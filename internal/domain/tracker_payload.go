package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventPayloadMetadata is the TrackerPayload-level metadata stamped
// once at construction and shared by every event materialized from it.
type EventPayloadMetadata struct {
	Time EventPayloadTime `json:"time"`
}

// EventPayloadTime carries the single insert timestamp, stamped in
// UTC at payload construction.
type EventPayloadTime struct {
	Insert time.Time `json:"insert"`
}

// TrackerPayload is the request envelope ingestion decodes off the
// wire.
type TrackerPayload struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id,omitempty"`

	Source SourceRef `json:"source"`

	Session *Entity `json:"session,omitempty"`
	Profile *Entity `json:"profile,omitempty"`

	Context    map[string]any `json:"context,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Request    map[string]any `json:"request,omitempty"`

	Events []EventPayload `json:"events,omitempty" validate:"min=1,dive"`

	Options map[string]any `json:"options,omitempty"`

	ProfileLess bool `json:"profile_less"`

	Metadata EventPayloadMetadata `json:"metadata"`
}

// NewTrackerPayload builds a payload with a generated id and insert
// time stamped at construction.
func NewTrackerPayload(now time.Time) *TrackerPayload {
	return &TrackerPayload{
		ID: uuid.New().String(),
		Metadata: EventPayloadMetadata{
			Time: EventPayloadTime{Insert: now.UTC()},
		},
	}
}

// redactedHeaders lists request-header keys that must never reach
// storage or the rules engine (case-insensitive).
var redactedHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
}

// SetHeaders stores inbound HTTP headers under request.headers,
// stripping authorization/cookie values before they are retained.
func (p *TrackerPayload) SetHeaders(headers map[string]string) {
	if p.Request == nil {
		p.Request = map[string]any{}
	}
	clean := make(map[string]any, len(headers))
	for k, v := range headers {
		if _, redacted := redactedHeaders[strings.ToLower(k)]; redacted {
			continue
		}
		clean[k] = v
	}
	p.Request["headers"] = clean
}

// ForceSession guarantees the payload references a session, minting
// one with genID when absent. Invoked unconditionally before session
// resolution.
func (p *TrackerPayload) ForceSession(genID func() string) {
	if p.Session == nil || p.Session.ID == "" {
		p.Session = NewEntity(genID())
	}
}

// OptionBool reads a boolean request option: options is a loosely
// typed map off the wire, so a non-bool value at a known-bool key
// falls back to def rather than erroring.
func (p *TrackerPayload) OptionBool(key string, def bool) bool {
	if p.Options == nil {
		return def
	}
	v, ok := p.Options[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// ReturnProfile reports whether the response should embed the full
// profile document, per the source's configuration and the caller's
// own request.
func (p *TrackerPayload) ReturnProfile(source *EventSource) bool {
	return source != nil && source.ReturnsProfile && p.OptionBool("profile", false)
}

// IsDebuggingOn reports whether this request should collect debug
// info, honoring the global TRACK_DEBUG switch and the per-request
// "debugger" option.
func (p *TrackerPayload) IsDebuggingOn(trackDebugEnabled bool) bool {
	if !trackDebugEnabled {
		return false
	}
	return p.OptionBool("debugger", false)
}

// HasProfile reports whether this payload participates in profile
// tracking at all.
func (p *TrackerPayload) HasProfile() bool {
	return !p.ProfileLess
}
