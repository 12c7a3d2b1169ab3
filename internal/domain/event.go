package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Event processing statuses.
const (
	EventCollected = "collected"
	EventProcessed = "processed"
	EventError     = "error"
	EventWarning   = "warning"
)

// ProcessedBy records which rules ran against an event.
type ProcessedBy struct {
	Rules []string `json:"rules,omitempty"`
}

// EventTime mirrors a session's lifecycle fields onto the event plus
// its own processing timestamps.
type EventTime struct {
	Insert      time.Time `json:"insert"`
	ProcessTime float64   `json:"process_time"`
	SessionStart    time.Time `json:"session_start,omitempty"`
	SessionDuration float64   `json:"session_duration,omitempty"`
}

// EventMetadata is the metadata block carried on every Event.
type EventMetadata struct {
	Time        EventTime   `json:"time"`
	Status      string      `json:"status"`
	Debug       bool        `json:"debug"`
	Error       bool        `json:"error"`
	Warning     bool        `json:"warning"`
	ProcessedBy ProcessedBy `json:"processed_by"`
}

// Event is derived from an EventPayload plus the resolved
// (source, session, profile).
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Metadata   EventMetadata  `json:"metadata"`
	Tags       TagSet         `json:"tags"`
	Session    *Entity        `json:"session,omitempty"`
	Profile    *Entity        `json:"profile,omitempty"`
	Request    map[string]any `json:"request,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Context    map[string]any `json:"context,omitempty"`

	// Update marks that the workflow substituted this event with a
	// different instance; the persistence coordinator swaps it in from
	// post_invoke_events before writing.
	Update bool `json:"-"`

	// Valid is cleared by the validator when the event fails JSON-schema
	// validation; invalid events are retained but skipped by rule
	// invocation.
	Valid bool `json:"-"`
}

// IsPersistent reports whether this event should be written at all.
// Collected events are always persistent; only explicitly discarded
// events (none modeled yet — reserved for future bridges) are not.
func (e *Event) IsPersistent() bool {
	return true
}

// TagSet is a lower-cased, deduplicated set of event tags. JSON
// marshals as a sorted slice for deterministic output — map iteration
// order is undefined but persisted JSON must still be stable.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from a slice, lower-casing and deduplicating.
func NewTagSet(tags []string) TagSet {
	t := make(TagSet, len(tags))
	for _, tag := range tags {
		t.Add(tag)
	}
	return t
}

// Add inserts a lower-cased tag.
func (t TagSet) Add(tag string) {
	if tag == "" {
		return
	}
	t[lower(tag)] = struct{}{}
}

// Union merges another set of raw tags into this one, lower-casing each.
func (t TagSet) Union(tags []string) {
	for _, tag := range tags {
		t.Add(tag)
	}
}

// Slice returns the tags as a sorted slice for stable serialization.
func (t TagSet) Slice() []string {
	out := make([]string, 0, len(t))
	for tag := range t {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func lower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// MarshalJSON renders the set as a sorted array.
func (t TagSet) MarshalJSON() ([]byte, error) {
	return marshalStringSlice(t.Slice())
}

// EventPayload is the wire shape of one event inside a TrackerPayload.
type EventPayload struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type" validate:"required"`
	Properties map[string]any `json:"properties,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

// ToEvent materializes an Event from this payload plus the resolved
// context.
func (p *EventPayload) ToEvent(meta EventPayloadMetadata, session *Session, profile *Profile, hasProfile bool, debug bool) *Event {
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}

	ev := &Event{
		ID:   id,
		Type: p.Type,
		Metadata: EventMetadata{
			Time: EventTime{
				Insert: meta.Time.Insert,
			},
			Status: EventCollected,
			Debug:  debug,
		},
		Tags:       NewTagSet(p.Tags),
		Properties: p.Properties,
		Context:    p.Context,
		Valid:      true,
	}

	if session != nil {
		ev.Session = NewEntity(session.ID)
		ev.Metadata.Time.SessionStart = session.Metadata.Time.Insert
		ev.Metadata.Time.SessionDuration = session.Metadata.Time.Duration
	}

	if hasProfile && profile != nil {
		ev.Profile = NewEntity(profile.ID)
	}

	return ev
}

func marshalStringSlice(s []string) ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	out := []byte{'['}
	for i, v := range s {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '"')
		out = append(out, []byte(v)...)
		out = append(out, '"')
	}
	out = append(out, ']')
	return out, nil
}
