package domain

import "time"

// SessionTime tracks a session's lifecycle timestamps.
type SessionTime struct {
	Insert   time.Time `json:"insert"`
	Last     time.Time `json:"last,omitempty"`
	Duration float64   `json:"duration,omitempty"`
}

// SessionMetadata is the metadata block carried on every Session.
type SessionMetadata struct {
	Time SessionTime `json:"time"`
}

// Session is a long-lived entity spanning many payloads for the same
// session id.
type Session struct {
	ID         string         `json:"id"`
	Metadata   SessionMetadata `json:"metadata"`
	Profile    *Entity        `json:"profile,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Operation  Operation      `json:"operation"`
}

// NewSession creates a session stamped with the current time, marked new.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID: id,
		Metadata: SessionMetadata{
			Time: SessionTime{Insert: now},
		},
		Operation: Operation{New: true},
	}
}

// BindProfile sets the session's weak back-reference to a profile.
func (s *Session) BindProfile(profileID string) {
	s.Profile = NewEntity(profileID)
}

// MergeContextAndProperties folds payload-level context/properties into
// the session, overwriting existing keys.
func (s *Session) MergeContextAndProperties(context, properties map[string]any) {
	if s.Context == nil {
		s.Context = map[string]any{}
	}
	for k, v := range context {
		s.Context[k] = v
	}

	if s.Properties == nil {
		s.Properties = map[string]any{}
	}
	for k, v := range properties {
		s.Properties[k] = v
	}
}

// Timezone extracts session.context.time.tz if present, used to seed
// Profile.Metadata.Time.Visit.TZ on the first event of a new session.
func (s *Session) Timezone() (string, bool) {
	if s.Context == nil {
		return "", false
	}
	timeBlock, ok := s.Context["time"].(map[string]any)
	if !ok {
		return "", false
	}
	tz, ok := timeBlock["tz"].(string)
	return tz, ok
}
