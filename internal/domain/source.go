package domain

import "encoding/json"

// Consent describes what an ingesting channel's visitors have agreed to;
// only this block is ever echoed back to the caller.
type Consent struct {
	Description string   `json:"description,omitempty"`
	Revokable   bool      `json:"revokable"`
	Tags        []string `json:"tags,omitempty"`
}

// EventSource is the fully loaded configuration of an ingesting channel
// (a "bridge").
type EventSource struct {
	ID                  string   `json:"id"`
	Bridge              string   `json:"bridge"`
	ReturnsProfile      bool     `json:"returns_profile"`
	Transitional        bool     `json:"transitional"`
	SynchronizeProfiles bool     `json:"synchronize_profiles"`
	AllowedBridges       []string `json:"allowed_bridges,omitempty"`
	Consent             Consent  `json:"consent"`
}

// BridgeAllowed reports whether this source's bridge kind is present in
// the caller-supplied allow-list.
func (s *EventSource) BridgeAllowed(allowed []string) bool {
	for _, b := range allowed {
		if b == s.Bridge {
			return true
		}
	}
	return false
}

// SourceRef is a tagged union: a TrackerPayload arrives with only an
// id-only reference to its source; ingestion resolves it into a full
// EventSource.
type SourceRef struct {
	Ref      Entity
	Resolved *EventSource
}

// IsResolved reports whether Resolve has been called.
func (s *SourceRef) IsResolved() bool {
	return s.Resolved != nil
}

// Resolve attaches the loaded EventSource configuration.
func (s *SourceRef) Resolve(source *EventSource) {
	s.Resolved = source
}

// ID returns the source id regardless of resolution state.
func (s *SourceRef) ID() string {
	if s.Resolved != nil {
		return s.Resolved.ID
	}
	return s.Ref.ID
}

// UnmarshalJSON decodes the wire shape `source:{id}` into
// an unresolved reference; Resolve attaches the full configuration
// once ingestion validates it.
func (s *SourceRef) UnmarshalJSON(data []byte) error {
	var ref Entity
	if err := json.Unmarshal(data, &ref); err != nil {
		return err
	}
	s.Ref = ref
	s.Resolved = nil
	return nil
}

// MarshalJSON renders the resolved source when present, otherwise the
// bare id-only reference.
func (s SourceRef) MarshalJSON() ([]byte, error) {
	if s.Resolved != nil {
		return json.Marshal(s.Resolved)
	}
	return json.Marshal(s.Ref)
}
