package domain

import (
	"time"

	"github.com/google/uuid"
)

// VisitMetadata tracks the last three visit timestamps and a running
// count, shifted on the first event of each new session.
type VisitMetadata struct {
	Count  int       `json:"count"`
	Last   time.Time `json:"last,omitempty"`
	Second time.Time `json:"second,omitempty"`
	Third  time.Time `json:"third,omitempty"`
	TZ     string    `json:"tz,omitempty"`
}

// SetVisitTimes shifts last→second→third and sets last to now.
func (v *VisitMetadata) SetVisitTimes(now time.Time) {
	v.Third = v.Second
	v.Second = v.Last
	v.Last = now
}

// ProfileTime is the profile's metadata.time block.
type ProfileTime struct {
	Insert time.Time     `json:"insert"`
	Visit  VisitMetadata `json:"visit"`
}

// ProfileMetadata is the metadata block carried on every Profile.
type ProfileMetadata struct {
	Time ProfileTime `json:"time"`
}

// Profile is shared, long-lived state referenced by many sessions and
// events.
type Profile struct {
	ID        string          `json:"id"`
	Metadata  ProfileMetadata `json:"metadata"`
	Traits    map[string]any  `json:"traits,omitempty"`
	PII       map[string]any  `json:"pii,omitempty"`
	Operation Operation       `json:"operation"`
}

// NewProfile creates a fresh profile with a generated id, stamped now
// and marked new — the "create new profile" branch of the resolver.
func NewProfile(now time.Time) *Profile {
	return &Profile{
		ID: uuid.New().String(),
		Metadata: ProfileMetadata{
			Time: ProfileTime{Insert: now},
		},
		Operation: Operation{New: true},
	}
}

// NewProfileWithID creates a profile with a caller-asserted id — used
// by both the "forged profile id" branch (§4.2 dynamic resolution) and
// the static-profile-id path (§4.2 static resolution).
func NewProfileWithID(id string, now time.Time) *Profile {
	p := NewProfile(now)
	p.ID = id
	return p
}

// RegisterVisit applies the visit-accounting step:
// called only when the profile is present and the session is new.
func (p *Profile) RegisterVisit(now time.Time, tz string) {
	p.Metadata.Time.Visit.SetVisitTimes(now)
	p.Metadata.Time.Visit.Count++
	p.Operation.Update = true
	if tz != "" {
		p.Metadata.Time.Visit.TZ = tz
	}
}

// Snapshot returns a deep copy excluding Operation, for the
// destination-diff taken before the pipeline runs.
func (p *Profile) Snapshot() *Profile {
	if p == nil {
		return nil
	}
	cp := &Profile{
		ID:       p.ID,
		Metadata: p.Metadata,
	}
	cp.Traits = deepCopyMap(p.Traits)
	cp.PII = deepCopyMap(p.PII)
	return cp
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(nested)
		} else {
			out[k] = v
		}
	}
	return out
}
