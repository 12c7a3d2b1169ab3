package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_StableAcrossMapKeyOrder(t *testing.T) {
	p1 := &TrackerPayload{
		Source:  SourceRef{Ref: Entity{ID: "src-1"}},
		Session: NewEntity("sess-1"),
		Properties: map[string]any{
			"a": 1.0,
			"b": "hello",
			"c": map[string]any{"x": 1.0, "y": 2.0},
		},
	}
	p2 := &TrackerPayload{
		Source:  SourceRef{Ref: Entity{ID: "src-1"}},
		Session: NewEntity("sess-1"),
		Properties: map[string]any{
			"c": map[string]any{"y": 2.0, "x": 1.0},
			"b": "hello",
			"a": 1.0,
		},
	}

	assert.Equal(t, Fingerprint(p1), Fingerprint(p2))
}

func TestFingerprint_DiffersOnSessionID(t *testing.T) {
	p1 := &TrackerPayload{Source: SourceRef{Ref: Entity{ID: "src-1"}}, Session: NewEntity("sess-1")}
	p2 := &TrackerPayload{Source: SourceRef{Ref: Entity{ID: "src-1"}}, Session: NewEntity("sess-2")}

	assert.NotEqual(t, Fingerprint(p1), Fingerprint(p2))
}

func TestFingerprint_IgnoresEventsAndMetadata(t *testing.T) {
	base := &TrackerPayload{Source: SourceRef{Ref: Entity{ID: "src-1"}}, Session: NewEntity("sess-1")}

	withEvents := NewTrackerPayload(base.Metadata.Time.Insert)
	withEvents.Source = base.Source
	withEvents.Session = base.Session
	withEvents.Events = []EventPayload{{Type: "page-view"}}

	withoutEvents := NewTrackerPayload(withEvents.Metadata.Time.Insert.Add(time.Hour))
	withoutEvents.Source = base.Source
	withoutEvents.Session = base.Session

	assert.Equal(t, Fingerprint(withEvents), Fingerprint(withoutEvents))
}
