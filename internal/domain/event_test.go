package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTagSet_LowerCasesAndDedupes(t *testing.T) {
	tags := NewTagSet([]string{"Checkout", "CHECKOUT", "purchase"})

	assert.Equal(t, []string{"checkout", "purchase"}, tags.Slice())
}

func TestTagSet_MarshalJSON_IsSorted(t *testing.T) {
	tags := NewTagSet([]string{"zebra", "apple"})

	out, err := json.Marshal(tags)
	assert.NoError(t, err)
	assert.JSONEq(t, `["apple","zebra"]`, string(out))
}

func TestEventPayload_ToEvent_BindsSessionAndProfile(t *testing.T) {
	now := time.Now().UTC()
	session := NewSession("sess-1", now)
	profile := NewProfile(now)

	payload := &EventPayload{Type: "page-view", Tags: []string{"Nav"}}
	meta := EventPayloadMetadata{Time: EventPayloadTime{Insert: now}}

	ev := payload.ToEvent(meta, session, profile, true, false)

	assert.Equal(t, "page-view", ev.Type)
	assert.Equal(t, EventCollected, ev.Metadata.Status)
	assert.Equal(t, "sess-1", ev.Session.ID)
	assert.Equal(t, profile.ID, ev.Profile.ID)
	assert.Contains(t, ev.Tags, "nav")
}

func TestEventPayload_ToEvent_OmitsProfileWhenProfileLess(t *testing.T) {
	now := time.Now().UTC()
	session := NewSession("sess-1", now)
	profile := NewProfile(now)

	payload := &EventPayload{Type: "page-view"}
	meta := EventPayloadMetadata{Time: EventPayloadTime{Insert: now}}

	ev := payload.ToEvent(meta, session, profile, false, false)

	assert.Nil(t, ev.Profile)
}
