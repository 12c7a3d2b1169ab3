package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfile_RegisterVisit_ShiftsTimesAndIncrementsCount(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewProfile(t0)

	first := t0.Add(time.Hour)
	p.RegisterVisit(first, "Europe/Warsaw")
	assert.Equal(t, 1, p.Metadata.Time.Visit.Count)
	assert.Equal(t, first, p.Metadata.Time.Visit.Last)
	assert.Equal(t, "Europe/Warsaw", p.Metadata.Time.Visit.TZ)
	assert.True(t, p.Operation.Update)

	second := first.Add(time.Hour)
	p.RegisterVisit(second, "")
	assert.Equal(t, 2, p.Metadata.Time.Visit.Count)
	assert.Equal(t, second, p.Metadata.Time.Visit.Last)
	assert.Equal(t, first, p.Metadata.Time.Visit.Second)
	// empty tz must not clobber the previously recorded one
	assert.Equal(t, "Europe/Warsaw", p.Metadata.Time.Visit.TZ)
}

func TestProfile_Snapshot_IsIndependentDeepCopy(t *testing.T) {
	p := NewProfile(time.Now())
	p.Traits = map[string]any{"nested": map[string]any{"k": "v"}}

	snap := p.Snapshot()
	nested := snap.Traits["nested"].(map[string]any)
	nested["k"] = "mutated"

	assert.Equal(t, "v", p.Traits["nested"].(map[string]any)["k"])
}

func TestNewProfileWithID_OverridesGeneratedID(t *testing.T) {
	p := NewProfileWithID("forged-id", time.Now())
	assert.Equal(t, "forged-id", p.ID)
	assert.True(t, p.Operation.New)
}
