package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_MergeContextAndProperties_OverwritesExistingKeys(t *testing.T) {
	s := NewSession("sess-1", time.Now())
	s.Context = map[string]any{"page": "home"}

	s.MergeContextAndProperties(
		map[string]any{"page": "checkout", "ref": "ad"},
		map[string]any{"cart_size": 3.0},
	)

	assert.Equal(t, "checkout", s.Context["page"])
	assert.Equal(t, "ad", s.Context["ref"])
	assert.Equal(t, 3.0, s.Properties["cart_size"])
}

func TestSession_Timezone_ReadsNestedContext(t *testing.T) {
	s := NewSession("sess-1", time.Now())
	s.Context = map[string]any{"time": map[string]any{"tz": "UTC"}}

	tz, ok := s.Timezone()
	assert.True(t, ok)
	assert.Equal(t, "UTC", tz)
}

func TestSession_Timezone_MissingWhenAbsent(t *testing.T) {
	s := NewSession("sess-1", time.Now())

	_, ok := s.Timezone()
	assert.False(t, ok)
}

func TestNewSession_MarksNew(t *testing.T) {
	s := NewSession("sess-1", time.Now())
	assert.True(t, s.Operation.New)
	assert.False(t, s.Operation.Update)
}
