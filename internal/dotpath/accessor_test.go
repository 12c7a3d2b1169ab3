package dotpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type testProfile struct {
	Traits map[string]any `json:"traits"`
}

func TestAccessor_GetResolvesNestedPath(t *testing.T) {
	a := New()
	require := a.SetStorage(ScopeProfile, testProfile{Traits: map[string]any{"email": "a@b.com"}})
	assert.NoError(t, require)

	v, ok := a.Get("profile@traits.email")
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", v)
}

func TestAccessor_GetMissingScope(t *testing.T) {
	a := New()
	_, ok := a.Get("session@id")
	assert.False(t, ok)
}

func TestAccessor_SetInitializesScopeLazily(t *testing.T) {
	a := New()
	err := a.Set("event@properties.browser", "chrome")
	assert.NoError(t, err)

	v, ok := a.Get("event@properties.browser")
	assert.True(t, ok)
	assert.Equal(t, "chrome", v)
}

func TestAccessor_GetStringFallsBackOnWrongType(t *testing.T) {
	a := New()
	_ = a.Set("payload@count", 5)

	assert.Equal(t, "default", a.GetString("payload@count", "default"))
	assert.Equal(t, "default", a.GetString("payload@missing", "default"))
}
