package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracardi/tracker-core/internal/domain"
)

const purchaseSchema = `{
	"type": "object",
	"required": ["amount"],
	"properties": {
		"amount": {"type": "number"}
	}
}`

func TestSchemaRegistry_ValidatesRegisteredType(t *testing.T) {
	reg := NewSchemaRegistry()
	require.NoError(t, reg.Register("purchase", purchaseSchema))

	ev := &domain.Event{ID: "ev-1", Type: "purchase", Properties: map[string]any{"amount": 9.99}}

	failures, err := reg.ValidateEvent(ev)
	assert.NoError(t, err)
	assert.Empty(t, failures)
}

func TestSchemaRegistry_ReportsFailures(t *testing.T) {
	reg := NewSchemaRegistry()
	require.NoError(t, reg.Register("purchase", purchaseSchema))

	ev := &domain.Event{ID: "ev-1", Type: "purchase", Properties: map[string]any{}}

	failures, err := reg.ValidateEvent(ev)
	assert.NoError(t, err)
	assert.NotEmpty(t, failures)
}

func TestSchemaRegistry_UnregisteredTypeIsAlwaysValid(t *testing.T) {
	reg := NewSchemaRegistry()

	ev := &domain.Event{ID: "ev-1", Type: "anything", Properties: map[string]any{}}

	failures, err := reg.ValidateEvent(ev)
	assert.NoError(t, err)
	assert.Empty(t, failures)
}
