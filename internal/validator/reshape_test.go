package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tracardi/tracker-core/internal/domain"
)

func TestReshape_StripsMarkupFromStringProperties(t *testing.T) {
	ev := &domain.Event{
		Properties: map[string]any{
			"comment": "<script>alert(1)</script>hello",
			"nested": map[string]any{
				"bio": "<b>bold</b> text",
			},
			"count": 3.0,
		},
	}

	Reshape(ev)

	assert.Equal(t, "hello", ev.Properties["comment"])
	assert.Equal(t, 3.0, ev.Properties["count"])
	nested := ev.Properties["nested"].(map[string]any)
	assert.Equal(t, "bold text", nested["bio"])
}

func TestReshape_NilPropertiesIsNoOp(t *testing.T) {
	ev := &domain.Event{}
	Reshape(ev)
	assert.Nil(t, ev.Properties)
}
