package validator

import (
	"github.com/microcosm-cc/bluemonday"
	"github.com/tracardi/tracker-core/internal/domain"
)

// sanitizer strips markup from string event properties before they
// are persisted or handed to the rules engine — events arrive from
// untrusted browser/bridge input and properties are free-form.
var sanitizer = bluemonday.StrictPolicy()

// Reshape sanitizes every string-valued property on an event in
// place, recursing into nested maps. Non-string values pass through
// unchanged.
func Reshape(ev *domain.Event) {
	ev.Properties = sanitizeMap(ev.Properties)
}

func sanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return sanitizer.Sanitize(val)
	case map[string]any:
		return sanitizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = sanitizeValue(e)
		}
		return out
	default:
		return v
	}
}
