package validator

import (
	"encoding/json"
	"fmt"

	"github.com/tracardi/tracker-core/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

// EventSchema is a compiled JSON schema an event type must satisfy,
// resolved per event.Type by the rules/flow configuration. An event type with no registered schema is always valid.
type EventSchema struct {
	Type   string
	Schema *gojsonschema.Schema
}

// SchemaRegistry resolves an event type to its compiled schema.
type SchemaRegistry struct {
	schemas map[string]*gojsonschema.Schema
}

// NewSchemaRegistry builds an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: map[string]*gojsonschema.Schema{}}
}

// Register compiles and stores a schema for an event type. rawSchema
// is the JSON schema document as a string.
func (r *SchemaRegistry) Register(eventType string, rawSchema string) error {
	loader := gojsonschema.NewStringLoader(rawSchema)
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return fmt.Errorf("compiling schema for event type %s: %w", eventType, err)
	}
	r.schemas[eventType] = schema
	return nil
}

// ValidateEvent checks an event's properties against its type's
// registered schema, if any. Returns the list of human-readable
// validation failures (empty when valid or when no schema applies).
func (r *SchemaRegistry) ValidateEvent(ev *domain.Event) ([]string, error) {
	schema, ok := r.schemas[ev.Type]
	if !ok {
		return nil, nil
	}

	data, err := json.Marshal(ev.Properties)
	if err != nil {
		return nil, fmt.Errorf("encoding event %s properties: %w", ev.ID, err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validating event %s: %w", ev.ID, err)
	}

	if result.Valid() {
		return nil, nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		messages = append(messages, e.String())
	}
	return messages, nil
}
