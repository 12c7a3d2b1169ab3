package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test structs mirror the wire shapes validator.go guards: an
// id-only source reference and a minimal event payload.
type TestSourceRef struct {
	ID string `json:"id" validate:"required,uuid"`
}

type TestEventRequest struct {
	Type    string `json:"type" validate:"required,min=1,max=100"`
	Session string `json:"session" validate:"omitempty,min=3"`
}

func TestValidateStruct_Success(t *testing.T) {
	req := TestEventRequest{Type: "page-view", Session: "sess-1"}

	err := ValidateStruct(req)
	assert.NoError(t, err)
}

func TestValidateStruct_RequiredFields(t *testing.T) {
	req := TestEventRequest{}

	err := ValidateStruct(req)
	assert.Error(t, err)
}

func TestValidateRequest_Success(t *testing.T) {
	req := TestSourceRef{ID: "123e4567-e89b-12d3-a456-426614174000"}

	errs := ValidateRequest(req)
	assert.Nil(t, errs)
}

func TestValidateRequest_MultipleErrors(t *testing.T) {
	req := TestEventRequest{Type: "", Session: "a"}

	errs := ValidateRequest(req)
	assert.NotNil(t, errs)
	assert.Contains(t, errs, "type")
	assert.Contains(t, errs, "session")
}

func TestValidateUUID_Invalid(t *testing.T) {
	invalidUUIDs := []string{"not-a-uuid", "123456", ""}

	for _, uuid := range invalidUUIDs {
		req := TestSourceRef{ID: uuid}

		errs := ValidateRequest(req)
		assert.NotNil(t, errs, "UUID should be invalid: %s", uuid)
		assert.Contains(t, errs, "id")
	}
}

func TestFormatValidationError_IsDescriptive(t *testing.T) {
	req := TestEventRequest{}

	errs := ValidateRequest(req)
	assert.NotNil(t, errs)

	for field, msg := range errs {
		assert.NotEmpty(t, msg, "error message should not be empty for field: %s", field)
	}
}
