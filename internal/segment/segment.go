// Package segment defines the call contract into the segmentation
// engine — an external collaborator this core only calls through an
// interface, invoked only when a profile is present and scoped to the
// event types the rules engine actually ran.
package segment

import (
	"context"

	"github.com/tracardi/tracker-core/internal/domain"
)

// Definition is a segment's matching rule, keyed by the event types
// that can trigger its (re)evaluation.
type Definition struct {
	ID         string   `json:"id"`
	EventTypes []string `json:"event_types"`
}

// Engine (re)computes which segments a profile belongs to, given the
// event types that ran during this request.
type Engine interface {
	Segment(ctx context.Context, profile *domain.Profile, ranEventTypes []string, definitions []Definition) error
}

// Default leaves the profile's segment membership untouched. The
// production segmentation engine lives outside this core.
type Default struct{}

// Segment implements Engine.
func (Default) Segment(ctx context.Context, profile *domain.Profile, ranEventTypes []string, definitions []Definition) error {
	return nil
}
