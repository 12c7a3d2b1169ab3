// Package rules defines the tracker core's call contract into the
// rules/workflow engine — an external collaborator this core only
// calls through an interface. This package implements only the
// interface and a pass-through default sufficient to exercise the
// pipeline standalone.
package rules

import (
	"context"

	"github.com/tracardi/tracker-core/internal/domain"
)

// Rule is a routing rule matching a source and event type to the flow
// it should invoke.
type Rule struct {
	ID        string `json:"id"`
	SourceID  string `json:"source_id"`
	EventType string `json:"event_type"`
	FlowID    string `json:"flow_id"`
}

// InvokeResult carries everything the rules/workflow engine may have
// changed.
type InvokeResult struct {
	// Profile and Session are returned because the workflow may
	// replace either with a different instance — the pipeline must
	// compare by pointer identity and swap.
	Profile *domain.Profile
	Session *domain.Session

	// InvokedRules maps event type to the ids of rules that ran
	// against it; the pipeline stamps these onto each event's
	// metadata.processed_by.rules.
	InvokedRules map[string][]string

	// RanEventTypes is handed to the segmentation stage so it only
	// re-evaluates segments relevant to what actually ran.
	RanEventTypes []string

	// PostInvokeEvents replaces events the workflow mutated; events
	// not present here are persisted unchanged.
	PostInvokeEvents map[string]*domain.Event

	// UX carries workflow-emitted UI directives, echoed verbatim into
	// the track response's "ux" field.
	UX []any

	// FlowResponses carries each invoked flow's response payload,
	// merged into the track response's "response" field.
	FlowResponses []map[string]any
}

// MergeFlowResponses flattens FlowResponses into one map, later flow
// responses overwriting earlier keys on conflict.
func (r *InvokeResult) MergeFlowResponses() map[string]any {
	merged := map[string]any{}
	for _, fr := range r.FlowResponses {
		for k, v := range fr {
			merged[k] = v
		}
	}
	return merged
}

// Engine invokes the rules/workflow engine for one request's events.
// The production implementation of this interface lives outside this
// core; Default below is a standalone stand-in.
type Engine interface {
	Invoke(ctx context.Context, session *domain.Session, profile *domain.Profile, rules []Rule, events []*domain.Event) (*InvokeResult, error)
}

// Default is a no-op Engine: it runs no workflow and returns the
// session/profile unchanged. Enough to exercise the tracker pipeline
// without a real workflow engine wired in.
type Default struct{}

// Invoke implements Engine.
func (Default) Invoke(ctx context.Context, session *domain.Session, profile *domain.Profile, rules []Rule, events []*domain.Event) (*InvokeResult, error) {
	return &InvokeResult{
		Profile:          profile,
		Session:          session,
		InvokedRules:     map[string][]string{},
		RanEventTypes:    nil,
		PostInvokeEvents: map[string]*domain.Event{},
	}, nil
}
