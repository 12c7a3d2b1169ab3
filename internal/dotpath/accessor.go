// Package dotpath implements the DotAccessor: dotted-path read/write
// across the scopes a reshape or rule expression may reference —
// profile, session, payload, event, flow, and an in-request memory
// scope.
package dotpath

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Scope names one of the six documents a dotted path can address,
// e.g. "event@properties.browser" or "profile@traits.email".
type Scope string

const (
	ScopeProfile Scope = "profile"
	ScopeSession Scope = "session"
	ScopePayload Scope = "payload"
	ScopeEvent   Scope = "event"
	ScopeFlow    Scope = "flow"
	ScopeMemory  Scope = "memory"
)

// Accessor holds one JSON document per scope and resolves
// "scope@dotted.path" references against them.
type Accessor struct {
	docs map[Scope]string
}

// New builds an Accessor. Any scope may be nil; reads against a nil
// scope always miss, writes to a nil scope initialize it to `{}`.
func New() *Accessor {
	return &Accessor{docs: make(map[Scope]string, 6)}
}

// SetStorage loads a scope's backing document from a Go value by
// marshaling it to JSON.
func (a *Accessor) SetStorage(scope Scope, value any) error {
	data, err := marshal(value)
	if err != nil {
		return fmt.Errorf("dotpath: setting storage for %s: %w", scope, err)
	}
	a.docs[scope] = data
	return nil
}

// Get resolves "scope@path" against the loaded documents. Returns
// (nil, false) if the scope is unset or the path does not resolve.
func (a *Accessor) Get(ref string) (any, bool) {
	scope, path, ok := split(ref)
	if !ok {
		return nil, false
	}

	doc, ok := a.docs[scope]
	if !ok {
		return nil, false
	}

	result := gjson.Get(doc, path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// GetString is a convenience wrapper over Get for string-typed fields,
// returning def when the path is missing or not a string.
func (a *Accessor) GetString(ref string, def string) string {
	v, ok := a.Get(ref)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// Set writes value at "scope@path", initializing the scope's document
// if it has not been loaded yet.
func (a *Accessor) Set(ref string, value any) error {
	scope, path, ok := split(ref)
	if !ok {
		return fmt.Errorf("dotpath: invalid reference %q", ref)
	}

	doc, ok := a.docs[scope]
	if !ok {
		doc = "{}"
	}

	updated, err := sjson.Set(doc, path, value)
	if err != nil {
		return fmt.Errorf("dotpath: setting %s: %w", ref, err)
	}

	a.docs[scope] = updated
	return nil
}

// Raw returns a scope's backing document as a JSON string.
func (a *Accessor) Raw(scope Scope) (string, bool) {
	doc, ok := a.docs[scope]
	return doc, ok
}

func split(ref string) (Scope, string, bool) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '@' {
			return Scope(ref[:i]), ref[i+1:], true
		}
	}
	return "", "", false
}
