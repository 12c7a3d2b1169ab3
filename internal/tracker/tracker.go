// Package tracker implements the event-tracking pipeline orchestrator:
// ingestion, session/profile resolution, the per-request pipeline
// (validate, reshape, rules, segmentation, merge), the persistence
// coordinator, destination dispatch, and response assembly.
package tracker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tracardi/tracker-core/internal/destination"
	"github.com/tracardi/tracker-core/internal/domain"
	"github.com/tracardi/tracker-core/internal/merger"
	"github.com/tracardi/tracker-core/internal/rules"
	"github.com/tracardi/tracker-core/internal/segment"
	"github.com/tracardi/tracker-core/internal/storage"
	"github.com/tracardi/tracker-core/internal/sync"
	"github.com/tracardi/tracker-core/internal/validator"
)

// SourceLoader resolves a source id into its full configuration. A nil
// EventSource with a nil error means "not found" — the caller turns
// that into Unauthorized, it is not itself an error condition.
type SourceLoader func(ctx context.Context, id string) (*domain.EventSource, error)

// ProfileLoader loads the canonical (merge-resolved) profile for an
// id. A nil Profile with a nil error means "not found".
type ProfileLoader func(ctx context.Context, id string) (*domain.Profile, error)

// SessionLoader loads a session by id. A nil Session with a nil error
// means "not found". An error whose Code is errors.ErrCodeDuplicatedRecord
// signals the corrector branch.
type SessionLoader func(ctx context.Context, id string) (*domain.Session, error)

// SessionCorrector recovers the distinct profile ids referenced by
// duplicate session documents sharing one id.
type SessionCorrector func(ctx context.Context, id string) ([]string, error)

// SessionExister reports whether a session document exists, used to
// decide whether an event's session reference must be nulled out when
// saveSession is false.
type SessionExister func(ctx context.Context, id string) (bool, error)

// RuleLoader loads the routing rules matching a source and the event
// types present in a request. A nil slice with a nil error means "no
// rules at all" — the pipeline skips rules/segmentation/merge
// entirely for this request.
type RuleLoader func(ctx context.Context, sourceID string, eventTypes []string) ([]rules.Rule, error)

// SegmentLoader loads segment definitions eligible to (re)run given
// the event types the rules engine actually invoked.
type SegmentLoader func(ctx context.Context, eventTypes []string) ([]segment.Definition, error)

// EventTagLoader loads the extra tags configured for an event type,
// unioned into the event's own tags at persistence time.
type EventTagLoader func(ctx context.Context, eventType string) ([]string, error)

// Deps bundles every collaborator the orchestrator calls through — no
// global singletons.
type Deps struct {
	Storage      Storage
	Synchronizer *sync.Synchronizer
	Rules        rules.Engine
	Segment      segment.Engine
	Merger       *merger.Merger
	Schemas      *validator.SchemaRegistry
	Destination  *destination.Publisher

	LoadSource    SourceLoader
	LoadProfile   ProfileLoader
	LoadSession   SessionLoader
	CorrectSession SessionCorrector
	SessionExists SessionExister
	LoadRules     RuleLoader
	LoadSegments  SegmentLoader
	LoadEventTags EventTagLoader

	// Now returns the current time; overridable in tests. Defaults to
	// time.Now.
	Now func() time.Time
	// GenID mints session ids (ForceSession). Defaults to uuid.NewString.
	GenID func() string
}

// Storage is the subset of internal/storage.Store the persistence
// coordinator needs, kept as an interface so tests can supply a fake
// without a live Postgres connection.
type Storage interface {
	Put(ctx context.Context, idx storage.Index, id string, document any) error
	Refresh(ctx context.Context, idx storage.Index) error
}

// Config holds the per-deployment knobs the orchestrator itself reads
// (everything else lives in the collaborators it was built with).
type Config struct {
	// TrackDebug is the global tracardi.track_debug switch; a request
	// additionally needs its own "debugger" option set.
	TrackDebug bool
}

// Tracker is the pipeline orchestrator. One instance is built at
// startup and shared across requests; it holds no per-request state.
type Tracker struct {
	deps Deps
	cfg  Config
}

// New builds a Tracker, filling in default clock/id-generator
// collaborators when the caller didn't supply one.
func New(deps Deps, cfg Config) *Tracker {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.GenID == nil {
		deps.GenID = uuid.NewString
	}
	return &Tracker{deps: deps, cfg: cfg}
}
