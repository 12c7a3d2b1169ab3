// Package httpapi exposes the event-tracking core over HTTP: one
// ingestion endpoint (POST /track) that binds the wire TrackerPayload
// directly (domain.TrackerPayload already models the wire shape, per
// internal/domain's doc comment), validates it, and delegates to
// internal/tracker. A dependency-holding Handler struct is registered
// against a gin router, rather than package-level handler functions.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/tracardi/tracker-core/internal/domain"
	ierrors "github.com/tracardi/tracker-core/internal/errors"
	"github.com/tracardi/tracker-core/internal/logger"
	"github.com/tracardi/tracker-core/internal/tracker"
)

// Handler holds every dependency the ingestion endpoint needs.
type Handler struct {
	tracker        *tracker.Tracker
	validate       *validator.Validate
	allowedBridges []string
}

// New builds a Handler. allowedBridges is the set of bridge kinds this
// deployment's /track endpoint accepts — e.g. a REST collector only allows "rest".
func New(tr *tracker.Tracker, allowedBridges []string) *Handler {
	return &Handler{
		tracker:        tr,
		validate:       validator.New(),
		allowedBridges: allowedBridges,
	}
}

// RegisterRoutes wires this handler's endpoints onto router.
//
// Endpoints:
//   - POST /track  — ingest one TrackerPayload. Whether
//     the pipeline runs synchronously or detached, and whether a
//     static profile id is asserted, are both request-level options
//     ("run_async", "static_profile_id") rather than separate routes,
//     keeping a single track() contract for every request shape.
//   - GET  /health  — liveness probe, excluded from structured request
//     logging by internal/middleware's SkipHealthCheck convention.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/track", h.Track)
	router.GET("/health", h.Health)
}

// Health reports process liveness only — it does not probe Postgres,
// Redis, or NATS, so it stays cheap enough for a tight orchestrator
// liveness check.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Track handles POST /track: bind, validate, resolve allowed bridges,
// and run the pipeline.
func (h *Handler) Track(c *gin.Context) {
	payload := domain.NewTrackerPayload(time.Now())
	id, metadata := payload.ID, payload.Metadata

	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, ierrors.InvalidArgument(err.Error()))
		return
	}
	// id and insert time are stamped server-side at construction; a
	// client-supplied value for either must never override them.
	payload.ID, payload.Metadata = id, metadata

	if err := h.validate.Struct(payload); err != nil {
		writeError(c, ierrors.InvalidArgument(err.Error()))
		return
	}

	payload.SetHeaders(flattenHeaders(c.Request.Header))

	opts := tracker.TrackOptions{
		ClientIP:        c.ClientIP(),
		ProfileLess:     payload.ProfileLess,
		AllowedBridges:  h.allowedBridges,
		RunAsync:        payload.OptionBool("run_async", false),
		StaticProfileID: payload.OptionBool("static_profile_id", false),
	}

	resp, err := h.tracker.Track(c.Request.Context(), payload, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// writeError maps a tracker error to its HTTP status, covering the
// four caller-visible error kinds. Anything that isn't an
// *ierrors.AppError is a bug, not a client-visible condition — it
// becomes a generic 500 without leaking internals.
func writeError(c *gin.Context, err error) {
	var appErr *ierrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}

	logger.HTTP().Error().Err(err).Msg("unclassified error reached the HTTP layer")
	c.JSON(http.StatusInternalServerError, ierrors.InternalServer("internal error").ToResponse())
}

// flattenHeaders collapses net/http's multi-value header map into the
// single-value map TrackerPayload.SetHeaders expects, joining repeated
// values with a comma (the same convention net/http.Header.Get uses
// for its own first-value shortcut, extended to keep every value).
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		if len(values) == 0 {
			continue
		}
		v := values[0]
		for _, extra := range values[1:] {
			v += "," + extra
		}
		out[k] = v
	}
	return out
}
