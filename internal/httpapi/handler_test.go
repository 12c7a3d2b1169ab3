package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tracardi/tracker-core/internal/destination"
	"github.com/tracardi/tracker-core/internal/domain"
	"github.com/tracardi/tracker-core/internal/storage"
	"github.com/tracardi/tracker-core/internal/tracker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler(t *testing.T, deps tracker.Deps) *Handler {
	t.Helper()
	if deps.Destination == nil {
		pub, err := destination.NewPublisher(destination.Config{})
		require.NoError(t, err)
		deps.Destination = pub
	}
	tr := tracker.New(deps, tracker.Config{})
	return New(tr, []string{"rest"})
}

func newTestRouter(h *Handler) *gin.Engine {
	router := gin.New()
	h.RegisterRoutes(router)
	return router
}

func TestHealth_ReturnsOK(t *testing.T) {
	h := newTestHandler(t, tracker.Deps{})
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrack_RejectsMissingSourceID(t *testing.T) {
	h := newTestHandler(t, tracker.Deps{})
	router := newTestRouter(h)

	body := []byte(`{"events":[{"type":"page-view"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/track", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrack_RejectsEmptyEvents(t *testing.T) {
	h := newTestHandler(t, tracker.Deps{})
	router := newTestRouter(h)

	body := []byte(`{"source":{"id":"src-1"},"events":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/track", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrack_UnauthorizedSourceReturns401(t *testing.T) {
	h := newTestHandler(t, tracker.Deps{
		LoadSource: func(ctx context.Context, id string) (*domain.EventSource, error) {
			return nil, nil
		},
	})
	router := newTestRouter(h)

	body := []byte(`{"source":{"id":"unknown"},"events":[{"type":"page-view"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/track", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTrack_ValidRequestReturns200WithProfile(t *testing.T) {
	h := newTestHandler(t, tracker.Deps{
		LoadSource: func(ctx context.Context, id string) (*domain.EventSource, error) {
			return &domain.EventSource{ID: "src-1", Bridge: "rest"}, nil
		},
		LoadSession: func(ctx context.Context, id string) (*domain.Session, error) {
			return nil, nil
		},
		Storage: &capturingStorage{},
	})
	router := newTestRouter(h)

	body := []byte(`{"source":{"id":"src-1"},"events":[{"type":"page-view","properties":{"url":"/home"}}]}`)
	req := httptest.NewRequest(http.MethodPost, "/track", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp tracker.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Profile)
	assert.NotEmpty(t, resp.Profile.ID)
}

func TestTrack_ProfileLessRequestOmitsProfile(t *testing.T) {
	h := newTestHandler(t, tracker.Deps{
		LoadSource: func(ctx context.Context, id string) (*domain.EventSource, error) {
			return &domain.EventSource{ID: "src-1", Bridge: "rest"}, nil
		},
		LoadSession: func(ctx context.Context, id string) (*domain.Session, error) {
			return nil, nil
		},
		Storage: &capturingStorage{},
	})
	router := newTestRouter(h)

	body := []byte(`{"source":{"id":"src-1"},"profile_less":true,"events":[{"type":"page-view"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/track", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp tracker.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Profile)
}

// capturingStorage records the documents written under each index, so
// a test can inspect what the pipeline actually persisted.
type capturingStorage struct {
	put []capturedPut
}

type capturedPut struct {
	idx      storage.Index
	document any
}

func (s *capturingStorage) Put(ctx context.Context, idx storage.Index, id string, document any) error {
	s.put = append(s.put, capturedPut{idx: idx, document: document})
	return nil
}

func (s *capturingStorage) Refresh(ctx context.Context, idx storage.Index) error { return nil }

func TestTrack_ServerStampsInsertTimeIgnoringClientValue(t *testing.T) {
	store := &capturingStorage{}
	pub, err := destination.NewPublisher(destination.Config{})
	require.NoError(t, err)

	before := time.Now().UTC()
	h := newTestHandler(t, tracker.Deps{
		LoadSource: func(ctx context.Context, id string) (*domain.EventSource, error) {
			return &domain.EventSource{ID: "src-1", Bridge: "rest"}, nil
		},
		LoadSession: func(ctx context.Context, id string) (*domain.Session, error) {
			return nil, nil
		},
		Storage:     store,
		Destination: pub,
	})
	router := newTestRouter(h)

	body := []byte(`{"id":"client-supplied-id","metadata":{"time":{"insert":"1999-01-01T00:00:00Z"}},"source":{"id":"src-1"},"events":[{"type":"page-view"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/track", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	after := time.Now().UTC()

	require.Equal(t, http.StatusOK, rec.Code)

	var ev *domain.Event
	for _, p := range store.put {
		if p.idx == storage.IndexEvent {
			ev = p.document.(*domain.Event)
		}
	}
	require.NotNil(t, ev, "expected an event to be persisted")
	assert.False(t, ev.Metadata.Time.Insert.Before(before), "insert time must not be the 1999 client value")
	assert.False(t, ev.Metadata.Time.Insert.After(after), "insert time must not be in the future")
}

func TestFlattenHeaders_JoinsRepeatedValuesAndDropsEmpty(t *testing.T) {
	h := http.Header{}
	h.Add("X-Tag", "a")
	h.Add("X-Tag", "b")
	h.Set("X-Empty", "")
	h["X-None"] = []string{}

	out := flattenHeaders(h)
	assert.Equal(t, "a,b", out["X-Tag"])
	assert.Equal(t, "", out["X-Empty"])
	assert.NotContains(t, out, "X-None")
}
