package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth struct {
	id string
}

func (a staticAuth) CurrentUser(*http.Request) (string, bool) {
	return a.id, a.id != ""
}

func TestAuthenticate(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = OwnerID(r.Context())
	})

	Authenticate(staticAuth{id: "alice"})(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "alice", seen)

	// Без владельца запрос всё равно доходит до обработчика.
	seen = "untouched"
	Authenticate(staticAuth{})(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "", seen)
}

func TestLoggingMiddleware(t *testing.T) {
	log, hook := test.NewNullLogger()

	h := chiMiddleware.RequestID(LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "request completed", entry.Message)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, http.MethodPost, entry.Data["method"])
	assert.Equal(t, "/api/v1/tasks", entry.Data["path"])
	assert.NotEmpty(t, entry.Data["request_id"])
}

func TestRequestTimeoutMiddleware(t *testing.T) {
	log, hook := test.NewNullLogger()

	var deadline time.Time
	var ok bool
	h := RequestTimeoutMiddleware(50*time.Millisecond, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
		<-r.Context().Done()
		assert.ErrorIs(t, r.Context().Err(), context.DeadlineExceeded)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.True(t, ok)
	assert.False(t, deadline.IsZero())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "/slow", entry.Data["path"])
}

func TestRequestTimeoutMiddleware_FastRequestNotLogged(t *testing.T) {
	log, hook := test.NewNullLogger()

	h := RequestTimeoutMiddleware(time.Second, log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, hook.AllEntries())
}

func TestJSONHeaderMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONHeaderMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}
