package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveThrough(mw func(http.Handler) http.Handler, inner http.HandlerFunc, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mw(inner).ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"passes response through", http.StatusOK, "ok"},
		{"captures non-2xx status", http.StatusNotFound, "no such table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveThrough(LoggingMiddleware, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}, "/api/v1/databases")

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("no panic", func(t *testing.T) {
		w := serveThrough(RecoveryMiddleware, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}, "/api/v1/databases")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("string panic becomes 500", func(t *testing.T) {
		w := serveThrough(RecoveryMiddleware, func(w http.ResponseWriter, r *http.Request) {
			panic("bad row")
		}, "/api/v1/databases/x/tables")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Internal Server Error")
	})

	t.Run("error panic becomes 500", func(t *testing.T) {
		w := serveThrough(RecoveryMiddleware, func(w http.ResponseWriter, r *http.Request) {
			panic(assert.AnError)
		}, "/api/v1/databases/x/query")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	w := serveThrough(SecurityHeadersMiddleware, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, "/healthz")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
}

func TestStatusWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}

	// Default holds until an explicit WriteHeader.
	assert.Equal(t, http.StatusOK, sw.status)

	sw.WriteHeader(http.StatusCreated)
	assert.Equal(t, http.StatusCreated, sw.status)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMiddlewareChain(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("accepted"))
	})

	handler := SecurityHeadersMiddleware(RecoveryMiddleware(LoggingMiddleware(inner)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "accepted", w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
