package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dandantas/agenda/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseWriter_TracksState(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	assert.False(t, rw.IsDone())
	assert.Equal(t, http.StatusOK, rw.StatusCode())
	assert.Same(t, rw, NewResponseWriter(rw))

	_, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	rw.WriteHeader(http.StatusTeapot)

	assert.True(t, rw.IsDone())
	assert.Equal(t, http.StatusOK, rw.StatusCode())
	assert.Equal(t, int64(5), rw.BytesWritten())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestContext(t *testing.T) {
	injector := platform.NewInjector(nil)

	var seen *platform.Context
	handler := RequestContext(injector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqCtx, ok := platform.FromContext(r.Context())
		require.True(t, ok)
		seen = reqCtx
		assert.Equal(t, reqCtx.ID, GetCorrelationID(r.Context()))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, seen)
	assert.NotEmpty(t, seen.ID)
	assert.Same(t, injector, seen.Injector)
	assert.Equal(t, seen.ID, rec.Header().Get(CorrelationIDHeader))
}

func TestRecovery(t *testing.T) {
	t.Run("writes 500", func(t *testing.T) {
		handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("keeps started response", func(t *testing.T) {
		handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin", func(t *testing.T) {
		handler := CORS(CORSConfig{
			AllowedOrigins: ParseOrigins("https://app.example.com, https://admin.example.com"),
			AllowedMethods: "GET, POST",
		})(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://admin.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example.com"}})(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wildcard with credentials echoes origin", func(t *testing.T) {
		handler := CORS(CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true, MaxAge: 600})(next)

		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	})
}
