package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dandantas/agenda/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, path string, rc render.Context) (string, error) {
	args := m.Called(ctx, path, rc)
	return args.String(0), args.Error(1)
}

func renderContextFor(r *http.Request) interface{} {
	return mock.MatchedBy(func(rc render.Context) bool {
		return rc.Request == r
	})
}

func TestRendererMiddleware_UseSetsBodyWhenNotDone(t *testing.T) {
	renderer := &mockRenderer{}
	middleware := NewRendererMiddleware(renderer)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	renderer.On("Render", mock.Anything, "*", renderContextFor(req)).Return("result", nil).Once()

	require.NoError(t, middleware.Use(rw, req))

	renderer.AssertExpectations(t)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "result", rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestRendererMiddleware_UseLeavesCompletedResponse(t *testing.T) {
	renderer := &mockRenderer{}
	middleware := NewRendererMiddleware(renderer)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	rw.WriteHeader(http.StatusNoContent)

	renderer.On("Render", mock.Anything, "*", renderContextFor(req)).Return("result", nil).Once()

	require.NoError(t, middleware.Use(rw, req))

	renderer.AssertExpectations(t)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRendererMiddleware_UsePropagatesErrors(t *testing.T) {
	renderer := &mockRenderer{}
	middleware := NewRendererMiddleware(renderer)
	boom := errors.New("render server down")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := NewResponseWriter(httptest.NewRecorder())

	renderer.On("Render", mock.Anything, "*", mock.Anything).Return("", boom).Once()

	assert.ErrorIs(t, middleware.Use(rw, req), boom)
	assert.False(t, rw.IsDone())
}

func TestRendererMiddleware_Handler(t *testing.T) {
	t.Run("renders with correlation id", func(t *testing.T) {
		renderer := &mockRenderer{}
		handler := RequestContext(nil)(NewRendererMiddleware(renderer).Handler())

		renderer.On("Render", mock.Anything, "*", mock.MatchedBy(func(rc render.Context) bool {
			return rc.CorrelationID == "corr-42" && rc.Request.URL.Path == "/about"
		})).Return("<h1>About</h1>", nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/about", nil)
		req.Header.Set(CorrelationIDHeader, "corr-42")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		renderer.AssertExpectations(t)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<h1>About</h1>", rec.Body.String())
		assert.Equal(t, "corr-42", rec.Header().Get(CorrelationIDHeader))
	})

	t.Run("render failure", func(t *testing.T) {
		renderer := &mockRenderer{}
		handler := NewRendererMiddleware(renderer).Handler()

		renderer.On("Render", mock.Anything, "*", mock.Anything).Return("", errors.New("boom")).Once()

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}
