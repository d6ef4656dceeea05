package middleware

import (
	"net/http"

	"github.com/dandantas/agenda/internal/platform"
	"github.com/dandantas/agenda/internal/render"
)

// RenderPath is the route pattern handed to the renderer
const RenderPath = "*"

// RendererMiddleware answers requests with the page produced by the render service
type RendererMiddleware struct {
	renderer render.Service
}

// NewRendererMiddleware creates the render middleware
func NewRendererMiddleware(renderer render.Service) *RendererMiddleware {
	return &RendererMiddleware{renderer: renderer}
}

// Use renders the request and sets the page as the response body, unless an
// earlier handler already completed the response
func (m *RendererMiddleware) Use(w *ResponseWriter, r *http.Request) error {
	html, err := m.renderer.Render(r.Context(), RenderPath, render.Context{
		Request:       r,
		CorrelationID: GetCorrelationID(r.Context()),
	})
	if err != nil {
		return err
	}

	if w.IsDone() {
		return nil
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write([]byte(html))
	return err
}

// Handler adapts Use to net/http. Render failures become 502 when the
// response is still open.
func (m *RendererMiddleware) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := NewResponseWriter(w)

		if err := m.Use(rw, r); err != nil {
			platform.LoggerFrom(r.Context()).Error("Failed to render page",
				"path", r.URL.Path,
				"error", err,
			)

			if !rw.IsDone() {
				http.Error(rw, "Bad Gateway", http.StatusBadGateway)
			}
		}
	})
}
