package middleware

import "net/http"

// ResponseWriter wraps http.ResponseWriter to track the status code, the
// bytes written and whether the response has been started
type ResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	wroteHeader bool
}

// NewResponseWriter wraps w. A writer that is already tracked is returned as is
// so every middleware sees the same state.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// IsDone reports whether a handler already started the response
func (rw *ResponseWriter) IsDone() bool {
	return rw.wroteHeader
}

// StatusCode returns the status sent, or 200 when nothing was sent yet
func (rw *ResponseWriter) StatusCode() int {
	return rw.statusCode
}

// BytesWritten returns the size of the body written so far
func (rw *ResponseWriter) BytesWritten() int64 {
	return rw.written
}

// Flush implements http.Flusher when the wrapped writer does
func (rw *ResponseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the wrapped writer
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
