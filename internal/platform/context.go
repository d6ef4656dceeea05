package platform

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const executionContextKey contextKey = "execution_context"

// Context is the execution context of a single unit of work (a job run or a
// request). It is created per call and discarded afterwards.
type Context struct {
	ID        string
	Logger    *slog.Logger
	Injector  *Injector
	StartedAt time.Time

	mu     sync.RWMutex
	values map[string]interface{}
}

// NewContext creates an execution context whose logger carries the correlation id
func NewContext(injector *Injector, id string, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}

	return &Context{
		ID:        id,
		Logger:    logger.With("correlation_id", id),
		Injector:  injector,
		StartedAt: time.Now().UTC(),
		values:    make(map[string]interface{}),
	}
}

// Set stores a value scoped to this execution
func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get retrieves a value scoped to this execution
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, exists := c.values[key]
	return value, exists
}

// Destroy releases the values held by the context
func (c *Context) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]interface{})
}

// WithContext returns a copy of ctx carrying the execution context
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, executionContextKey, c)
}

// FromContext extracts the execution context from ctx
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(executionContextKey).(*Context)
	return c, ok
}

// LoggerFrom returns the execution logger stored in ctx, falling back to the default logger
func LoggerFrom(ctx context.Context) *slog.Logger {
	if c, ok := FromContext(ctx); ok && c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
