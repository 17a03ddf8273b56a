package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Middleware enforces runtime limits for tool calls and HTTP requests using
// the Controller. It bounds global concurrency and applies an operation
// timeout to each call.
type Middleware struct {
	ctrl *Controller
}

// NewMiddleware constructs a Middleware bound to the provided Controller.
func NewMiddleware(ctrl *Controller) *Middleware {
	return &Middleware{ctrl: ctrl}
}

// acquire reserves a request slot with a bounded wait.
func (m *Middleware) acquire(ctx context.Context) error {
	acquireCtx := ctx
	if m.ctrl.limits.AcquireRequestTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, m.ctrl.limits.AcquireRequestTimeout)
		defer cancel()
	}
	return m.ctrl.AcquireRequest(acquireCtx)
}

// withTimeout applies the operation timeout when configured.
func (m *Middleware) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.ctrl.limits.OperationTimeout > 0 {
		return context.WithTimeout(ctx, m.ctrl.limits.OperationTimeout)
	}
	return ctx, func() {}
}

func (m *Middleware) busyMessage() string {
	return fmt.Sprintf("BUSY_RESOURCE: concurrent request limit reached (max=%d). Please retry shortly.", m.ctrl.limits.MaxConcurrentRequests)
}

// ToolMiddleware implements mcp-go's tool handler middleware interface.
// It acquires a request slot, applies a timeout, and guarantees release.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := m.acquire(ctx); err != nil {
			// Return a tool-level error so the client can self-correct/retry.
			return mcp.NewToolResultError(m.busyMessage()), nil
		}
		defer m.ctrl.ReleaseRequest()

		callCtx, cancel := m.withTimeout(ctx)
		defer cancel()

		res, err := next(callCtx, req)

		// If the underlying handler surfaced a context deadline, prefer a tool-level timeout error.
		if errors.Is(err, context.DeadlineExceeded) || (callCtx.Err() == context.DeadlineExceeded && err == nil && res == nil) {
			return mcp.NewToolResultError("TIMEOUT: operation exceeded configured time limit"), nil
		}

		return res, err
	}
}

// HTTPMiddleware applies the same guardrails to HTTP handlers. Saturated
// servers answer 503 with a BUSY_RESOURCE body instead of queueing forever.
func (m *Middleware) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.acquire(r.Context()); err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"code": "BUSY_RESOURCE", "message": m.busyMessage()})
			return
		}
		defer m.ctrl.ReleaseRequest()

		ctx, cancel := m.withTimeout(r.Context())
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
