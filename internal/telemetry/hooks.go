package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Hooks implements mcp-go server lifecycle callbacks for logging and tool metrics.
type Hooks struct {
	logger  zerolog.Logger
	metrics *Metrics
	started sync.Map // callKey -> time.Time
}

// NewHooks constructs a Hooks instance with the provided logger and metrics.
// metrics may be nil.
func NewHooks(logger zerolog.Logger, metrics *Metrics) *Hooks {
	return &Hooks{logger: logger, metrics: metrics}
}

// Server builds the mcp-go hook set.
func (h *Hooks) Server() *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session registered")
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		h.logger.Info().Str("session_id", session.SessionID()).Msg("session unregistered")
	})

	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		h.logger.Info().Int("tools", len(res.Tools)).Msg("list_tools served")
	})

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		h.started.Store(keyFor(ctx, id), time.Now())
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, res *mcp.CallToolResult) {
		failed := res != nil && res.IsError
		h.OnToolCall(req.Params.Name, h.elapsed(keyFor(ctx, id)), failed)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		h.started.Delete(keyFor(ctx, id))
		h.logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})

	return hooks
}

// OnToolCall logs tool invocations and their outcomes.
func (h *Hooks) OnToolCall(tool string, duration time.Duration, failed bool) {
	h.metrics.ObserveToolCall(tool, failed)
	if failed {
		h.logger.Warn().Str("tool", tool).Dur("duration", duration).Msg("tool call returned error result")
		return
	}
	h.logger.Info().Str("tool", tool).Dur("duration", duration).Msg("tool call completed")
}

// callKey identifies an in-flight request. JSON-RPC ids restart in every
// session, so the session id is part of the key.
type callKey struct {
	session string
	id      string
}

func keyFor(ctx context.Context, id any) callKey {
	k := callKey{id: fmt.Sprint(id)}
	if session := server.ClientSessionFromContext(ctx); session != nil {
		k.session = session.SessionID()
	}
	return k
}

func (h *Hooks) elapsed(k callKey) time.Duration {
	v, ok := h.started.LoadAndDelete(k)
	if !ok {
		return 0
	}
	return time.Since(v.(time.Time))
}
