package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordsRunsAndServesText(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun("analyze", 10*time.Millisecond, nil)
	m.ObserveRun("analyze", 5*time.Millisecond, errors.New("boom"))
	m.ObserveRows(3, 1, 2)
	m.ObserveHTTP("/api/v1/analyze", http.MethodPost, http.StatusOK, time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("analyze", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("analyze", "error")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("missing_fee")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "parkstats_http_requests_total"))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun("x", 0, nil)
	m.ObserveRows(1, 1, 1)
	m.ObserveToolCall("x", true)
	m.ObserveHTTP("/", http.MethodGet, 200, 0)
	require.Nil(t, m.Registry())
}

func TestHooks_ToolCallMetrics(t *testing.T) {
	m := NewMetrics()
	h := NewHooks(zerolog.Nop(), m)
	hooks := h.Server()

	req := &mcp.CallToolRequest{}
	req.Params.Name = "analyze_parking"
	for _, fn := range hooks.OnBeforeCallTool {
		fn(context.Background(), 1, req)
	}
	for _, fn := range hooks.OnAfterCallTool {
		fn(context.Background(), 1, req, mcp.NewToolResultError("bad"))
	}
	require.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("analyze_parking", "error")))
}

type stubSession struct{ id string }

func (s stubSession) Initialize()       {}
func (s stubSession) Initialized() bool { return true }
func (s stubSession) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return make(chan mcp.JSONRPCNotification, 1)
}
func (s stubSession) SessionID() string { return s.id }

func TestHooks_StartTimesAreScopedPerSession(t *testing.T) {
	h := NewHooks(zerolog.Nop(), NewMetrics())
	hooks := h.Server()
	srv := server.NewMCPServer("parkstats-test", "0.0.0")

	ctxA := srv.WithContext(context.Background(), stubSession{id: "a"})
	ctxB := srv.WithContext(context.Background(), stubSession{id: "b"})
	req := &mcp.CallToolRequest{}
	req.Params.Name = "analyze_parking"

	// Both sessions issue their first request with id 1.
	for _, fn := range hooks.OnBeforeCallTool {
		fn(ctxA, 1, req)
		fn(ctxB, 1, req)
	}
	_, ok := h.started.Load(keyFor(ctxA, 1))
	require.True(t, ok)
	_, ok = h.started.Load(keyFor(ctxB, 1))
	require.True(t, ok)

	for _, fn := range hooks.OnAfterCallTool {
		fn(ctxA, 1, req, mcp.NewToolResultText("ok"))
	}
	_, ok = h.started.Load(keyFor(ctxA, 1))
	require.False(t, ok)
	_, ok = h.started.Load(keyFor(ctxB, 1))
	require.True(t, ok, "finishing session a must not consume session b's start time")

	require.Equal(t, callKey{id: "1"}, keyFor(context.Background(), 1))
}
