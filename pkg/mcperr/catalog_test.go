package mcperr

import (
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, res.IsError)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNew_AppendsGuidance(t *testing.T) {
	text := resultText(t, New(MissingColumn, ""))
	require.True(t, strings.HasPrefix(text, "MISSING_COLUMN: required column missing"))
	require.Contains(t, text, "nextSteps:")
}

func TestFromText_ParsesCode(t *testing.T) {
	text := resultText(t, FromText("UNKNOWN_SOURCE: x.csv"))
	require.True(t, strings.HasPrefix(text, "UNKNOWN_SOURCE: x.csv |"))

	text = resultText(t, FromText("SOMETHING_ELSE: odd"))
	require.Equal(t, "SOMETHING_ELSE: odd", text)
}

func TestWrapf(t *testing.T) {
	text := resultText(t, Wrapf(PayloadTooLarge, "%s is %d bytes", "a.xlsx", 10))
	require.Contains(t, text, "a.xlsx is 10 bytes")

	e, ok := Lookup(PayloadTooLarge)
	require.True(t, ok)
	require.False(t, e.Retryable)
}
