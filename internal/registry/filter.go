package registry

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// WriteToolFilter conditionally hides tools that write to disk unless explicitly enabled.
// Enable by setting environment variable PARKSTATS_ENABLE_WRITES=true.
type WriteToolFilter struct {
	allowWrites bool
}

// NewWriteToolFilter constructs a filter; allowWrites normally comes from PARKSTATS_ENABLE_WRITES.
func NewWriteToolFilter(allowWrites bool) *WriteToolFilter {
	return &WriteToolFilter{allowWrites: allowWrites}
}

// Allowed reports whether a tool name passes the filter.
func (f *WriteToolFilter) Allowed(name string) bool {
	if f.allowWrites {
		return true
	}
	name = strings.ToLower(name)
	return !strings.HasPrefix(name, "write_") && !strings.HasPrefix(name, "update_") && !strings.HasPrefix(name, "transform_")
}

// FilterTools implements server tool filtering semantics.
// When writes are disabled, tools with prefixes commonly used for writes
// are excluded from discovery: write_, update_, transform_.
func (f *WriteToolFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if f.allowWrites {
		return tools
	}
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if f.Allowed(t.Name) {
			out = append(out, t)
		}
	}
	return out
}
