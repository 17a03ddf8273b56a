package registry

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vinodismyname/parkstats/internal/export"
	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/vinodismyname/parkstats/internal/report"
	"github.com/vinodismyname/parkstats/internal/reporting"
	"github.com/vinodismyname/parkstats/internal/security"
	"github.com/vinodismyname/parkstats/internal/workbooks"
	"github.com/vinodismyname/parkstats/pkg/mcperr"
)

// ErrorCode maps domain errors onto the canonical MCP error catalog.
func ErrorCode(err error) mcperr.Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return mcperr.Timeout
	case errors.Is(err, parking.ErrMissingColumn):
		return mcperr.MissingColumn
	case errors.Is(err, parking.ErrUnknownSource):
		return mcperr.UnknownSource
	case errors.Is(err, reporting.ErrUnknownPeriod):
		return mcperr.UnknownPeriod
	case errors.Is(err, parking.ErrNoDatasets), errors.Is(err, reporting.ErrNoInput),
		errors.Is(err, export.ErrUnknownFormat), errors.Is(err, reporting.ErrUnknownReportFormat):
		return mcperr.Validation
	case errors.Is(err, workbooks.ErrPayloadTooLarge):
		return mcperr.PayloadTooLarge
	case errors.Is(err, workbooks.ErrTooManyFiles):
		return mcperr.LimitExceeded
	case errors.Is(err, workbooks.ErrUnsupportedFormat), errors.Is(err, security.ErrUnsupportedExtension):
		return mcperr.UnsupportedFormat
	case errors.Is(err, workbooks.ErrEmptySheet), errors.Is(err, workbooks.ErrCorrupt):
		return mcperr.CorruptWorkbook
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.PermissionDenied
	case errors.Is(err, security.ErrNotFound):
		return mcperr.NotFound
	case errors.Is(err, report.ErrPDFUnavailable):
		return mcperr.PDFUnavailable
	case errors.Is(err, report.ErrTemplate):
		return mcperr.RenderFailed
	}
	return mcperr.AnalysisFailed
}

// toolError converts err into a tool-level error result with catalog guidance.
func toolError(err error) *mcp.CallToolResult {
	return mcperr.New(ErrorCode(err), err.Error())
}
