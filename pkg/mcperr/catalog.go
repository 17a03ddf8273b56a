package mcperr

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical MCP error code used across tools.
type Code string

const (
	// Validation & Input
	Validation        Code = "VALIDATION"
	CursorInvalid     Code = "CURSOR_INVALID"
	CursorBuildFailed Code = "CURSOR_BUILD_FAILED"
	UnknownPeriod     Code = "UNKNOWN_PERIOD"
	UnknownSource     Code = "UNKNOWN_SOURCE"

	// Resource & Limits
	BusyResource    Code = "BUSY_RESOURCE"
	Timeout         Code = "TIMEOUT"
	LimitExceeded   Code = "LIMIT_EXCEEDED"
	PayloadTooLarge Code = "PAYLOAD_TOO_LARGE"

	// IO & Formats
	OpenFailed     Code = "OPEN_FAILED"
	NotFound       Code = "NOT_FOUND"
	ExportFailed   Code = "EXPORT_FAILED"
	RenderFailed   Code = "RENDER_FAILED"
	PDFUnavailable Code = "PDF_UNAVAILABLE"
	WriteFailed    Code = "WRITE_FAILED"

	// Analysis
	MissingColumn  Code = "MISSING_COLUMN"
	AnalysisFailed Code = "ANALYSIS_FAILED"

	// Integrity
	CorruptWorkbook   Code = "CORRUPT_WORKBOOK"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:        {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry", "See examples in tool description"}},
	CursorInvalid:     {Code: CursorInvalid, Message: "cursor is invalid for current selection", Retryable: true, NextSteps: []string{"Restart pagination from the first page"}},
	CursorBuildFailed: {Code: CursorBuildFailed, Message: "failed to encode next page cursor", Retryable: true, NextSteps: []string{"Retry or use a smaller page size"}},
	UnknownPeriod:     {Code: UnknownPeriod, Message: "month not present in the data", Retryable: true, NextSteps: []string{"Call list_periods to see available months"}},
	UnknownSource:     {Code: UnknownSource, Message: "source file not among the inputs", Retryable: true, NextSteps: []string{"Call list_periods to see available sources", "Use the file name, not the full path"}},

	BusyResource:    {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:         {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Analyze fewer files per call or increase the timeout"}},
	LimitExceeded:   {Code: LimitExceeded, Message: "operation exceeded configured limits", Retryable: true, NextSteps: []string{"Pass fewer files per call"}},
	PayloadTooLarge: {Code: PayloadTooLarge, Message: "file exceeds configured size", Retryable: false, NextSteps: []string{"Split the export into smaller files or increase the limit"}},

	OpenFailed:     {Code: OpenFailed, Message: "failed to open spreadsheet", Retryable: true, NextSteps: []string{"Verify path, permissions, and format"}},
	NotFound:       {Code: NotFound, Message: "file not found", Retryable: true, NextSteps: []string{"Check the path and that it lies in an allowed directory"}},
	ExportFailed:   {Code: ExportFailed, Message: "failed to export selection", Retryable: true, NextSteps: []string{"Retry with format csv"}},
	RenderFailed:   {Code: RenderFailed, Message: "failed to render report", Retryable: true, NextSteps: []string{"Retry with format html", "Check the configured report template"}},
	PDFUnavailable: {Code: PDFUnavailable, Message: "pdf conversion is not available", Retryable: false, NextSteps: []string{"Request format html", "Install Chrome or set PARKSTATS_REPORT_CHROME_PATH"}},
	WriteFailed:    {Code: WriteFailed, Message: "failed to write output file", Retryable: false, NextSteps: []string{"Choose a destination inside an allowed directory"}},

	MissingColumn:  {Code: MissingColumn, Message: "required column missing from every input", Retryable: false, NextSteps: []string{"Ensure the sheet has CheckIn_Date and Parking_Cost headers in row 1"}},
	AnalysisFailed: {Code: AnalysisFailed, Message: "analysis failed", Retryable: true, NextSteps: []string{"Retry or inspect the input files"}},

	CorruptWorkbook:   {Code: CorruptWorkbook, Message: "spreadsheet appears corrupt or unreadable", Retryable: false, NextSteps: []string{"Open in Excel and re-save or repair", "Provide a clean copy"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported spreadsheet format", Retryable: false, NextSteps: []string{"Convert to .xlsx or .csv and retry"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Retryable: false, NextSteps: []string{"Adjust permissions or choose an allowed directory"}},
}

// Lookup returns the catalog entry for code.
func Lookup(code Code) (Entry, bool) {
	e, ok := catalog[code]
	return e, ok
}

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		// Unknown code; preserve as-is
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	// Append compact nextSteps guidance inline to aid clients lacking structured fields.
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	parts := strings.SplitN(t, ":", 2)
	if len(parts) == 0 {
		return mcp.NewToolResultError(normalize(Validation, t))
	}
	code := Code(strings.TrimSpace(parts[0]))
	msg := ""
	if len(parts) > 1 {
		msg = strings.TrimSpace(parts[1])
	}
	return mcp.NewToolResultError(normalize(code, msg))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}
