package registry

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/vinodismyname/parkstats/internal/export"
	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/vinodismyname/parkstats/internal/reporting"
	"github.com/vinodismyname/parkstats/internal/runtime"
	"github.com/vinodismyname/parkstats/pkg/mcperr"
	"github.com/vinodismyname/parkstats/pkg/pagination"
	"github.com/vinodismyname/parkstats/pkg/validation"
)

// maxPreviewRows caps a single preview page regardless of the requested size.
const maxPreviewRows = 500

// --- Input / Output Schemas (typed for discovery) ---

// AnalyzeInput names the spreadsheets to analyze.
type AnalyzeInput struct {
	Paths  []string `json:"paths" validate:"required,min=1,dive,upload_ext" jsonschema_description:"Absolute or allowed paths to parking exports (.xlsx, .xls, .csv); several files are merged"`
	Source string   `json:"source,omitempty" jsonschema_description:"Restrict all statistics to one input file name (as listed in sources)"`
}

// FeeRow is one fee distribution entry with the exact fee as text.
type FeeRow struct {
	Fee     string  `json:"fee" jsonschema_description:"Exact fee value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent" jsonschema_description:"Share of parseable fees, 0-100"`
}

// RecordRow is a compact view of one parking record.
type RecordRow struct {
	Source        string   `json:"source,omitempty"`
	CheckIn       string   `json:"check_in"`
	CheckOut      string   `json:"check_out,omitempty"`
	Fee           string   `json:"fee,omitempty"`
	DurationHours *float64 `json:"duration_hours,omitempty"`
	Month         string   `json:"month"`
}

// AnalyzeOutput is the structured result of analyze_parking.
type AnalyzeOutput struct {
	RunID            string                 `json:"run_id" jsonschema_description:"Identifier of this run, echoed in server logs"`
	Sources          []string               `json:"sources"`
	Source           string                 `json:"source,omitempty"`
	Months           []string               `json:"months"`
	Quality          parking.Quality        `json:"quality"`
	HasDuration      bool                   `json:"has_duration"`
	MeanFee          *float64               `json:"mean_fee" jsonschema_description:"Null when no fee parses"`
	MeanDuration     *float64               `json:"mean_duration_hours,omitempty"`
	Monthly          []parking.MonthlyKPI   `json:"monthly_kpis"`
	FeeDistribution  []FeeRow               `json:"fee_distribution"`
	Histogram        []parking.HistogramBin `json:"histogram"`
	Quantile         float64                `json:"outlier_quantile"`
	OutlierThreshold *float64               `json:"outlier_threshold"`
	Outliers         []RecordRow            `json:"outliers"`
	Warnings         []string               `json:"warnings,omitempty"`
}

// ListPeriodsOutput lists the selectable months and sources.
type ListPeriodsOutput struct {
	Months  []string             `json:"months"`
	Sources []string             `json:"sources"`
	Counts  []parking.MonthCount `json:"counts"`
}

// PreviewInput selects records and pages through them.
type PreviewInput struct {
	Paths  []string `json:"paths,omitempty" validate:"required_without=Cursor,omitempty,min=1,dive,upload_ext" jsonschema_description:"Input spreadsheets; omit when resuming with cursor"`
	Month  string   `json:"month,omitempty" validate:"omitempty,month" jsonschema_description:"Month to select (YYYY-MM); empty selects all months"`
	Source string   `json:"source,omitempty" jsonschema_description:"Input file name to select; empty selects all files"`
	Rows   int      `json:"rows,omitempty" validate:"omitempty,min=1,max=500" jsonschema_description:"Page size in rows"`
	Cursor string   `json:"cursor,omitempty" validate:"omitempty,cursor" jsonschema_description:"Opaque cursor from a previous page; takes precedence over other inputs"`
}

// PageMeta captures paging/truncation metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// PreviewOutput is one page of selected rows in export layout.
type PreviewOutput struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
	Meta   PageMeta   `json:"meta"`
}

// ExportInput selects records to encode.
type ExportInput struct {
	Paths  []string `json:"paths" validate:"required,min=1,dive,upload_ext" jsonschema_description:"Input spreadsheets"`
	Month  string   `json:"month,omitempty" validate:"omitempty,month" jsonschema_description:"Month to export (YYYY-MM); empty exports all months"`
	Source string   `json:"source,omitempty" jsonschema_description:"Input file name to export; empty exports all files"`
	Format string   `json:"format,omitempty" validate:"omitempty,oneof=csv xlsx" jsonschema_description:"csv (default) or xlsx"`
}

// ReportInput selects the inputs and format of a report.
type ReportInput struct {
	Paths  []string `json:"paths" validate:"required,min=1,dive,upload_ext" jsonschema_description:"Input spreadsheets"`
	Source string   `json:"source,omitempty" jsonschema_description:"Restrict the report to one input file name"`
	Format string   `json:"format,omitempty" validate:"omitempty,oneof=html pdf" jsonschema_description:"html (default) or pdf"`
}

// FileOutput carries a generated file inline.
type FileOutput struct {
	RunID       string `json:"run_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
	Encoding    string `json:"encoding" jsonschema_description:"text or base64"`
	Content     string `json:"content"`
}

// WriteReportInput renders a report or export to a file inside an allowed directory.
type WriteReportInput struct {
	Paths  []string `json:"paths" validate:"required,min=1,dive,upload_ext" jsonschema_description:"Input spreadsheets"`
	Output string   `json:"output" validate:"required" jsonschema_description:"Destination path; extension selects the format (.html, .pdf, .csv, .xlsx)"`
	Month  string   `json:"month,omitempty" validate:"omitempty,month" jsonschema_description:"Month selection for .csv/.xlsx exports"`
	Source string   `json:"source,omitempty" jsonschema_description:"Input file name to restrict to"`
}

// WriteReportOutput describes the written file.
type WriteReportOutput struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// OutputValidator resolves a write destination inside the allow-list.
type OutputValidator interface {
	ValidateOutputPath(path string) (string, error)
}

// parkingTools holds the handler dependencies shared by every tool.
type parkingTools struct {
	svc     *reporting.Service
	limits  runtime.Limits
	outputs OutputValidator
}

// RegisterParkingTools wires the analysis, selection, export and report tools.
func RegisterParkingTools(s *server.MCPServer, reg *Registry, svc *reporting.Service, limits runtime.Limits, outputs OutputValidator) {
	h := &parkingTools{svc: svc, limits: limits, outputs: outputs}

	analyze := mcp.NewTool(
		"analyze_parking",
		mcp.WithDescription("Merge one or more parking-lot exports (CheckIn_Date, optional CheckOut_Date, Parking_Cost) and compute monthly counts, monthly KPIs (count, average fee, average duration), the exact fee distribution, a 20-bin fee histogram, and the fees above the 95th percentile. Rows with unparseable check-in dates are excluded and counted in quality.invalid_dates; unparseable fees only drop out of fee statistics. Errors: MISSING_COLUMN when no file has a required column, UNKNOWN_SOURCE, PAYLOAD_TOO_LARGE, UNSUPPORTED_FORMAT."),
		mcp.WithInputSchema[AnalyzeInput](),
		mcp.WithOutputSchema[AnalyzeOutput](),
	)
	s.AddTool(analyze, mcp.NewTypedToolHandler(h.analyze))
	reg.Register(analyze)

	periods := mcp.NewTool(
		"list_periods",
		mcp.WithDescription("List the months (YYYY-MM) with valid check-ins and the input file names, with record counts per month. Use before preview_selection or export_selection to pick a month."),
		mcp.WithInputSchema[AnalyzeInput](),
		mcp.WithOutputSchema[ListPeriodsOutput](),
	)
	s.AddTool(periods, mcp.NewTypedToolHandler(h.listPeriods))
	reg.Register(periods)

	preview := mcp.NewTool(
		"preview_selection",
		mcp.WithDescription(fmt.Sprintf("Page through the records of one month (and optionally one input file) in export layout: merged columns plus Month, timestamps normalized. Default page size %d rows; pass meta.nextCursor back as cursor to continue.", limits.PreviewRowLimit)),
		mcp.WithInputSchema[PreviewInput](),
		mcp.WithOutputSchema[PreviewOutput](),
	)
	s.AddTool(preview, mcp.NewTypedToolHandler(h.preview))
	reg.Register(preview)

	exportTool := mcp.NewTool(
		"export_selection",
		mcp.WithDescription("Export the selected records as CSV (returned as text) or XLSX (returned base64-encoded). Columns are the merged input header plus Month."),
		mcp.WithInputSchema[ExportInput](),
		mcp.WithOutputSchema[FileOutput](),
	)
	s.AddTool(exportTool, mcp.NewTypedToolHandler(h.export))
	reg.Register(exportTool)

	render := mcp.NewTool(
		"render_report",
		mcp.WithDescription("Render the parking report with embedded charts (cars per month, fee distribution, fee histogram), the monthly KPI table and the unusual-fee table. HTML is returned as text; PDF (when the server has Chrome available) base64-encoded. Errors: PDF_UNAVAILABLE, RENDER_FAILED."),
		mcp.WithInputSchema[ReportInput](),
		mcp.WithOutputSchema[FileOutput](),
	)
	s.AddTool(render, mcp.NewTypedToolHandler(h.render))
	reg.Register(render)

	write := mcp.NewTool(
		"write_report",
		mcp.WithDescription("Write a report (.html, .pdf) or selection export (.csv, .xlsx) to a path inside an allowed directory. Existing files are overwritten."),
		mcp.WithInputSchema[WriteReportInput](),
		mcp.WithOutputSchema[WriteReportOutput](),
		mcp.WithDestructiveHintAnnotation(true),
	)
	s.AddTool(write, mcp.NewTypedToolHandler(h.write))
	reg.Register(write)
}

func (h *parkingTools) analyze(ctx context.Context, req mcp.CallToolRequest, in AnalyzeInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	res, err := h.svc.Analyze(ctx, reporting.Input{Paths: in.Paths, Source: strings.TrimSpace(in.Source)})
	if err != nil {
		return toolError(err), nil
	}
	out := NewAnalyzeOutput(res)

	summary := fmt.Sprintf("run=%s sources=%d months=%d valid_rows=%d invalid_dates=%d missing_fees=%d outliers=%d",
		out.RunID, len(out.Sources), len(out.Months), out.Quality.ValidRows, out.Quality.InvalidDates, out.Quality.MissingFees, len(out.Outliers))
	lines := []string{summary}
	for _, k := range out.Monthly {
		line := fmt.Sprintf("- %s cars=%d avg_fee=%s", k.Month, k.Count, fmtOptional(k.AvgFee))
		if out.HasDuration {
			line += " avg_hours=" + fmtOptional(k.AvgDurationHours)
		}
		lines = append(lines, line)
	}
	lines = append(lines, out.Warnings...)
	result := mcp.NewToolResultStructured(out, summary)
	result.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
	return result, nil
}

func (h *parkingTools) listPeriods(ctx context.Context, req mcp.CallToolRequest, in AnalyzeInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	res, err := h.svc.Analyze(ctx, reporting.Input{Paths: in.Paths, Source: strings.TrimSpace(in.Source)})
	if err != nil {
		return toolError(err), nil
	}
	a := res.Analysis
	out := ListPeriodsOutput{Months: nonNil(a.Months), Sources: nonNil(a.Sources), Counts: a.MonthlyCounts}
	if out.Counts == nil {
		out.Counts = []parking.MonthCount{}
	}
	summary := fmt.Sprintf("months=%s sources=%s", strings.Join(out.Months, ","), strings.Join(out.Sources, ","))
	return mcp.NewToolResultStructured(out, summary), nil
}

func (h *parkingTools) preview(ctx context.Context, req mcp.CallToolRequest, in PreviewInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}

	cur := pagination.Cursor{P: in.Paths, M: strings.TrimSpace(in.Month), Sf: strings.TrimSpace(in.Source), Ps: in.Rows}
	if in.Cursor != "" {
		decoded, err := pagination.DecodeCursor(in.Cursor)
		if err != nil {
			return mcperr.New(mcperr.CursorInvalid, err.Error()), nil
		}
		cur = *decoded
	}
	if cur.Ps <= 0 {
		cur.Ps = h.limits.PreviewRowLimit
	}
	cur.Ps = min(cur.Ps, maxPreviewRows)

	res, err := h.svc.Analyze(ctx, reporting.Input{Paths: cur.P})
	if err != nil {
		return toolError(err), nil
	}
	records, err := reporting.Select(res.Analysis, parking.Selection{Month: cur.M, Source: cur.Sf})
	if err != nil {
		return toolError(err), nil
	}
	if cur.Off > len(records) {
		return mcperr.New(mcperr.CursorInvalid, "offset beyond selection; inputs changed since the cursor was issued"), nil
	}

	end := min(cur.Off+cur.Ps, len(records))
	page := records[cur.Off:end]
	frame := res.Analysis.Frame
	out := PreviewOutput{
		Header: export.Header(frame),
		Rows:   export.Rows(frame, page),
		Meta:   PageMeta{Total: len(records), Returned: len(page), Truncated: end < len(records)},
	}
	if out.Meta.Truncated {
		next := cur
		next.Off = pagination.NextOffset(cur.Off, len(page))
		next.Iat = 0
		tok, err := pagination.EncodeCursor(next)
		if err != nil {
			return mcperr.New(mcperr.CursorBuildFailed, err.Error()), nil
		}
		out.Meta.NextCursor = tok
	}

	summary := fmt.Sprintf("total=%d returned=%d truncated=%v", out.Meta.Total, out.Meta.Returned, out.Meta.Truncated)
	if out.Meta.NextCursor != "" {
		summary += " nextCursor=" + out.Meta.NextCursor
	}
	return mcp.NewToolResultStructured(out, summary), nil
}

func (h *parkingTools) export(ctx context.Context, req mcp.CallToolRequest, in ExportInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	format, err := export.ParseFormat(in.Format)
	if err != nil {
		return toolError(err), nil
	}
	sel := parking.Selection{Month: strings.TrimSpace(in.Month), Source: strings.TrimSpace(in.Source)}
	art, err := h.svc.Export(ctx, reporting.Input{Paths: in.Paths}, sel, format)
	if err != nil {
		if ErrorCode(err) == mcperr.AnalysisFailed {
			return mcperr.New(mcperr.ExportFailed, err.Error()), nil
		}
		return toolError(err), nil
	}
	return fileResult(art, format == export.FormatCSV), nil
}

func (h *parkingTools) render(ctx context.Context, req mcp.CallToolRequest, in ReportInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	format, err := reporting.ParseReportFormat(in.Format)
	if err != nil {
		return toolError(err), nil
	}
	art, err := h.svc.Report(ctx, reporting.Input{Paths: in.Paths, Source: strings.TrimSpace(in.Source)}, format)
	if err != nil {
		if ErrorCode(err) == mcperr.AnalysisFailed {
			return mcperr.New(mcperr.RenderFailed, err.Error()), nil
		}
		return toolError(err), nil
	}
	return fileResult(art, format == reporting.ReportHTML), nil
}

func (h *parkingTools) write(ctx context.Context, req mcp.CallToolRequest, in WriteReportInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	if h.outputs == nil {
		return mcperr.New(mcperr.PermissionDenied, "no output directories configured"), nil
	}
	dest, err := h.outputs.ValidateOutputPath(in.Output)
	if err != nil {
		return toolError(err), nil
	}

	input := reporting.Input{Paths: in.Paths, Source: strings.TrimSpace(in.Source)}
	var art *reporting.Artifact
	switch ext := strings.ToLower(filepath.Ext(dest)); ext {
	case ".html", ".pdf":
		art, err = h.svc.Report(ctx, input, reporting.ReportFormat(ext[1:]))
	default:
		var format export.Format
		if format, err = export.ParseFormat(ext[1:]); err == nil {
			sel := parking.Selection{Month: strings.TrimSpace(in.Month), Source: input.Source}
			input.Source = ""
			art, err = h.svc.Export(ctx, input, sel, format)
		}
	}
	if err != nil {
		return toolError(err), nil
	}
	if err := os.WriteFile(dest, art.Data, 0o644); err != nil {
		return mcperr.New(mcperr.WriteFailed, err.Error()), nil
	}

	out := WriteReportOutput{RunID: art.ID, Path: dest, Bytes: len(art.Data)}
	return mcp.NewToolResultStructured(out, fmt.Sprintf("wrote %d bytes to %s", out.Bytes, dest)), nil
}

// NewAnalyzeOutput flattens a run into the JSON shape shared by the MCP tool and the HTTP API.
func NewAnalyzeOutput(res *reporting.Result) AnalyzeOutput {
	a := res.Analysis
	out := AnalyzeOutput{
		RunID:            res.ID,
		Sources:          nonNil(a.Sources),
		Source:           a.Source,
		Months:           nonNil(a.Months),
		Quality:          a.Quality,
		HasDuration:      a.HasDuration,
		MeanFee:          a.MeanFee,
		MeanDuration:     a.MeanDuration,
		Monthly:          a.Monthly,
		Histogram:        a.Histogram,
		Quantile:         a.Quantile,
		OutlierThreshold: a.OutlierThreshold,
		FeeDistribution:  make([]FeeRow, 0, len(a.FeeDistribution)),
		Outliers:         make([]RecordRow, 0, len(a.Outliers)),
	}
	if out.Monthly == nil {
		out.Monthly = []parking.MonthlyKPI{}
	}
	if out.Histogram == nil {
		out.Histogram = []parking.HistogramBin{}
	}
	for _, d := range a.FeeDistribution {
		out.FeeDistribution = append(out.FeeDistribution, FeeRow{Fee: d.Fee.String(), Count: d.Count, Percent: d.Percent})
	}
	for _, r := range a.Outliers {
		out.Outliers = append(out.Outliers, recordRow(r))
	}
	for _, w := range a.Warnings {
		out.Warnings = append(out.Warnings, fmt.Sprintf("warning: %s: %s", w.Source, w.Message))
	}
	return out
}

func recordRow(r parking.Record) RecordRow {
	row := RecordRow{Source: r.Source, DurationHours: r.DurationHours, Month: r.Month}
	if r.CheckIn != nil {
		row.CheckIn = r.CheckIn.Format(export.TimestampLayout)
	}
	if r.CheckOut != nil {
		row.CheckOut = r.CheckOut.Format(export.TimestampLayout)
	}
	if r.Fee != nil {
		row.Fee = r.Fee.String()
	}
	return row
}

func fileResult(art *reporting.Artifact, text bool) *mcp.CallToolResult {
	out := FileOutput{
		RunID:       art.ID,
		Filename:    art.Filename,
		ContentType: art.ContentType,
		Bytes:       len(art.Data),
		Encoding:    "text",
	}
	if text {
		out.Content = string(art.Data)
	} else {
		out.Encoding = "base64"
		out.Content = base64.StdEncoding.EncodeToString(art.Data)
	}
	summary := fmt.Sprintf("%s (%s, %d bytes)", out.Filename, out.ContentType, out.Bytes)
	return mcp.NewToolResultStructured(out, summary)
}

func fmtOptional(v *float64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%.2f", *v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
