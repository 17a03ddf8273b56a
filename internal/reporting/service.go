// Package reporting runs the whole analysis flow for one request: decode
// the inputs, run the pipeline, then render exports, charts and reports.
// Every call starts from the inputs it is given; nothing is kept between calls.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/parkstats/internal/charts"
	"github.com/vinodismyname/parkstats/internal/export"
	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/vinodismyname/parkstats/internal/report"
	"github.com/vinodismyname/parkstats/internal/telemetry"
	"github.com/vinodismyname/parkstats/internal/workbooks"
)

var (
	// ErrNoInput is returned when neither uploads nor paths are given.
	ErrNoInput = errors.New("reporting: no input files")
	// ErrUnknownPeriod is returned when the selected month has no records.
	ErrUnknownPeriod = errors.New("reporting: month not present in data")
	// ErrUnknownReportFormat is returned for report formats other than html and pdf.
	ErrUnknownReportFormat = errors.New("reporting: unknown report format")
)

// ReportFormat selects the report document encoding.
type ReportFormat string

const (
	ReportHTML ReportFormat = "html"
	ReportPDF  ReportFormat = "pdf"
)

// ParseReportFormat maps a user-supplied name; empty means HTML.
func ParseReportFormat(s string) (ReportFormat, error) {
	switch ReportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReportHTML:
		return ReportHTML, nil
	case ReportPDF:
		return ReportPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReportFormat, s)
}

// Input names the spreadsheets of one run. Uploads win over Paths.
type Input struct {
	Uploads []workbooks.Upload
	Paths   []string
	// Source restricts every statistic to one input file.
	Source string
}

// Result is one analysis run.
type Result struct {
	ID       string
	Analysis *parking.Analysis
}

// Artifact is a rendered file ready to download or write.
type Artifact struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
}

// Deps are the collaborators a Service drives. PDF and Metrics may be nil.
type Deps struct {
	Loader   *workbooks.Loader
	Renderer *report.Renderer
	PDF      report.PDFConverter
	Metrics  *telemetry.Metrics
}

// Options tunes analysis and chart rendering.
type Options struct {
	Analysis  parking.Options
	ChartSize charts.Size
	// Now overrides the clock used for report timestamps.
	Now func() time.Time
}

// Service is safe for concurrent use; it holds no per-request state.
type Service struct {
	deps Deps
	opts Options
}

// New constructs a Service.
func New(deps Deps, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{deps: deps, opts: opts}
}

// PDFEnabled reports whether Report can produce PDF documents.
func (s *Service) PDFEnabled() bool { return s.deps.PDF != nil }

// Analyze decodes the inputs and runs the pipeline.
func (s *Service) Analyze(ctx context.Context, in Input) (res *Result, err error) {
	start := time.Now()
	defer func() { s.deps.Metrics.ObserveRun("analyze", time.Since(start), err) }()
	return s.analyze(ctx, in)
}

func (s *Service) analyze(ctx context.Context, in Input) (*Result, error) {
	datasets, err := s.load(ctx, in)
	if err != nil {
		return nil, err
	}
	opts := s.opts.Analysis
	opts.Source = in.Source
	a, err := parking.Run(datasets, opts)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s.deps.Metrics.ObserveRows(a.Quality.ValidRows, a.Quality.InvalidDates, a.Quality.MissingFees)
	logger := zerolog.Ctx(ctx)
	logger.Info().
		Str("run_id", id).
		Strs("sources", a.Sources).
		Int("rows", a.Quality.TotalRows).
		Int("valid_rows", a.Quality.ValidRows).
		Int("invalid_dates", a.Quality.InvalidDates).
		Int("missing_fees", a.Quality.MissingFees).
		Msg("analysis completed")
	if n := a.Quality.NegativeDurations; n > 0 {
		logger.Warn().Str("run_id", id).Int("negative_durations", n).Msg("check-out earlier than check-in; durations kept as negative hours")
	}
	for _, w := range a.Warnings {
		logger.Warn().Str("run_id", id).Str("source", w.Source).Strs("missing", w.Missing).Msg(w.Message)
	}
	return &Result{ID: id, Analysis: a}, nil
}

// Select validates sel against the analysis and returns the matching records.
func Select(a *parking.Analysis, sel parking.Selection) ([]parking.Record, error) {
	if sel.Month != "" && !slices.Contains(a.Months, sel.Month) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, sel.Month)
	}
	if sel.Source != "" && !slices.Contains(a.Sources, sel.Source) {
		return nil, fmt.Errorf("%w: %q", parking.ErrUnknownSource, sel.Source)
	}
	return a.Select(sel), nil
}

// Export runs the pipeline and encodes the selected records.
func (s *Service) Export(ctx context.Context, in Input, sel parking.Selection, format export.Format) (art *Artifact, err error) {
	start := time.Now()
	defer func() { s.deps.Metrics.ObserveRun("export", time.Since(start), err) }()

	res, err := s.analyze(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.ExportResult(ctx, res, sel, format)
}

// ExportResult encodes the records of a finished run that match sel.
func (s *Service) ExportResult(ctx context.Context, res *Result, sel parking.Selection, format export.Format) (*Artifact, error) {
	records, err := Select(res.Analysis, sel)
	if err != nil {
		return nil, err
	}
	data, err := export.Bytes(format, res.Analysis.Frame, records)
	if err != nil {
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("run_id", res.ID).Str("format", string(format)).Int("records", len(records)).Msg("selection exported")
	return &Artifact{
		ID:          res.ID,
		Filename:    format.Filename(sel),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// Report runs the pipeline and renders the report document.
func (s *Service) Report(ctx context.Context, in Input, format ReportFormat) (art *Artifact, err error) {
	start := time.Now()
	defer func() { s.deps.Metrics.ObserveRun("report", time.Since(start), err) }()

	if format == ReportPDF && s.deps.PDF == nil {
		return nil, report.ErrPDFUnavailable
	}
	res, err := s.analyze(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.ReportResult(ctx, res, format)
}

// ReportResult renders the report document for a finished run.
func (s *Service) ReportResult(ctx context.Context, res *Result, format ReportFormat) (*Artifact, error) {
	if format == ReportPDF && s.deps.PDF == nil {
		return nil, report.ErrPDFUnavailable
	}
	html, err := s.RenderHTML(ctx, res.Analysis)
	if err != nil {
		return nil, err
	}

	art := &Artifact{ID: res.ID, Filename: "reporte_estacionamiento.html", ContentType: "text/html; charset=utf-8", Data: html}
	if format == ReportPDF {
		pdf, err := s.deps.PDF.Convert(ctx, html)
		if err != nil {
			return nil, err
		}
		art.Filename, art.ContentType, art.Data = "reporte_estacionamiento.pdf", "application/pdf", pdf
	}
	zerolog.Ctx(ctx).Info().Str("run_id", res.ID).Str("format", string(format)).Int("bytes", len(art.Data)).Msg("report rendered")
	return art, nil
}

// RenderHTML draws the charts and fills the report template for a finished analysis.
func (s *Service) RenderHTML(ctx context.Context, a *parking.Analysis) ([]byte, error) {
	set, err := charts.RenderAll(ctx, a, s.opts.ChartSize)
	if err != nil {
		return nil, err
	}
	return s.deps.Renderer.Render(report.Input{
		Analysis:  a,
		Charts:    set,
		Source:    SourceLabel(a),
		Generated: s.opts.Now(),
	})
}

// SourceLabel is the archivo_origen text: the scoped file or all inputs.
func SourceLabel(a *parking.Analysis) string {
	if a.Source != "" {
		return a.Source
	}
	return strings.Join(a.Sources, ", ")
}

func (s *Service) load(ctx context.Context, in Input) ([]parking.Dataset, error) {
	switch {
	case len(in.Uploads) > 0:
		return s.deps.Loader.LoadAll(ctx, in.Uploads)
	case len(in.Paths) > 0:
		return s.deps.Loader.LoadPaths(ctx, in.Paths)
	}
	return nil, ErrNoInput
}
