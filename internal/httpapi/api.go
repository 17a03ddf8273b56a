// Package httpapi serves the report generator over HTTP: clients upload
// spreadsheets as multipart forms and receive the analysis, an export of
// the selected records, or the rendered report.
package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/parkstats/internal/export"
	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/vinodismyname/parkstats/internal/registry"
	"github.com/vinodismyname/parkstats/internal/reporting"
	"github.com/vinodismyname/parkstats/internal/runtime"
	"github.com/vinodismyname/parkstats/internal/telemetry"
	"github.com/vinodismyname/parkstats/internal/workbooks"
	"github.com/vinodismyname/parkstats/pkg/mcperr"
	"github.com/vinodismyname/parkstats/pkg/validation"
	"github.com/vinodismyname/parkstats/pkg/version"
)

// formMemory is the multipart size kept in memory before spilling to disk.
const formMemory = 8 << 20

// Deps wires the API to the service layer. Guard, Metrics and MCP may be nil.
type Deps struct {
	Service *reporting.Service
	Guard   *runtime.Middleware
	Metrics *telemetry.Metrics
	Logger  zerolog.Logger
	Limits  runtime.Limits
	// MCP serves the tool server over streamable HTTP at /mcp.
	MCP http.Handler
}

// API holds the HTTP handlers.
type API struct {
	deps Deps
}

// New constructs an API.
func New(deps Deps) *API {
	if deps.Limits.MaxUploadBytes <= 0 || deps.Limits.MaxFilesPerRun <= 0 {
		deps.Limits = runtime.NewLimits(deps.Limits.MaxConcurrentRequests, deps.Limits.MaxOpenWorkbooks)
	}
	return &API{deps: deps}
}

// uploadForm mirrors the multipart fields shared by every endpoint.
type uploadForm struct {
	Files  []string `validate:"required,min=1,dive,upload_ext"`
	Month  string   `validate:"omitempty,month"`
	Source string
}

// Routes builds the chi router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.health)
	r.Handle("/metrics", a.deps.Metrics.Handler())
	if a.deps.MCP != nil {
		r.Handle("/mcp", a.deps.MCP)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if a.deps.Guard != nil {
			r.Use(a.deps.Guard.HTTPMiddleware)
		}
		r.Post("/analyze", a.analyze)
		r.Post("/export", a.export)
		r.Post("/report", a.report)
	})
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":  "ok",
		"version": version.Version(),
		"pdf":     a.deps.Service.PDFEnabled(),
	})
}

func (a *API) analyze(w http.ResponseWriter, r *http.Request) {
	uploads, form, apiErr := a.readForm(w, r)
	if apiErr != nil {
		_ = render.Render(w, r, apiErr)
		return
	}
	res, err := a.deps.Service.Analyze(r.Context(), reporting.Input{Uploads: uploads, Source: form.Source})
	if err != nil {
		_ = render.Render(w, r, errorFor(err))
		return
	}
	render.JSON(w, r, registry.NewAnalyzeOutput(res))
}

func (a *API) export(w http.ResponseWriter, r *http.Request) {
	uploads, form, apiErr := a.readForm(w, r)
	if apiErr != nil {
		_ = render.Render(w, r, apiErr)
		return
	}
	format, err := export.ParseFormat(r.FormValue("format"))
	if err != nil {
		_ = render.Render(w, r, errorFor(err))
		return
	}
	// Exports keep whole-input statistics; source narrows the rows instead.
	sel := parking.Selection{Month: form.Month, Source: form.Source}
	art, err := a.deps.Service.Export(r.Context(), reporting.Input{Uploads: uploads}, sel, format)
	if err != nil {
		_ = render.Render(w, r, errorFor(err))
		return
	}
	writeArtifact(w, art)
}

func (a *API) report(w http.ResponseWriter, r *http.Request) {
	uploads, form, apiErr := a.readForm(w, r)
	if apiErr != nil {
		_ = render.Render(w, r, apiErr)
		return
	}
	format, err := reporting.ParseReportFormat(r.FormValue("format"))
	if err != nil {
		_ = render.Render(w, r, errorFor(err))
		return
	}
	art, err := a.deps.Service.Report(r.Context(), reporting.Input{Uploads: uploads, Source: form.Source}, format)
	if err != nil {
		_ = render.Render(w, r, errorFor(err))
		return
	}
	writeArtifact(w, art)
}

// readForm parses the multipart body into uploads and the shared form fields.
func (a *API) readForm(w http.ResponseWriter, r *http.Request) ([]workbooks.Upload, uploadForm, *APIError) {
	limit := a.deps.Limits.MaxUploadBytes*int64(a.deps.Limits.MaxFilesPerRun) + formMemory
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "too large") {
			return nil, uploadForm{}, newAPIError(http.StatusRequestEntityTooLarge, mcperr.PayloadTooLarge, err.Error())
		}
		return nil, uploadForm{}, newAPIError(http.StatusBadRequest, mcperr.Validation, "expected multipart/form-data with one or more files")
	}

	headers := r.MultipartForm.File["files"]
	form := uploadForm{
		Month:  strings.TrimSpace(r.FormValue("month")),
		Source: strings.TrimSpace(r.FormValue("source")),
	}
	for _, fh := range headers {
		form.Files = append(form.Files, fh.Filename)
	}
	if msg := validation.ValidateStruct(form); msg != "" {
		return nil, uploadForm{}, newAPIError(http.StatusBadRequest, mcperr.Validation, strings.TrimPrefix(msg, "VALIDATION: "))
	}
	if len(headers) > a.deps.Limits.MaxFilesPerRun {
		return nil, uploadForm{}, errorFor(fmt.Errorf("%w: %d (max %d)", workbooks.ErrTooManyFiles, len(headers), a.deps.Limits.MaxFilesPerRun))
	}

	uploads := make([]workbooks.Upload, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > a.deps.Limits.MaxUploadBytes {
			return nil, uploadForm{}, errorFor(fmt.Errorf("%w: %s is %d bytes (max %d)", workbooks.ErrPayloadTooLarge, fh.Filename, fh.Size, a.deps.Limits.MaxUploadBytes))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, uploadForm{}, newAPIError(http.StatusBadRequest, mcperr.OpenFailed, err.Error())
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, uploadForm{}, newAPIError(http.StatusBadRequest, mcperr.OpenFailed, err.Error())
		}
		uploads = append(uploads, workbooks.Upload{Name: fh.Filename, Data: data})
	}

	return uploads, form, nil
}

func writeArtifact(w http.ResponseWriter, art *reporting.Artifact) {
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	w.Header().Set("X-Run-ID", art.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

// logRequests attaches a request-scoped zerolog logger to the context and
// records access logs and HTTP metrics once the handler returns.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := a.deps.Logger.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		a.deps.Metrics.ObserveHTTP(route, r.Method, status, elapsed)

		ev := logger.Info()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Int("status", status).Int("bytes", ww.BytesWritten()).Dur("elapsed", elapsed).Msg("http request")
	})
}
