// Package app assembles the reporting stack from configuration. The MCP/HTTP
// server and the command-line generator share it.
package app

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vinodismyname/parkstats/internal/charts"
	"github.com/vinodismyname/parkstats/internal/config"
	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/vinodismyname/parkstats/internal/report"
	"github.com/vinodismyname/parkstats/internal/reporting"
	"github.com/vinodismyname/parkstats/internal/runtime"
	"github.com/vinodismyname/parkstats/internal/security"
	"github.com/vinodismyname/parkstats/internal/telemetry"
	"github.com/vinodismyname/parkstats/internal/workbooks"
)

// Components are the long-lived collaborators of one process.
type Components struct {
	Limits     runtime.Limits
	Controller *runtime.Controller
	Security   *security.Manager
	Metrics    *telemetry.Metrics
	Service    *reporting.Service
}

// Build wires runtime guardrails, the loader, the renderer and the service.
// requireDirs rejects an empty allow-list; the CLI reads files named on its
// command line and passes false.
func Build(cfg config.Config, logger zerolog.Logger, requireDirs bool) (*Components, error) {
	sec, err := security.NewManagerFromList(cfg.AllowedDirs)
	if err != nil {
		return nil, err
	}
	if requireDirs {
		if err := sec.ValidateConfig(); err != nil {
			return nil, fmt.Errorf("%w; set %s_ALLOWED_DIRS", err, config.Prefix)
		}
	}

	limits := cfg.RuntimeLimits()
	ctrl := runtime.NewController(limits)
	metrics := telemetry.NewMetrics()

	logo, err := cfg.ReadLogo()
	if err != nil {
		return nil, err
	}
	renderer, err := report.New(report.Options{TemplatePath: cfg.Report.TemplatePath, Logo: logo})
	if err != nil {
		return nil, err
	}

	var validator workbooks.PathValidator
	if requireDirs {
		validator = sec
	}
	deps := reporting.Deps{
		Loader:   workbooks.NewLoader(ctrl, validator, limits.MaxUploadBytes, limits.MaxFilesPerRun),
		Renderer: renderer,
		Metrics:  metrics,
	}
	if cfg.Report.PDF {
		deps.PDF = report.ChromeConverter{ExecPath: cfg.Report.ChromePath, Timeout: cfg.Report.PDFTimeout}
	}
	svc := reporting.New(deps, reporting.Options{
		Analysis:  parking.Options{Bins: cfg.Analysis.HistogramBins, Quantile: cfg.Analysis.OutlierQuantile},
		ChartSize: charts.Size{Width: cfg.Report.ChartWidth, Height: cfg.Report.ChartHeight},
	})

	logger.Info().
		Strs("allowed_dirs", sec.AllowedDirectories()).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_workbooks", limits.MaxOpenWorkbooks).
		Int64("max_upload_bytes", limits.MaxUploadBytes).
		Bool("pdf", cfg.Report.PDF).
		Msg("components configured")

	return &Components{
		Limits:     limits,
		Controller: ctrl,
		Security:   sec,
		Metrics:    metrics,
		Service:    svc,
	}, nil
}
