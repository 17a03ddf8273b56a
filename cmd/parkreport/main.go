// Command parkreport analyzes parking exports from the command line: it
// prints the monthly KPIs and optionally writes the report or an export.
//
//	parkreport [-month 2024-01] [-source lot.xlsx] [-out report.html] files...
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/parkstats/internal/app"
	"github.com/vinodismyname/parkstats/internal/config"
	"github.com/vinodismyname/parkstats/internal/export"
	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/vinodismyname/parkstats/internal/report"
	"github.com/vinodismyname/parkstats/internal/reporting"
)

func main() {
	var (
		month   string
		source  string
		out     string
		envFile string
		quiet   bool
	)
	flag.StringVar(&month, "month", "", "Month to export (YYYY-MM); only used for .csv/.xlsx output")
	flag.StringVar(&source, "source", "", "Restrict to one input file name")
	flag.StringVar(&out, "out", "", "Write the report (.html, .pdf) or an export (.csv, .xlsx)")
	flag.StringVar(&envFile, "env", "", "Optional .env file (default ./.env)")
	flag.BoolVar(&quiet, "q", false, "Do not print the summary tables")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.xlsx [file.csv ...]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cfg.Logger("parkreport")
	ctx := logger.WithContext(context.Background())

	if err := run(ctx, cfg, os.Stdout, flag.Args(), month, source, out, quiet); err != nil {
		logger.Error().Err(err).Msg("parkreport failed")
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, stdout io.Writer, paths []string, month, source, out string, quiet bool) error {
	comps, err := app.Build(cfg, *zerolog.Ctx(ctx), false)
	if err != nil {
		return err
	}
	svc := comps.Service

	ext := strings.ToLower(filepath.Ext(out))
	isExport := ext == ".csv" || ext == ".xlsx"

	in := reporting.Input{Paths: paths}
	if !isExport {
		in.Source = source
	}
	res, err := svc.Analyze(ctx, in)
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintln(stdout, summaryTable(res.Analysis))
		if len(res.Analysis.Outliers) > 0 {
			fmt.Fprintln(stdout, outlierTable(res.Analysis))
		}
		for _, w := range res.Analysis.Warnings {
			fmt.Fprintf(stdout, "warning: %s: %s\n", w.Source, w.Message)
		}
	}
	if out == "" {
		return nil
	}

	// The files are decoded and analyzed once; the artifact reuses that run.
	var art *reporting.Artifact
	switch {
	case isExport:
		format, ferr := export.ParseFormat(strings.TrimPrefix(ext, "."))
		if ferr != nil {
			return ferr
		}
		art, err = svc.ExportResult(ctx, res, parking.Selection{Month: month, Source: source}, format)
	case ext == ".html" || ext == ".pdf":
		format, ferr := reporting.ParseReportFormat(strings.TrimPrefix(ext, "."))
		if ferr != nil {
			return ferr
		}
		art, err = svc.ReportResult(ctx, res, format)
	default:
		return fmt.Errorf("unsupported output extension %q (want .html, .pdf, .csv or .xlsx)", ext)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, art.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", out, len(art.Data))
	return nil
}

// summaryTable renders the monthly KPIs with a totals footer.
func summaryTable(a *parking.Analysis) string {
	t := table.NewWriter()
	t.SetTitle("Indicadores mensuales: " + reporting.SourceLabel(a))
	header := table.Row{"Mes", "Carros", "Pago promedio"}
	if a.HasDuration {
		header = append(header, "Duración promedio (h)")
	}
	t.AppendHeader(header)
	for _, k := range a.Monthly {
		row := table.Row{k.Month, k.Count, report.Money(k.AvgFee)}
		if a.HasDuration {
			row = append(row, report.Hours(k.AvgDurationHours))
		}
		t.AppendRow(row)
	}
	footer := table.Row{"Total", a.Quality.ValidRows, report.Money(a.MeanFee)}
	if a.HasDuration {
		footer = append(footer, report.Hours(a.MeanDuration))
	}
	t.AppendFooter(footer)
	t.SetCaption("fechas inválidas: %d, pagos sin valor: %d", a.Quality.InvalidDates, a.Quality.MissingFees)
	t.SetStyle(table.StyleLight)
	return t.Render()
}

// outlierTable lists fees above the outlier threshold.
func outlierTable(a *parking.Analysis) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Pagos inusuales (percentil %.0f: %s)", a.Quantile*100, report.Money(a.OutlierThreshold)))
	t.AppendHeader(table.Row{"Entrada", "Pago", "Archivo"})
	for _, r := range a.Outliers {
		checkIn := ""
		if r.CheckIn != nil {
			checkIn = r.CheckIn.Format(export.TimestampLayout)
		}
		fee := ""
		if r.Fee != nil {
			fee = "$" + r.Fee.StringFixed(2)
		}
		t.AppendRow(table.Row{checkIn, fee, r.Source})
	}
	t.SetStyle(table.StyleLight)
	return t.Render()
}
