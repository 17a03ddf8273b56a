// Package report fills the HTML report template from one analysis run.
//
// Templates use html/template syntax against a map with these keys:
// grafico_carros, grafico_tarifas, grafico_histograma and logo_src (image
// sources), tabla_kpi and tabla_inusuales (HTML table fragments),
// archivo_origen and fecha_generacion (plain strings), plus resumen with the
// headline figures used by the built-in layout.
package report

import (
	"bytes"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vinodismyname/parkstats/internal/charts"
	"github.com/vinodismyname/parkstats/internal/parking"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templateFS embed.FS

// GeneratedLayout formats the fecha_generacion slot.
const GeneratedLayout = "2006-01-02 15:04"

// ErrTemplate wraps template parse and execution failures.
var ErrTemplate = errors.New("report: template")

var numbers = message.NewPrinter(language.English)

// missing marks an undefined statistic (no data available).
const missing = "n/d"

// Options configures a Renderer.
type Options struct {
	// TemplatePath replaces the embedded layout when set.
	TemplatePath string
	// Logo is the raw logo image; empty leaves logo_src blank.
	Logo []byte
}

// Input is everything one report needs. Nothing is read from disk.
type Input struct {
	Analysis  *parking.Analysis
	Charts    charts.Set
	Source    string
	Generated time.Time
}

// Renderer executes the report template. It is safe for concurrent use.
type Renderer struct {
	page   *template.Template
	tables *template.Template
	logo   template.URL
}

// New parses the report and table templates.
func New(opts Options) (*Renderer, error) {
	tables, err := template.ParseFS(templateFS, "templates/tables.html")
	if err != nil {
		return nil, fmt.Errorf("%w: parse tables: %v", ErrTemplate, err)
	}

	var page *template.Template
	if opts.TemplatePath != "" {
		src, err := os.ReadFile(opts.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrTemplate, opts.TemplatePath, err)
		}
		page, err = template.New("report").Option("missingkey=zero").Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrTemplate, opts.TemplatePath, err)
		}
	} else {
		page, err = template.New("report.html").Option("missingkey=zero").ParseFS(templateFS, "templates/report.html")
		if err != nil {
			return nil, fmt.Errorf("%w: parse default: %v", ErrTemplate, err)
		}
	}

	return &Renderer{page: page, tables: tables, logo: ImageURI(opts.Logo)}, nil
}

// Summary carries the headline figures, preformatted for display.
type Summary struct {
	Registros        string
	PagoPromedio     string
	DuracionPromedio string
	FechasInvalidas  string
	Inusuales        string
}

// Render produces the HTML report document.
func (r *Renderer) Render(in Input) ([]byte, error) {
	a := in.Analysis
	if a == nil {
		return nil, fmt.Errorf("%w: nil analysis", ErrTemplate)
	}
	generated := in.Generated
	if generated.IsZero() {
		generated = time.Now()
	}

	kpi, err := r.KPITable(a)
	if err != nil {
		return nil, err
	}
	outliers, err := r.OutlierTable(a)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"grafico_carros":     template.URL(charts.DataURI(in.Charts.Cars)),
		"grafico_tarifas":    template.URL(charts.DataURI(in.Charts.Fees)),
		"grafico_histograma": template.URL(charts.DataURI(in.Charts.Histogram)),
		"tabla_kpi":          kpi,
		"tabla_inusuales":    outliers,
		"archivo_origen":     in.Source,
		"fecha_generacion":   generated.Format(GeneratedLayout),
		"logo_src":           r.logo,
		"resumen":            summarize(a),
	}

	var buf bytes.Buffer
	if err := r.page.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: execute: %v", ErrTemplate, err)
	}
	return buf.Bytes(), nil
}

type kpiRow struct {
	Month       string
	Count       string
	AvgFee      string
	AvgDuration string
}

// KPITable renders the monthly KPI summary as an HTML table fragment.
func (r *Renderer) KPITable(a *parking.Analysis) (template.HTML, error) {
	rows := make([]kpiRow, 0, len(a.Monthly))
	for _, k := range a.Monthly {
		rows = append(rows, kpiRow{
			Month:       k.Month,
			Count:       numbers.Sprintf("%d", k.Count),
			AvgFee:      Money(k.AvgFee),
			AvgDuration: Hours(k.AvgDurationHours),
		})
	}
	return r.fragment("kpi", map[string]any{"Rows": rows, "WithDuration": a.HasDuration})
}

type outlierRow struct {
	CheckIn string
	Fee     string
	Source  string
}

// OutlierTable renders the high-fee records as an HTML table fragment.
func (r *Renderer) OutlierTable(a *parking.Analysis) (template.HTML, error) {
	rows := make([]outlierRow, 0, len(a.Outliers))
	for _, o := range a.Outliers {
		row := outlierRow{Source: o.Source}
		if o.CheckIn != nil {
			row.CheckIn = o.CheckIn.Format("2006-01-02 15:04:05")
		}
		if o.Fee != nil {
			row.Fee = "$" + numbers.Sprintf("%.2f", o.Fee.InexactFloat64())
		}
		rows = append(rows, row)
	}
	multi := a.Frame != nil && a.Frame.MultiSource
	return r.fragment("outliers", map[string]any{"Rows": rows, "MultiSource": multi})
}

func (r *Renderer) fragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tables.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("%w: %s table: %v", ErrTemplate, name, err)
	}
	// Output of html/template is already escaped.
	return template.HTML(buf.String()), nil
}

func summarize(a *parking.Analysis) Summary {
	s := Summary{
		Registros:       numbers.Sprintf("%d", a.Quality.ValidRows),
		PagoPromedio:    Money(a.MeanFee),
		FechasInvalidas: numbers.Sprintf("%d", a.Quality.InvalidDates),
	}
	if a.HasDuration {
		s.DuracionPromedio = Hours(a.MeanDuration) + " horas"
	}
	if a.OutlierThreshold != nil {
		s.Inusuales = fmt.Sprintf("Se detectaron %d registros con tarifas superiores al percentil %.0f (%s)",
			len(a.Outliers), a.Quantile*100, Money(a.OutlierThreshold))
	} else {
		s.Inusuales = "No hay tarifas numéricas para calcular el umbral."
	}
	return s
}

// Money formats an optional amount as $1,234.50; absent values render as n/d.
func Money(v *float64) string {
	if v == nil {
		return missing
	}
	return "$" + numbers.Sprintf("%.2f", *v)
}

// Hours formats an optional duration with two decimals.
func Hours(v *float64) string {
	if v == nil {
		return missing
	}
	return fmt.Sprintf("%.2f", *v)
}

// ImageURI embeds raw image bytes as a data URI, sniffing the media type.
func ImageURI(img []byte) template.URL {
	if len(img) == 0 {
		return ""
	}
	mime := http.DetectContentType(img)
	if strings.HasPrefix(mime, "text/xml") || strings.HasPrefix(mime, "text/plain") {
		mime = "image/svg+xml"
	}
	return template.URL("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img))
}
