// Package charts rasterizes the analysis tables into PNG bar charts that
// the report embeds as data URIs.
package charts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"

	"github.com/vinodismyname/parkstats/config"
	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/sync/errgroup"
)

// Bar is one labeled bar of a chart.
type Bar struct {
	Label string
	Value float64
}

// Series is the data behind one bar chart.
type Series struct {
	Title string
	YName string
	Bars  []Bar
}

// Size is the output raster size in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) withDefaults() Size {
	if s.Width <= 0 {
		s.Width = config.DefaultChartWidth
	}
	if s.Height <= 0 {
		s.Height = config.DefaultChartHeight
	}
	return s
}

// Set holds the three rendered report charts as PNG bytes.
type Set struct {
	Cars      []byte
	Fees      []byte
	Histogram []byte
}

// MonthlyCountsSeries plots cars per Month.
func MonthlyCountsSeries(counts []parking.MonthCount) Series {
	bars := make([]Bar, 0, len(counts))
	for _, c := range counts {
		bars = append(bars, Bar{Label: c.Month, Value: float64(c.Count)})
	}
	return Series{Title: "Cantidad de carros por mes", YName: "Carros", Bars: bars}
}

// FeeDistributionSeries plots the number of records per exact fee value.
func FeeDistributionSeries(dist []parking.FeeShare) Series {
	bars := make([]Bar, 0, len(dist))
	for _, d := range dist {
		bars = append(bars, Bar{Label: d.Fee.StringFixed(2), Value: float64(d.Count)})
	}
	return Series{Title: "Distribución de tarifas", YName: "Cantidad", Bars: bars}
}

// HistogramSeries plots the fee histogram bins.
func HistogramSeries(bins []parking.HistogramBin) Series {
	bars := make([]Bar, 0, len(bins))
	for _, b := range bins {
		bars = append(bars, Bar{Label: b.Label, Value: float64(b.Count)})
	}
	return Series{Title: "Histograma de tarifas", YName: "Cantidad", Bars: bars}
}

// RenderAll draws the three report charts concurrently.
func RenderAll(ctx context.Context, a *parking.Analysis, size Size) (Set, error) {
	var set Set
	g, gctx := errgroup.WithContext(ctx)
	jobs := []struct {
		series Series
		dst    *[]byte
	}{
		{MonthlyCountsSeries(a.MonthlyCounts), &set.Cars},
		{FeeDistributionSeries(a.FeeDistribution), &set.Fees},
		{HistogramSeries(a.Histogram), &set.Histogram},
	}
	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			png, err := RenderBar(job.series, size)
			if err != nil {
				return err
			}
			*job.dst = png
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Set{}, err
	}
	return set, nil
}

// RenderBar draws one bar chart as PNG. An empty series renders a single
// zero-height "no data" bar so the report layout stays intact.
func RenderBar(s Series, size Size) ([]byte, error) {
	size = size.withDefaults()
	bars := s.Bars
	if len(bars) == 0 {
		bars = []Bar{{Label: "sin datos", Value: 0}}
	}

	values := make([]chart.Value, 0, len(bars))
	maxValue := 0.0
	for _, b := range bars {
		maxValue = math.Max(maxValue, b.Value)
		values = append(values, chart.Value{
			Value: b.Value,
			Label: b.Label,
			Style: chart.Style{
				FillColor:   drawing.ColorBlue.WithAlpha(160),
				StrokeColor: drawing.ColorBlue,
				StrokeWidth: 1,
			},
		})
	}
	// go-chart refuses a zero-width range.
	if maxValue <= 0 {
		maxValue = 1
	}

	bar := chart.BarChart{
		Title:      s.Title,
		Width:      size.Width,
		Height:     size.Height,
		BarWidth:   barWidth(size.Width, len(values)),
		Bars:       values,
		Background: chart.Style{Padding: chart.Box{Top: 40, Bottom: bottomPadding(values)}},
		XAxis: chart.Style{
			StrokeWidth:         1,
			StrokeColor:         chart.ColorBlack,
			TextRotationDegrees: rotation(len(values)),
			FontSize:            10,
		},
		YAxis: chart.YAxis{
			Name:  s.YName,
			Range: &chart.ContinuousRange{Min: 0, Max: maxValue * 1.1},
			Style: chart.Style{StrokeWidth: 1, StrokeColor: chart.ColorBlack, FontSize: 10},
			ValueFormatter: func(v interface{}) string {
				if vf, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", vf)
				}
				return ""
			},
		},
	}

	buf := bytes.NewBuffer(nil)
	if err := bar.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("charts: render %q: %w", s.Title, err)
	}
	return buf.Bytes(), nil
}

// DataURI encodes PNG bytes for inline embedding in HTML.
func DataURI(png []byte) string {
	if len(png) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

func barWidth(width, n int) int {
	w := (width - 120) / max(n, 1) * 7 / 10
	return min(max(w, 4), 80)
}

func rotation(n int) float64 {
	if n > 8 {
		return 60
	}
	return 0
}

func bottomPadding(values []chart.Value) int {
	longest := 0
	for _, v := range values {
		longest = max(longest, len(v.Label))
	}
	if len(values) > 8 {
		return 20 + longest*6
	}
	return 20
}
