package parking

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/vinodismyname/parkstats/config"
)

// ErrUnknownSource is returned when the scoped source file is not among the inputs.
var ErrUnknownSource = errors.New("parking: unknown source file")

// Options tunes one pipeline run. Zero values fall back to config defaults.
type Options struct {
	Bins     int
	Quantile float64
	// Source restricts every statistic to one uploaded file.
	Source string
}

func (o Options) withDefaults() Options {
	if o.Bins <= 0 {
		o.Bins = config.DefaultHistogramBins
	}
	if o.Quantile <= 0 || o.Quantile >= 1 {
		o.Quantile = config.DefaultOutlierQuantile
	}
	o.Source = strings.TrimSpace(o.Source)
	return o
}

// Quality counts the data-quality issues found while normalizing.
type Quality struct {
	TotalRows         int `json:"total_rows"`
	ValidRows         int `json:"valid_rows"`
	InvalidDates      int `json:"invalid_dates"`
	MissingFees       int `json:"missing_fees"`
	NegativeDurations int `json:"negative_durations"`
}

// Analysis holds every dataset derived by one pipeline run.
type Analysis struct {
	Sources          []string       `json:"sources"`
	Source           string         `json:"source,omitempty"`
	Months           []string       `json:"months"`
	Quality          Quality        `json:"quality"`
	HasDuration      bool           `json:"has_duration"`
	MeanFee          *float64       `json:"mean_fee"`
	MeanDuration     *float64       `json:"mean_duration_hours,omitempty"`
	MonthlyCounts    []MonthCount   `json:"monthly_counts"`
	Monthly          []MonthlyKPI   `json:"monthly_kpis"`
	FeeDistribution  []FeeShare     `json:"fee_distribution"`
	Histogram        []HistogramBin `json:"histogram"`
	Quantile         float64        `json:"outlier_quantile"`
	OutlierThreshold *float64       `json:"outlier_threshold"`
	Outliers         []Record       `json:"outliers"`
	Warnings         []Warning      `json:"warnings,omitempty"`

	// Frame is the normalized active dataset, kept for selection and export.
	Frame *Frame `json:"-"`
}

// Run executes the whole pipeline: merge, normalize, scope, aggregate.
// Missing data only degrades the affected metric; the run fails only when the
// input is empty, lacks a required column entirely, or scopes to an unknown source.
func Run(datasets []Dataset, opts Options) (*Analysis, error) {
	opts = opts.withDefaults()

	table, warnings, err := Merge(datasets)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, col := range RequiredColumns {
		if table.Index(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	full := Normalize(table)
	sources := lo.Uniq(lo.Map(datasets, func(d Dataset, _ int) string { return d.Name }))
	slices.Sort(sources)
	if opts.Source != "" && !slices.Contains(sources, opts.Source) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, opts.Source)
	}
	frame := full.Scope(opts.Source)
	records := frame.Records
	validated := frame.Validated()

	a := &Analysis{
		Sources:     sources,
		Source:      opts.Source,
		Months:      Months(records),
		HasDuration: frame.HasCheckOut,
		Quantile:    opts.Quantile,
		Warnings:    warnings,
		Frame:       frame,
	}
	a.Quality = Quality{
		TotalRows:    len(records),
		ValidRows:    len(validated),
		InvalidDates: frame.InvalidCheckIns(),
		MissingFees:  lo.CountBy(records, func(r Record) bool { return r.Fee == nil }),
	}
	a.Quality.NegativeDurations = lo.CountBy(records, func(r Record) bool {
		return r.DurationHours != nil && *r.DurationHours < 0
	})

	a.MeanFee = optional(Mean(Fees(records)))
	if frame.HasCheckOut {
		a.MeanDuration = optional(Mean(Durations(records)))
	}
	a.MonthlyCounts = MonthlyCounts(validated)
	a.Monthly = MonthlyKPIs(validated, frame.HasCheckOut)
	a.FeeDistribution = FeeDistribution(records)
	a.Histogram = FeeHistogram(records, opts.Bins)
	a.Outliers, a.OutlierThreshold = Outliers(records, opts.Quantile)
	return a, nil
}

// Select returns the validated records of this run matching the selection.
func (a *Analysis) Select(sel Selection) []Record {
	if a.Frame == nil {
		return nil
	}
	return Select(a.Frame, sel)
}
