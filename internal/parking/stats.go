package parking

import (
	"math"
	"slices"

	"github.com/samber/lo"
)

// Fees returns the parseable fees of the records as float64, in input order.
func Fees(records []Record) []float64 {
	return lo.FilterMap(records, func(r Record, _ int) (float64, bool) { return r.FeeFloat() })
}

// Durations returns the derived durations in hours, in input order.
func Durations(records []Record) []float64 {
	return lo.FilterMap(records, func(r Record, _ int) (float64, bool) {
		if r.DurationHours == nil {
			return 0, false
		}
		return *r.DurationHours, true
	})
}

// Mean returns the arithmetic mean, or false for an empty input.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return math.NaN(), false
	}
	if sum := lo.Sum(values); !math.IsInf(sum, 0) {
		return sum / float64(len(values)), true
	}
	// The sum overflowed; fall back to a running mean.
	var mean float64
	for i, v := range values {
		mean += (v - mean) / float64(i+1)
	}
	return mean, true
}

// Percentile returns the q-th quantile (0..1) using linear interpolation
// between closest ranks. It reports false for an empty input.
func Percentile(values []float64, q float64) (float64, bool) {
	if len(values) == 0 || math.IsNaN(q) {
		return math.NaN(), false
	}
	q = math.Min(math.Max(q, 0), 1)
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	rank := q * float64(len(sorted)-1)
	low, high := int(math.Floor(rank)), int(math.Ceil(rank))
	if low == high {
		return sorted[low], true
	}
	frac := rank - float64(low)
	if diff := sorted[high] - sorted[low]; !math.IsInf(diff, 0) {
		return sorted[low] + diff*frac, true
	}
	return sorted[low]*(1-frac) + sorted[high]*frac, true
}

func ptr[T any](v T) *T { return &v }

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return ptr(v)
}
