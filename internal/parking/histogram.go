package parking

import (
	"fmt"
	"math"
	"slices"
)

// HistogramBin is one equal-width bucket of the fee histogram.
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Label string  `json:"label"`
	Count int     `json:"count"`
}

// Histogram partitions values into n equal-width bins spanning [min, max].
// Every bin is half-open except the last, which includes max. A degenerate
// range (min == max) is widened by 0.5 on each side. Non-finite values are
// skipped; empty input yields nil.
func Histogram(values []float64, n int) []HistogramBin {
	values = slices.DeleteFunc(slices.Clone(values), func(v float64) bool {
		return math.IsInf(v, 0) || math.IsNaN(v)
	})
	if len(values) == 0 || n <= 0 {
		return nil
	}
	lower, upper := slices.Min(values), slices.Max(values)
	if lower == upper {
		// Beyond 2^53 a half unit is lost to rounding; widen relatively there.
		pad := math.Max(0.5, math.Abs(lower)*1e-9)
		lower, upper = lower-pad, upper+pad
	}
	width := (upper - lower) / float64(n)
	// Very wide ranges overflow the subtraction; scale before subtracting.
	scaled := math.IsInf(width, 0)
	if scaled {
		width = upper/float64(n) - lower/float64(n)
	}
	offset := func(v float64) float64 {
		if scaled {
			return v/width - lower/width
		}
		return (v - lower) / width
	}

	bins := make([]HistogramBin, n)
	for i := range bins {
		lo := lower + width*float64(i)
		hi := lower + width*float64(i+1)
		if i == n-1 {
			hi = upper
		}
		bins[i] = HistogramBin{Lower: lo, Upper: hi, Label: binLabel(lo, hi)}
	}
	for _, v := range values {
		idx := int(math.Floor(min(max(offset(v), 0), float64(n-1))))
		// Float error can push edge values one bin out either way.
		if idx > 0 && v < bins[idx].Lower {
			idx--
		} else if idx < n-1 && v >= bins[idx+1].Lower {
			idx++
		}
		bins[idx].Count++
	}
	return bins
}

// FeeHistogram is Histogram over the parseable fees of the records.
func FeeHistogram(records []Record, n int) []HistogramBin {
	return Histogram(Fees(records), n)
}

func binLabel(lo, hi float64) string {
	return fmt.Sprintf("%.2f–%.2f", round2(lo), round2(hi))
}

func round2(v float64) float64 {
	if math.Abs(v) > 1e15 {
		return v
	}
	return math.Round(v*100) / 100
}
