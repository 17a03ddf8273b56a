package parking

import "github.com/samber/lo"

// Outliers returns the records whose fee is strictly greater than the q-th
// quantile of all parseable fees, together with that threshold. The threshold
// is nil when no fee parses, in which case there are no outliers.
func Outliers(records []Record, q float64) ([]Record, *float64) {
	threshold, ok := Percentile(Fees(records), q)
	if !ok {
		return nil, nil
	}
	out := lo.Filter(records, func(r Record, _ int) bool {
		fee, ok := r.FeeFloat()
		return ok && fee > threshold
	})
	return out, &threshold
}
