package parking

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MonthCount is the number of validated records in one Month bucket.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// MonthlyKPI summarizes one Month bucket of the Validated Record Set.
type MonthlyKPI struct {
	Month            string   `json:"month"`
	Count            int      `json:"count"`
	AvgFee           *float64 `json:"avg_fee"`
	AvgDurationHours *float64 `json:"avg_duration_hours,omitempty"`
}

// FeeShare is one row of the fee distribution table.
type FeeShare struct {
	Fee     decimal.Decimal `json:"fee"`
	Count   int             `json:"count"`
	Percent float64         `json:"percent"`
}

// Months returns the distinct Month buckets of the records, ascending.
// Records without a check-in are ignored.
func Months(records []Record) []string {
	months := lo.Uniq(lo.FilterMap(records, func(r Record, _ int) (string, bool) {
		return r.Month, r.Valid()
	}))
	sort.Strings(months)
	return months
}

// MonthlyCounts counts validated records per Month, ascending by Month.
func MonthlyCounts(records []Record) []MonthCount {
	byMonth := lo.CountValuesBy(lo.Filter(records, func(r Record, _ int) bool { return r.Valid() }),
		func(r Record) string { return r.Month })
	out := make([]MonthCount, 0, len(byMonth))
	for _, m := range Months(records) {
		out = append(out, MonthCount{Month: m, Count: byMonth[m]})
	}
	return out
}

// MonthlyKPIs builds one row per Month with record count, mean fee and, when
// withDuration is set, mean duration. Means are nil when a month has no values.
func MonthlyKPIs(records []Record, withDuration bool) []MonthlyKPI {
	groups := lo.GroupBy(lo.Filter(records, func(r Record, _ int) bool { return r.Valid() }),
		func(r Record) string { return r.Month })

	out := make([]MonthlyKPI, 0, len(groups))
	for _, m := range Months(records) {
		rows := groups[m]
		kpi := MonthlyKPI{Month: m, Count: len(rows)}
		kpi.AvgFee = optional(Mean(Fees(rows)))
		if withDuration {
			kpi.AvgDurationHours = optional(Mean(Durations(rows)))
		}
		out = append(out, kpi)
	}
	return out
}

// FeeDistribution groups records by exact fee value, ascending by fee.
// Percentages are relative to the number of parseable fees and sum to 100.
func FeeDistribution(records []Record) []FeeShare {
	withFee := lo.Filter(records, func(r Record, _ int) bool { return r.Fee != nil })
	if len(withFee) == 0 {
		return nil
	}

	// decimal.String drops trailing zeros, so 10 and 10.00 share a key.
	counts := map[string]*FeeShare{}
	for _, r := range withFee {
		key := r.Fee.String()
		if s, ok := counts[key]; ok {
			s.Count++
			continue
		}
		counts[key] = &FeeShare{Fee: *r.Fee, Count: 1}
	}

	total := float64(len(withFee))
	out := make([]FeeShare, 0, len(counts))
	for _, s := range counts {
		s.Percent = float64(s.Count) / total * 100
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fee.LessThan(out[j].Fee) })
	return out
}
