package parking

import "github.com/samber/lo"

// Selection is the user's choice of Month and, with several uploads, source file.
// Empty fields match everything.
type Selection struct {
	Month  string `json:"month,omitempty"`
	Source string `json:"source,omitempty"`
}

// Select returns the validated records matching the selection, in input order.
func Select(f *Frame, sel Selection) []Record {
	return lo.Filter(f.Records, func(r Record, _ int) bool {
		if !r.Valid() {
			return false
		}
		if sel.Month != "" && r.Month != sel.Month {
			return false
		}
		return sel.Source == "" || r.Source == sel.Source
	})
}
