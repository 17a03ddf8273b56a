package parking

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Record is one parking event with its parsed fields. Cells keeps the raw
// merged row so exports can reproduce every input column.
type Record struct {
	Source        string           `json:"source,omitempty"`
	CheckIn       *time.Time       `json:"check_in"`
	CheckOut      *time.Time       `json:"check_out,omitempty"`
	Fee           *decimal.Decimal `json:"fee"`
	DurationHours *float64         `json:"duration_hours,omitempty"`
	Month         string           `json:"month,omitempty"`
	Cells         []string         `json:"-"`
}

// Valid reports whether the record has a parseable check-in timestamp.
func (r Record) Valid() bool { return r.CheckIn != nil }

// FeeFloat returns the fee as float64 for statistics.
func (r Record) FeeFloat() (float64, bool) {
	if r.Fee == nil {
		return 0, false
	}
	return r.Fee.InexactFloat64(), true
}

// Frame is a normalized table: the merged header plus parsed records.
type Frame struct {
	Header      []string
	Records     []Record
	MultiSource bool
	HasCheckOut bool
}

// Normalize parses check-in, check-out and fee for every merged row and
// derives Month and duration. Unparseable values become nil; nothing fails.
func Normalize(t *Table) *Frame {
	in := t.Index(ColCheckIn)
	out := t.Index(ColCheckOut)
	cost := t.Index(ColCost)

	f := &Frame{
		Header:      t.Header,
		MultiSource: t.MultiSource,
		HasCheckOut: out >= 0,
		Records:     make([]Record, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		rec := Record{Source: row.Source, Cells: row.Cells}
		if ts, ok := ParseTimestamp(cell(row.Cells, in)); ok {
			rec.CheckIn = &ts
			rec.Month = MonthOf(ts)
		}
		if ts, ok := ParseTimestamp(cell(row.Cells, out)); ok {
			rec.CheckOut = &ts
		}
		if fee, ok := ParseFee(cell(row.Cells, cost)); ok {
			rec.Fee = &fee
		}
		if rec.CheckIn != nil && rec.CheckOut != nil {
			// Negative values (checkout before checkin) pass through as computed.
			hours := rec.CheckOut.Sub(*rec.CheckIn).Seconds() / 3600
			rec.DurationHours = &hours
		}
		f.Records = append(f.Records, rec)
	}
	return f
}

// Validated returns the records with a parseable check-in, in input order.
func (f *Frame) Validated() []Record {
	return lo.Filter(f.Records, func(r Record, _ int) bool { return r.Valid() })
}

// InvalidCheckIns counts records whose check-in could not be parsed.
func (f *Frame) InvalidCheckIns() int {
	return lo.CountBy(f.Records, func(r Record) bool { return !r.Valid() })
}

// Scope returns a frame restricted to one source file. An empty source
// returns the frame unchanged.
func (f *Frame) Scope(source string) *Frame {
	if source == "" {
		return f
	}
	scoped := *f
	scoped.Records = lo.Filter(f.Records, func(r Record, _ int) bool { return r.Source == source })
	return &scoped
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}
