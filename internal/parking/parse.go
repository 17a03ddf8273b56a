package parking

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Excel serial day numbers accepted as timestamps (1900-01-01 .. 9999-12-31).
const (
	minExcelSerial = 1.0
	maxExcelSerial = 2958465.0
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"1/2/06 15:04",
	"1/2/06",
	"2-Jan-2006 15:04",
	"2-Jan-2006",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
}

// ParseTimestamp coerces a cell to a timestamp. Excel serial numbers and the
// common textual layouts are accepted; anything else reports false.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < minExcelSerial || serial > maxExcelSerial {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		// Serials carry sub-second float noise; round to the nearest second.
		return t.Round(time.Second), true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// thousandsGrouped matches amounts whose commas are thousands separators.
var thousandsGrouped = regexp.MustCompile(`^[-+]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// ParseFee coerces a cell to a decimal fee. Currency symbols, surrounding
// spaces and thousands separators are ignored. Any other comma, such as a
// decimal comma, leaves the cell unparseable, as does an amount that does not
// fit a finite float64.
func ParseFee(s string) (decimal.Decimal, bool) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '$', ' ', '\u00a0':
			return -1
		default:
			return r
		}
	}, s)
	if clean == "" {
		return decimal.Decimal{}, false
	}
	if strings.Contains(clean, ",") {
		if !thousandsGrouped.MatchString(clean) {
			return decimal.Decimal{}, false
		}
		clean = strings.ReplaceAll(clean, ",", "")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if f := d.InexactFloat64(); math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// MonthOf returns the YYYY-MM bucket of a timestamp.
func MonthOf(t time.Time) string {
	return t.Format("2006-01")
}
