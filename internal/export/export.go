// Package export writes a selection of parking records as CSV or XLSX.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/xuri/excelize/v2"
)

// Format names an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// TimestampLayout is how parsed check-in/out values are written.
const TimestampLayout = "2006-01-02 15:04:05"

const sheetName = "Datos"

// ErrUnknownFormat is returned for formats other than csv and xlsx.
var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormat maps a user-supplied format name; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename builds a download name such as datos_filtrados_2024-01.csv.
func (f Format) Filename(sel parking.Selection) string {
	name := "datos_filtrados"
	if sel.Month != "" {
		name += "_" + sel.Month
	}
	return name + "." + string(f)
}

// Header returns the export columns: the merged header followed by Month.
func Header(frame *parking.Frame) []string {
	out := make([]string, 0, len(frame.Header)+1)
	out = append(out, frame.Header...)
	return append(out, parking.ColMonth)
}

// Rows renders records as export rows aligned with Header.
func Rows(frame *parking.Frame, records []parking.Record) [][]string {
	in, out := -1, -1
	for i, h := range frame.Header {
		switch h {
		case parking.ColCheckIn:
			in = i
		case parking.ColCheckOut:
			out = i
		}
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(frame.Header)+1)
		copy(row, r.Cells)
		setTime(row, in, r.CheckIn)
		setTime(row, out, r.CheckOut)
		row[len(row)-1] = r.Month
		rows = append(rows, row)
	}
	return rows
}

func setTime(row []string, idx int, ts *time.Time) {
	if idx < 0 || ts == nil {
		return
	}
	row[idx] = ts.Format(TimestampLayout)
}

// Write encodes the records in the requested format.
func Write(w io.Writer, format Format, frame *parking.Frame, records []parking.Record) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, frame, records)
	case FormatXLSX:
		return WriteXLSX(w, frame, records)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Bytes is Write into a fresh buffer.
func Bytes(format Format, frame *parking.Frame, records []parking.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, format, frame, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV writes a comma-separated UTF-8 export with a header row.
func WriteCSV(w io.Writer, frame *parking.Frame, records []parking.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(frame)); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	if err := cw.WriteAll(Rows(frame, records)); err != nil {
		return fmt.Errorf("export: write rows: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook with a header row.
func WriteXLSX(w io.Writer, frame *parking.Frame, records []parking.Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("export: stream writer: %w", err)
	}
	if err := sw.SetRow("A1", toCells(Header(frame))); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i, row := range Rows(frame, records) {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cellRef, toCells(row)); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func toCells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
