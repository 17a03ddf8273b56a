package parking

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical column names of a parking export.
const (
	ColCheckIn  = "CheckIn_Date"
	ColCheckOut = "CheckOut_Date"
	ColCost     = "Parking_Cost"
	ColSource   = "SourceFile"
	ColMonth    = "Month"
)

var (
	// ErrNoDatasets is returned when the pipeline is invoked without input.
	ErrNoDatasets = errors.New("parking: no datasets provided")
	// ErrMissingColumn indicates that no merged dataset carries a required column.
	ErrMissingColumn = errors.New("parking: required column missing")
)

// RequiredColumns must be present in at least one input dataset.
var RequiredColumns = []string{ColCheckIn, ColCost}

// Dataset is one decoded upload: a header row and cell text aligned to it.
type Dataset struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Warning reports a recoverable problem with one input dataset.
type Warning struct {
	Source  string   `json:"source"`
	Missing []string `json:"missing_columns,omitempty"`
	Message string   `json:"message"`
}

// Row is a merged row tagged with the dataset it came from.
type Row struct {
	Source string
	Cells  []string
}

// Table is the concatenation of every input dataset under a unified header.
type Table struct {
	Header      []string
	Rows        []Row
	MultiSource bool
}

// Index returns the position of a column in the merged header or -1.
func (t *Table) Index(column string) int {
	return columnIndex(t.Header, column)
}

// Merge concatenates datasets under a unified header in first-seen column order.
// Column names are matched case-insensitively after trimming, and the canonical
// spelling is used for known columns. A dataset lacking a required column yields
// a Warning; its rows are still merged with the columns it does have.
func Merge(datasets []Dataset) (*Table, []Warning, error) {
	if len(datasets) == 0 {
		return nil, nil, ErrNoDatasets
	}

	t := &Table{MultiSource: len(datasets) > 1}
	positions := map[string]int{}
	var warnings []Warning

	for _, ds := range datasets {
		// Map each source column to its merged position; duplicates keep the first.
		mapping := make([]int, len(ds.Header))
		seen := map[string]bool{}
		for i, h := range ds.Header {
			key := columnKey(h)
			if key == "" || seen[key] {
				mapping[i] = -1
				continue
			}
			seen[key] = true
			pos, ok := positions[key]
			if !ok {
				pos = len(t.Header)
				positions[key] = pos
				t.Header = append(t.Header, canonicalName(h))
			}
			mapping[i] = pos
		}

		var missing []string
		for _, col := range RequiredColumns {
			if !seen[columnKey(col)] {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			warnings = append(warnings, Warning{
				Source:  ds.Name,
				Missing: missing,
				Message: fmt.Sprintf("%s is missing expected columns: %s", ds.Name, strings.Join(missing, ", ")),
			})
		}

		for _, cells := range ds.Rows {
			if blankRow(cells) {
				continue
			}
			t.Rows = append(t.Rows, Row{Source: ds.Name, Cells: project(cells, mapping)})
		}
	}

	// Rows merged before a later dataset introduced new columns are padded here.
	for i := range t.Rows {
		if n := len(t.Rows[i].Cells); n < len(t.Header) {
			t.Rows[i].Cells = append(t.Rows[i].Cells, make([]string, len(t.Header)-n)...)
		}
	}

	if t.MultiSource && t.Index(ColSource) < 0 {
		t.Header = append(t.Header, ColSource)
		for i := range t.Rows {
			t.Rows[i].Cells = append(t.Rows[i].Cells, t.Rows[i].Source)
		}
	}
	return t, warnings, nil
}

func project(cells []string, mapping []int) []string {
	width := 0
	for _, pos := range mapping {
		if pos+1 > width {
			width = pos + 1
		}
	}
	out := make([]string, width)
	for i, pos := range mapping {
		if pos < 0 || i >= len(cells) {
			continue
		}
		out[pos] = strings.TrimSpace(cells[i])
	}
	return out
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func columnKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func canonicalName(name string) string {
	key := columnKey(name)
	for _, c := range []string{ColCheckIn, ColCheckOut, ColCost, ColSource} {
		if key == columnKey(c) {
			return c
		}
	}
	return strings.TrimSpace(name)
}

func columnIndex(header []string, column string) int {
	key := columnKey(column)
	for i, h := range header {
		if columnKey(h) == key {
			return i
		}
	}
	return -1
}
