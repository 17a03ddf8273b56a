package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/xuri/excelize/v2"
)

func sampleFrame(t *testing.T) (*parking.Frame, []parking.Record) {
	t.Helper()
	a, err := parking.Run([]parking.Dataset{{
		Name:   "lot.csv",
		Header: []string{"CheckIn_Date", "CheckOut_Date", "Parking_Cost", "Plate"},
		Rows: [][]string{
			{"45292.5", "2024-01-01T14:00:00Z", "10", "ABC"},
			{"2024-02-03 08:00", "", "x", "XYZ"},
			{"bad", "", "3", "NOPE"},
		},
	}}, parking.Options{})
	require.NoError(t, err)
	return a.Frame, a.Select(parking.Selection{})
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" XLSX ")
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("ods")
	require.ErrorIs(t, err, ErrUnknownFormat)

	require.Equal(t, "datos_filtrados_2024-01.csv", FormatCSV.Filename(parking.Selection{Month: "2024-01"}))
}

func TestWriteCSV(t *testing.T) {
	frame, recs := sampleFrame(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, frame, recs))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"CheckIn_Date", "CheckOut_Date", "Parking_Cost", "Plate", "Month"},
		{"2024-01-01 12:00:00", "2024-01-01 14:00:00", "10", "ABC", "2024-01"},
		{"2024-02-03 08:00:00", "", "x", "XYZ", "2024-02"},
	}, rows)
}

func TestWriteXLSX(t *testing.T) {
	frame, recs := sampleFrame(t)
	data, err := Bytes(FormatXLSX, frame, recs)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Month", rows[0][4])
	require.Equal(t, "2024-02", rows[2][4])
}
