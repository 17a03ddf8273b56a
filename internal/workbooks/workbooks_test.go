package workbooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/parkstats/internal/parking"
	"github.com/xuri/excelize/v2"
)

// fakeGate implements WorkbookGate for tests with counters.
type fakeGate struct {
	acquireErr error
	acquires   atomic.Int64
	releases   atomic.Int64
}

func (g *fakeGate) AcquireWorkbook(ctx context.Context) error {
	g.acquires.Add(1)
	return g.acquireErr
}
func (g *fakeGate) ReleaseWorkbook() { g.releases.Add(1) }

func createParkingWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	sh := "Sheet1"
	require.NoError(t, f.SetSheetRow(sh, "A1", &[]string{"CheckIn_Date", "CheckOut_Date", "Parking_Cost"}))
	// Real exports store timestamps as date-formatted serials.
	in := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	out := time.Date(2024, 1, 5, 12, 30, 0, 0, time.UTC)
	require.NoError(t, f.SetCellValue(sh, "A2", in))
	require.NoError(t, f.SetCellValue(sh, "B2", out))
	require.NoError(t, f.SetCellValue(sh, "C2", 12.5))
	require.NoError(t, f.SetSheetRow(sh, "A3", &[]string{"2024-02-01 09:00", "", "abc"}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf.Bytes()
}

func TestLoadBytes_XLSX(t *testing.T) {
	gate := &fakeGate{}
	l := NewLoader(gate, nil, 0, 0)

	ds, err := l.LoadBytes(context.Background(), "lot.xlsx", createParkingWorkbook(t))
	require.NoError(t, err)
	require.Equal(t, "lot.xlsx", ds.Name)
	require.Equal(t, []string{"CheckIn_Date", "CheckOut_Date", "Parking_Cost"}, ds.Header)
	require.Len(t, ds.Rows, 2)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, int64(1), gate.releases.Load())

	// Serial dates decode through the pipeline's timestamp parser.
	a, err := parking.Run([]parking.Dataset{ds}, parking.Options{})
	require.NoError(t, err)
	require.Equal(t, 2, a.Quality.ValidRows)
	require.Equal(t, []string{"2024-01", "2024-02"}, a.Months)
	require.NotNil(t, a.MeanDuration)
	require.InDelta(t, 2.5, *a.MeanDuration, 1e-6)
	require.Equal(t, 1, a.Quality.MissingFees)
}

func TestLoadBytes_CSV(t *testing.T) {
	l := NewLoader(nil, nil, 0, 0)
	data := []byte("\xef\xbb\xbfCheckIn_Date,Parking_Cost\n2024-01-01 08:00,5\n2024-01-02 09:00,\"1,000\"\n")

	ds, err := l.LoadBytes(context.Background(), "lot.csv", data)
	require.NoError(t, err)
	require.Equal(t, []string{"CheckIn_Date", "Parking_Cost"}, ds.Header)
	require.Equal(t, [][]string{{"2024-01-01 08:00", "5"}, {"2024-01-02 09:00", "1,000"}}, ds.Rows)
}

func TestLoadBytes_CSVSemicolon(t *testing.T) {
	l := NewLoader(nil, nil, 0, 0)
	ds, err := l.LoadBytes(context.Background(), "lot.csv", []byte("CheckIn_Date;Parking_Cost\n2024-01-01;5,5\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-01", "5,5"}, ds.Rows[0])

	eu, err := l.LoadBytes(context.Background(), "eu.csv",
		[]byte("CheckIn_Date;Parking_Cost\n2024-01-01 10:00;10,50\n2024-01-02 10:00;2,75\n"))
	require.NoError(t, err)
	a, err := parking.Run([]parking.Dataset{eu}, parking.Options{})
	require.NoError(t, err)
	// Decimal commas are not thousands separators; those fees stay missing.
	require.Equal(t, 2, a.Quality.MissingFees)
	require.Nil(t, a.MeanFee)
}

func TestLoadBytes_Errors(t *testing.T) {
	gate := &fakeGate{}
	l := NewLoader(gate, nil, 8, 0)

	_, err := l.LoadBytes(context.Background(), "big.csv", []byte("0123456789"))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = l.LoadBytes(context.Background(), "notes.txt", []byte("x"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	// Rejections before decoding never touch the gate.
	require.Equal(t, int64(0), gate.acquires.Load())

	l = NewLoader(gate, nil, 0, 0)
	_, err = l.LoadBytes(context.Background(), "empty.csv", nil)
	require.ErrorIs(t, err, ErrEmptySheet)
	require.Equal(t, int64(1), gate.releases.Load())

	_, err = l.LoadBytes(context.Background(), "broken.xlsx", []byte("not a zip"))
	require.ErrorIs(t, err, ErrCorrupt)
	require.Equal(t, gate.acquires.Load(), gate.releases.Load())
}

func TestLoadBytes_GateBusy(t *testing.T) {
	gate := &fakeGate{acquireErr: context.DeadlineExceeded}
	l := NewLoader(gate, nil, 0, 0)

	_, err := l.LoadBytes(context.Background(), "lot.csv", []byte("a,b\n"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, int64(0), gate.releases.Load())
}

type denyValidator struct{}

func (denyValidator) ValidateOpenPath(string) (string, error) { return "", fmt.Errorf("denied") }

func TestLoadPath_ValidatorDenied(t *testing.T) {
	gate := &fakeGate{}
	l := NewLoader(gate, denyValidator{}, 0, 0)

	_, err := l.LoadPath(context.Background(), "ok.xlsx")
	require.Error(t, err)
	require.Equal(t, int64(0), gate.acquires.Load())
}

func TestLoadPaths_PreservesOrderAndDedupesNames(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a", "lot.csv")
	second := filepath.Join(dir, "b", "lot.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(first), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(second), 0o755))
	require.NoError(t, os.WriteFile(first, []byte("CheckIn_Date,Parking_Cost\n2024-01-01,1\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("CheckIn_Date,Parking_Cost\n2024-02-01,2\n"), 0o644))

	l := NewLoader(nil, nil, 0, 0)
	out, err := l.LoadPaths(context.Background(), []string{first, second})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "lot.csv", out[0].Name)
	require.Equal(t, "lot.csv (2)", out[1].Name)
	require.Equal(t, "2024-02-01", out[1].Rows[0][0])
}

func TestLoadAll_TooManyFiles(t *testing.T) {
	l := NewLoader(nil, nil, 0, 0)
	uploads := make([]Upload, l.maxFiles+1)
	_, err := l.LoadAll(context.Background(), uploads)
	require.ErrorIs(t, err, ErrTooManyFiles)
}
