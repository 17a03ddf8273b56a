package charts

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/parkstats/internal/parking"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleAnalysis(t *testing.T) *parking.Analysis {
	t.Helper()
	a, err := parking.Run([]parking.Dataset{{
		Name:   "lot.csv",
		Header: []string{"CheckIn_Date", "Parking_Cost"},
		Rows: [][]string{
			{"2024-01-01 08:00", "10"},
			{"2024-01-15 09:00", "20"},
			{"2024-02-01 10:00", "10"},
		},
	}}, parking.Options{})
	require.NoError(t, err)
	return a
}

func TestRenderAll_ProducesPNGs(t *testing.T) {
	set, err := RenderAll(context.Background(), sampleAnalysis(t), Size{Width: 640, Height: 320})
	require.NoError(t, err)
	for _, png := range [][]byte{set.Cars, set.Fees, set.Histogram} {
		require.True(t, bytes.HasPrefix(png, pngMagic))
	}
}

func TestRenderBar_EmptySeries(t *testing.T) {
	png, err := RenderBar(Series{Title: "vacío"}, Size{})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestSeriesLabels(t *testing.T) {
	a := sampleAnalysis(t)
	cars := MonthlyCountsSeries(a.MonthlyCounts)
	require.Equal(t, []Bar{{Label: "2024-01", Value: 2}, {Label: "2024-02", Value: 1}}, cars.Bars)

	fees := FeeDistributionSeries(a.FeeDistribution)
	require.Equal(t, "10.00", fees.Bars[0].Label)
	require.Equal(t, 2.0, fees.Bars[0].Value)

	require.Len(t, HistogramSeries(a.Histogram).Bars, 20)
}

func TestDataURI(t *testing.T) {
	require.Empty(t, DataURI(nil))
	uri := DataURI(pngMagic)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
}
