package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 20, cfg.Analysis.HistogramBins)
	require.InDelta(t, 0.95, cfg.Analysis.OutlierQuantile, 1e-12)
	require.False(t, cfg.EnableWrites)

	l := cfg.RuntimeLimits()
	require.Equal(t, 8, l.MaxConcurrentRequests)
	require.Equal(t, int64(32<<20), l.MaxUploadBytes)
	require.Equal(t, 60*time.Second, l.OperationTimeout)
}

func TestLoad_EnvOverridesAndDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PARKSTATS_REPORT_CHART_WIDTH=640\nPARKSTATS_ENABLE_WRITES=true\n"), 0o644))
	t.Setenv("PARKSTATS_LIMITS_MAX_FILES_PER_RUN", "3")
	t.Cleanup(func() {
		_ = os.Unsetenv("PARKSTATS_REPORT_CHART_WIDTH")
		_ = os.Unsetenv("PARKSTATS_ENABLE_WRITES")
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)
	require.Equal(t, 640, cfg.Report.ChartWidth)
	require.True(t, cfg.EnableWrites)
	require.Equal(t, 3, cfg.RuntimeLimits().MaxFilesPerRun)
}

func TestLoad_RejectsBadQuantile(t *testing.T) {
	t.Setenv("PARKSTATS_ANALYSIS_OUTLIER_QUANTILE", "1.5")
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.ErrorContains(t, err, "OUTLIER_QUANTILE")
}
