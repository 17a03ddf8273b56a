package app

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/parkstats/internal/config"
)

func TestBuild_RequiresAllowList(t *testing.T) {
	_, err := Build(config.Config{}, zerolog.Nop(), true)
	require.ErrorContains(t, err, "PARKSTATS_ALLOWED_DIRS")

	comps, err := Build(config.Config{}, zerolog.Nop(), false)
	require.NoError(t, err)
	require.NotNil(t, comps.Service)
	require.False(t, comps.Service.PDFEnabled())
}

func TestBuild_WiresConfiguredLimits(t *testing.T) {
	cfg := config.Config{AllowedDirs: t.TempDir()}
	cfg.Limits.MaxFilesPerRun = 3
	cfg.Report.PDF = true

	comps, err := Build(cfg, zerolog.Nop(), true)
	require.NoError(t, err)
	require.Equal(t, 3, comps.Limits.MaxFilesPerRun)
	require.Len(t, comps.Security.AllowedDirectories(), 1)
	require.True(t, comps.Service.PDFEnabled())
}
