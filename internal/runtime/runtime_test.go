package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/parkstats/config"
)

func TestNewLimits_Defaults(t *testing.T) {
	l := NewLimits(0, -1)
	require.Equal(t, config.DefaultMaxConcurrentRequests, l.MaxConcurrentRequests)
	require.Equal(t, config.DefaultMaxOpenWorkbooks, l.MaxOpenWorkbooks)
	require.Equal(t, int64(config.DefaultMaxUploadBytes), l.MaxUploadBytes)
	require.Equal(t, config.DefaultMaxFilesPerRun, l.MaxFilesPerRun)
}

func TestController_WorkbookSlotsBlockWhenExhausted(t *testing.T) {
	limits := NewLimits(1, 1)
	ctrl := NewController(limits)
	require.Equal(t, limits, ctrl.LimitsSnapshot())

	require.NoError(t, ctrl.AcquireWorkbook(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, ctrl.AcquireWorkbook(ctx), context.DeadlineExceeded)

	ctrl.ReleaseWorkbook()
	require.NoError(t, ctrl.AcquireWorkbook(context.Background()))
	ctrl.ReleaseWorkbook()

	require.NoError(t, ctrl.AcquireRequest(context.Background()))
	ctrl.ReleaseRequest()
}
