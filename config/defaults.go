package config

import "time"

// Default runtime limits and report parameters for parkstats.
// They can be overridden through PARKSTATS_* environment variables
// (see internal/config) and are referenced by internal/runtime.

const (
	// Concurrency
	DefaultMaxConcurrentRequests = 8
	DefaultMaxOpenWorkbooks      = 4

	// Payload and row limits
	DefaultMaxUploadBytes  = 32 * 1024 * 1024 // 32MB per file
	DefaultMaxFilesPerRun  = 12
	DefaultPreviewRowLimit = 25
)

const (
	// Timeouts
	DefaultOperationTimeout      = 60 * time.Second
	DefaultAcquireRequestTimeout = 2 * time.Second
	DefaultPDFTimeout            = 30 * time.Second
)

const (
	// Analytics
	DefaultHistogramBins   = 20
	DefaultOutlierQuantile = 0.95
)

const (
	// Charts
	DefaultChartWidth  = 1024
	DefaultChartHeight = 512
)
