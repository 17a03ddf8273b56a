// Package config loads runtime settings from PARKSTATS_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/parkstats/internal/runtime"
)

// Prefix is the environment variable namespace.
const Prefix = "PARKSTATS"

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Limits   LimitsConfig   `envconfig:"LIMITS"`
	Analysis AnalysisConfig `envconfig:"ANALYSIS"`
	Report   ReportConfig   `envconfig:"REPORT"`
	Logging  LoggingConfig  `envconfig:"LOG"`

	// AllowedDirs is an os.PathListSeparator-separated list of directories
	// path-based tools may read from and write to.
	AllowedDirs  string `envconfig:"ALLOWED_DIRS"`
	EnableWrites bool   `envconfig:"ENABLE_WRITES" default:"false"`
	// ModelName sizes tool discovery output for the target client model.
	ModelName string `envconfig:"MODEL_NAME" default:"gpt-4o"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"90s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LimitsConfig mirrors runtime.Limits.
type LimitsConfig struct {
	MaxConcurrentRequests int           `envconfig:"MAX_CONCURRENT_REQUESTS" default:"8"`
	MaxOpenWorkbooks      int           `envconfig:"MAX_OPEN_WORKBOOKS" default:"4"`
	MaxUploadBytes        int64         `envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`
	MaxFilesPerRun        int           `envconfig:"MAX_FILES_PER_RUN" default:"12"`
	PreviewRowLimit       int           `envconfig:"PREVIEW_ROW_LIMIT" default:"25"`
	OperationTimeout      time.Duration `envconfig:"OPERATION_TIMEOUT" default:"60s"`
	AcquireTimeout        time.Duration `envconfig:"ACQUIRE_TIMEOUT" default:"2s"`
}

// AnalysisConfig tunes the pipeline.
type AnalysisConfig struct {
	// HistogramBins defaults to the 20 bins every report shows.
	HistogramBins   int     `envconfig:"HISTOGRAM_BINS" default:"20"`
	OutlierQuantile float64 `envconfig:"OUTLIER_QUANTILE" default:"0.95"`
}

// ReportConfig controls chart size, template, logo and PDF printing.
type ReportConfig struct {
	TemplatePath string        `envconfig:"TEMPLATE"`
	LogoPath     string        `envconfig:"LOGO"`
	ChartWidth   int           `envconfig:"CHART_WIDTH" default:"1024"`
	ChartHeight  int           `envconfig:"CHART_HEIGHT" default:"512"`
	PDF          bool          `envconfig:"PDF" default:"true"`
	ChromePath   string        `envconfig:"CHROME_PATH"`
	PDFTimeout   time.Duration `envconfig:"PDF_TIMEOUT" default:"30s"`
}

// LoggingConfig selects zerolog level and output.
type LoggingConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Pretty bool   `envconfig:"PRETTY" default:"false"`
}

// Load reads an optional .env file from envFile (or ./.env when empty) and
// then processes the environment. Variables already set win over the file.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges envconfig cannot express.
func (c Config) Validate() error {
	var problems []string
	if c.Limits.MaxConcurrentRequests <= 0 {
		problems = append(problems, "LIMITS_MAX_CONCURRENT_REQUESTS must be positive")
	}
	if c.Limits.MaxOpenWorkbooks <= 0 {
		problems = append(problems, "LIMITS_MAX_OPEN_WORKBOOKS must be positive")
	}
	if c.Limits.MaxUploadBytes <= 0 {
		problems = append(problems, "LIMITS_MAX_UPLOAD_BYTES must be positive")
	}
	if c.Analysis.HistogramBins <= 0 {
		problems = append(problems, "ANALYSIS_HISTOGRAM_BINS must be positive")
	}
	if c.Analysis.OutlierQuantile <= 0 || c.Analysis.OutlierQuantile >= 1 {
		problems = append(problems, "ANALYSIS_OUTLIER_QUANTILE must be in (0,1)")
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, "LOG_LEVEL is not a zerolog level")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RuntimeLimits converts the limits section into runtime.Limits.
func (c Config) RuntimeLimits() runtime.Limits {
	l := runtime.NewLimits(c.Limits.MaxConcurrentRequests, c.Limits.MaxOpenWorkbooks)
	if c.Limits.MaxUploadBytes > 0 {
		l.MaxUploadBytes = c.Limits.MaxUploadBytes
	}
	if c.Limits.MaxFilesPerRun > 0 {
		l.MaxFilesPerRun = c.Limits.MaxFilesPerRun
	}
	if c.Limits.PreviewRowLimit > 0 {
		l.PreviewRowLimit = c.Limits.PreviewRowLimit
	}
	if c.Limits.OperationTimeout > 0 {
		l.OperationTimeout = c.Limits.OperationTimeout
	}
	if c.Limits.AcquireTimeout > 0 {
		l.AcquireRequestTimeout = c.Limits.AcquireTimeout
	}
	return l
}

// Logger builds the process logger. Pretty output goes to stderr so stdio
// transports keep stdout clean.
func (c Config) Logger(service string) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := zerolog.New(os.Stderr)
	if c.Logging.Pretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return out.Level(level).With().Timestamp().Str("service", service).Logger()
}

// ReadLogo returns the configured logo bytes, or nil when unset.
func (c Config) ReadLogo() ([]byte, error) {
	if c.Report.LogoPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Report.LogoPath)
	if err != nil {
		return nil, fmt.Errorf("config: read logo: %w", err)
	}
	return data, nil
}
