package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/parkstats/internal/app"
	"github.com/vinodismyname/parkstats/internal/config"
	"github.com/vinodismyname/parkstats/internal/httpapi"
	"github.com/vinodismyname/parkstats/internal/registry"
	"github.com/vinodismyname/parkstats/internal/runtime"
	"github.com/vinodismyname/parkstats/internal/telemetry"
	"github.com/vinodismyname/parkstats/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio bool
		useHTTP  bool
		addr     string
		envFile  string
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run the MCP server over stdio transport")
	flag.BoolVar(&useHTTP, "http", false, "Serve the HTTP API, metrics and streamable MCP endpoint")
	flag.StringVar(&addr, "addr", "", "HTTP listen address (overrides PARKSTATS_SERVER_ADDR)")
	flag.StringVar(&envFile, "env", "", "Optional .env file (default ./.env)")
	flag.Parse()

	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	logger := cfg.Logger("parkstats-server")
	ctx := logger.WithContext(context.Background())

	comps, err := app.Build(cfg, logger, true)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	runtimeMW := runtime.NewMiddleware(comps.Controller)
	toolRegistry := registry.New()
	writeFilter := registry.NewWriteToolFilter(cfg.EnableWrites)
	hooks := telemetry.NewHooks(logger, comps.Metrics)

	srv := server.NewMCPServer(
		"Parking Report Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks.Server()),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return writeFilter.FilterTools(ctx, tools) }),
	)

	registry.RegisterParkingTools(srv, toolRegistry, comps.Service, comps.Limits, comps.Security)

	toolContextSize := toolRegistry.ModelContextSize(cfg.ModelName)

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Strs("tools", toolRegistry.Names()).
		Int("model_context_size", toolContextSize).
		Bool("writes_enabled", cfg.EnableWrites).
		Bool("stdio", useStdio).
		Bool("http", useHTTP).
		Msg("server bootstrap configured")

	switch {
	case useStdio:
		if err := server.ServeStdio(srv); err != nil {
			// Use stderr for transport errors so clients don't misinterpret output
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	case useHTTP:
		api := httpapi.New(httpapi.Deps{
			Service: comps.Service,
			Guard:   runtimeMW,
			Metrics: comps.Metrics,
			Logger:  logger,
			Limits:  comps.Limits,
			MCP:     server.NewStreamableHTTPServer(srv),
		})
		if err := serveHTTP(ctx, cfg.Server, api.Routes()); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			os.Exit(1)
		}
	default:
		// If no transport flags provided, print usage and exit non-zero
		fmt.Fprintln(os.Stderr, "no transport selected; use --stdio or --http")
		os.Exit(2)
	}
}

// serveHTTP runs the listener until SIGINT/SIGTERM, then drains in-flight requests.
func serveHTTP(ctx context.Context, cfg config.ServerConfig, handler http.Handler) error {
	logger := zerolog.Ctx(ctx)
	httpSrv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
