package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/a3tai/survey-pdf-processor/internal/config"
	"github.com/a3tai/survey-pdf-processor/internal/llm"
	"github.com/a3tai/survey-pdf-processor/internal/mcp"
	"github.com/a3tai/survey-pdf-processor/internal/output"
	"github.com/a3tai/survey-pdf-processor/internal/pdf"
	"github.com/a3tai/survey-pdf-processor/internal/processor"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const (
	exitOK    = 0
	exitError = 1
)

// setupLogging builds the run logger. Logs go to stderr and, when a log
// file is configured, to that file as well.
func setupLogging(cfg *config.Config, stderr io.Writer) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)
	logger.SetReportCaller(cfg.IsDebug())

	if cfg.LogFile == "" {
		logger.SetOutput(stderr)
		return logger, nopCloser{}, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(stderr, f))
	return logger, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildProcessor assembles the pipeline from cfg
func buildProcessor(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*processor.Processor, func(), error) {
	renderer, err := pdf.NewRenderer(cfg.Renderer, pdf.RenderOptions{DPI: cfg.DPI})
	if err != nil {
		return nil, nil, err
	}

	client, err := llm.NewVisionClient(ctx, cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if c, ok := client.(io.Closer); ok {
			_ = c.Close()
		}
	}

	format, err := cfg.OutputFormat()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	writer, err := output.NewWriter(format)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	extractor := llm.NewFieldExtractor(client, llm.WithRateLimit(cfg.LLM.RateLimit))
	proc := processor.New(
		pdf.NewValidator(cfg.MaxFileSize),
		renderer,
		extractor,
		writer,
		processor.Options{Merge: cfg.MergeOptions(), Concurrency: cfg.Concurrency, PageTimeout: cfg.PageTimeout},
		logger,
	)
	return proc, cleanup, nil
}

// runProcessor handles cli mode: one PDF in, one table out
func runProcessor(ctx context.Context, cfg *config.Config, logger *logrus.Logger, stdout io.Writer) int {
	proc, cleanup, err := buildProcessor(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to set up processing")
		return exitError
	}
	defer cleanup()

	summary, err := proc.Run(ctx, cfg.InputPath, cfg.OutputPath)
	if err != nil {
		logger.WithError(err).Error("Processing failed")
		return exitError
	}

	fmt.Fprintf(stdout, "Processed %d survey(s) from %d page(s) into %s\n",
		summary.Records, summary.Pages, summary.OutputPath)
	if len(summary.FailedPages) > 0 {
		fmt.Fprintln(stdout, color.YellowString("Pages that could not be read: %v", summary.FailedPages))
	}
	if cfg.Preview > 0 {
		fmt.Fprintln(stdout)
		if err := output.Preview(stdout, summary.Table, cfg.Preview); err != nil {
			logger.WithError(err).Warn("Failed to print preview")
		}
	}
	return exitOK
}

// runStdioMode serves the MCP tools until stdin closes or ctx is done
func runStdioMode(ctx context.Context, cfg *config.Config, logger *logrus.Logger) int {
	proc, cleanup, err := buildProcessor(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to set up processing")
		return exitError
	}
	defer cleanup()

	server, err := mcp.NewServer(cfg, pdf.NewValidator(cfg.MaxFileSize), proc, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create MCP server")
		return exitError
	}

	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("Server error")
		return exitError
	}
	return exitOK
}

// run is main without the process exit, so tests can drive it
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	program := filepath.Base(os.Args[0])

	cfg, err := config.Load(program, args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", program)
		return exitError
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger, closer, err := setupLogging(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Logging setup error: %v\n", err)
		return exitError
	}
	defer closer.Close()

	logger.WithField("api_key", cfg.MaskedAPIKey()).Info("Using extraction credential")
	logger.Debugf("Starting with configuration: %s", cfg.String())

	if cfg.IsStdioMode() {
		return runStdioMode(ctx, cfg, logger)
	}
	return runProcessor(ctx, cfg, logger, stdout)
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion(os.Stdout)
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Survey PDF Processor\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
