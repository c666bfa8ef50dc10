package mcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/survey-pdf-processor/internal/config"
	"github.com/a3tai/survey-pdf-processor/internal/descriptions"
	"github.com/a3tai/survey-pdf-processor/internal/pdf"
	"github.com/a3tai/survey-pdf-processor/internal/processor"
	"github.com/a3tai/survey-pdf-processor/internal/security"
)

// Runner processes one survey PDF into an output table
type Runner interface {
	Run(ctx context.Context, inputPath, outputPath string) (*processor.Summary, error)
}

// Server exposes survey processing as MCP tools
type Server struct {
	config    *config.Config
	validator *pdf.Validator
	runner    Runner
	paths     *security.PathValidator
	mcpServer *server.MCPServer
	logger    *logrus.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, validator *pdf.Validator, runner Runner, logger *logrus.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if validator == nil {
		return nil, fmt.Errorf("validator cannot be nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner cannot be nil")
	}
	if logger == nil {
		logger = logrus.New()
	}

	paths, err := security.NewPathValidator(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("invalid base directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		validator: validator,
		runner:    runner,
		paths:     paths,
		mcpServer: mcpServer,
		logger:    logger,
	}
	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	surveyProcessTool := mcp.NewTool(
		descriptions.SurveyProcessTool,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.SurveyProcessTool)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the scanned survey PDF"),
		),
		mcp.WithString("output",
			mcp.Description("Output file path (.csv or .xlsx); uses the configured output when empty"),
		),
	)
	s.mcpServer.AddTool(surveyProcessTool, s.handleSurveyProcess)

	pdfValidateFileTool := mcp.NewTool(
		descriptions.PDFValidateFileTool,
		mcp.WithDescription(descriptions.GetToolDescription(descriptions.PDFValidateFileTool)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(pdfValidateFileTool, s.handlePDFValidateFile)
}

func (s *Server) handleSurveyProcess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if path, err = s.paths.Resolve(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	output := request.GetString("output", "")
	if output == "" {
		output = s.config.OutputPath
	}
	if output, err = s.paths.Resolve(output); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.logger.WithFields(logrus.Fields{"path": path, "output": output}).Info("survey_process called")

	summary, err := s.runner.Run(ctx, path, output)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSummary(summary)), nil
}

func (s *Server) handlePDFValidateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if path, err = s.paths.Resolve(path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var responseText string
	pages, err := s.validator.ValidatePDF(path)
	if err != nil {
		responseText = fmt.Sprintf("PDF validation failed for %s: %s", path, err)
	} else {
		responseText = fmt.Sprintf("PDF file %s is valid and readable (%d pages)", path, pages)
		if size := s.config.PagesPerRecord; size > 0 && pages%size != 0 {
			responseText += fmt.Sprintf("\nNote: %d pages is not a multiple of %d pages per survey", pages, size)
		}
	}

	return mcp.NewToolResultText(responseText), nil
}

func formatSummary(summary *processor.Summary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Processed %s\n", summary.InputPath)
	fmt.Fprintf(&sb, "Run ID: %s\n", summary.RunID)
	fmt.Fprintf(&sb, "Pages: %d\n", summary.Pages)
	fmt.Fprintf(&sb, "Surveys: %d\n", summary.Records)
	fmt.Fprintf(&sb, "Output: %s\n", summary.OutputPath)

	if len(summary.FailedPages) > 0 {
		fmt.Fprintf(&sb, "Failed pages: %v\n", summary.FailedPages)
	}
	if len(summary.Dropped) > 0 {
		fmt.Fprintf(&sb, "Dropped pages: %v\n", summary.Dropped)
	}
	if len(summary.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}
	return sb.String()
}

// Run serves MCP over stdin/stdout until ctx is done or stdin closes
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve serves MCP over the given streams
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	log := s.logger.WithFields(logrus.Fields{
		"server": s.config.ServerName,
		"tools":  strings.Join(descriptions.GetAllToolNames(), ","),
	})
	if base := s.paths.BaseDir(); base != "" {
		log = log.WithField("base_dir", base)
	}
	log.Info("Starting MCP server in stdio mode")

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
