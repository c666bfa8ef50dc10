package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/survey-pdf-processor/internal/config"
	"github.com/a3tai/survey-pdf-processor/internal/pdf"
	"github.com/a3tai/survey-pdf-processor/internal/pdf/pdftest"
	"github.com/a3tai/survey-pdf-processor/internal/processor"
)

type fakeRunner struct {
	summary   *processor.Summary
	err       error
	gotInput  string
	gotOutput string
}

func (r *fakeRunner) Run(ctx context.Context, inputPath, outputPath string) (*processor.Summary, error) {
	r.gotInput = inputPath
	r.gotOutput = outputPath
	if r.err != nil {
		return nil, r.err
	}
	return r.summary, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.ServerName = "test-server"
	cfg.Version = "1.0.0"
	cfg.OutputPath = "default.csv"
	return cfg
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T, runner Runner) *Server {
	t.Helper()
	server, err := NewServer(testConfig(), pdf.NewValidator(0), runner, quietLogger())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return server
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestNewServer(t *testing.T) {
	cfg := testConfig()
	validator := pdf.NewValidator(0)
	runner := &fakeRunner{}

	tests := []struct {
		name      string
		cfg       *config.Config
		validator *pdf.Validator
		runner    Runner
		wantErr   bool
	}{
		{"valid", cfg, validator, runner, false},
		{"nil config", nil, validator, runner, true},
		{"nil validator", cfg, nil, runner, true},
		{"nil runner", cfg, validator, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.cfg, tt.validator, tt.runner, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if server.mcpServer == nil {
				t.Error("mcpServer should not be nil")
			}
		})
	}
}

func TestServer_HandleSurveyProcess(t *testing.T) {
	runner := &fakeRunner{summary: &processor.Summary{
		RunID:       "run-1",
		InputPath:   "/scans/in.pdf",
		OutputPath:  "/tmp/out.xlsx",
		Pages:       4,
		Records:     2,
		FailedPages: []int{3},
		Dropped:     []int{},
		Warnings:    []string{"record 2: page 3 failed: timeout"},
	}}
	server := newTestServer(t, runner)

	result, err := server.handleSurveyProcess(context.Background(), callRequest(map[string]interface{}{
		"path":   "/scans/in.pdf",
		"output": "/tmp/out.xlsx",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", extractTextFromResult(result))
	}

	text := extractTextFromResult(result)
	for _, want := range []string{"Surveys: 2", "Pages: 4", "Failed pages: [3]", "page 3 failed", "/tmp/out.xlsx"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in result, got: %s", want, text)
		}
	}
	if strings.Contains(text, "Dropped pages") {
		t.Errorf("did not expect dropped pages line, got: %s", text)
	}
	if runner.gotInput != "/scans/in.pdf" || runner.gotOutput != "/tmp/out.xlsx" {
		t.Errorf("runner called with %q, %q", runner.gotInput, runner.gotOutput)
	}
}

func TestServer_HandleSurveyProcess_DefaultOutput(t *testing.T) {
	runner := &fakeRunner{summary: &processor.Summary{}}
	server := newTestServer(t, runner)

	if _, err := server.handleSurveyProcess(context.Background(), callRequest(map[string]interface{}{
		"path": "/scans/in.pdf",
	})); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	want, _ := filepath.Abs("default.csv")
	if runner.gotOutput != want {
		t.Errorf("expected configured output %q, got %q", want, runner.gotOutput)
	}
}

func TestServer_BaseDirConfinesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := testConfig()
	cfg.BaseDir = base

	runner := &fakeRunner{summary: &processor.Summary{}}
	server, err := NewServer(cfg, pdf.NewValidator(0), runner, quietLogger())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
	}{
		{"inside", map[string]interface{}{"path": "in.pdf", "output": "out.csv"}, false},
		{"input outside", map[string]interface{}{"path": "../in.pdf", "output": "out.csv"}, true},
		{"output outside", map[string]interface{}{"path": "in.pdf", "output": "/etc/out.csv"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner.gotInput = ""
			result, err := server.handleSurveyProcess(context.Background(), callRequest(tt.args))
			if err != nil {
				t.Fatalf("handler failed: %v", err)
			}
			if result.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v (%s)", result.IsError, tt.wantErr, extractTextFromResult(result))
			}
			if tt.wantErr && runner.gotInput != "" {
				t.Error("runner must not be called for a rejected path")
			}
		})
	}

	result, _ := server.handlePDFValidateFile(context.Background(), callRequest(map[string]interface{}{
		"path": "/etc/passwd.pdf",
	}))
	if !result.IsError {
		t.Error("expected validate outside base dir to be rejected")
	}

	cfg.BaseDir = filepath.Join(base, "missing")
	if _, err := NewServer(cfg, pdf.NewValidator(0), runner, quietLogger()); err == nil {
		t.Error("expected error for missing base directory")
	}
}

func TestServer_HandleSurveyProcess_Errors(t *testing.T) {
	server := newTestServer(t, &fakeRunner{err: errors.New("extraction failed for every page")})

	result, err := server.handleSurveyProcess(context.Background(), callRequest(map[string]interface{}{
		"path": "/scans/in.pdf",
	}))
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error result")
	}
	if !strings.Contains(extractTextFromResult(result), "every page") {
		t.Errorf("unexpected error text: %s", extractTextFromResult(result))
	}

	result, _ = server.handleSurveyProcess(context.Background(), callRequest(map[string]interface{}{}))
	if !result.IsError {
		t.Error("expected missing path to be a tool error")
	}
}

func TestServer_HandlePDFValidateFile(t *testing.T) {
	server := newTestServer(t, &fakeRunner{})

	valid := pdftest.ScannedPDF(t, 3)
	missing := filepath.Join(t.TempDir(), "missing.pdf")

	tests := []struct {
		name string
		path string
		want []string
	}{
		{"valid with odd pages", valid, []string{"is valid and readable (3 pages)", "not a multiple of 2"}},
		{"missing file", missing, []string{"PDF validation failed", "file does not exist"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := server.handlePDFValidateFile(context.Background(), callRequest(map[string]interface{}{
				"path": tt.path,
			}))
			if err != nil {
				t.Fatalf("handler failed: %v", err)
			}
			text := extractTextFromResult(result)
			for _, want := range tt.want {
				if !strings.Contains(text, want) {
					t.Errorf("expected %q in result, got: %s", want, text)
				}
			}
		})
	}
}

func TestServer_ServeListsTools(t *testing.T) {
	base := t.TempDir()
	cfg := testConfig()
	cfg.BaseDir = base

	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

	server, err := NewServer(cfg, pdf.NewValidator(0), &fakeRunner{}, logger)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	defer inW.Close()
	defer outW.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx, inR, outW)
	}()

	lines := bufio.NewScanner(outR)
	send := func(msg string) string {
		t.Helper()
		if _, err := io.WriteString(inW, msg+"\n"); err != nil {
			t.Fatalf("write request: %v", err)
		}
		if !lines.Scan() {
			t.Fatalf("no response: %v", lines.Err())
		}
		return lines.Text()
	}

	send(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`)
	resp := send(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)

	for _, tool := range []string{"survey_process", "pdf_validate_file"} {
		if !strings.Contains(resp, tool) {
			t.Errorf("expected %s in tools/list response, got: %s", tool, resp)
		}
	}

	cancel()
	inW.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned error after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("server did not stop after cancel")
	}

	startup := logs.String()
	if !strings.Contains(startup, "tools=\"pdf_validate_file,survey_process\"") {
		t.Errorf("startup log missing tool list: %s", startup)
	}
	if !strings.Contains(startup, "base_dir=") {
		t.Errorf("startup log missing base_dir: %s", startup)
	}
}

func extractTextFromResult(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}

	for _, content := range result.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			return textContent.Text
		}
		if textContentPtr, ok := content.(*mcp.TextContent); ok {
			return textContentPtr.Text
		}
	}
	return ""
}
