package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/a3tai/survey-pdf-processor/internal/errors"
	"github.com/a3tai/survey-pdf-processor/internal/pdf"
)

// clearEnvVars unsets every variable Load may read for the test's duration
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SURVEY_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
		"SURVEY_PROVIDER", "SURVEY_OUTPUT", "SURVEY_PAGES_PER_RECORD", "SURVEY_TRAILING",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writePDFStub(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "surveys.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "cli", cfg.Mode)
	assert.Equal(t, "processed_survey_data.csv", cfg.OutputPath)
	assert.Equal(t, 2, cfg.PagesPerRecord)
	assert.Equal(t, "last", cfg.Collision)
	assert.Equal(t, "partial", cfg.Trailing)
	assert.Equal(t, "auto", cfg.Renderer)
	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "survey_processing.log", cfg.LogFile)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, 2*time.Minute, cfg.PageTimeout)
	assert.Empty(t, cfg.BaseDir)
}

func TestLoad_DefaultsWithCredential(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-1234567890abcd")
	input := writePDFStub(t)

	cfg, err := Load("processor", []string{"--env-file=", input})
	require.NoError(t, err)

	assert.Equal(t, input, cfg.InputPath)
	assert.Equal(t, "processed_survey_data.csv", cfg.OutputPath)
	assert.Equal(t, "claude-3-5-sonnet-20240620", cfg.LLM.Model)
	assert.Equal(t, "sk-ant-1234567890abcd", cfg.LLM.APIKey)
	assert.Equal(t, "sk-a...abcd", cfg.MaskedAPIKey())
	assert.NotContains(t, cfg.String(), "1234567890")
}

func TestLoad_Flags(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai-key-0000")
	input := writePDFStub(t)

	cfg, err := Load("processor", []string{
		"--env-file=",
		"--output", "out.xlsx",
		"--provider", "OpenAI",
		"--pages-per-record=3",
		"--collision=namespace",
		"--trailing=drop",
		"--renderer=pdfcpu",
		"--concurrency=4",
		"--rate=30",
		"--page-timeout=45s",
		input,
	})
	require.NoError(t, err)

	assert.Equal(t, "out.xlsx", cfg.OutputPath)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "sk-openai-key-0000", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.PagesPerRecord)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.InDelta(t, 30.0, cfg.LLM.RateLimit, 0.001)
	assert.Equal(t, 45*time.Second, cfg.PageTimeout)

	opts := cfg.MergeOptions()
	assert.Equal(t, "namespace", string(opts.Collision))
	assert.Equal(t, "drop", string(opts.Trailing))

	format, err := cfg.OutputFormat()
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("SURVEY_API_KEY", "survey-key-abcdefgh")
	t.Setenv("SURVEY_PAGES_PER_RECORD", "4")
	t.Setenv("SURVEY_TRAILING", "fail")
	input := writePDFStub(t)

	cfg, err := Load("processor", []string{"--env-file=", input})
	require.NoError(t, err)
	assert.Equal(t, "survey-key-abcdefgh", cfg.LLM.APIKey)
	assert.Equal(t, 4, cfg.PagesPerRecord)
	assert.Equal(t, "fail", cfg.Trailing)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnvVars(t)
	input := writePDFStub(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ANTHROPIC_API_KEY=from-dotenv-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ANTHROPIC_API_KEY") })

	cfg, err := Load("processor", []string{"--env-file", envFile, input})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv-file", cfg.LLM.APIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnvVars(t)
	input := writePDFStub(t)
	configFile := filepath.Join(t.TempDir(), "settings.toml")
	content := "api-key = \"file-key-12345678\"\nprovider = \"gemini\"\ncollision = \"first\"\n"
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o600))

	cfg, err := Load("processor", []string{"--env-file=", "--config", configFile, input})
	require.NoError(t, err)
	assert.Equal(t, "file-key-12345678", cfg.LLM.APIKey)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-1.5-pro", cfg.LLM.Model)
	assert.Equal(t, "first", cfg.Collision)
	assert.Equal(t, configFile, cfg.ConfigFile)
}

func TestLoad_MissingCredential(t *testing.T) {
	clearEnvVars(t)

	// The input does not exist either: the credential must be reported first.
	_, err := Load("processor", []string{"--env-file=", "/does/not/exist.pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.True(t, perrors.Is(err, perrors.ErrorTypeConfig))
}

func TestLoad_InvalidFlag(t *testing.T) {
	clearEnvVars(t)
	_, err := Load("processor", []string{"--no-such-flag"})
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.ErrorTypeConfig))
}

func TestConfigValidate(t *testing.T) {
	input := writePDFStub(t)

	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.InputPath = input
		cfg.LLM.APIKey = "key"
		cfg.LLM.Model = "model"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"valid stdio without input", func(c *Config) { c.Mode = ModeStdio; c.InputPath = "" }, false},
		{"missing input", func(c *Config) { c.InputPath = "" }, true},
		{"input does not exist", func(c *Config) { c.InputPath = input + ".missing" }, true},
		{"input is directory", func(c *Config) { c.InputPath = filepath.Dir(input) }, true},
		{"invalid mode", func(c *Config) { c.Mode = "server" }, true},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "mistral" }, true},
		{"missing key", func(c *Config) { c.LLM.APIKey = "" }, true},
		{"empty output", func(c *Config) { c.OutputPath = "" }, true},
		{"unknown format", func(c *Config) { c.Format = "parquet" }, true},
		{"zero pages per record", func(c *Config) { c.PagesPerRecord = 0 }, true},
		{"unknown collision", func(c *Config) { c.Collision = "merge" }, true},
		{"unknown trailing", func(c *Config) { c.Trailing = "pad" }, true},
		{"pdfcpu renderer", func(c *Config) { c.Renderer = pdf.RendererPDFCPU }, false},
		{"pdftoppm renderer", func(c *Config) { c.Renderer = pdf.RendererPDFToPPM }, false},
		{"unknown renderer", func(c *Config) { c.Renderer = "mupdf" }, true},
		{"dpi too low", func(c *Config) { c.DPI = 10 }, true},
		{"zero max file size", func(c *Config) { c.MaxFileSize = 0 }, true},
		{"zero max tokens", func(c *Config) { c.LLM.MaxTokens = 0 }, true},
		{"negative rate", func(c *Config) { c.LLM.RateLimit = -1 }, true},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, true},
		{"negative preview", func(c *Config) { c.Preview = -1 }, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "trace" }, true},
		{"negative page timeout", func(c *Config) { c.PageTimeout = -time.Second }, true},
		{"base dir exists", func(c *Config) { c.BaseDir = filepath.Dir(input) }, false},
		{"base dir missing", func(c *Config) { c.BaseDir = filepath.Join(filepath.Dir(input), "nope") }, true},
		{"base dir is a file", func(c *Config) { c.BaseDir = input }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, perrors.Is(err, perrors.ErrorTypeConfig), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		format, path, want string
		wantErr            bool
	}{
		{"auto", "out.csv", FormatCSV, false},
		{"auto", "OUT.XLSX", FormatXLSX, false},
		{"", "out", FormatCSV, false},
		{"xlsx", "out.csv", FormatXLSX, false},
		{"csv", "out.xlsx", FormatCSV, false},
		{"ods", "out.ods", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveFormat(tt.format, tt.path)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s", tt.format, tt.path)
	}
}

func TestMaskedAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "short"
	assert.Equal(t, "*****", cfg.MaskedAPIKey())
	cfg.LLM.APIKey = ""
	assert.Equal(t, "", cfg.MaskedAPIKey())
}
