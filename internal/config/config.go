package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	perrors "github.com/a3tai/survey-pdf-processor/internal/errors"
	"github.com/a3tai/survey-pdf-processor/internal/pdf"
	"github.com/a3tai/survey-pdf-processor/internal/survey"
)

const (
	// Mode constants
	ModeCLI   = "cli"
	ModeStdio = "stdio"

	// Provider constants
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	// Output format constants
	FormatAuto = "auto"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	// Default values
	DefaultOutputPath  = "processed_survey_data.csv"
	DefaultLogFile     = "survey_processing.log"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultMaxTokens   = 1024
	DefaultDPI         = 150
	DefaultPreviewRows = 5
	DefaultEnvFile     = ".env"
	DefaultConfigName  = "survey-processor"
	DefaultPageTimeout = 2 * time.Minute

	// EnvPrefix is prepended to every environment variable viper reads
	EnvPrefix = "SURVEY"
)

// ErrMissingCredential is returned when no API key could be found
var ErrMissingCredential = errors.New("API key not found")

// providerKeyEnv maps a provider to the environment variable its SDK
// conventionally reads the API key from
var providerKeyEnv = map[string]string{
	ProviderClaude: "ANTHROPIC_API_KEY",
	ProviderOpenAI: "OPENAI_API_KEY",
	ProviderGemini: "GEMINI_API_KEY",
}

var defaultModels = map[string]string{
	ProviderClaude: "claude-3-5-sonnet-20240620",
	ProviderOpenAI: "gpt-4o",
	ProviderGemini: "gemini-1.5-pro",
}

// LLMConfig holds the extraction service settings
type LLMConfig struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	RateLimit float64 // requests per minute, 0 disables pacing
}

// Config holds all configuration for the survey processor
type Config struct {
	Mode string // "cli" or "stdio"

	// Input and output
	InputPath  string
	OutputPath string
	Format     string
	Preview    int

	// Merge policy
	PagesPerRecord int
	Collision      string
	Trailing       string

	// Rendering
	Renderer    string
	DPI         int
	MaxFileSize int64 // Maximum PDF file size in bytes

	// Extraction
	LLM         LLMConfig
	Concurrency int
	PageTimeout time.Duration // per-page extraction deadline, 0 disables

	// MCP tool paths are confined to BaseDir when set
	BaseDir string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
	LogFile    string
	ConfigFile string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:           ModeCLI,
		OutputPath:     DefaultOutputPath,
		Format:         FormatAuto,
		Preview:        DefaultPreviewRows,
		PagesPerRecord: survey.DefaultPagesPerRecord,
		Collision:      string(survey.CollisionLast),
		Trailing:       string(survey.TrailingPartial),
		Renderer:       pdf.RendererAuto,
		DPI:            DefaultDPI,
		MaxFileSize:    DefaultMaxFileSize,
		LLM: LLMConfig{
			Provider:  ProviderClaude,
			MaxTokens: DefaultMaxTokens,
		},
		Concurrency: 1,
		PageTimeout: DefaultPageTimeout,
		Version:     "1.0.0",
		ServerName:  "survey-pdf-processor",
		LogLevel:    DefaultLogLevel,
		LogFile:     DefaultLogFile,
	}
}

// Load parses args with a private flag set and viper instance so that it
// can be called repeatedly (tests, MCP requests) without global state
func Load(program string, args []string) (*Config, error) {
	cfg := DefaultConfig()

	fs := pflag.NewFlagSet(program, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	defineCommandLineFlags(fs, cfg)
	setupUsageMessage(fs, program)

	if err := fs.Parse(args); err != nil {
		return nil, perrors.Wrap(perrors.ErrorTypeConfig, "invalid command line", err)
	}

	v := viper.New()
	setupViperEnvironment(v, cfg)
	_ = v.BindPFlags(fs)

	if err := readConfigFile(v, fs); err != nil {
		return nil, err
	}

	populateConfigFromViper(v, cfg)
	if fs.NArg() > 0 {
		cfg.InputPath = fs.Arg(0)
	}

	cfg.resolveDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api-key", "")
	_ = v.BindEnv("api-key", EnvPrefix+"_API_KEY")
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("mode", cfg.Mode, "Run mode: 'cli' to process one PDF, 'stdio' to serve MCP tools over standard I/O")
	fs.StringP("output", "o", cfg.OutputPath, "Output file path")
	fs.String("format", cfg.Format, "Output format: auto (by extension), csv, xlsx")
	fs.Int("preview", cfg.Preview, "Number of rows to print after writing (0 disables)")
	fs.Int("pages-per-record", cfg.PagesPerRecord, "Number of consecutive pages that make up one survey")
	fs.String("collision", cfg.Collision, "Field collision policy within a record: last, first, namespace")
	fs.String("trailing", cfg.Trailing, "Policy for leftover pages: partial, drop, fail")
	fs.String("renderer", cfg.Renderer, "Page renderer: auto, pdfcpu, pdftoppm")
	fs.Int("dpi", cfg.DPI, "Rasterization resolution for the pdftoppm renderer")
	fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	fs.String("provider", cfg.LLM.Provider, "Extraction provider: claude, openai, gemini")
	fs.String("model", cfg.LLM.Model, "Model name (provider default when empty)")
	fs.String("base-url", cfg.LLM.BaseURL, "Override the provider API base URL")
	fs.Int("max-tokens", cfg.LLM.MaxTokens, "Maximum tokens per extraction response")
	fs.Float64("rate", cfg.LLM.RateLimit, "Maximum extraction requests per minute (0 = unlimited)")
	fs.Int("concurrency", cfg.Concurrency, "Number of pages extracted in parallel")
	fs.Duration("page-timeout", cfg.PageTimeout, "Deadline for extracting a single page (0 disables)")
	fs.String("base-dir", cfg.BaseDir, "In stdio mode, only accept PDF and output paths under this directory")
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-file", cfg.LogFile, "Log file path (empty disables file logging)")
	fs.String("config", "", "Configuration file (default ./"+DefaultConfigName+".{toml,yaml,json} if present)")
	fs.String("env-file", DefaultEnvFile, "Dotenv file loaded before reading the environment")
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet, program string) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <input.pdf>\n", program)
		fmt.Fprintf(os.Stderr, "\nSurvey PDF Processor - convert scanned survey forms into CSV rows\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.SetOutput(os.Stderr)
		fs.PrintDefaults()
		fs.SetOutput(io.Discard)
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s surveys.pdf\n", program)
		fmt.Fprintf(os.Stderr, "  %s surveys.pdf --output results.csv\n", program)
		fmt.Fprintf(os.Stderr, "  %s surveys.pdf --pages-per-record=3 --trailing=drop\n", program)
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio\n", program)
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SURVEY_API_KEY      API key for the extraction provider\n")
		fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY   Used when provider is claude and SURVEY_API_KEY is unset\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY      Used when provider is openai and SURVEY_API_KEY is unset\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY      Used when provider is gemini and SURVEY_API_KEY is unset\n")
		fmt.Fprintf(os.Stderr, "  SURVEY_<FLAG>       Any flag, e.g. SURVEY_PROVIDER, SURVEY_PAGES_PER_RECORD\n")
	}
}

// readConfigFile loads the dotenv file and the optional config file
func readConfigFile(v *viper.Viper, fs *pflag.FlagSet) error {
	envFile, _ := fs.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return perrors.Wrap(perrors.ErrorTypeConfig, "cannot load env file", err).WithFile(envFile)
		}
	}

	configFile, _ := fs.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return perrors.Wrap(perrors.ErrorTypeConfig, "cannot read config file", err).WithFile(configFile)
		}
		return nil
	}

	v.SetConfigName(DefaultConfigName)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return perrors.Wrap(perrors.ErrorTypeConfig, "cannot read config file", err)
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.OutputPath = v.GetString("output")
	cfg.Format = v.GetString("format")
	cfg.Preview = v.GetInt("preview")
	cfg.PagesPerRecord = v.GetInt("pages-per-record")
	cfg.Collision = v.GetString("collision")
	cfg.Trailing = v.GetString("trailing")
	cfg.Renderer = v.GetString("renderer")
	cfg.DPI = v.GetInt("dpi")
	cfg.MaxFileSize = v.GetInt64("maxfilesize")
	cfg.LLM.Provider = strings.ToLower(v.GetString("provider"))
	cfg.LLM.Model = v.GetString("model")
	cfg.LLM.BaseURL = v.GetString("base-url")
	cfg.LLM.MaxTokens = v.GetInt("max-tokens")
	cfg.LLM.RateLimit = v.GetFloat64("rate")
	cfg.LLM.APIKey = v.GetString("api-key")
	cfg.Concurrency = v.GetInt("concurrency")
	cfg.PageTimeout = v.GetDuration("page-timeout")
	cfg.BaseDir = v.GetString("base-dir")
	cfg.LogLevel = v.GetString("loglevel")
	cfg.LogFile = v.GetString("log-file")
	cfg.ConfigFile = v.ConfigFileUsed()
}

// resolveDefaults fills values that depend on other settings
func (c *Config) resolveDefaults() {
	if c.LLM.APIKey == "" {
		if env, ok := providerKeyEnv[c.LLM.Provider]; ok {
			c.LLM.APIKey = os.Getenv(env)
		}
	}
	if c.LLM.Model == "" {
		c.LLM.Model = defaultModels[c.LLM.Provider]
	}
	if c.InputPath != "" {
		if abs, err := filepath.Abs(c.InputPath); err == nil {
			c.InputPath = abs
		}
	}
}

// Validate checks if the configuration is valid. The credential is
// checked first so a missing key is reported before anything else.
func (c *Config) Validate() error {
	if _, ok := providerKeyEnv[c.LLM.Provider]; !ok {
		return configError(fmt.Sprintf("unsupported provider %q (must be one of: claude, openai, gemini)", c.LLM.Provider))
	}

	if c.LLM.APIKey == "" {
		return perrors.Wrap(perrors.ErrorTypeConfig,
			fmt.Sprintf("set %s_API_KEY or %s in the environment, .env or config file", EnvPrefix, providerKeyEnv[c.LLM.Provider]),
			ErrMissingCredential)
	}

	if c.Mode != ModeCLI && c.Mode != ModeStdio {
		return configError("mode must be either 'cli' or 'stdio'")
	}

	if c.Mode == ModeCLI {
		if c.InputPath == "" {
			return configError("input PDF path is required")
		}
		info, err := os.Stat(c.InputPath)
		if os.IsNotExist(err) {
			return configError("input file does not exist").WithFile(c.InputPath)
		}
		if err != nil {
			return perrors.Wrap(perrors.ErrorTypeConfig, "cannot access input file", err).WithFile(c.InputPath)
		}
		if info.IsDir() {
			return configError("input path is a directory").WithFile(c.InputPath)
		}
	}

	if c.OutputPath == "" {
		return configError("output path cannot be empty")
	}

	if _, err := c.OutputFormat(); err != nil {
		return err
	}

	if err := c.MergeOptions().Validate(); err != nil {
		return perrors.Wrap(perrors.ErrorTypeConfig, "invalid merge settings", err)
	}

	switch c.Renderer {
	case pdf.RendererAuto, pdf.RendererPDFCPU, pdf.RendererPDFToPPM:
	default:
		return configError(fmt.Sprintf("unsupported renderer %q (must be one of: auto, pdfcpu, pdftoppm)", c.Renderer))
	}

	if c.DPI < 36 || c.DPI > 1200 {
		return configError("dpi must be between 36 and 1200")
	}

	if c.MaxFileSize <= 0 {
		return configError("maximum file size must be positive")
	}

	if c.LLM.MaxTokens <= 0 {
		return configError("max tokens must be positive")
	}

	if c.LLM.RateLimit < 0 {
		return configError("rate cannot be negative")
	}

	if c.Concurrency < 1 {
		return configError("concurrency must be at least 1")
	}

	if c.PageTimeout < 0 {
		return configError("page timeout cannot be negative")
	}

	if c.BaseDir != "" {
		info, err := os.Stat(c.BaseDir)
		if err != nil || !info.IsDir() {
			return configError("base directory must be an existing directory").WithFile(c.BaseDir)
		}
	}

	if c.Preview < 0 {
		return configError("preview cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return configError(fmt.Sprintf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel))
	}

	return nil
}

func configError(msg string) *perrors.ProcessingError {
	return perrors.New(perrors.ErrorTypeConfig, msg)
}

// MergeOptions returns the merge policy settings
func (c *Config) MergeOptions() survey.MergeOptions {
	return survey.MergeOptions{
		PagesPerRecord: c.PagesPerRecord,
		Collision:      survey.CollisionPolicy(c.Collision),
		Trailing:       survey.TrailingPolicy(c.Trailing),
	}
}

// OutputFormat resolves FormatAuto from the output file extension
func (c *Config) OutputFormat() (string, error) {
	return ResolveFormat(c.Format, c.OutputPath)
}

// ResolveFormat resolves FormatAuto from the extension of path
func ResolveFormat(format, path string) (string, error) {
	switch format {
	case FormatCSV, FormatXLSX:
		return format, nil
	case FormatAuto, "":
		if strings.EqualFold(filepath.Ext(path), ".xlsx") {
			return FormatXLSX, nil
		}
		return FormatCSV, nil
	default:
		return "", configError(fmt.Sprintf("unsupported output format %q (must be one of: auto, csv, xlsx)", format))
	}
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsStdioMode returns true if the binary serves MCP over stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// MaskedAPIKey returns the API key with everything but the first and
// last four characters hidden
func (c *Config) MaskedAPIKey() string {
	key := c.LLM.APIKey
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Input: %s, Output: %s, Format: %s, PagesPerRecord: %d, Collision: %s, "+
		"Trailing: %s, Renderer: %s, Provider: %s, Model: %s, APIKey: %s, Concurrency: %d, LogLevel: %s}",
		c.Mode, c.InputPath, c.OutputPath, c.Format, c.PagesPerRecord, c.Collision,
		c.Trailing, c.Renderer, c.LLM.Provider, c.LLM.Model, c.MaskedAPIKey(), c.Concurrency, c.LogLevel)
}
