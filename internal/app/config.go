package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/gridflow/internal/executor"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// WorkflowPath points at a local workflow document. When empty the
	// document is fetched from the registry API instead.
	WorkflowPath string
	Workspace    string
	WorkflowID   string

	// InputPath points at a JSON file with the run's input values.
	InputPath string

	APIKey   string
	BaseURL  string
	CacheDir string

	HealthcheckPort int
	LogFormat       string
	LogLevel        string
	Workers         int
	Policy          string

	UsageEndpoint string
	DisableUsage  bool

	// logLevel is the parsed form of LogLevel, set by NewConfig.
	logLevel slog.Level
}

// NewConfig validates a raw Config and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" && (cfg.Workspace == "" || cfg.WorkflowID == "") {
		return nil, errors.New("either a workflow file or a workspace and workflow id is required")
	}
	if cfg.WorkflowPath != "" && cfg.Workspace != "" {
		return nil, errors.New("a workflow file and a remote workflow id are mutually exclusive")
	}
	if cfg.Workspace != "" && cfg.APIKey == "" {
		return nil, errors.New("fetching a remote workflow requires an api key")
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	switch cfg.LogLevel {
	case "debug":
		cfg.logLevel = slog.LevelDebug
	case "info":
		cfg.logLevel = slog.LevelInfo
	case "warn":
		cfg.logLevel = slog.LevelWarn
	case "error":
		cfg.logLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = executor.DefaultConcurrencyLimit
	}
	if _, err := executor.ParsePolicy(cfg.Policy); err != nil {
		return nil, err
	}
	return &cfg, nil
}
