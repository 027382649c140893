package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/specialistvlad/gridflow/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("gridflow", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
GridFlow - a declarative workflow compiler and batch executor.

Usage:
  gridflow [options] [WORKFLOW_PATH]

Arguments:
  WORKFLOW_PATH
    Path to a workflow document (JSON). Alternatively fetch one with
    -workspace and -workflow-id.

Options:
`)
		flagSet.PrintDefaults()
	}

	workflowFlag := flagSet.String("workflow", "", "Path to the workflow document.")
	wFlag := flagSet.String("w", "", "Path to the workflow document (shorthand).")
	workspaceFlag := flagSet.String("workspace", "", "Registry workspace to fetch the workflow from.")
	workflowIDFlag := flagSet.String("workflow-id", "", "Registry id of the workflow to fetch.")
	inputFlag := flagSet.String("input", "", "Path to a JSON file with runtime input values.")
	apiKeyFlag := flagSet.String("api-key", os.Getenv("GRIDFLOW_API_KEY"), "API key for the registry and usage reporting.")
	baseURLFlag := flagSet.String("base-url", "", "Registry API base URL override.")
	cacheDirFlag := flagSet.String("cache-dir", defaultCacheDir(), "Directory for cached workflow definitions.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 8, "Maximum number of concurrent block invocations.")
	policyFlag := flagSet.String("policy", "fail-fast", "Failure policy. Options: 'fail-fast' or 'isolate'.")
	noUsageFlag := flagSet.Bool("no-usage", false, "Disable usage reporting.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *workflowFlag != "" {
		path = *workflowFlag
	} else if *wFlag != "" {
		path = *wFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Workflow path determined.", "path", path)

	if path == "" && *workspaceFlag == "" {
		slog.Debug("No workflow source provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	logLevel := strings.ToLower(*logLevelFlag)

	config, err := app.NewConfig(app.Config{
		WorkflowPath:    path,
		Workspace:       *workspaceFlag,
		WorkflowID:      *workflowIDFlag,
		InputPath:       *inputFlag,
		APIKey:          *apiKeyFlag,
		BaseURL:         *baseURLFlag,
		CacheDir:        *cacheDirFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		Workers:         *workersFlag,
		Policy:          strings.ToLower(*policyFlag),
		DisableUsage:    *noUsageFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return base + "/gridflow"
}
