package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/loomgrid/internal/app"
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

// overrideFlag collects repeated -set id=value pairs.
type overrideFlag map[string]string

func (o overrideFlag) String() string {
	pairs := make([]string, 0, len(o))
	for k, v := range o {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (o overrideFlag) Set(raw string) error {
	id, value, ok := strings.Cut(raw, "=")
	if !ok || id == "" {
		return fmt.Errorf("expected id=value, got %q", raw)
	}
	o[id] = value
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("loomgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Loomgrid - A workflow execution engine for agent graphs.

Usage:
  loomgrid [options] [WORKFLOW_PATH]

Arguments:
  WORKFLOW_PATH
    Path to a single .hcl workflow file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	workflowFlag := flagSet.String("workflow", "", "Path to the workflow file or directory.")
	wFlag := flagSet.String("w", "", "Path to the workflow file or directory (shorthand).")
	outFlag := flagSet.String("out", "", "Directory receiving artifacts. Overrides the workflow's output_dir.")
	overrides := overrideFlag{}
	flagSet.Var(overrides, "set", "Override an input node's value, as id=value. Repeatable.")
	workersFlag := flagSet.Int("workers", 1, "Number of concurrent workers. 1 runs nodes sequentially.")
	failFastFlag := flagSet.Bool("fail-fast", false, "Stop dispatching new nodes after the first failure.")
	callTimeoutFlag := flagSet.Duration("call-timeout", 0, "Per-node completion call timeout. 0 is unbounded.")
	apiKeyFlag := flagSet.String("api-key", "", "Completion service API key. Defaults to the environment.")
	envFileFlag := flagSet.String("env-file", ".env", "Path to an env file with credentials. Missing files are skipped.")
	serveFlag := flagSet.Int("serve", 0, "Port for the socket server. 0 runs a single workflow and exits.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *workflowFlag != "" {
		path = *workflowFlag
	} else if *wFlag != "" {
		path = *wFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" && *serveFlag <= 0 {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	if *callTimeoutFlag < 0 {
		return nil, false, &ExitError{Code: 2, Message: "invalid call-timeout: must not be negative"}
	}

	var overrideMap map[string]string
	if len(overrides) > 0 {
		overrideMap = map[string]string(overrides)
	}

	config, err := app.NewConfig(app.Config{
		WorkflowPath:    path,
		OutDir:          *outFlag,
		Overrides:       overrideMap,
		APIKey:          *apiKeyFlag,
		EnvFile:         *envFileFlag,
		Workers:         *workersFlag,
		FailFast:        *failFastFlag,
		CallTimeout:     *callTimeoutFlag,
		ServePort:       *serveFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
