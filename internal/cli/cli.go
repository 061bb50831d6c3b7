package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/hotswap/internal/app"
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

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("hotswap", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Hotswap - compiles trading strategies from source and swaps them in while running.

Usage:
  hotswap [options] [STRATEGIES_PATH]

Arguments:
  STRATEGIES_PATH
    Path to a single .strat/.hcl file or a directory of them. They are saved
    into the strategy store and compiled at startup.

At least one of STRATEGIES_PATH or -dsn is required.

Options:
`)
		flagSet.PrintDefaults()
	}

	strategiesFlag := flagSet.String("strategies", "", "Path to the strategy file or directory.")
	sFlag := flagSet.String("s", "", "Path to the strategy file or directory (shorthand).")
	dsnFlag := flagSet.String("dsn", "", "PostgreSQL connection string for the strategy store. In-memory when empty.")
	workersFlag := flagSet.Int("workers", app.DefaultWorkerCount, "Number of concurrent compile workers.")
	queueFlag := flagSet.Int("queue-size", 0, "Compile jobs that may wait for a worker. 0 means four per worker.")
	timeoutFlag := flagSet.Duration("compile-timeout", app.DefaultCompileTimeout, "Time limit for each compiler backend attempt.")
	scratchFlag := flagSet.String("scratch-dir", "", "Directory for compile workspaces. Defaults to the system temp dir.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *strategiesFlag != "" {
		path = *strategiesFlag
	} else if *sFlag != "" {
		path = *sFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Strategies path determined.", "path", path)

	if path == "" && *dsnFlag == "" {
		slog.Debug("No strategies path or DSN provided, printing usage and exiting.")
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
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		StrategiesPath:  path,
		DSN:             *dsnFlag,
		WorkerCount:     *workersFlag,
		QueueSize:       *queueFlag,
		CompileTimeout:  *timeoutFlag,
		ScratchDir:      *scratchFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "workers", config.WorkerCount, "store", storeKind(config))
	return config, false, nil
}

// storeKind names the store without logging the DSN, which may hold a password.
func storeKind(cfg *app.Config) string {
	if cfg.DSN != "" {
		return "postgres"
	}
	return "memory"
}
