package formsim

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hackit-tw/recruit/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging logs to both console and file. If logFile is empty, a
// timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		logFile = "formsim_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWith(io.MultiWriter(os.Stdout, file), logger.FormatText); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return fmt.Errorf("set log level: %w", err)
		}
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`recruit form simulator
======================

Posts generated intake forms to a running service and checks /stats.

Usage:
  go run ./cmd/formsim [options]

Options:
  -url string          Base URL of the service (default "http://localhost:9080")
  -submissions int     Number of forms to submit (default 200)
  -duplicates float    Share of forms reusing an earlier email (default 0.1)
  -workers int         Number of concurrent workers (default CPU cores * 2)
  -timeout duration    HTTP request timeout (default 30s)
  -settle duration     Wait before reading /stats (default 2s)
  -fieldmap string     YAML field map (default: embedded)
  -output string       Output file for generated payloads
  -log string          Log file for run output
  -verbose             Enable verbose logging
  -help                Show this help message

Examples:
  go run ./cmd/formsim -submissions 1000 -workers 16
  go run ./cmd/formsim -url http://localhost:8080 -duplicates 0.3
`)
}
