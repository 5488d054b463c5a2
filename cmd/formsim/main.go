package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/hackit-tw/recruit/internal/adapters/http/api"
	"github.com/hackit-tw/recruit/internal/formsim"
)

// Default configuration constants.
const (
	defaultSubmissions   = 200
	defaultDuplicateRate = 0.1
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTimeout       = 30 * time.Second
	defaultSettle        = 2 * time.Second
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		submissions = flag.Int("submissions", defaultSubmissions, "Number of forms to submit")
		duplicates  = flag.Float64("duplicates", defaultDuplicateRate, "Share of forms reusing an earlier email")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle      = flag.Duration("settle", defaultSettle, "Wait before reading /stats")
		fieldMap    = flag.String("fieldmap", "", "YAML field map (default: embedded)")
		outputFile  = flag.String("output", "", "Output file for generated payloads")
		logFile     = flag.String("log", "", "Log file for run output")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		formsim.ShowHelp()
		return
	}

	if err := formsim.SetupLogging(*logFile, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	fm := api.DefaultFieldMap()
	if *fieldMap != "" {
		loaded, err := api.LoadFieldMap(*fieldMap)
		if err != nil {
			_, _ = os.Stderr.WriteString("Failed to load field map: " + err.Error() + "\n")
			os.Exit(1)
		}
		fm = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	config := &formsim.Config{
		BaseURL:       *baseURL,
		Submissions:   *submissions,
		DuplicateRate: *duplicates,
		Workers:       max(1, *workers),
		Timeout:       *timeout,
		Settle:        *settle,
		OutputFile:    *outputFile,
		LogFile:       *logFile,
		Verbose:       *verbose,
	}

	if _, err := formsim.Run(ctx, config, fm); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: cancel called above
	}
}
