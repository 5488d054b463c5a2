package formsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hackit-tw/recruit/internal/adapters/http/api"
	"github.com/hackit-tw/recruit/pkg/logger"
)

const (
	directoryPermission  = 0750
	percentageMultiplier = 100
)

// Run executes a complete simulation.
func Run(ctx context.Context, config *Config, fm api.FieldMap) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting form simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("submissions", config.Submissions),
		logger.Int("workers", config.Workers),
		logger.Float64("duplicateRate", config.DuplicateRate),
		logger.Duration("timeout", config.Timeout))

	baseline, err := fetchStageTotal(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	payloads, err := generatePayloads(ctx, config, fm, stats)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	submitPayloads(ctx, config, payloads, stats)

	if config.Settle > 0 {
		logger.Get().Info(ctx, "waiting before reading stats", logger.Duration("settle", config.Settle))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for stats: %w", ctx.Err())
		case <-time.After(config.Settle):
		}
	}

	total, err := fetchStageTotal(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("stats retrieval failed: %w", err)
	}
	stats.StageTotal = total - baseline

	if err := verifyResults(stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	if want := intendedDuplicates(payloads); stats.Flagged < want {
		logger.Get().Warn(ctx, "fewer duplicates flagged than generated",
			logger.Int("flagged", stats.Flagged), logger.Int("generated", want))
	}

	if err := savePayloads(ctx, config, payloads); err != nil {
		logger.Get().Warn(ctx, "failed to save payloads to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

type statsResponse struct {
	Total int `json:"total"`
}

// fetchStageTotal reads the application count from /stats.
func fetchStageTotal(ctx context.Context, config *Config) (int, error) {
	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/stats")
	if err != nil {
		return 0, fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()
	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("stats returned status %d", resp.StatusCode)
	}
	var s statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return 0, fmt.Errorf("decode stats: %w", err)
	}
	return s.Total, nil
}

// savePayloads writes the generated payloads to a JSON file.
func savePayloads(ctx context.Context, config *Config, payloads []Payload) error {
	if len(payloads) == 0 {
		return errors.New("no payloads to save")
	}
	filename := config.OutputFile
	if filename == "" {
		filename = "generated_forms_" + time.Now().Format("20060102_150405") + ".json"
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	b, err := json.MarshalIndent(payloads, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal payloads: %w", err)
	}
	if err := os.WriteFile(filename, b, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "payloads saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Created) / float64(stats.Submitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("created", stats.Created),
		logger.Int("flagged", stats.Flagged),
		logger.Int("rejected", stats.Rejected),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed),
		logger.Int("stageTotal", stats.StageTotal),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
