package formsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hackit-tw/recruit/pkg/logger"
)

const (
	throttleRetries   = 5
	workerQueueFactor = 2
)

var errThrottled = errors.New("throttled")

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

type result int

const (
	resultCreated result = iota
	resultFlagged
	resultRejected
	resultThrottled
	resultFailed
)

// submitPayloads posts payloads concurrently using a worker pool.
func submitPayloads(ctx context.Context, config *Config, payloads []Payload, stats *Stats) {
	logger.Get().Info(ctx, "submitting forms", logger.Int("count", len(payloads)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/apply/first_part_application"

	var counts [resultFailed + 1]int64
	var submitted int64

	ch := make(chan Payload, config.Workers*workerQueueFactor)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range ch {
				r := submitSingle(ctx, client, url, p)
				atomic.AddInt64(&counts[r], 1)
				if n := atomic.AddInt64(&submitted, 1); config.Verbose && n%100 == 0 {
					logger.Get().Debug(ctx, "progress", logger.Int64("submitted", n), logger.Int("total", len(payloads)))
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, p := range payloads {
			select {
			case <-ctx.Done():
				return
			case ch <- p:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Created = int(counts[resultCreated] + counts[resultFlagged])
	stats.Flagged = int(counts[resultFlagged])
	stats.Rejected = int(counts[resultRejected])
	stats.Throttled = int(counts[resultThrottled])
	stats.Failed = int(counts[resultFailed])

	logger.Get().Info(ctx, "form submission completed",
		logger.Int("created", stats.Created),
		logger.Int("flagged", stats.Flagged),
		logger.Int("rejected", stats.Rejected),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed))
}

// submitSingle posts one payload. 429 responses are retried with backoff.
func submitSingle(ctx context.Context, client *HTTPClient, url string, p Payload) result { //nolint:gocritic // hugeParam: payload value
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	r, err := backoff.Retry(ctx, func() (result, error) {
		resp, err := client.Post(ctx, url, p)
		if err != nil {
			return resultFailed, backoff.Permanent(err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return resultFailed, backoff.Permanent(err)
		}
		switch {
		case resp.StatusCode == http.StatusCreated:
			var ack AckResponse
			if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
				return resultFlagged, nil
			}
			return resultCreated, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return resultThrottled, errThrottled
		case resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError:
			return resultRejected, nil
		default:
			return resultFailed, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(throttleRetries))
	if err != nil {
		if errors.Is(err, errThrottled) {
			return resultThrottled
		}
		return resultFailed
	}
	return r
}
