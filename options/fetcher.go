package options

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/liamcoop/formlogic/internal/logger"
)

// maxBodyBytes caps how much of a source response is read.
const maxBodyBytes = 10 << 20

// Fetcher performs the GET for URL sources.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string) (status int, body []byte, err error)
}

// HTTPConfig configures the default fetcher.
type HTTPConfig struct {
	// Timeout bounds each attempt.
	Timeout time.Duration

	// RetryMax is the number of retries after the first attempt.
	RetryMax int
}

// DefaultHTTPConfig returns a 10 second timeout and two retries.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:  10 * time.Second,
		RetryMax: 2,
	}
}

// HTTPFetcher fetches URL sources with a pooled client, retrying connection
// errors and 5xx responses.
type HTTPFetcher struct {
	client *retryablehttp.Client
}

// NewHTTPFetcher creates a fetcher from config.
func NewHTTPFetcher(config HTTPConfig) *HTTPFetcher {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.HTTPClient.Timeout = config.Timeout
	client.RetryMax = config.RetryMax
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = retryLogger{}
	// Hand the last response back instead of an error so the caller sees the status.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPFetcher{client: client}
}

// retryLogger forwards retry client messages to the current process logger.
// Per-attempt debug chatter goes out at trace level.
type retryLogger struct{}

func (retryLogger) Error(msg string, keysAndValues ...any) {
	logger.Logger.Error(msg, keysAndValues...)
}

func (retryLogger) Warn(msg string, keysAndValues ...any) {
	logger.Logger.Warn(msg, keysAndValues...)
}

func (retryLogger) Info(msg string, keysAndValues ...any) {
	logger.Logger.Info(msg, keysAndValues...)
}

func (retryLogger) Debug(msg string, keysAndValues ...any) {
	logger.Trace(msg, keysAndValues...)
}

// Get performs the request and reads the body.
func (f *HTTPFetcher) Get(ctx context.Context, url string, headers map[string]string) (int, []byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}
