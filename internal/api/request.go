package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// APIError represents a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("match api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// doRequest performs a single HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry performs a request, retrying 5xx and 429 responses with
// jittered exponential backoff. Only use it for idempotent requests.
func (c *Client) doWithRetry(ctx context.Context, method, path string) ([]byte, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0.5

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		body, err := c.doRequest(ctx, method, path)
		if err == nil {
			return body, nil
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(max(c.maxRetries, 0)+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", wait,
				"path", path,
				"error", err,
			)
		}),
	)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsRetryable() {
			return nil, fmt.Errorf("max retries exceeded: %w", err)
		}
		return nil, err
	}
	return body, nil
}

// get performs a GET request with retries.
func (c *Client) get(ctx context.Context, path string, result any) error {
	body, err := c.doWithRetry(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// post performs a POST request once.
func (c *Client) post(ctx context.Context, path string, result any) error {
	body, err := c.doRequest(ctx, http.MethodPost, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
