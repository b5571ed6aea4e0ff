package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 8 * time.Second

	// newTokensPath lists recently created pump.fun pairs, newest first.
	newTokensPath = "/token/mainnet/exchange/pumpfun/new"
)

// Common errors.
var (
	// ErrUnauthorized means the gateway rejected the API key. Not retryable.
	ErrUnauthorized = errors.New("feed rejected api key")
	// ErrRateLimited means the gateway returned 429. Retryable.
	ErrRateLimited = errors.New("feed rate limited")
)

// HTTPSource fetches the new-token listing from the Moralis Solana gateway
// with retry support.
type HTTPSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// SourceOption configures the HTTPSource.
type SourceOption func(*HTTPSource)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) SourceOption {
	return func(s *HTTPSource) {
		s.httpClient.Timeout = timeout
	}
}

// WithMaxRetries sets the maximum number of retries per fetch.
func WithMaxRetries(n int) SourceOption {
	return func(s *HTTPSource) {
		s.maxRetries = n
	}
}

// WithRetryDelay sets the initial delay between retries.
func WithRetryDelay(d time.Duration) SourceOption {
	return func(s *HTTPSource) {
		s.retryDelay = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) SourceOption {
	return func(s *HTTPSource) {
		s.httpClient = client
	}
}

// NewHTTPSource creates a feed source against the given gateway base URL.
func NewHTTPSource(baseURL, apiKey string, opts ...SourceOption) *HTTPSource {
	s := &HTTPSource{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns up to limit recently created tokens, retrying transient
// failures with exponential backoff. Auth rejections are returned immediately.
func (s *HTTPSource) Fetch(ctx context.Context, limit int) ([]RawToken, error) {
	var lastErr error
	delay := s.retryDelay

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}

		tokens, err := s.fetchOnce(ctx, limit)
		if err == nil {
			return tokens, nil
		}
		lastErr = err

		// Don't retry on auth errors
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// fetchOnce performs a single listing request.
func (s *HTTPSource) fetchOnce(ctx context.Context, limit int) ([]RawToken, error) {
	url := fmt.Sprintf("%s%s?limit=%d", s.baseURL, newTokensPath, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var envelope struct {
		Result []RawToken `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return envelope.Result, nil
}

var _ Source = (*HTTPSource)(nil)
