package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const DefaultEndpoint = "https://graphql.anilist.co"

const (
	defaultAttemptTimeout = 8 * time.Second
	defaultMaxAttempts    = 3
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxRetryDelay  = 8 * time.Second
	jitterCeiling         = 250 * time.Millisecond
)

var retryableStatuses = map[int]struct{}{
	http.StatusNotFound:            {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

var retryableErrorKeywords = []string{
	"rate limit",
	"too many requests",
	"timeout",
	"timed out",
	"internal server error",
	"server error",
	"service unavailable",
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(endpoint string, client *http.Client, logger *slog.Logger) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{endpoint: strings.TrimRight(endpoint, "/"), httpClient: client, logger: logger}
}

// RequestOptions bounds a single logical request across its retry attempts.
type RequestOptions struct {
	AttemptTimeout time.Duration
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxRetryDelay  time.Duration
	OnRetry        func(RetryInfo)
}

func (o *RequestOptions) applyDefaults() {
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = defaultAttemptTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = defaultBaseDelay
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = defaultMaxRetryDelay
	}
}

// RetryInfo is handed to the OnRetry hook before each backoff sleep.
type RetryInfo struct {
	Attempt     int
	MaxAttempts int
	Wait        time.Duration
	Status      int
	Err         error
}

// RateLimitSnapshot mirrors the upstream rate-limit response headers.
// Absent headers stay nil.
type RateLimitSnapshot struct {
	Remaining  *int           `json:"remaining,omitempty"`
	Limit      *int           `json:"limit,omitempty"`
	Reset      *int64         `json:"reset,omitempty"`
	ResetAfter *time.Duration `json:"resetAfter,omitempty"`
}

type GraphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Result is the outcome of one logical GraphQL request. OK reflects whether
// usable data came back; a false OK with a nil error is a degraded outcome
// the caller can inspect, not a failure of the call itself.
type Result struct {
	OK         bool
	Status     int
	Saw429     bool
	RetryAfter time.Duration
	RateLimit  RateLimitSnapshot
	Data       json.RawMessage
	Errors     []GraphQLError
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// Do executes a GraphQL request with bounded per-attempt timeout, exponential
// backoff with jitter, Retry-After-aware waits and cancellation support. It
// returns an error only for transport failures exhausted across all attempts
// or for cancellation; every upstream HTTP or GraphQL-level failure is
// reported through the Result instead.
func (c *Client) Do(ctx context.Context, query string, variables map[string]any, opts RequestOptions) (Result, error) {
	opts.applyDefaults()

	result := Result{}
	var lastTransportErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		response, status, headers, transportErr := c.attempt(ctx, query, variables, opts.AttemptTimeout)
		if transportErr != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			lastTransportErr = transportErr
			if attempt == opts.MaxAttempts {
				return result, fmt.Errorf("anilist request failed after %d attempts: %w", opts.MaxAttempts, lastTransportErr)
			}
			if err := c.backoff(ctx, attempt, opts, 0, 0, transportErr); err != nil {
				return result, err
			}
			continue
		}

		result.Status = status
		result.RateLimit = parseRateLimitHeaders(headers)
		retryAfter := parseRetryAfter(headers.Get("Retry-After"))
		if retryAfter > 0 {
			result.RetryAfter = retryAfter
		}
		if status == http.StatusTooManyRequests {
			result.Saw429 = true
		}

		if status >= 200 && status < 300 {
			result.Data = response.Data
			result.Errors = response.Errors

			if len(response.Errors) == 0 {
				result.OK = true
				return result, nil
			}

			hasData := hasUsableData(response.Data)
			if !hasData && hasRetryableGraphQLError(response.Errors) && attempt < opts.MaxAttempts {
				if anyErrorStatus(response.Errors, http.StatusTooManyRequests) {
					result.Saw429 = true
				}
				if err := c.backoff(ctx, attempt, opts, graphQLErrorStatus(response.Errors), retryAfter, nil); err != nil {
					return result, err
				}
				continue
			}

			result.OK = hasData
			return result, nil
		}

		if _, retryable := retryableStatuses[status]; retryable && attempt < opts.MaxAttempts {
			if err := c.backoff(ctx, attempt, opts, status, retryAfter, nil); err != nil {
				return result, err
			}
			continue
		}

		result.OK = false
		return result, nil
	}

	return result, nil
}

func (c *Client) attempt(ctx context.Context, query string, variables map[string]any, timeout time.Duration) (graphqlResponse, int, http.Header, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return graphqlResponse{}, 0, nil, fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return graphqlResponse{}, 0, nil, fmt.Errorf("create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return graphqlResponse{}, 0, nil, fmt.Errorf("request graphql: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return graphqlResponse{}, 0, nil, fmt.Errorf("read graphql response: %w", err)
	}

	var decoded graphqlResponse
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			return graphqlResponse{}, 0, nil, fmt.Errorf("decode graphql response: %w", err)
		}
	} else {
		// Error bodies are often JSON with the same errors shape; decode
		// best-effort for diagnostics.
		_ = json.Unmarshal(body, &decoded)
	}

	return decoded, res.StatusCode, res.Header, nil
}

// backoff sleeps before the next attempt. A parsed Retry-After acts as the
// wait floor; otherwise exponential backoff with jitter applies. The sleep is
// cancellable and cancellation is propagated as-is.
func (c *Client) backoff(ctx context.Context, attempt int, opts RequestOptions, status int, retryAfter time.Duration, cause error) error {
	wait := opts.BaseDelay<<(attempt-1) + time.Duration(rand.Int63n(int64(jitterCeiling)))
	if wait > opts.MaxRetryDelay {
		wait = opts.MaxRetryDelay
	}
	if retryAfter > wait {
		wait = retryAfter
	}

	if opts.OnRetry != nil {
		invokeRetryHook(opts.OnRetry, RetryInfo{
			Attempt:     attempt,
			MaxAttempts: opts.MaxAttempts,
			Wait:        wait,
			Status:      status,
			Err:         cause,
		}, c.logger)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// invokeRetryHook shields the retry loop from a misbehaving caller hook.
func invokeRetryHook(hook func(RetryInfo), info RetryInfo, logger *slog.Logger) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Warn("retry hook panicked", "panic", recovered)
		}
	}()
	hook(info)
}

// IsCancellation reports whether err is a caller cancellation or deadline,
// which must never be logged or retried as a real failure.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func hasUsableData(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) && !bytes.Equal(trimmed, []byte("{}"))
}

func hasRetryableGraphQLError(graphQLErrors []GraphQLError) bool {
	for _, gqlErr := range graphQLErrors {
		if _, ok := retryableStatuses[gqlErr.Status]; ok && gqlErr.Status != http.StatusNotFound {
			return true
		}
		message := strings.ToLower(gqlErr.Message)
		for _, keyword := range retryableErrorKeywords {
			if strings.Contains(message, keyword) {
				return true
			}
		}
	}
	return false
}

func anyErrorStatus(graphQLErrors []GraphQLError, status int) bool {
	for _, gqlErr := range graphQLErrors {
		if gqlErr.Status == status {
			return true
		}
	}
	return false
}

func graphQLErrorStatus(graphQLErrors []GraphQLError) int {
	for _, gqlErr := range graphQLErrors {
		if gqlErr.Status != 0 {
			return gqlErr.Status
		}
	}
	return 0
}

func parseRateLimitHeaders(headers http.Header) RateLimitSnapshot {
	snapshot := RateLimitSnapshot{}
	if value, ok := parseIntHeader(headers, "X-RateLimit-Remaining"); ok {
		snapshot.Remaining = &value
	}
	if value, ok := parseIntHeader(headers, "X-RateLimit-Limit"); ok {
		snapshot.Limit = &value
	}
	if raw := strings.TrimSpace(headers.Get("X-RateLimit-Reset")); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			snapshot.Reset = &parsed
		}
	}
	if value, ok := parseIntHeader(headers, "X-RateLimit-Reset-After"); ok {
		resetAfter := time.Duration(value) * time.Second
		snapshot.ResetAfter = &resetAfter
	}
	return snapshot
}

func parseIntHeader(headers http.Header, name string) (int, bool) {
	raw := strings.TrimSpace(headers.Get(name))
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(raw string) time.Duration {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(trimmed); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(trimmed); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}
