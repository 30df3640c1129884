package anilist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastOptions() RequestOptions {
	return RequestOptions{
		AttemptTimeout: 2 * time.Second,
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
	}
}

func TestDoRetriesOn429ThenSucceeds(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", "88")
		w.Header().Set("X-RateLimit-Limit", "90")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"Media":{"id":1}}}`))
	}))
	defer server.Close()

	retries := 0
	opts := fastOptions()
	opts.OnRetry = func(info RetryInfo) {
		retries++
		if info.Status != http.StatusTooManyRequests {
			t.Errorf("retry info status = %d, want 429", info.Status)
		}
	}

	client := NewClient(server.URL, server.Client(), nil)
	result, err := client.Do(context.Background(), "query { x }", nil, opts)
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !result.OK {
		t.Fatal("expected OK result after retries")
	}
	if !result.Saw429 {
		t.Error("expected Saw429 to be recorded")
	}
	if retries != 2 {
		t.Errorf("expected 2 retry notifications, got %d", retries)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
	if result.RateLimit.Remaining == nil || *result.RateLimit.Remaining != 88 {
		t.Errorf("rate limit headers not parsed: %+v", result.RateLimit)
	}
}

func TestDoNonRetryableStatus(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"Validation error","status":400}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), nil)
	result, err := client.Do(context.Background(), "query { x }", nil, fastOptions())
	if err != nil {
		t.Fatalf("degraded status must not be an error: %v", err)
	}
	if result.OK {
		t.Fatal("expected OK=false on 400")
	}
	if result.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", result.Status)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("400 should not be retried, got %d requests", got)
	}
}

func TestDoGraphQLErrorWithUsableData(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"Media":{"id":5}},"errors":[{"message":"Internal Server Error","status":500}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), nil)
	result, err := client.Do(context.Background(), "query { x }", nil, fastOptions())
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if !result.OK {
		t.Fatal("partial data alongside errors should still be usable")
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("usable data should not be retried, got %d requests", got)
	}
}

func TestDoGraphQLNotFoundIsTerminal(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Media not found.","status":404}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), nil)
	result, err := client.Do(context.Background(), "query { x }", nil, fastOptions())
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if result.OK {
		t.Fatal("null data with a 404 error is not usable")
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("GraphQL 404 should not be retried, got %d requests", got)
	}
}

func TestDoCancellationDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := NewClient(server.URL, server.Client(), nil)
	start := time.Now()
	_, err := client.Do(ctx, "query { x }", nil, fastOptions())
	if !IsCancellation(err) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("cancellation did not interrupt the Retry-After wait (took %v)", elapsed)
	}
}

func TestDoTransportErrorExhaustsAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	opts := fastOptions()
	opts.MaxAttempts = 2

	client := NewClient(server.URL, &http.Client{}, nil)
	_, err := client.Do(context.Background(), "query { x }", nil, opts)
	if err == nil {
		t.Fatal("expected transport error after exhausting attempts")
	}
	if IsCancellation(err) {
		t.Fatalf("transport exhaustion must not look like cancellation: %v", err)
	}
}

func TestParseRetryAfterForms(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("delta-seconds parse = %v, want 3s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("empty header = %v, want 0", got)
	}
	if got := parseRetryAfter("-1"); got != 0 {
		t.Errorf("negative header = %v, want 0", got)
	}
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(future); got <= 0 || got > 30*time.Second {
		t.Errorf("http-date parse = %v, want in (0, 30s]", got)
	}
}

func TestIsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if !IsCancellation(ctx.Err()) {
		t.Error("context.Canceled should be cancellation")
	}

	deadlineCtx, deadlineCancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer deadlineCancel()
	<-deadlineCtx.Done()
	if !IsCancellation(deadlineCtx.Err()) {
		t.Error("context.DeadlineExceeded should be cancellation")
	}

	if IsCancellation(nil) {
		t.Error("nil error is not cancellation")
	}
}
