package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/config"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 4 * time.Millisecond
	cfg.Timeout = 5 * time.Second

	client, err := NewClient(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport := httpmock.NewMockTransport()
	client.WithTransport(transport)
	return client, transport
}

func sequenceResponder(calls *int, statuses ...int) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		idx := *calls
		*calls++
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		status := statuses[idx]
		return httpmock.NewStringResponse(status, fmt.Sprintf("status %d body", status)), nil
	}
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	transient := ErrServer{Status: 503, Err: errors.New("busy")}
	if !policy.ShouldRetry(transient, 1) || !policy.ShouldRetry(transient, 2) {
		t.Fatalf("transient errors should be retried below the attempt limit")
	}
	if policy.ShouldRetry(transient, 3) {
		t.Fatalf("attempt limit reached, should not retry")
	}
	if policy.ShouldRetry(ErrNotFound{Err: errors.New("gone")}, 1) {
		t.Fatalf("404 should not be retried")
	}
	if !policy.ShouldRetry(ErrRateLimited{Err: errors.New("slow down")}, 1) {
		t.Fatalf("429 should be retried")
	}

	custom := RetryPolicy{MaxAttempts: 5, Retryable: func(error) bool { return false }}
	if custom.ShouldRetry(transient, 1) {
		t.Fatalf("custom predicate should be honoured")
	}
}

func TestRetryPolicyBackoffCapped(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 200 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	if got := policy.Backoff(1); got != 200*time.Millisecond {
		t.Fatalf("first backoff = %v, want 200ms", got)
	}
	if got := policy.Backoff(2); got != 400*time.Millisecond {
		t.Fatalf("second backoff = %v, want 400ms", got)
	}
	if got := policy.Backoff(4); got != policy.MaxDelay {
		t.Fatalf("delay %v should be capped at %v", got, policy.MaxDelay)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "gone", err: nil, statusCode: http.StatusGone, expected: "client_error"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: nil, statusCode: http.StatusBadGateway, expected: "server_error"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestClientFetchSuccess(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", "http://example.test/data.zip", httpmock.NewBytesResponder(200, []byte("PK\x03\x04payload")))

	resp, err := client.Fetch(context.Background(), "http://example.test/data.zip")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "PK\x03\x04payload" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
	if resp.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", resp.Attempts)
	}
}

func TestClientFetchRetriesTransient(t *testing.T) {
	client, transport := newTestClient(t)
	calls := 0
	transport.RegisterResponder("GET", "http://example.test/flaky.zip", sequenceResponder(&calls, 503, 429, 200))

	resp, err := client.Fetch(context.Background(), "http://example.test/flaky.zip")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls != 3 || resp.Attempts != 3 {
		t.Fatalf("calls=%d attempts=%d, want 3/3", calls, resp.Attempts)
	}
	if got := testutil.ToFloat64(client.Metrics.RetriesTotal); got != 2 {
		t.Fatalf("retries metric = %v, want 2", got)
	}
}

func TestClientFetchRetriesExhausted(t *testing.T) {
	client, transport := newTestClient(t)
	calls := 0
	transport.RegisterResponder("GET", "http://example.test/down.zip", sequenceResponder(&calls, 500))

	_, err := client.Fetch(context.Background(), "http://example.test/down.zip")
	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected FetchFailure, got %v", err)
	}
	if failure.Permanent {
		t.Fatalf("exhausted transient failure should not be permanent")
	}
	if failure.Attempts != 3 || calls != 3 {
		t.Fatalf("attempts=%d calls=%d, want 3", failure.Attempts, calls)
	}
	if failure.Label() != "server_error" {
		t.Fatalf("label = %q, want server_error", failure.Label())
	}
}

func TestClientFetchPermanentNotRetried(t *testing.T) {
	client, transport := newTestClient(t)
	calls := 0
	transport.RegisterResponder("GET", "http://example.test/missing.zip", sequenceResponder(&calls, 404))

	_, err := client.Fetch(context.Background(), "http://example.test/missing.zip")
	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected FetchFailure, got %v", err)
	}
	if !failure.Permanent || calls != 1 {
		t.Fatalf("permanent=%v calls=%d, want true/1", failure.Permanent, calls)
	}
	var notFound ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound in chain, got %v", err)
	}
}

func TestClientFetchCanceled(t *testing.T) {
	client, transport := newTestClient(t)
	calls := 0
	transport.RegisterResponder("GET", "http://example.test/late.zip", sequenceResponder(&calls, 200))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, "http://example.test/late.zip")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}

func TestClientFetchTransportError(t *testing.T) {
	client, transport := newTestClient(t)
	transport.RegisterResponder("GET", "http://example.test/reset.zip",
		httpmock.NewErrorResponder(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}))

	_, err := client.Fetch(context.Background(), "http://example.test/reset.zip")
	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected FetchFailure, got %v", err)
	}
	if failure.Label() != "connection" || failure.Attempts != 3 {
		t.Fatalf("label=%q attempts=%d, want connection/3", failure.Label(), failure.Attempts)
	}
}

func TestClientFetchTimeoutIsRetried(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 4 * time.Millisecond
	cfg.Timeout = 50 * time.Millisecond

	client, err := NewClient(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport := httpmock.NewMockTransport()
	client.WithTransport(transport)

	var calls atomic.Int32
	transport.RegisterResponder("GET", "http://example.test/slow.zip", func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		time.Sleep(300 * time.Millisecond)
		return httpmock.NewStringResponse(http.StatusOK, "PK\x03\x04 too late"), nil
	})

	_, err = client.Fetch(context.Background(), "http://example.test/slow.zip")
	var failure *FetchFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected FetchFailure, got %v", err)
	}
	if failure.Label() != "timeout" || ErrorLabel(err) != "timeout" {
		t.Fatalf("label = %q, want timeout", failure.Label())
	}
	if failure.Permanent {
		t.Fatalf("a timeout should be treated as transient")
	}
	if got := calls.Load(); got != 3 || failure.Attempts != 3 {
		t.Fatalf("calls=%d attempts=%d, want 3/3", got, failure.Attempts)
	}
	if got := testutil.ToFloat64(client.Metrics.RetriesTotal); got != 2 {
		t.Fatalf("retries metric = %v, want 2", got)
	}
}

func TestClientPolitenessDelay(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Delay = 40 * time.Millisecond

	client, err := NewClient(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if !client.collector.IgnoreRobotsTxt {
		t.Fatalf("robots.txt is ignored unless asked for")
	}
	transport := httpmock.NewMockTransport()
	client.WithTransport(transport)
	transport.RegisterResponder("GET", "http://example.test/page.html", httpmock.NewStringResponder(200, "<html></html>"))

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := client.Fetch(context.Background(), "http://example.test/page.html"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*cfg.Delay {
		t.Fatalf("two fetches took %s, want at least %s", elapsed, 2*cfg.Delay)
	}
}

func TestClientRespectsRobotsWhenConfigured(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RespectRobotsTxt = true

	client, err := NewClient(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.collector.IgnoreRobotsTxt {
		t.Fatalf("collector should honour robots.txt")
	}
}
