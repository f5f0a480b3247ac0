package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/config"
	"github.com/gocolly/colly/v2"
)

const (
	responseKey = "response"
	startKey    = "start"
)

// Response is a successful (2xx) reply.
type Response struct {
	URL         string
	StatusCode  int
	Body        []byte
	ContentType string
	Attempts    int
}

// Client issues GET requests through a colly collector and applies the
// retry policy. It is the only component that touches the network and is
// safe for concurrent use by several source runs.
type Client struct {
	collector *colly.Collector
	policy    RetryPolicy
	Metrics   *Metrics
}

// NewClient builds a fetch client configured from cfg.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(0),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.ParseHTTPErrorResponse = true
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	})

	if cfg.Delay > 0 || cfg.RandomDelay > 0 {
		if err := collector.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Delay:       cfg.Delay,
			RandomDelay: cfg.RandomDelay,
		}); err != nil {
			return nil, fmt.Errorf("configure rate limits: %w", err)
		}
	}

	c := &Client{
		collector: collector,
		policy:    NewRetryPolicy(cfg),
		Metrics:   metrics,
	}
	c.configureHandlers()
	return c, nil
}

// WithTransport swaps the underlying round tripper.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.collector.WithTransport(rt)
}

// Policy returns the retry policy in use.
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Fetch retrieves rawURL, retrying transient failures with exponential
// backoff. Any error returned is a *FetchFailure. Cancellation is checked
// before every attempt; an attempt already in flight runs until it
// completes or hits the request timeout.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &FetchFailure{URL: rawURL, Attempts: attempt - 1, Permanent: true, Err: err}
		}

		resp, err := c.do(rawURL, attempt)
		if err == nil {
			resp.Attempts = attempt
			return resp, nil
		}

		label := errorTypeLabel(err)
		c.Metrics.IncError(label)

		if !c.policy.ShouldRetry(err, attempt) {
			return nil, &FetchFailure{URL: rawURL, Attempts: attempt, Permanent: !c.policy.IsRetryable(err), Err: err}
		}

		delay := c.policy.Backoff(attempt)
		c.Metrics.IncRetries()
		slog.Debug("retrying request",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt),
			slog.String("category", label),
			slog.Duration("backoff", delay),
		)
		if err := sleepContext(ctx, delay); err != nil {
			return nil, &FetchFailure{URL: rawURL, Attempts: attempt, Permanent: true, Err: err}
		}
	}
}

func (c *Client) do(rawURL string, attempt int) (*Response, error) {
	phase := "initial"
	if attempt > 1 {
		phase = "retry"
	}
	c.Metrics.IncRequest(phase)

	res := &Response{URL: rawURL}
	reqCtx := colly.NewContext()
	reqCtx.Put(responseKey, res)

	if err := c.collector.Request(http.MethodGet, rawURL, nil, reqCtx, nil); err != nil {
		return nil, classifyError(err, 0)
	}
	if res.StatusCode == 0 {
		return nil, fmt.Errorf("no response received for %s", rawURL)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		slog.Debug("non-2xx response",
			slog.Int("status", res.StatusCode),
			slog.String("url", rawURL),
		)
		return nil, classifyError(nil, res.StatusCode)
	}
	return res, nil
}

func (c *Client) configureHandlers() {
	c.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(startKey, time.Now())
	})

	c.collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Request.Ctx.GetAny(startKey).(time.Time); ok {
			c.Metrics.ObserveDuration(time.Since(start))
		}
		res, ok := r.Ctx.GetAny(responseKey).(*Response)
		if !ok {
			return
		}
		res.StatusCode = r.StatusCode
		res.Body = r.Body
		if r.Request != nil && r.Request.URL != nil {
			res.URL = r.Request.URL.String()
		}
		if r.Headers != nil {
			res.ContentType = r.Headers.Get("Content-Type")
		}
	})
}
