package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Config tunes the transport and retry policy.
type Config struct {
	Timeout         time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"10s"`
	MaxRetries      int           `env:"HTTP_CLIENT_MAX_RETRIES" envDefault:"2"`
	RetryWaitMin    time.Duration `env:"HTTP_CLIENT_RETRY_WAIT_MIN" envDefault:"200ms"`
	RetryWaitMax    time.Duration `env:"HTTP_CLIENT_RETRY_WAIT_MAX" envDefault:"2s"`
	MaxConnsPerHost int           `env:"HTTP_CLIENT_MAX_CONNS_PER_HOST" envDefault:"32"`
}

// DefaultConfig mirrors the envDefault values.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 32,
	}
}

// Client is an http.Client with pooled connections and retries. Only
// idempotent requests (GET, HEAD, PUT, DELETE, OPTIONS) are retried, so a
// vote or a submission is never sent twice by the transport layer.
type Client struct {
	http *http.Client
	cfg  Config
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Client{http: &http.Client{Transport: transport, Timeout: cfg.Timeout}, cfg: cfg}
}

// Do sends req, retrying idempotent requests on network errors and on 502,
// 503 and 504 with capped exponential backoff.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	attempts := 1
	if idempotent(req.Method) {
		attempts += c.cfg.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.wait(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		try, err := rewind(ctx, req)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(try)
		if err != nil {
			lastErr = err
			if retryable(ctx, err) {
				continue
			}
			break
		}
		if transientStatus(resp.StatusCode) && attempt < attempts-1 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), lastErr)
}

func (c *Client) wait(attempt int) time.Duration {
	d := c.cfg.RetryWaitMin << (attempt - 1)
	if c.cfg.RetryWaitMax > 0 && d > c.cfg.RetryWaitMax {
		d = c.cfg.RetryWaitMax
	}
	return d
}

// rewind returns a copy of req bound to ctx with a fresh body.
func rewind(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return r, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	r.Body = body
	return r, nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func transientStatus(code int) bool {
	return code == http.StatusBadGateway || code == http.StatusServiceUnavailable || code == http.StatusGatewayTimeout
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
