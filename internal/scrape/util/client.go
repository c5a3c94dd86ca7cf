package util

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultUserAgent = "gradscout/1.0 (+new-grad job search; polite crawler)"

	maxBodyBytes = 8 << 20
)

type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Initial: 500 * time.Millisecond, Max: 8 * time.Second}
}

// Client is the one way extractors talk to the network: every attempt is paced,
// carries the identifying User-Agent, and transient failures are retried with
// exponential backoff.
type Client struct {
	hc        *http.Client
	pacer     Pacer
	userAgent string
	retry     RetryPolicy
	log       *slog.Logger
}

type ClientOption func(*Client)

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithRetry(p RetryPolicy) ClientOption {
	return func(c *Client) { c.retry = p }
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func NewClient(hc *http.Client, pacer Pacer, opts ...ClientOption) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	if pacer == nil {
		pacer = NoDelay{}
	}
	c := &Client{
		hc:        hc,
		pacer:     pacer,
		userAgent: DefaultUserAgent,
		retry:     DefaultRetryPolicy(),
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

func (c *Client) Pacer() Pacer { return c.pacer }

// Get fetches rawURL and returns the body. 5xx, 429 and transport errors are
// retried; other non-2xx statuses fail immediately.
func (c *Client) Get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	var body []byte
	attempt := 0

	op := func() error {
		attempt++
		if err := c.pacer.WaitURL(ctx, rawURL); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(&NetworkError{URL: rawURL, Err: err})
		}
		req.Header.Set("User-Agent", c.userAgent)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		res, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return &NetworkError{URL: rawURL, Err: err, Retryable: true}
		}
		defer res.Body.Close()

		if res.StatusCode < 200 || res.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
			ne := &NetworkError{URL: rawURL, StatusCode: res.StatusCode, Retryable: retryableStatus(res.StatusCode)}
			if !ne.Retryable {
				return backoff.Permanent(ne)
			}
			return ne
		}

		b, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return &NetworkError{URL: rawURL, Err: err, Retryable: true}
		}
		body = b
		return nil
	}

	err := backoff.RetryNotify(op, c.policy(ctx), func(err error, wait time.Duration) {
		c.log.Debug("[http] retrying", "url", rawURL, "attempt", attempt, "wait", wait, "err", err)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retry.Initial
	if c.retry.Max > 0 {
		b.MaxInterval = c.retry.Max
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retry.MaxAttempts-1)), ctx)
}

// GetJSON decodes a JSON body into v. A decode failure is a ParseError.
func (c *Client) GetJSON(ctx context.Context, rawURL, source string, v any) error {
	b, err := c.Get(ctx, rawURL, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return &ParseError{Source: source, Reason: "unexpected json payload", Err: err}
	}
	return nil
}

func (c *Client) GetDocument(ctx context.Context, rawURL, source string) (*goquery.Document, error) {
	b, err := c.Get(ctx, rawURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, &ParseError{Source: source, Reason: "unreadable html", Err: err}
	}
	return doc, nil
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}
