// Package fetch performs a single HTTP GET against a target page with a
// configured timeout, user agent, and retry policy.
package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrorKind classifies a fetch failure for retry and event-reporting
// purposes.
type ErrorKind string

const (
	ErrNone             ErrorKind = ""
	ErrNetwork          ErrorKind = "network"
	ErrTimeout          ErrorKind = "timeout"
	ErrHTTP4xx          ErrorKind = "http_4xx"
	ErrHTTP5xx          ErrorKind = "http_5xx"
	ErrWrongContentType ErrorKind = "wrong_content_type"
	ErrTooLarge         ErrorKind = "too_large"
)

// Retryable reports whether a failure of this kind should be retried per
// spec.md §4.2: network, timeout, 5xx, and nothing else.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrNetwork, ErrTimeout, ErrHTTP5xx:
		return true
	default:
		return false
	}
}

// Response is the result of a successful fetch.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	FinalURL   string
}

// Options configures a single fetch attempt.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	MaxBodySize int64
}

const defaultMaxBodySize = 10 << 20 // 10 MiB

// Client performs HTTP GETs against target pages. Fetch makes one attempt
// and never sleeps, leaving retry timing to the caller (the queue);
// FetchWithRetry (retry.go) makes all attempts itself, sleeping with
// backoff between them.
type Client struct {
	http *http.Client
}

// NewClient constructs a Client with redirects capped at 5 hops and no
// cookie jar, per spec.md §6's "no cookies, no redirects beyond a small
// limit".
func NewClient() *Client {
	return &Client{
		http: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch performs one GET attempt. It returns either a Response or a
// non-empty ErrorKind; callers decide whether to retry based on
// ErrorKind.Retryable().
func (c *Client) Fetch(ctx context.Context, rawURL string, opts Options) (*Response, ErrorKind) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, ErrNetwork
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "docuforge-crawler/1.0 (+https://github.com/docuforge/docuforge)"
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html, application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, ErrNetwork
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if !isAcceptableContentType(ct) {
		return nil, ErrWrongContentType
	}

	maxSize := opts.MaxBodySize
	if maxSize <= 0 {
		maxSize = defaultMaxBodySize
	}

	limited := io.LimitReader(resp.Body, maxSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, ErrNetwork
	}
	if int64(len(body)) > maxSize {
		return nil, ErrTooLarge
	}

	if resp.StatusCode >= 500 {
		return nil, ErrHTTP5xx
	}
	if resp.StatusCode >= 400 {
		return nil, ErrHTTP4xx
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		FinalURL:   finalURL,
	}, ErrNone
}

func isAcceptableContentType(ct string) bool {
	if ct == "" {
		// Some documentation servers omit Content-Type; be permissive and
		// let the content extractor's quality gate catch garbage.
		return true
	}
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
