package fetch

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// MaxAttempts is the total attempt cap of spec.md §4.2 (1 initial + 2
// retries).
const MaxAttempts = 3

// FetchWithRetry wraps Client.Fetch with exponential backoff (base 1s,
// factor 2) for retryable error kinds, capped at MaxAttempts total
// attempts. Non-retryable failures return immediately on the first
// attempt.
func (c *Client) FetchWithRetry(ctx context.Context, rawURL string, opts Options) (*Response, ErrorKind, int) {
	backoff := retry.NewExponential(1 * time.Second)
	backoff = retry.WithMaxRetries(MaxAttempts-1, backoff)

	var (
		lastResp *Response
		lastKind ErrorKind
		attempts int
	)

	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		resp, kind := c.Fetch(ctx, rawURL, opts)
		lastResp, lastKind = resp, kind

		if kind == ErrNone {
			return nil
		}
		if kind.Retryable() {
			return retry.RetryableError(errKind(kind))
		}
		return errKind(kind)
	})

	return lastResp, lastKind, attempts
}

type errKind ErrorKind

func (e errKind) Error() string { return string(e) }
