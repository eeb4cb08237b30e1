package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// New returns an HTTP client with a per-attempt timeout.
func New(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// DoWithRetry issues the request built by build, retrying transport failures
// and 5xx responses with jittered exponential backoff, up to maxRetries
// extra attempts. Responses below 500 are returned as-is; after the retry
// budget is spent the last 5xx response is returned with a nil error so the
// caller can read the upstream body. The caller owns resp.Body.
//
// build is called once per attempt and must produce a fresh request bound
// to ctx.
func DoWithRetry(ctx context.Context, client *http.Client, maxRetries int, build func() (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response

	attempt := func() error {
		if resp != nil {
			// Previous attempt returned a 5xx that will not be read.
			resp.Body.Close()
			resp = nil
		}

		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}

		r, err := client.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			resp = r
			return fmt.Errorf("upstream returned HTTP %d", r.StatusCode)
		}

		resp = r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries)),
		ctx,
	)
	if err := backoff.Retry(attempt, policy); err != nil {
		if resp != nil {
			return resp, nil
		}
		return nil, err
	}
	return resp, nil
}
