package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/coralcommerce/dispatcher/errs"
)

const (
	maxSendAttempts  = 3
	sendTimeout      = 10 * time.Second
	initialBackoff   = 500 * time.Millisecond
)

// doWithRetry issues req up to maxSendAttempts times, retrying on 5xx
// and network/timeout errors with exponential backoff; a 4xx response
// is terminal and surfaces as errs.PermanentTransport.
func doWithRetry(ctx context.Context, client *http.Client, newReq func(ctx context.Context) (*http.Request, error)) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxSendAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return errs.Wrap(errs.TransientTransport, "send aborted by context", ctx.Err())
			}
			backoff *= 2
		}

		reqCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		req, err := newReq(reqCtx)
		if err != nil {
			cancel()
			return errs.Wrap(errs.BadRequest, "build outbound request", err)
		}

		resp, err := client.Do(req)
		cancel()
		if err != nil {
			lastErr = errs.Wrap(errs.TransientTransport, "outbound request failed", err)
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return errs.New(errs.PermanentTransport, http.StatusText(resp.StatusCode))
		default:
			lastErr = errs.New(errs.TransientTransport, http.StatusText(resp.StatusCode))
		}
	}

	if lastErr == nil {
		lastErr = errs.New(errs.TransientTransport, "exhausted retries")
	}
	return lastErr
}
