// Package httputil provides retry helpers shared by the feed clients.
//
// [Retry] re-runs an operation with exponential backoff, but only when the
// failure is wrapped in a [RetryableError]. Clients wrap transient failures
// (connection errors, 5xx responses, 429 rate limits) and return everything
// else as-is:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
//
// A [RetryableError] may carry a server-provided RetryAfter hint, which
// replaces the computed delay for the next attempt.
//
// Response caching lives in the cache package; this package does no I/O of
// its own.
package httputil
