// Package integrations provides the HTTP plumbing shared by feed clients.
//
// [Client] wraps an [http.Client] with response caching through a
// [cache.Cache], retry through [httputil.Retry], and default headers.
// Feed-specific clients embed it:
//
//	type Client struct {
//	    *integrations.Client
//	    baseURL string
//	}
//
// Status codes map to errors as follows:
//
//   - 404: [ErrNotFound]
//   - 429: a retryable [errors.RateLimitedError] honoring Retry-After
//   - 5xx and connection failures: a retryable [ErrNetwork]
//   - other non-200 codes: a permanent [ErrNetwork]
//
// The only feed in this module lives in [feed].
//
// [cache.Cache]: github.com/matzehuels/pkggather/pkg/cache.Cache
// [httputil.Retry]: github.com/matzehuels/pkggather/pkg/httputil.Retry
// [errors.RateLimitedError]: github.com/matzehuels/pkggather/pkg/errors.RateLimitedError
// [feed]: github.com/matzehuels/pkggather/pkg/integrations/feed
package integrations
