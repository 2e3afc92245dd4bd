package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist on the feed.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout for feed requests.
// The per-request gather timeout is usually shorter and applies via the context.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// PathEscape lowercases and percent-encodes a package id for use as a URL
// path segment. Feeds address packages by lowercased id.
func PathEscape(id string) string {
	return url.PathEscape(strings.ToLower(strings.TrimSpace(id)))
}

// JoinURL appends path segments to base, trimming duplicate slashes.
func JoinURL(base string, segments ...string) string {
	out := strings.TrimRight(base, "/")
	for _, s := range segments {
		out += "/" + strings.Trim(s, "/")
	}
	return out
}

// parseRetryAfter reads a Retry-After header in its delay-seconds form.
// HTTP-date values and garbage yield zero.
func parseRetryAfter(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
