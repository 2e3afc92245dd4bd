package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/pkggather/pkg/buildinfo"
	"github.com/matzehuels/pkggather/pkg/cache"
	"github.com/matzehuels/pkggather/pkg/integrations"
)

// Index is the per-package document served by a feed.
type Index struct {
	ID       string  `json:"id"`
	Versions []Entry `json:"versions"`
}

// Entry describes one published version.
type Entry struct {
	Version string  `json:"version"`
	Listed  *bool   `json:"listed,omitempty"`
	Groups  []Group `json:"groups,omitempty"`
}

// IsListed reports whether the version is offered by default.
func (e Entry) IsListed() bool { return e.Listed == nil || *e.Listed }

// Group holds the dependencies declared for one target framework.
type Group struct {
	Framework    string       `json:"framework"`
	Dependencies []Dependency `json:"dependencies"`
}

// Dependency is a declared dependency with its version range expression.
type Dependency struct {
	ID    string `json:"id"`
	Range string `json:"range,omitempty"`
}

// Client fetches package indexes from one feed.
//
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a feed client for baseURL with the given cache backend.
// Cache keys are namespaced by the base URL so several feeds can share one
// backend.
func NewClient(backend cache.Cache, baseURL string, cacheTTL time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	headers := map[string]string{
		"User-Agent": buildinfo.UserAgent(),
	}
	return &Client{
		Client:  integrations.NewClient(backend, "feed:"+baseURL, cacheTTL, headers),
		baseURL: baseURL,
	}
}

// BaseURL returns the feed root.
func (c *Client) BaseURL() string { return c.baseURL }

// FetchIndex retrieves the index for a package id. Ids are matched
// case-insensitively.
//
// If refresh is true, the cache is bypassed.
//
// Returns [integrations.ErrNotFound] (wrapped) if the feed has no such
// package, and [integrations.ErrNetwork] for HTTP failures.
func (c *Client) FetchIndex(ctx context.Context, id string, refresh bool) (*Index, error) {
	key := strings.ToLower(id)

	var idx Index
	err := c.Cached(ctx, key, refresh, &idx, func() error {
		return c.fetch(ctx, id, &idx)
	})
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

func (c *Client) fetch(ctx context.Context, id string, idx *Index) error {
	url := integrations.JoinURL(c.baseURL, "packages", integrations.PathEscape(id), "index.json")
	var data Index
	if err := c.Get(ctx, url, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: package %s", err, id)
		}
		return err
	}
	if data.ID == "" {
		data.ID = id
	}
	*idx = data
	return nil
}
