// Package remote implements a package source backed by an HTTP JSON feed.
//
// Lookups go through [feed.Client], so responses are cached and transient
// failures retried. A package the feed does not know is not an error; the
// lookup returns nothing. Network failures surface as NETWORK_ERROR or
// RATE_LIMITED coded errors, and deadline expiry as TIMEOUT.
package remote

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/matzehuels/pkggather/pkg/cache"
	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/errors"
	"github.com/matzehuels/pkggather/pkg/integrations"
	"github.com/matzehuels/pkggather/pkg/integrations/feed"
	"github.com/matzehuels/pkggather/pkg/source"
)

// Feed is an HTTP feed source.
type Feed struct {
	client  *feed.Client
	refresh bool
}

// New creates a feed source for baseURL, caching responses in backend for ttl.
func New(backend cache.Cache, baseURL string, ttl time.Duration) *Feed {
	return &Feed{client: feed.NewClient(backend, baseURL, ttl)}
}

// NewFromClient creates a feed source from an existing client.
func NewFromClient(c *feed.Client) *Feed {
	return &Feed{client: c}
}

// Refresh makes every lookup bypass the response cache.
func (f *Feed) Refresh(v bool) *Feed {
	f.refresh = v
	return f
}

// Name implements [source.Source]: the feed base URL.
func (f *Feed) Name() string { return f.client.BaseURL() }

// DependencyInfo implements [source.Source]. Only the URL is checked; the
// feed itself is contacted lazily.
func (f *Feed) DependencyInfo(ctx context.Context) (source.DependencyInfoResource, error) {
	if err := errors.ValidateURL(f.client.BaseURL()); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceInit, err, "feed %s", f.client.BaseURL())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &resource{feed: f}, nil
}

type resource struct {
	feed *Feed
}

// ResolvePackage implements [source.DependencyInfoResource].
func (r *resource) ResolvePackage(ctx context.Context, id packaging.Identity, fw packaging.Framework) (*packaging.SourcePackageDependencyInfo, error) {
	all, err := r.ResolvePackages(ctx, id.ID, fw)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.Identity.Equal(id) {
			return p, nil
		}
	}
	return nil, nil
}

// ResolvePackages implements [source.DependencyInfoResource].
func (r *resource) ResolvePackages(ctx context.Context, id string, fw packaging.Framework) ([]*packaging.SourcePackageDependencyInfo, error) {
	if err := errors.ValidatePackageID(id); err != nil {
		return nil, err
	}
	idx, err := r.feed.client.FetchIndex(ctx, id, r.feed.refresh)
	if err != nil {
		if stderrors.Is(err, integrations.ErrNotFound) {
			return nil, nil
		}
		return nil, classify(err, r.feed.Name(), id)
	}

	out := make([]*packaging.SourcePackageDependencyInfo, 0, len(idx.Versions))
	for _, e := range idx.Versions {
		pkgID, err := packaging.ParseIdentity(idx.ID, e.Version)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidVersion, err, "%s: %s", r.feed.Name(), id)
		}
		groups, err := convertGroups(e.Groups)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPackage, err, "%s: %s", r.feed.Name(), pkgID)
		}
		out = append(out, source.Flatten(pkgID, groups, fw, e.IsListed(), r.feed.Name()))
	}
	packaging.SortInfos(out)
	return out, nil
}

func convertGroups(in []feed.Group) ([]packaging.DependencyGroup, error) {
	out := make([]packaging.DependencyGroup, 0, len(in))
	for _, g := range in {
		fw, err := packaging.ParseFramework(g.Framework)
		if err != nil {
			return nil, err
		}
		deps := make([]packaging.Dependency, 0, len(g.Dependencies))
		for _, d := range g.Dependencies {
			rng, err := packaging.ParseVersionRange(d.Range)
			if err != nil {
				return nil, err
			}
			deps = append(deps, packaging.Dependency{ID: d.ID, Range: rng})
		}
		out = append(out, packaging.DependencyGroup{Framework: fw, Dependencies: deps})
	}
	return out, nil
}

// classify maps transport failures onto error codes.
func classify(err error, feedName, id string) error {
	var rl *errors.RateLimitedError
	switch {
	case stderrors.Is(err, context.Canceled):
		return err
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeTimeout, err, "%s: %s", feedName, id)
	case stderrors.As(err, &rl):
		return errors.Wrap(errors.ErrCodeRateLimited, err, "%s: %s", feedName, id)
	case stderrors.Is(err, integrations.ErrNetwork):
		return errors.Wrap(errors.ErrCodeNetwork, err, "%s: %s", feedName, id)
	default:
		return err
	}
}

var _ source.Source = (*Feed)(nil)
