// Package source defines the package-source capability consumed by the
// gather engine, and hosts its implementations in subpackages:
//
//   - [github.com/matzehuels/pkggather/pkg/source/local]: the packages folder
//     holding already-installed packages as TOML manifests
//   - [github.com/matzehuels/pkggather/pkg/source/remote]: an HTTP JSON feed
//   - [github.com/matzehuels/pkggather/pkg/source/memory]: literal package
//     lists held in process
//
// A [Source] is a handle for a configured source. Resolving its
// [DependencyInfoResource] may do I/O (opening a directory, probing a feed),
// so the gatherer does it once per distinct source before fetching begins.
package source

import (
	"context"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
)

// Source is a configured package source.
type Source interface {
	// Name returns the stable identity of the source (a URL or path).
	// Two sources with the same name are treated as the same source.
	Name() string

	// DependencyInfo resolves the dependency-info capability of the source.
	// An error here means the source is unusable.
	DependencyInfo(ctx context.Context) (DependencyInfoResource, error)
}

// Fingerprinter is implemented by sources whose name does not identify
// their contents. Fingerprint returns a digest that changes whenever the
// packages the source serves change.
type Fingerprinter interface {
	Fingerprint() string
}

// DependencyInfoResource answers dependency metadata queries.
// Implementations must be safe for concurrent use.
type DependencyInfoResource interface {
	// ResolvePackage returns the metadata of one exact identity, with the
	// dependency group nearest to framework. It returns (nil, nil) when the
	// source does not have the package.
	ResolvePackage(ctx context.Context, id packaging.Identity, framework packaging.Framework) (*packaging.SourcePackageDependencyInfo, error)

	// ResolvePackages returns the metadata of every available version of id.
	// An unknown id yields an empty slice and no error.
	ResolvePackages(ctx context.Context, id string, framework packaging.Framework) ([]*packaging.SourcePackageDependencyInfo, error)
}

// Flatten turns a package's dependency groups into the flat dependency
// record the gatherer works with, choosing the group nearest to framework.
func Flatten(id packaging.Identity, groups []packaging.DependencyGroup, framework packaging.Framework, listed bool, source string) *packaging.SourcePackageDependencyInfo {
	info := &packaging.SourcePackageDependencyInfo{Identity: id, Listed: listed, Source: source}
	if g, ok := framework.Nearest(groups); ok && len(g.Dependencies) > 0 {
		info.Dependencies = append([]packaging.Dependency(nil), g.Dependencies...)
	}
	return info
}
