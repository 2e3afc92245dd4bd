// Package memory provides an in-process package source backed by literal
// package lists. It is used for inline sources in HTTP API requests and as a
// deterministic source in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/matzehuels/pkggather/pkg/cache"
	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/source"
)

// Package is one version of a package held by a [Source].
type Package struct {
	Identity packaging.Identity
	Groups   []packaging.DependencyGroup
	Unlisted bool
}

// Source is an in-memory package source. The zero value is not usable; use [New].
type Source struct {
	name string

	mu       sync.RWMutex
	packages map[string][]Package // keyed by normalized id
}

// New creates an empty in-memory source with the given name.
func New(name string) *Source {
	return &Source{name: name, packages: make(map[string][]Package)}
}

// Add registers a package version with framework-independent dependencies.
func (s *Source) Add(id packaging.Identity, deps ...packaging.Dependency) *Source {
	return s.AddPackage(Package{
		Identity: id,
		Groups:   []packaging.DependencyGroup{{Framework: packaging.AnyFramework, Dependencies: deps}},
	})
}

// AddPackage registers a package version. Adding the same identity twice
// replaces the earlier entry.
func (s *Source) AddPackage(p Package) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := packaging.NormalizeID(p.Identity.ID)
	versions := s.packages[k]
	for i, existing := range versions {
		if existing.Identity.Equal(p.Identity) {
			versions[i] = p
			return s
		}
	}
	s.packages[k] = append(versions, p)
	return s
}

// Name implements [source.Source].
func (s *Source) Name() string { return s.name }

// Fingerprint implements [source.Fingerprinter]. The digest covers every
// package identity, listing state and dependency group, and does not
// depend on insertion order.
func (s *Source) Fingerprint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var lines []string
	for _, versions := range s.packages {
		for _, p := range versions {
			lines = append(lines, fingerprintLine(p))
		}
	}
	sort.Strings(lines)
	return cache.Hash([]byte(strings.Join(lines, "\n")))
}

func fingerprintLine(p Package) string {
	var b strings.Builder
	b.WriteString(p.Identity.Key())
	if p.Unlisted {
		b.WriteString("|unlisted")
	}
	groups := make([]string, 0, len(p.Groups))
	for _, g := range p.Groups {
		deps := make([]string, 0, len(g.Dependencies))
		for _, d := range g.Dependencies {
			deps = append(deps, packaging.NormalizeID(d.ID)+" "+d.Range.String())
		}
		sort.Strings(deps)
		groups = append(groups, g.Framework.String()+"("+strings.Join(deps, ",")+")")
	}
	sort.Strings(groups)
	b.WriteString("|")
	b.WriteString(strings.Join(groups, ";"))
	return b.String()
}

// DependencyInfo implements [source.Source].
func (s *Source) DependencyInfo(context.Context) (source.DependencyInfoResource, error) {
	return s, nil
}

// ResolvePackage implements [source.DependencyInfoResource].
func (s *Source) ResolvePackage(ctx context.Context, id packaging.Identity, fw packaging.Framework) (*packaging.SourcePackageDependencyInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.packages[packaging.NormalizeID(id.ID)] {
		if p.Identity.Equal(id) {
			return source.Flatten(p.Identity, p.Groups, fw, !p.Unlisted, s.name), nil
		}
	}
	return nil, nil
}

// ResolvePackages implements [source.DependencyInfoResource].
func (s *Source) ResolvePackages(ctx context.Context, id string, fw packaging.Framework) ([]*packaging.SourcePackageDependencyInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.packages[packaging.NormalizeID(id)]
	out := make([]*packaging.SourcePackageDependencyInfo, 0, len(versions))
	for _, p := range versions {
		out = append(out, source.Flatten(p.Identity, p.Groups, fw, !p.Unlisted, s.name))
	}
	packaging.SortInfos(out)
	return out, nil
}

var (
	_ source.Source                 = (*Source)(nil)
	_ source.DependencyInfoResource = (*Source)(nil)
	_ source.Fingerprinter          = (*Source)(nil)
)
