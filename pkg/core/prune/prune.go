// Package prune narrows a gathered candidate set.
//
// Every function is a pure filter: it takes a candidate slice and returns a
// new slice holding the survivors in their original order. Inputs are never
// modified, so passes compose in any order:
//
//	pkgs = prune.Downgrades(pkgs, installed)
//	pkgs = prune.PrereleaseExceptAllowed(pkgs, installed, false)
//	pkgs = prune.PrereleaseForStableTargets(pkgs, targets, toInstall)
//
// Which passes run, and in which order, is a policy decision left to the
// caller. Ids are compared case-insensitively throughout.
package prune

import (
	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
)

// Package is the candidate record the passes operate on.
type Package = packaging.SourcePackageDependencyInfo

// filter returns the packages for which keep reports true.
func filter(pkgs []*Package, keep func(*Package) bool) []*Package {
	out := make([]*Package, 0, len(pkgs))
	for _, p := range pkgs {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// PrereleaseExceptAllowed drops prerelease candidates unless a prerelease
// of the same id is installed. In update-all mode, one installed prerelease
// of any id allows prerelease candidates for every id.
func PrereleaseExceptAllowed(pkgs []*Package, installed []packaging.Identity, isUpdateAll bool) []*Package {
	allowed := packaging.NewIDSet()
	for _, p := range installed {
		if p.IsPrerelease() {
			allowed.Add(p.ID)
		}
	}
	if isUpdateAll && allowed.Len() > 0 {
		return filter(pkgs, func(*Package) bool { return true })
	}
	return filter(pkgs, func(p *Package) bool {
		return !p.IsPrerelease() || allowed.Has(p.ID)
	})
}

// PrereleaseForStableTargets drops prerelease candidates for ids that no
// prerelease install reaches. The allowed ids are the prerelease primary
// targets plus every id reachable through dependency edges from a
// prerelease package to install.
func PrereleaseForStableTargets(pkgs []*Package, targets, packagesToInstall []packaging.Identity) []*Package {
	allowed := packaging.NewIDSet()
	for _, t := range targets {
		if t.IsPrerelease() {
			allowed.Add(t.ID)
		}
	}

	byID := make(map[string][]*Package)
	for _, p := range pkgs {
		k := packaging.NormalizeID(p.ID)
		byID[k] = append(byID[k], p)
	}

	var queue []*Package
	visited := make(map[string]bool)
	push := func(p *Package) {
		if k := p.Identity.Key(); !visited[k] {
			visited[k] = true
			queue = append(queue, p)
		}
	}
	for _, want := range packagesToInstall {
		if !want.IsPrerelease() {
			continue
		}
		allowed.Add(want.ID)
		for _, p := range byID[packaging.NormalizeID(want.ID)] {
			if p.Identity.Equal(want) {
				push(p)
			}
		}
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range p.Dependencies {
			allowed.Add(d.ID)
			for _, c := range byID[packaging.NormalizeID(d.ID)] {
				if d.Range.Satisfies(c.Version) {
					push(c)
				}
			}
		}
	}

	return filter(pkgs, func(p *Package) bool {
		return !p.IsPrerelease() || allowed.Has(p.ID)
	})
}

// Downgrades drops candidates older than an installed version of the same id.
func Downgrades(pkgs []*Package, installed []packaging.Identity) []*Package {
	floor := make(map[string]*semver.Version)
	for _, p := range installed {
		if !p.HasVersion() {
			continue
		}
		k := packaging.NormalizeID(p.ID)
		if cur, ok := floor[k]; !ok || p.Version.GreaterThan(cur) {
			floor[k] = p.Version
		}
	}
	if len(floor) == 0 {
		return filter(pkgs, func(*Package) bool { return true })
	}
	return filter(pkgs, func(p *Package) bool {
		v, ok := floor[packaging.NormalizeID(p.ID)]
		return !ok || !p.HasVersion() || !p.Version.LessThan(v)
	})
}

// DisallowedVersions drops candidates outside the allowed range declared
// for their id. An id with several ranges must satisfy all of them.
func DisallowedVersions(pkgs []*Package, allowed []packaging.Dependency) []*Package {
	ranges := make(map[string][]packaging.VersionRange)
	for _, d := range allowed {
		k := packaging.NormalizeID(d.ID)
		ranges[k] = append(ranges[k], d.Range)
	}
	return filter(pkgs, func(p *Package) bool {
		for _, r := range ranges[packaging.NormalizeID(p.ID)] {
			if !r.Satisfies(p.Version) {
				return false
			}
		}
		return true
	})
}

// RemoveAllVersionsForIDExcept drops every candidate of keep's id except
// keep itself.
func RemoveAllVersionsForIDExcept(pkgs []*Package, keep packaging.Identity) []*Package {
	return filter(pkgs, func(p *Package) bool {
		return !p.SameID(keep.ID) || p.Identity.Equal(keep)
	})
}

// RemoveAllPrereleaseVersionsForID drops every prerelease candidate of id.
func RemoveAllPrereleaseVersionsForID(pkgs []*Package, id string) []*Package {
	return filter(pkgs, func(p *Package) bool {
		return !p.SameID(id) || !p.IsPrerelease()
	})
}

// RemoveAllVersionsLessThan drops candidates of floor's id older than floor.
func RemoveAllVersionsLessThan(pkgs []*Package, floor packaging.Identity) []*Package {
	if !floor.HasVersion() {
		return filter(pkgs, func(*Package) bool { return true })
	}
	return filter(pkgs, func(p *Package) bool {
		return !p.SameID(floor.ID) || packaging.CompareVersions(p.Version, floor.Version) >= 0
	})
}

// ByPrimaryTargets drops candidates of a versioned primary target's id
// whose version differs from the target's.
func ByPrimaryTargets(pkgs []*Package, targets []packaging.Identity) []*Package {
	pinned := make(map[string]packaging.Identity)
	for _, t := range targets {
		if t.HasVersion() {
			pinned[packaging.NormalizeID(t.ID)] = t
		}
	}
	return filter(pkgs, func(p *Package) bool {
		t, ok := pinned[packaging.NormalizeID(p.ID)]
		return !ok || p.Identity.Equal(t)
	})
}

// AllButHighest keeps only the highest version of id.
func AllButHighest(pkgs []*Package, id string) []*Package {
	var highest *semver.Version
	for _, p := range pkgs {
		if p.SameID(id) && packaging.CompareVersions(p.Version, highest) > 0 {
			highest = p.Version
		}
	}
	if highest == nil {
		return filter(pkgs, func(*Package) bool { return true })
	}
	return filter(pkgs, func(p *Package) bool {
		return !p.SameID(id) || (p.HasVersion() && p.Version.Equal(highest))
	})
}

// Unlisted drops unlisted candidates unless they equal one of keep
// (typically the installed packages and the versioned primary targets).
func Unlisted(pkgs []*Package, keep []packaging.Identity) []*Package {
	keys := make(map[string]bool, len(keep))
	for _, k := range keep {
		keys[k.Key()] = true
	}
	return filter(pkgs, func(p *Package) bool {
		return p.Listed || keys[p.Identity.Key()]
	})
}
