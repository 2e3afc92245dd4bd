package packaging

import (
	"cmp"
	"slices"
)

// Dependency is a direct dependency edge: a package id and the accepted versions.
type Dependency struct {
	ID    string       `json:"id" toml:"id"`
	Range VersionRange `json:"range,omitempty" toml:"range"`
}

// String renders "id range", or just "id" for an unbounded dependency.
func (d Dependency) String() string {
	if d.Range.IsAll() {
		return d.ID
	}
	return d.ID + " " + d.Range.String()
}

// SourcePackageDependencyInfo is a package identity together with its direct
// dependencies for one target framework and the source that produced it.
// Values are immutable once a source returns them.
type SourcePackageDependencyInfo struct {
	Identity
	Dependencies []Dependency `json:"dependencies,omitempty"`
	Listed       bool         `json:"listed"`
	Source       string       `json:"source,omitempty"`
}

// NewDependencyInfo builds a listed record for id produced by source.
func NewDependencyInfo(id Identity, source string, deps ...Dependency) *SourcePackageDependencyInfo {
	return &SourcePackageDependencyInfo{
		Identity:     id,
		Dependencies: deps,
		Listed:       true,
		Source:       source,
	}
}

// DependsOn reports whether the package lists id as a direct dependency.
func (p *SourcePackageDependencyInfo) DependsOn(id string) bool {
	for _, d := range p.Dependencies {
		if d.SameID(id) {
			return true
		}
	}
	return false
}

// SameID reports whether the dependency targets the given id, ignoring case.
func (d Dependency) SameID(id string) bool {
	return NormalizeID(d.ID) == NormalizeID(id)
}

// SortInfos sorts packages by id (case-insensitive) and then by ascending version.
func SortInfos(pkgs []*SourcePackageDependencyInfo) {
	slices.SortStableFunc(pkgs, func(a, b *SourcePackageDependencyInfo) int {
		return cmp.Or(
			cmp.Compare(NormalizeID(a.ID), NormalizeID(b.ID)),
			CompareVersions(a.Version, b.Version),
		)
	})
}

// Identities returns the identities of pkgs in order.
func Identities(pkgs []*SourcePackageDependencyInfo) []Identity {
	out := make([]Identity, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.Identity
	}
	return out
}
