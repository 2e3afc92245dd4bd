// Package packaging defines the data model shared by every part of the gather
// engine: package identities, semantic versions, version ranges, target
// frameworks and the per-source dependency metadata records.
//
// # Identities
//
// An [Identity] is a package id plus an optional exact version. A nil version
// means "every available version of this id" and is how the gatherer asks a
// source for the full version list. Ids compare case-insensitively; versions
// compare semantically, so "1.0" and "1.0.0" are the same version and build
// metadata is ignored:
//
//	a := packaging.MustIdentity("Newtonsoft.Json", "13.0")
//	b := packaging.MustIdentity("newtonsoft.json", "13.0.0")
//	a.Equal(b) // true
//
// # Versions and Ranges
//
// Versions are [semver.Version] values from github.com/Masterminds/semver/v3.
// A [VersionRange] accepts three notations:
//
//	[1.0,2.0)      interval notation, inclusive/exclusive bounds
//	1.0            a bare version, meaning ">= 1.0"
//	>=1.0, <2.0    a Masterminds constraint expression (also ^1.2, ~1.4)
//
// The zero VersionRange matches every version.
//
// # Dependency Info
//
// [SourcePackageDependencyInfo] is what a package source returns: the
// identity, its direct dependencies for the requested [Framework], whether the
// version is listed, and the name of the source that produced it. Records are
// immutable once produced and are safe to share between goroutines.
package packaging
