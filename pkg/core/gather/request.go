package gather

import (
	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/source"
)

// SourceResource pairs a source with its initialized dependency-info
// capability. There is one per distinct source name in a gather; it is
// read-only once created.
type SourceResource struct {
	Source   source.Source
	Resource source.DependencyInfoResource
}

// Name returns the name of the underlying source.
func (s *SourceResource) Name() string { return s.Source.Name() }

// Request is one unit of gather work.
type Request struct {
	// Source is nil for installed packages resolved from the packages folder
	// during seeding.
	Source *SourceResource

	// Package is the identity to fetch. Without a version, every version
	// of the id is fetched.
	Package packaging.Identity

	// IgnoreExceptions makes a failed fetch yield nothing instead of
	// aborting the gather.
	IgnoreExceptions bool

	// Order is assigned at enqueue time, increases monotonically, and is
	// never reused within a gather. Lower orders win merges.
	Order int

	// IsInstalledPackage marks lookups of already-installed packages.
	IsInstalledPackage bool
}

// sourceName is safe for requests without a source.
func (r Request) sourceName() string {
	if r.Source == nil {
		return "(packages folder)"
	}
	return r.Source.Name()
}

// Result is the outcome of one completed [Request].
type Result struct {
	Request  Request
	Packages []*packaging.SourcePackageDependencyInfo
}
