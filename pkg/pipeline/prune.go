package pipeline

import (
	"github.com/matzehuels/pkggather/pkg/core/gather"
	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/core/prune"
)

// Prune narrows gathered candidates with the passes for req.Action.
//
// Install applies, in order: downgrades (only when downgrades are not
// allowed), prerelease gating, allowed versions, unlisted. Update applies
// prerelease gating, downgrades, primary target pins, then the update
// constraints. The input slice is not modified.
func Prune(pkgs []*packaging.SourcePackageDependencyInfo, req Request) []*packaging.SourcePackageDependencyInfo {
	gc := req.Context
	out := pkgs

	switch req.Action {
	case ActionUpdate:
		out = prerelease(out, gc, req.IncludePrerelease)
		if !gc.AllowDowngrades {
			out = prune.Downgrades(out, gc.InstalledPackages)
		}
		out = prune.ByPrimaryTargets(out, gc.PrimaryTargets)
		out = prune.ByUpdateConstraints(out, gc.InstalledPackages, req.Constraints)
	default:
		if !gc.AllowDowngrades {
			out = prune.Downgrades(out, gc.InstalledPackages)
		}
		out = prerelease(out, gc, req.IncludePrerelease)
		out = prune.DisallowedVersions(out, req.Allowed)
		out = prune.Unlisted(out, keepListed(gc))
	}
	return out
}

func prerelease(pkgs []*packaging.SourcePackageDependencyInfo, gc *gather.Context, include bool) []*packaging.SourcePackageDependencyInfo {
	if include {
		return prune.PrereleaseForStableTargets(pkgs, gc.PrimaryTargets, gc.PrimaryTargets)
	}
	allowed := append([]packaging.Identity(nil), gc.InstalledPackages...)
	for _, t := range gc.PrimaryTargets {
		if t.IsPrerelease() {
			allowed = append(allowed, t)
		}
	}
	return prune.PrereleaseExceptAllowed(pkgs, allowed, gc.IsUpdateAll)
}

// keepListed is the set of identities kept even when unlisted: what is
// installed and what was asked for by exact version.
func keepListed(gc *gather.Context) []packaging.Identity {
	keep := append([]packaging.Identity(nil), gc.InstalledPackages...)
	for _, t := range gc.PrimaryTargets {
		if t.HasVersion() {
			keep = append(keep, t)
		}
	}
	return keep
}
