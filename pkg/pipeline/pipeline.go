// Package pipeline turns a gather request into an install or update plan.
//
// A plan is gathered candidates narrowed by a fixed sequence of prune
// passes. It is a candidate set for a resolver, not a solved graph.
//
// # Architecture
//
// The pipeline has two stages:
//
//  1. Gather: collect the dependency closure from the configured sources
//     ([gather.Gatherer.Gather]), cached under [cache.Keyer.GatherKey]
//  2. Prune: apply the passes for the requested [Action] ([Prune])
//
// Both the CLI and the HTTP API run plans through a [Runner] so caching and
// pruning behave the same everywhere.
//
// # Usage
//
//	runner := pipeline.NewRunner(gather.New(gather.Options{}), c, nil, logger)
//	plan, err := runner.Plan(ctx, pipeline.Request{
//	    Context: gc,
//	    Action:  pipeline.ActionInstall,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, p := range plan.Packages {
//	    fmt.Println(p)
//	}
package pipeline

import (
	"strings"
	"time"

	"github.com/matzehuels/pkggather/pkg/cache"
	"github.com/matzehuels/pkggather/pkg/core/gather"
	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/core/prune"
	"github.com/matzehuels/pkggather/pkg/errors"
	"github.com/matzehuels/pkggather/pkg/source"
)

// DefaultGatherTTL is how long gathered candidate sets stay cached.
const DefaultGatherTTL = time.Hour

// Action selects the prune policy applied to gathered candidates.
type Action string

const (
	ActionInstall Action = "install"
	ActionUpdate  Action = "update"
)

// ParseAction parses an action name. The empty string means install.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ActionInstall, nil
	case ActionInstall, ActionUpdate:
		return a, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidInput, "invalid action: %q (must be one of: install, update)", s)
	}
}

// Request describes one plan.
type Request struct {
	// Context is the gather input. It is not modified.
	Context *gather.Context `json:"-"`

	Action Action `json:"action,omitempty"`

	// IncludePrerelease admits prerelease candidates reachable from
	// prerelease targets. Without it, prereleases survive only for ids that
	// are already installed as a prerelease, or for exact prerelease targets.
	IncludePrerelease bool `json:"include_prerelease,omitempty"`

	// Allowed narrows ids to version ranges (NuGet's allowedVersions).
	Allowed []packaging.Dependency `json:"allowed,omitempty"`

	// Constraints pins version components of installed packages on update.
	Constraints prune.Constraints `json:"-"`

	// Refresh bypasses the gather cache but still stores the new result.
	Refresh bool `json:"refresh,omitempty"`
}

// Validate checks the request and fills in the default action.
func (r *Request) Validate() error {
	if r.Context == nil {
		return errors.New(errors.ErrCodeInvalidInput, "gather context is required")
	}
	a, err := ParseAction(string(r.Action))
	if err != nil {
		return err
	}
	r.Action = a
	return r.Context.Validate()
}

// Plan is the result of a pipeline run.
type Plan struct {
	Action   Action                                   `json:"action"`
	Packages []*packaging.SourcePackageDependencyInfo `json:"packages"`
	Stats    Stats                                    `json:"stats"`

	// CacheHit reports whether the gathered set came from the cache.
	CacheHit bool `json:"cache_hit"`
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Gathered    int                      `json:"gathered"`
	Kept        int                      `json:"kept"`
	Requests    int                      `json:"requests"`
	GatherTime  time.Duration            `json:"gather_time"`
	PruneTime   time.Duration            `json:"prune_time"`
	SourceTimes map[string]time.Duration `json:"source_times,omitempty"`
}

// KeyOpts returns the canonical cache description of a gather context.
// Source order is kept since it decides which source wins a duplicate.
// Sources implementing [source.Fingerprinter] are keyed by name and
// contents.
func KeyOpts(gc *gather.Context) cache.GatherKeyOpts {
	opts := cache.GatherKeyOpts{
		Framework:       gc.Framework.String(),
		AllowDowngrades: gc.AllowDowngrades,
		IsUpdateAll:     gc.IsUpdateAll,
	}
	for _, s := range gc.PrimarySources {
		opts.PrimarySources = append(opts.PrimarySources, sourceKey(s))
	}
	for _, s := range gc.AllSources {
		opts.AllSources = append(opts.AllSources, sourceKey(s))
	}
	if gc.PackagesFolder != nil {
		opts.PackagesFolder = sourceKey(gc.PackagesFolder)
	}
	for _, t := range gc.PrimaryTargets {
		opts.Targets = append(opts.Targets, t.Key())
	}
	for _, id := range gc.PrimaryTargetIDs {
		opts.TargetIDs = append(opts.TargetIDs, packaging.NormalizeID(id))
	}
	for _, p := range gc.InstalledPackages {
		opts.Installed = append(opts.Installed, p.Key())
	}
	return opts
}

func sourceKey(s source.Source) string {
	if f, ok := s.(source.Fingerprinter); ok {
		return s.Name() + "#" + f.Fingerprint()
	}
	return s.Name()
}
