// Package pkg provides the core libraries for pkggather.
//
// # Overview
//
// pkggather collects every candidate version that an install or update of a
// set of target packages could choose from, across one or more package
// sources, and then prunes that set down by policy. The pkg directory is
// organized as:
//
//  1. [core] - Domain logic (identities and ranges, gathering, pruning)
//  2. [source] - Package sources (HTTP feeds, packages folders, in-memory)
//  3. [integrations] - The feed HTTP client with caching and retry
//  4. [cache] - Pluggable byte caches (file, memory, Redis, MongoDB)
//  5. [pipeline] - Orchestration (gather → prune, with result caching)
//  6. [render] - Candidate graph output (DOT, SVG)
//
// # Architecture
//
// The typical data flow:
//
//	Request (targets, installed packages, sources)
//	         ↓
//	    [core/gather] package (dependency closure across sources)
//	         ↓
//	    [core/prune] package (downgrades, prereleases, constraints)
//	         ↓
//	    Plan / DOT / SVG / JSON output
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/pkggather/pkg/core/gather"
//	    "github.com/matzehuels/pkggather/pkg/source"
//	    "github.com/matzehuels/pkggather/pkg/source/remote"
//	)
//
//	feed := remote.New(nil, "https://feed.example.com/v3", time.Hour)
//
//	gc := gather.NewContext()
//	gc.PrimaryTargetIDs = []string{"Newtonsoft.Json"}
//	gc.PrimarySources = []source.Source{feed}
//	gc.AllSources = gc.PrimarySources
//
//	out, err := gather.New(gather.Options{}).Gather(ctx, gc)
//	if err != nil {
//	    return err
//	}
//	for _, p := range out.Packages {
//	    fmt.Println(p)
//	}
//
// See [pipeline.Runner] for the combined gather and prune stages.
package pkg
