// Package gather computes the candidate set for a package install or update.
//
// Given a [Context] (target framework, sources, requested targets, and the
// packages already installed), [Gatherer.Gather] fetches dependency metadata
// from every source and expands the dependency closure until nothing new is
// discovered. The result is a deduplicated set of
// [packaging.SourcePackageDependencyInfo] records that a resolver can choose
// from. Narrowing that set is the job of the prune package; gathering never
// picks versions.
//
// # Algorithm
//
//  1. Every distinct source (by [source.Source.Name]) is initialized once,
//     concurrently. Any failure is fatal.
//  2. Primary targets are requested from every primary source. Their ids are
//     marked searched so no second all-versions fetch happens for them.
//  3. Installed packages are looked up in the packages folder first. Only
//     the ones not found there are requested from all sources.
//  4. Requests run on a bounded pool of workers, each under its own timeout.
//  5. After every batch of completions the orchestrator rebuilds the
//     candidate set and enqueues an all-versions request for each newly
//     discovered id. A given id is searched at most once per call.
//  6. The loop ends when the queue is empty and no worker is in flight.
//     Results are merged first-by-order and primary targets are validated.
//
// # Failures
//
// Requests are either required or ignorable. A required request (a primary
// target fetch) that fails aborts the call with SOURCE_FETCH_FAILED. An
// ignorable request (a discovered dependency, a fallback lookup) that fails
// contributes nothing. Cancelling ctx always aborts the call with CANCELLED,
// even when only ignorable requests are in flight. Gather never returns a
// partial result.
//
// # Concurrency
//
// Workers only call sources and send their result on a channel. All other
// state (queue, searched ids, results) is owned by the goroutine running
// Gather. Sources must be safe for concurrent use.
//
// [packaging.SourcePackageDependencyInfo]: github.com/matzehuels/pkggather/pkg/core/packaging.SourcePackageDependencyInfo
// [source.Source.Name]: github.com/matzehuels/pkggather/pkg/source.Source
package gather
