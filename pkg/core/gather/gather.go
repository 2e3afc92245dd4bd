package gather

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/errors"
	"github.com/matzehuels/pkggather/pkg/observability"
)

const (
	// DefaultMaxConcurrency is the number of requests in flight at once.
	DefaultMaxConcurrency = 16

	// DefaultRequestTimeout bounds every individual source call.
	DefaultRequestTimeout = time.Minute
)

// Options configures a [Gatherer].
type Options struct {
	// MaxConcurrency bounds in-flight requests. Zero means
	// [DefaultMaxConcurrency]; negative values are clamped to 1.
	MaxConcurrency int

	// RequestTimeout bounds each source call. Zero means
	// [DefaultRequestTimeout].
	RequestTimeout time.Duration

	// Logger receives debug records for swallowed failures and run stats.
	// Nil means log.Default().
	Logger *log.Logger
}

// WithDefaults returns a copy of o with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	switch {
	case opts.MaxConcurrency == 0:
		opts.MaxConcurrency = DefaultMaxConcurrency
	case opts.MaxConcurrency < 0:
		opts.MaxConcurrency = 1
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return opts
}

// Gatherer runs gathers. It holds only configuration, so one Gatherer may
// run any number of gathers concurrently.
type Gatherer struct {
	opts Options
}

// New creates a Gatherer.
func New(opts Options) *Gatherer {
	return &Gatherer{opts: opts.WithDefaults()}
}

// Options returns the effective options.
func (g *Gatherer) Options() Options { return g.opts }

// Outcome is the result of a successful gather.
type Outcome struct {
	// Packages is the deduplicated candidate set, in first-seen order.
	Packages []*packaging.SourcePackageDependencyInfo

	// SourceTimes is the total fetch time spent per source, for diagnostics.
	SourceTimes map[string]time.Duration

	// Requests is the number of source requests issued.
	Requests int
}

// Gather computes the candidate set for gc. See the package documentation
// for the algorithm and failure semantics.
//
// Errors carry one of these codes:
//   - INVALID_INPUT: gc failed validation
//   - SOURCE_INIT_FAILED: a source could not be initialized
//   - SOURCE_FETCH_FAILED: a required request failed; the cause is TIMEOUT,
//     NETWORK_ERROR, or the source's own error
//   - PRIMARY_TARGET_NOT_FOUND: a primary target id is missing from the
//     result and gc.IsUpdateAll is false
//   - CANCELLED: ctx was cancelled; the error also matches ctx.Err()
func (g *Gatherer) Gather(ctx context.Context, gc *Context) (*Outcome, error) {
	if err := gc.Validate(); err != nil {
		return nil, err
	}

	hooks := observability.Gather()
	start := time.Now()
	hooks.OnGatherStart(ctx, len(gc.PrimaryTargets)+len(gc.PrimaryTargetIDs), len(gc.distinctSources()))

	r := newRun(g.opts, gc)
	pkgs, err := r.execute(ctx)

	hooks.OnGatherComplete(ctx, len(pkgs), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	g.opts.Logger.Debug("gather complete",
		"candidates", len(pkgs),
		"requests", r.issued,
		"took", time.Since(start))

	return &Outcome{
		Packages:    pkgs,
		SourceTimes: r.times.snapshot(),
		Requests:    r.issued,
	}, nil
}

func cancelled(err error) error {
	return errors.Wrap(errors.ErrCodeCancelled, err, "gather cancelled")
}
