package gather

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/core/prune"
	"github.com/matzehuels/pkggather/pkg/errors"
	"github.com/matzehuels/pkggather/pkg/observability"
	"github.com/matzehuels/pkggather/pkg/source"
)

// run is the state of a single Gather call. Everything except times is
// touched only by the goroutine running execute.
type run struct {
	opts   Options
	gc     *Context
	logger *log.Logger

	primary []*SourceResource
	all     []*SourceResource
	folder  *SourceResource

	queue    []Request
	inFlight int
	done     chan completion
	results  []Result
	searched packaging.IDSet
	order    int
	issued   int

	installed map[string]*installedLookup
	times     *sourceTimes
}

// completion is what a worker reports back.
type completion struct {
	req  Request
	pkgs []*packaging.SourcePackageDependencyInfo
	err  error
}

// installedLookup tracks the remote fallback requests for one installed
// package that the packages folder could not serve.
type installedLookup struct {
	pending int
	found   bool
	err     error
}

func newRun(opts Options, gc *Context) *run {
	return &run{
		opts:      opts,
		gc:        gc,
		logger:    opts.Logger,
		done:      make(chan completion, opts.MaxConcurrency),
		searched:  packaging.NewIDSet(),
		installed: make(map[string]*installedLookup),
		times:     newSourceTimes(),
	}
}

func (r *run) execute(ctx context.Context) ([]*packaging.SourcePackageDependencyInfo, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := r.initResources(runCtx); err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, err
	}
	if err := r.seed(runCtx); err != nil {
		return nil, err
	}

	if err := r.loop(ctx, runCtx); err != nil {
		cancel()
		r.drain()
		return nil, err
	}

	pkgs := r.candidates()
	if !r.gc.IsUpdateAll {
		if err := r.validateTargets(pkgs); err != nil {
			return nil, err
		}
	}
	return pkgs, nil
}

// initResources resolves one capability per distinct source name.
func (r *run) initResources(ctx context.Context) error {
	distinct := r.gc.distinctSources()
	seen := make(map[string]int, len(distinct))
	for i, s := range distinct {
		seen[s.Name()] = i
	}

	resources := make([]*SourceResource, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrency)
	for i, s := range distinct {
		g.Go(func() error {
			res, err := s.DependencyInfo(gctx)
			if err != nil {
				return errors.Wrap(errors.ErrCodeSourceInit, err, "initialize source %s", s.Name())
			}
			if res == nil {
				return errors.New(errors.ErrCodeSourceInit, "source %s has no dependency info", s.Name())
			}
			resources[i] = &SourceResource{Source: s, Resource: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	byName := func(s source.Source) *SourceResource { return resources[seen[s.Name()]] }
	primaryNames := make(map[string]bool)
	for _, s := range r.gc.PrimarySources {
		if !primaryNames[s.Name()] {
			primaryNames[s.Name()] = true
			r.primary = append(r.primary, byName(s))
		}
	}
	if r.gc.PackagesFolder != nil {
		r.folder = byName(r.gc.PackagesFolder)
	}
	// resources is already in primary, folder, all order and deduplicated.
	r.all = resources
	return nil
}

// seed enqueues the primary targets and resolves installed packages.
func (r *run) seed(ctx context.Context) error {
	for _, t := range r.gc.PrimaryTargets {
		for _, src := range r.primary {
			r.enqueue(Request{Source: src, Package: t})
		}
		r.searched.Add(t.ID)
	}
	for _, id := range r.gc.PrimaryTargetIDs {
		if !r.searched.Add(id) {
			continue
		}
		for _, src := range r.primary {
			r.enqueue(Request{Source: src, Package: packaging.NewIdentity(id, nil)})
		}
	}

	targets := r.gc.targetIDs()
	tracked := make(map[string]bool)
	for _, p := range r.gc.InstalledPackages {
		if targets.Has(p.ID) || tracked[p.Key()] {
			continue
		}
		tracked[p.Key()] = true
		found, err := r.resolveLocal(ctx, p)
		if err != nil {
			return err
		}
		if found != nil {
			r.results = append(r.results, Result{
				Request:  Request{Package: p, Order: r.nextOrder(), IsInstalledPackage: true},
				Packages: []*packaging.SourcePackageDependencyInfo{found},
			})
			continue
		}
		lookup := &installedLookup{}
		r.installed[p.Key()] = lookup
		for _, src := range r.all {
			lookup.pending++
			r.enqueue(Request{Source: src, Package: p, IgnoreExceptions: true, IsInstalledPackage: true})
		}
	}
	return nil
}

// resolveLocal looks p up in the packages folder. A failing folder lookup
// is treated as not found so the remote fallback still runs; cancellation
// is not.
func (r *run) resolveLocal(ctx context.Context, p packaging.Identity) (*packaging.SourcePackageDependencyInfo, error) {
	if r.folder == nil || !p.HasVersion() {
		return nil, nil
	}
	rctx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	info, err := r.folder.Resource.ResolvePackage(rctx, p, r.gc.Framework)
	elapsed := time.Since(start)
	r.times.add(r.folder.Name(), elapsed)
	observability.Gather().OnFetch(ctx, r.folder.Name(), p.ID, true, elapsed, err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		r.logger.Debug("packages folder lookup failed", "package", p, "err", err)
		return nil, nil
	}
	return info, nil
}

func (r *run) nextOrder() int {
	o := r.order
	r.order++
	return o
}

func (r *run) enqueue(req Request) {
	req.Order = r.nextOrder()
	r.queue = append(r.queue, req)
}

// loop drives the worker pool and closure expansion until the queue is
// empty and no worker is in flight.
func (r *run) loop(ctx, runCtx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}

		r.expand()
		r.fill(runCtx)
		if r.inFlight == 0 {
			return nil
		}

		select {
		case c := <-r.done:
			if err := r.complete(ctx, c); err != nil {
				return err
			}
		case <-ctx.Done():
			return cancelled(ctx.Err())
		}
		for more := true; more; {
			select {
			case c := <-r.done:
				if err := r.complete(ctx, c); err != nil {
					return err
				}
			default:
				more = false
			}
		}
	}
}

// fill starts queued requests, in FIFO order, while capacity remains.
func (r *run) fill(ctx context.Context) {
	for len(r.queue) > 0 && r.inFlight < r.opts.MaxConcurrency {
		req := r.queue[0]
		r.queue = r.queue[1:]
		r.inFlight++
		r.issued++
		go r.work(ctx, req)
	}
}

// work performs one source call. The done channel is buffered to
// MaxConcurrency, so the send never blocks.
func (r *run) work(ctx context.Context, req Request) {
	pkgs, err := r.fetch(ctx, req)
	r.done <- completion{req: req, pkgs: pkgs, err: err}
}

func (r *run) fetch(ctx context.Context, req Request) ([]*packaging.SourcePackageDependencyInfo, error) {
	rctx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	var (
		pkgs []*packaging.SourcePackageDependencyInfo
		err  error
	)
	exact := req.Package.HasVersion()
	if exact {
		var p *packaging.SourcePackageDependencyInfo
		p, err = req.Source.Resource.ResolvePackage(rctx, req.Package, r.gc.Framework)
		if p != nil {
			pkgs = []*packaging.SourcePackageDependencyInfo{p}
		}
	} else {
		pkgs, err = req.Source.Resource.ResolvePackages(rctx, req.Package.ID, r.gc.Framework)
	}
	elapsed := time.Since(start)
	r.times.add(req.Source.Name(), elapsed)
	observability.Gather().OnFetch(ctx, req.Source.Name(), req.Package.ID, exact, elapsed, err)

	if err == nil {
		return pkgs, nil
	}
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case stderrors.Is(rctx.Err(), context.DeadlineExceeded):
		err = errors.Wrap(errors.ErrCodeTimeout, err, "request timed out after %s", r.opts.RequestTimeout)
	case errors.GetCode(err) == "":
		err = errors.Wrap(errors.ErrCodeNetwork, err, "source call failed")
	}
	return nil, errors.Wrap(errors.ErrCodeSourceFetch, err, "fetch %s from %s", req.Package, req.Source.Name())
}

// complete folds one worker result into the run state.
func (r *run) complete(ctx context.Context, c completion) error {
	r.inFlight--

	if c.err != nil && ctx.Err() != nil {
		return cancelled(ctx.Err())
	}
	if c.err != nil && !c.req.IgnoreExceptions {
		return c.err
	}
	if c.err != nil {
		r.logger.Debug("ignoring failed request",
			"package", c.req.Package,
			"source", c.req.sourceName(),
			"err", c.err)
	}

	if c.req.IsInstalledPackage {
		if err := r.trackInstalled(c); err != nil {
			return err
		}
	}
	r.results = append(r.results, Result{Request: c.req, Packages: c.pkgs})
	return nil
}

// trackInstalled fails the gather when an installed package was found
// nowhere and at least one of its lookups failed.
func (r *run) trackInstalled(c completion) error {
	lookup, ok := r.installed[c.req.Package.Key()]
	if !ok {
		return nil
	}
	lookup.pending--
	if len(c.pkgs) > 0 {
		lookup.found = true
	}
	if c.err != nil && lookup.err == nil {
		lookup.err = c.err
	}
	if lookup.pending == 0 && !lookup.found && lookup.err != nil {
		return errors.Wrap(errors.ErrCodeSourceFetch, lookup.err, "installed package %s could not be resolved", c.req.Package)
	}
	return nil
}

// drain waits for in-flight workers after the run context was cancelled.
func (r *run) drain() {
	for ; r.inFlight > 0; r.inFlight-- {
		<-r.done
	}
}

// candidates merges all results, lowest order first, keeping the first
// occurrence of each identity.
func (r *run) candidates() []*packaging.SourcePackageDependencyInfo {
	ordered := make([]Result, len(r.results))
	copy(ordered, r.results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Request.Order < ordered[j].Request.Order
	})

	seen := make(map[string]bool)
	var out []*packaging.SourcePackageDependencyInfo
	for _, res := range ordered {
		for _, p := range res.Packages {
			if p == nil {
				continue
			}
			k := p.Identity.Key()
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, p)
		}
	}
	if !r.gc.AllowDowngrades {
		out = prune.Downgrades(out, r.gc.InstalledPackages)
	}
	return out
}

// expand enqueues an all-versions request against all sources for every
// id in the closure that has not been searched yet.
func (r *run) expand() {
	for _, id := range r.closureIDs(r.candidates()) {
		if !r.searched.Add(id) {
			continue
		}
		for _, src := range r.all {
			r.enqueue(Request{Source: src, Package: packaging.NewIdentity(id, nil), IgnoreExceptions: true})
		}
	}
}

// closureIDs collects, in discovery order:
//   - dependency ids of candidates whose own id was searched
//   - ids of candidates that depend on a searched id
//   - installed ids with no candidate
//   - dependency ids with no candidate
func (r *run) closureIDs(pkgs []*packaging.SourcePackageDependencyInfo) []string {
	present := packaging.NewIDSet()
	for _, p := range pkgs {
		present.Add(p.ID)
	}

	var ids []string
	seen := packaging.NewIDSet()
	add := func(id string) {
		if seen.Add(id) {
			ids = append(ids, id)
		}
	}

	for _, p := range pkgs {
		if r.searched.Has(p.ID) {
			for _, d := range p.Dependencies {
				add(d.ID)
			}
		}
	}
	for _, p := range pkgs {
		for _, d := range p.Dependencies {
			if r.searched.Has(d.ID) {
				add(p.ID)
				break
			}
		}
	}
	for _, p := range r.gc.InstalledPackages {
		if !present.Has(p.ID) {
			add(p.ID)
		}
	}
	for _, p := range pkgs {
		for _, d := range p.Dependencies {
			if !present.Has(d.ID) {
				add(d.ID)
			}
		}
	}
	return ids
}

// validateTargets checks that every primary target id has a candidate.
func (r *run) validateTargets(pkgs []*packaging.SourcePackageDependencyInfo) error {
	present := packaging.NewIDSet()
	for _, p := range pkgs {
		present.Add(p.ID)
	}
	var missing []string
	check := packaging.NewIDSet()
	for _, t := range r.gc.PrimaryTargets {
		if check.Add(t.ID) && !present.Has(t.ID) {
			missing = append(missing, t.String())
		}
	}
	for _, id := range r.gc.PrimaryTargetIDs {
		if check.Add(id) && !present.Has(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrCodePrimaryTargetNotFound, "primary targets not found: %v", missing)
	}
	return nil
}
