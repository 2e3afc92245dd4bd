package gather

import (
	"context"
	stderrors "errors"
	"fmt"
	"hash/fnv"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/errors"
	"github.com/matzehuels/pkggather/pkg/observability"
	"github.com/matzehuels/pkggather/pkg/source"
)

func names(pkgs []*packaging.SourcePackageDependencyInfo) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.String()
	}
	return out
}

func contains(pkgs []*packaging.SourcePackageDependencyInfo, id, version string) bool {
	want := packaging.MustIdentity(id, version)
	for _, p := range pkgs {
		if p.Identity.Equal(want) {
			return true
		}
	}
	return false
}

func find(pkgs []*packaging.SourcePackageDependencyInfo, id, version string) *packaging.SourcePackageDependencyInfo {
	want := packaging.MustIdentity(id, version)
	for _, p := range pkgs {
		if p.Identity.Equal(want) {
			return p
		}
	}
	return nil
}

func newContext(primary []source.Source, all []source.Source, targetIDs ...string) *Context {
	gc := NewContext()
	gc.PrimarySources = primary
	gc.AllSources = all
	gc.PrimaryTargetIDs = targetIDs
	return gc
}

func sources(s ...*fakeSource) []source.Source {
	out := make([]source.Source, len(s))
	for i, f := range s {
		out[i] = f
	}
	return out
}

func testGatherer() *Gatherer {
	return New(Options{RequestTimeout: 5 * time.Second})
}

func TestOptionsWithDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantMax int
		wantTO  time.Duration
	}{
		{"zero", Options{}, DefaultMaxConcurrency, DefaultRequestTimeout},
		{"negative clamps to one", Options{MaxConcurrency: -3}, 1, DefaultRequestTimeout},
		{"custom", Options{MaxConcurrency: 4, RequestTimeout: time.Second}, 4, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.opts.WithDefaults()
			if got.MaxConcurrency != tt.wantMax {
				t.Errorf("MaxConcurrency = %d, want %d", got.MaxConcurrency, tt.wantMax)
			}
			if got.RequestTimeout != tt.wantTO {
				t.Errorf("RequestTimeout = %v, want %v", got.RequestTimeout, tt.wantTO)
			}
			if got.Logger == nil {
				t.Error("Logger should not be nil after WithDefaults")
			}
		})
	}
}

func TestContextValidate(t *testing.T) {
	src := newFake("s")
	tests := []struct {
		name string
		gc   *Context
		code errors.Code
	}{
		{"nil", nil, errors.ErrCodeInvalidInput},
		{"no targets", newContext(sources(src), nil), errors.ErrCodeInvalidInput},
		{"no primary sources", newContext(nil, sources(src), "A"), errors.ErrCodeInvalidInput},
		{"bad target id", newContext(sources(src), nil, "../etc"), errors.ErrCodeInvalidPackage},
		{"ok", newContext(sources(src), nil, "A"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.gc.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
	if !NewContext().AllowDowngrades {
		t.Error("NewContext should allow downgrades")
	}
}

func TestGatherDiamondFetchesSharedDependencyOnce(t *testing.T) {
	primary := newFake("primary").
		add("A", "1.0.0", "B", "C").
		add("B", "1.0.0", "D").
		add("C", "1.0.0", "D").
		add("D", "1.0.0").
		add("D", "2.0.0")
	secondary := newFake("secondary").add("D", "3.0.0")

	out, err := testGatherer().Gather(context.Background(), newContext(sources(primary), sources(primary, secondary), "A"))
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	for _, s := range []*fakeSource{primary, secondary} {
		if n := s.count("D", false); n != 1 {
			t.Errorf("%s: D all-versions fetched %d times, want 1", s.Name(), n)
		}
	}
	for _, want := range []string{"A 1.0.0", "B 1.0.0", "C 1.0.0", "D 1.0.0", "D 2.0.0", "D 3.0.0"} {
		found := false
		for _, n := range names(out.Packages) {
			found = found || n == want
		}
		if !found {
			t.Errorf("missing %s in %v", want, names(out.Packages))
		}
	}
}

func TestGatherCycleTerminates(t *testing.T) {
	src := newFake("s").add("A", "1.0.0", "B").add("B", "1.0.0", "A")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := testGatherer().Gather(ctx, newContext(sources(src), sources(src), "A"))
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if got := names(out.Packages); !reflect.DeepEqual(got, []string{"A 1.0.0", "B 1.0.0"}) {
		t.Fatalf("packages = %v", got)
	}
	if !out.Packages[0].DependsOn("B") || !out.Packages[1].DependsOn("A") {
		t.Error("mutual dependency edges should be intact")
	}
}

func TestGatherPrimaryFailureIsFatal(t *testing.T) {
	boom := stderrors.New("connection reset")
	s1 := newFake("s1").add("A", "1.0.0")
	s1.fail = func(string, bool) error { return boom }
	s2 := newFake("s2")
	s2.fail = func(string, bool) error { return boom }

	_, err := testGatherer().Gather(context.Background(), newContext(sources(s1, s2), nil, "A"))
	if !errors.Is(err, errors.ErrCodeSourceFetch) {
		t.Fatalf("error = %v, want SOURCE_FETCH_FAILED", err)
	}
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("uncoded source errors should be wrapped as NETWORK_ERROR: %v", err)
	}
	if !stderrors.Is(err, boom) {
		t.Errorf("error should wrap the source error: %v", err)
	}
}

func TestGatherIgnorableFailureIsSwallowed(t *testing.T) {
	primary := newFake("primary").add("A", "1.0.0", "B").add("B", "1.0.0")
	flaky := newFake("flaky")
	flaky.fail = func(string, bool) error { return stderrors.New("503") }

	out, err := testGatherer().Gather(context.Background(), newContext(sources(primary), sources(primary, flaky), "A"))
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if !contains(out.Packages, "B", "1.0.0") {
		t.Errorf("B should still be gathered from the healthy source: %v", names(out.Packages))
	}
	if flaky.count("B", false) != 1 {
		t.Error("flaky source should have been asked for B")
	}
}

func TestGatherIdempotent(t *testing.T) {
	build := func() *Context {
		src := newFake("s").
			add("A", "1.0.0", "B", "C").
			add("A", "1.1.0", "B").
			add("B", "1.0.0", "D").
			add("C", "2.0.0").
			add("D", "1.0.0")
		return newContext(sources(src), sources(src), "A")
	}
	g := testGatherer()

	first, err := g.Gather(context.Background(), build())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := g.Gather(context.Background(), build())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(names(first.Packages), names(again.Packages)) {
			t.Fatalf("run %d differs:\n%v\n%v", i, names(first.Packages), names(again.Packages))
		}
	}
}

func TestGatherDowngrades(t *testing.T) {
	build := func(allow bool) *Context {
		src := newFake("s").
			add("A", "1.0.0", "P").
			add("P", "1.0.0").
			add("P", "2.0.0").
			add("P", "3.0.0")
		gc := newContext(sources(src), sources(src), "A")
		gc.InstalledPackages = []packaging.Identity{packaging.MustIdentity("P", "2.0.0")}
		gc.AllowDowngrades = allow
		return gc
	}

	out, err := testGatherer().Gather(context.Background(), build(false))
	if err != nil {
		t.Fatal(err)
	}
	if contains(out.Packages, "P", "1.0.0") {
		t.Errorf("P 1.0.0 should be stripped: %v", names(out.Packages))
	}
	if !contains(out.Packages, "P", "2.0.0") || !contains(out.Packages, "P", "3.0.0") {
		t.Errorf("P 2.0.0 and 3.0.0 should remain: %v", names(out.Packages))
	}

	out, err = testGatherer().Gather(context.Background(), build(true))
	if err != nil {
		t.Fatal(err)
	}
	if !contains(out.Packages, "P", "1.0.0") {
		t.Errorf("P 1.0.0 should be retained when downgrades are allowed: %v", names(out.Packages))
	}
}

func TestGatherPrimaryTargetValidation(t *testing.T) {
	src := newFake("s").add("A", "1.0.0")

	out, err := testGatherer().Gather(context.Background(), newContext(sources(src), nil, "A"))
	if err != nil || !contains(out.Packages, "A", "1.0.0") {
		t.Fatalf("A should be gathered: %v, %v", out, err)
	}

	gc := newContext(sources(src), nil, "A", "Missing")
	_, err = testGatherer().Gather(context.Background(), gc)
	if !errors.Is(err, errors.ErrCodePrimaryTargetNotFound) {
		t.Errorf("error = %v, want PRIMARY_TARGET_NOT_FOUND", err)
	}

	gc = newContext(sources(src), nil, "A", "Missing")
	gc.IsUpdateAll = true
	out, err = testGatherer().Gather(context.Background(), gc)
	if err != nil {
		t.Errorf("update-all should tolerate missing targets: %v", err)
	}
	if out != nil && !contains(out.Packages, "A", "1.0.0") {
		t.Error("A should still be gathered in update-all mode")
	}
}

func TestGatherExactTarget(t *testing.T) {
	src := newFake("s").add("A", "1.0.0", "B").add("A", "2.0.0").add("B", "1.0.0")
	gc := NewContext()
	gc.PrimarySources = sources(src)
	gc.AllSources = sources(src)
	gc.PrimaryTargets = []packaging.Identity{packaging.MustIdentity("A", "1.0.0")}

	out, err := testGatherer().Gather(context.Background(), gc)
	if err != nil {
		t.Fatal(err)
	}
	if got := names(out.Packages); !reflect.DeepEqual(got, []string{"A 1.0.0", "B 1.0.0"}) {
		t.Errorf("packages = %v", got)
	}
	if src.count("A", false) != 0 {
		t.Error("an exact target must not trigger an all-versions fetch for its id")
	}
}

func TestGatherFirstByOrderWins(t *testing.T) {
	primary := newFake("primary").add("A", "1.0.0", "B").add("B", "1.0.0")
	mirror := newFake("mirror").add("B", "1.0.0")
	mirror.latency = func(string) time.Duration { return 0 }
	primary.latency = func(id string) time.Duration {
		if id == "B" {
			return 20 * time.Millisecond
		}
		return 0
	}

	out, err := testGatherer().Gather(context.Background(), newContext(sources(primary), sources(mirror), "A"))
	if err != nil {
		t.Fatal(err)
	}
	b := find(out.Packages, "B", "1.0.0")
	if b == nil || b.Source != "primary" {
		t.Errorf("B should come from the earlier-ordered source even though it finished last: %+v", b)
	}
}

func TestGatherMaxConcurrencyOne(t *testing.T) {
	build := func(jitter bool) (*fakeSource, *Context) {
		src := newFake("s").
			add("A", "1.0.0", "B", "C", "D").
			add("B", "1.0.0", "E").
			add("C", "1.0.0", "E").
			add("D", "1.0.0").
			add("E", "1.0.0")
		if jitter {
			src.latency = func(id string) time.Duration {
				h := fnv.New32a()
				h.Write([]byte(id))
				return time.Duration(h.Sum32()%5) * time.Millisecond
			}
		}
		mirror := newFake("mirror").add("E", "2.0.0")
		return src, newContext(sources(src), sources(src, mirror), "A")
	}

	seqSrc, seqCtx := build(false)
	seq, err := New(Options{MaxConcurrency: 1}).Gather(context.Background(), seqCtx)
	if err != nil {
		t.Fatal(err)
	}
	if m := atomic.LoadInt32(&seqSrc.maxInFlight); m != 1 {
		t.Errorf("max in flight = %d, want 1", m)
	}

	_, parCtx := build(true)
	par, err := New(Options{MaxConcurrency: 16}).Gather(context.Background(), parCtx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names(seq.Packages), names(par.Packages)) {
		t.Errorf("concurrent merge differs from sequential:\n%v\n%v", names(seq.Packages), names(par.Packages))
	}
}

func TestGatherSourceInitFailure(t *testing.T) {
	primary := newFake("primary").add("A", "1.0.0")
	broken := newFake("broken")
	broken.initErr = stderrors.New("no such feed")

	_, err := testGatherer().Gather(context.Background(), newContext(sources(primary), sources(broken), "A"))
	if !errors.Is(err, errors.ErrCodeSourceInit) {
		t.Fatalf("error = %v, want SOURCE_INIT_FAILED", err)
	}
	if primary.totalCalls() != 0 {
		t.Error("no fetches should start when a source fails to initialize")
	}
}

func TestGatherSourceResourcesAreShared(t *testing.T) {
	src := newFake("s").add("A", "1.0.0", "B").add("B", "1.0.0")
	gc := newContext(sources(src), sources(src, src), "A")
	gc.PackagesFolder = src

	if _, err := testGatherer().Gather(context.Background(), gc); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&src.initCalls); n != 1 {
		t.Errorf("DependencyInfo called %d times, want 1", n)
	}
	if n := src.count("B", false); n != 1 {
		t.Errorf("B fetched %d times, want 1", n)
	}
}

func TestGatherInstalledResolvedLocally(t *testing.T) {
	folder := newFake("folder").add("Inst", "1.0.0", "Dep")
	remote := newFake("remote").add("A", "1.0.0").add("Inst", "1.0.0", "Dep").add("Dep", "1.0.0")

	gc := newContext(sources(remote), sources(remote), "A")
	gc.PackagesFolder = folder
	gc.InstalledPackages = []packaging.Identity{packaging.MustIdentity("Inst", "1.0.0")}

	out, err := testGatherer().Gather(context.Background(), gc)
	if err != nil {
		t.Fatal(err)
	}
	inst := find(out.Packages, "Inst", "1.0.0")
	if inst == nil || inst.Source != "folder" {
		t.Fatalf("Inst should come from the packages folder: %+v", inst)
	}
	if remote.count("Inst", true) != 0 {
		t.Error("a locally resolved installed package must not be fetched remotely")
	}
	if !contains(out.Packages, "Dep", "1.0.0") {
		t.Errorf("dependencies of installed packages should be gathered: %v", names(out.Packages))
	}
}

func TestGatherInstalledFallsBackToAllSources(t *testing.T) {
	folder := newFake("folder")
	remote := newFake("remote").add("A", "1.0.0").add("Inst", "1.0.0")

	gc := newContext(sources(remote), sources(remote), "A")
	gc.PackagesFolder = folder
	gc.InstalledPackages = []packaging.Identity{packaging.MustIdentity("Inst", "1.0.0")}

	out, err := testGatherer().Gather(context.Background(), gc)
	if err != nil {
		t.Fatal(err)
	}
	if remote.count("Inst", true) != 1 {
		t.Error("installed package missing locally should be fetched from all sources")
	}
	if !contains(out.Packages, "Inst", "1.0.0") {
		t.Errorf("Inst should be gathered: %v", names(out.Packages))
	}
}

func TestGatherInstalledLookupFailureIsFatal(t *testing.T) {
	remote := newFake("remote").add("A", "1.0.0")
	remote.fail = func(id string, exact bool) error {
		if id == "Inst" {
			return stderrors.New("unreachable")
		}
		return nil
	}

	gc := newContext(sources(remote), sources(remote), "A")
	gc.PackagesFolder = newFake("folder")
	gc.InstalledPackages = []packaging.Identity{packaging.MustIdentity("Inst", "1.0.0")}

	_, err := testGatherer().Gather(context.Background(), gc)
	if !errors.Is(err, errors.ErrCodeSourceFetch) {
		t.Errorf("error = %v, want SOURCE_FETCH_FAILED", err)
	}
}

func TestGatherInstalledDuplicatesLookedUpOnce(t *testing.T) {
	flaky := newFake("flaky")
	flaky.fail = func(id string, exact bool) error {
		if packaging.NormalizeID(id) == "inst" {
			return stderrors.New("unreachable")
		}
		return nil
	}
	mirror := newFake("mirror").add("A", "1.0.0").add("Inst", "1.0.0")

	gc := newContext(sources(mirror), sources(flaky, mirror), "A")
	gc.InstalledPackages = []packaging.Identity{
		packaging.MustIdentity("Inst", "1.0.0"),
		packaging.MustIdentity("inst", "1.0.0"),
	}

	out, err := testGatherer().Gather(context.Background(), gc)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if !contains(out.Packages, "Inst", "1.0.0") {
		t.Errorf("Inst 1.0.0 missing from %v", out.Packages)
	}
	for _, f := range []*fakeSource{flaky, mirror} {
		if n := f.count("Inst", true); n != 1 {
			t.Errorf("%s asked for Inst %d times, want 1", f.Name(), n)
		}
	}
}

func TestGatherRequestTimeout(t *testing.T) {
	hung := newFake("hung")
	hung.hang = true

	g := New(Options{RequestTimeout: 20 * time.Millisecond})
	_, err := g.Gather(context.Background(), newContext(sources(hung), nil, "A"))
	if !errors.Is(err, errors.ErrCodeSourceFetch) || !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("error = %v, want SOURCE_FETCH_FAILED caused by TIMEOUT", err)
	}
}

func TestGatherIgnorableTimeoutIsSwallowed(t *testing.T) {
	primary := newFake("primary").add("A", "1.0.0", "B").add("B", "1.0.0")
	hung := newFake("hung")
	hung.hang = true

	g := New(Options{RequestTimeout: 20 * time.Millisecond})
	out, err := g.Gather(context.Background(), newContext(sources(primary), sources(hung), "A"))
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if !contains(out.Packages, "B", "1.0.0") {
		t.Errorf("B should be gathered: %v", names(out.Packages))
	}
}

func TestGatherCancellation(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Context
	}{
		{
			name: "required request in flight",
			build: func() *Context {
				hung := newFake("hung")
				hung.hang = true
				return newContext(sources(hung), nil, "A")
			},
		},
		{
			name: "only ignorable request in flight",
			build: func() *Context {
				primary := newFake("primary").add("A", "1.0.0", "B")
				hung := newFake("hung")
				hung.hang = true
				return newContext(sources(primary), sources(hung), "A")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				time.Sleep(30 * time.Millisecond)
				cancel()
			}()

			_, err := New(Options{RequestTimeout: time.Minute}).Gather(ctx, tt.build())
			if !errors.Is(err, errors.ErrCodeCancelled) {
				t.Fatalf("error = %v, want CANCELLED", err)
			}
			if !stderrors.Is(err, context.Canceled) {
				t.Errorf("error should match context.Canceled: %v", err)
			}
		})
	}
}

func TestGatherAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := newFake("s").add("A", "1.0.0")
	_, err := testGatherer().Gather(ctx, newContext(sources(src), nil, "A"))
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestGatherSourceTimesAndRequests(t *testing.T) {
	src := newFake("s").add("A", "1.0.0", "B").add("B", "1.0.0")
	src.latency = func(string) time.Duration { return time.Millisecond }

	out, err := testGatherer().Gather(context.Background(), newContext(sources(src), sources(src), "A"))
	if err != nil {
		t.Fatal(err)
	}
	if out.SourceTimes["s"] <= 0 {
		t.Errorf("SourceTimes = %v, want time recorded for s", out.SourceTimes)
	}
	if out.Requests != 2 {
		t.Errorf("Requests = %d, want 2", out.Requests)
	}
}

type countingHooks struct {
	observability.NoopGatherHooks
	starts, fetches, completes int32
	targets, sources           int
}

func (h *countingHooks) OnGatherStart(_ context.Context, targets, sources int) {
	atomic.AddInt32(&h.starts, 1)
	h.targets, h.sources = targets, sources
}
func (h *countingHooks) OnFetch(context.Context, string, string, bool, time.Duration, error) {
	atomic.AddInt32(&h.fetches, 1)
}
func (h *countingHooks) OnGatherComplete(context.Context, int, time.Duration, error) {
	atomic.AddInt32(&h.completes, 1)
}

func TestGatherEmitsHooks(t *testing.T) {
	h := &countingHooks{}
	observability.SetGatherHooks(h)
	defer observability.Reset()

	src := newFake("s").add("A", "1.0.0", "B").add("B", "1.0.0")
	if _, err := testGatherer().Gather(context.Background(), newContext(sources(src), sources(src), "A")); err != nil {
		t.Fatal(err)
	}
	if h.starts != 1 || h.completes != 1 || h.fetches != 2 {
		t.Errorf("hooks: starts=%d fetches=%d completes=%d", h.starts, h.fetches, h.completes)
	}
	if h.targets != 1 || h.sources != 1 {
		t.Errorf("OnGatherStart(targets=%d, sources=%d), want 1 and 1", h.targets, h.sources)
	}
}

func TestGatherStartCountsDistinctSources(t *testing.T) {
	h := &countingHooks{}
	observability.SetGatherHooks(h)
	defer observability.Reset()

	primary := newFake("primary").add("A", "1.0.0")
	mirror := newFake("mirror")
	gc := newContext(sources(primary), sources(mirror, primary), "A")
	gc.PackagesFolder = newFake("folder")
	if _, err := testGatherer().Gather(context.Background(), gc); err != nil {
		t.Fatal(err)
	}
	if h.sources != 3 {
		t.Errorf("sources = %d, want 3", h.sources)
	}
}

func ExampleGatherer_Gather() {
	src := newFake("feed").
		add("App", "1.0.0", "Lib").
		add("Lib", "1.0.0").
		add("Lib", "1.1.0")

	gc := NewContext()
	gc.PrimarySources = sources(src)
	gc.AllSources = sources(src)
	gc.PrimaryTargetIDs = []string{"App"}

	out, err := New(Options{}).Gather(context.Background(), gc)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, p := range out.Packages {
		fmt.Println(p)
	}
	// Output:
	// App 1.0.0
	// Lib 1.0.0
	// Lib 1.1.0
}
