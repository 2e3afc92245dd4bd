package gather

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/source"
	"github.com/matzehuels/pkggather/pkg/source/memory"
)

// fakeSource wraps an in-memory source with failure and latency injection
// and records every call.
type fakeSource struct {
	*memory.Source

	initErr error
	latency func(id string) time.Duration
	fail    func(id string, exact bool) error
	hang    bool

	initCalls   int32
	inFlight    int32
	maxInFlight int32

	mu    sync.Mutex
	calls []fakeCall
}

type fakeCall struct {
	id    string
	exact bool
}

func newFake(name string) *fakeSource {
	return &fakeSource{Source: memory.New(name)}
}

func (f *fakeSource) add(id, version string, deps ...string) *fakeSource {
	ds := make([]packaging.Dependency, len(deps))
	for i, d := range deps {
		ds[i] = packaging.Dependency{ID: d}
	}
	f.Source.Add(packaging.MustIdentity(id, version), ds...)
	return f
}

func (f *fakeSource) DependencyInfo(ctx context.Context) (source.DependencyInfoResource, error) {
	atomic.AddInt32(&f.initCalls, 1)
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f, nil
}

func (f *fakeSource) ResolvePackage(ctx context.Context, id packaging.Identity, fw packaging.Framework) (*packaging.SourcePackageDependencyInfo, error) {
	if err := f.enter(ctx, id.ID, true); err != nil {
		return nil, err
	}
	defer f.leave()
	return f.Source.ResolvePackage(ctx, id, fw)
}

func (f *fakeSource) ResolvePackages(ctx context.Context, id string, fw packaging.Framework) ([]*packaging.SourcePackageDependencyInfo, error) {
	if err := f.enter(ctx, id, false); err != nil {
		return nil, err
	}
	defer f.leave()
	return f.Source.ResolvePackages(ctx, id, fw)
}

func (f *fakeSource) enter(ctx context.Context, id string, exact bool) error {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		m := atomic.LoadInt32(&f.maxInFlight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInFlight, m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{id: packaging.NormalizeID(id), exact: exact})
	f.mu.Unlock()

	if f.hang {
		<-ctx.Done()
		atomic.AddInt32(&f.inFlight, -1)
		return ctx.Err()
	}
	if f.latency != nil {
		select {
		case <-time.After(f.latency(id)):
		case <-ctx.Done():
			atomic.AddInt32(&f.inFlight, -1)
			return ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(id, exact); err != nil {
			atomic.AddInt32(&f.inFlight, -1)
			return err
		}
	}
	return nil
}

func (f *fakeSource) leave() { atomic.AddInt32(&f.inFlight, -1) }

// count returns how often id was requested, exactly or for all versions.
func (f *fakeSource) count(id string, exact bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.id == packaging.NormalizeID(id) && c.exact == exact {
			n++
		}
	}
	return n
}

func (f *fakeSource) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var _ source.Source = (*fakeSource)(nil)
