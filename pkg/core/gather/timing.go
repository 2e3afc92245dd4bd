package gather

import (
	"maps"
	"sync"
	"time"
)

// sourceTimes accumulates elapsed fetch time per source. Workers write it
// concurrently; nothing reads it for control flow.
type sourceTimes struct {
	mu sync.Mutex
	m  map[string]time.Duration
}

func newSourceTimes() *sourceTimes {
	return &sourceTimes{m: make(map[string]time.Duration)}
}

func (t *sourceTimes) add(source string, d time.Duration) {
	t.mu.Lock()
	t.m[source] += d
	t.mu.Unlock()
}

func (t *sourceTimes) snapshot() map[string]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.m)
}
