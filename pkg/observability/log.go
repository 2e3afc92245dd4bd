package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements [GatherHooks], [PipelineHooks], and [CacheHooks] by
// writing debug-level records to a logger. The CLI installs it for --verbose.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks creates hooks writing to logger, or to log.Default() if nil.
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHooks{logger: logger}
}

func (h *LogHooks) OnGatherStart(_ context.Context, targets, sources int) {
	h.logger.Debug("gather started", "targets", targets, "sources", sources)
}

func (h *LogHooks) OnFetch(_ context.Context, source, id string, exact bool, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("fetch failed", "source", source, "id", id, "exact", exact, "took", d, "err", err)
		return
	}
	h.logger.Debug("fetched", "source", source, "id", id, "exact", exact, "took", d)
}

func (h *LogHooks) OnGatherComplete(_ context.Context, count int, d time.Duration, err error) {
	h.logger.Debug("gather complete", "candidates", count, "took", d, "err", err)
}

func (h *LogHooks) OnPlanStart(_ context.Context, action string, targets int) {
	h.logger.Debug("plan started", "action", action, "targets", targets)
}

func (h *LogHooks) OnPlanComplete(_ context.Context, action string, kept int, cached bool, d time.Duration, err error) {
	h.logger.Debug("plan complete", "action", action, "kept", kept, "cached", cached, "took", d, "err", err)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

var (
	_ GatherHooks   = (*LogHooks)(nil)
	_ PipelineHooks = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
)
