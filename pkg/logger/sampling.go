package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// SamplingConfig controls per-message log sampling. Records are keyed
// by level+message; within each Tick the first Threshold occurrences
// pass through, later ones are kept at Rate (ErrorRate for warn and
// above).
type SamplingConfig struct {
	Enabled bool

	// Tick is the counter reset interval. Default 1s.
	Tick time.Duration

	// Threshold is how many records per key pass unsampled each tick.
	// Default 100.
	Threshold uint64

	// Rate keeps this fraction of records past the threshold [0,1].
	Rate float64

	// ErrorRate applies instead of Rate at warn level and above.
	ErrorRate float64

	// MaxCounterSize caps the number of tracked keys; past it records
	// pass through uncounted. Default 10000.
	MaxCounterSize int

	// NeverSamplePrefixes lists message prefixes exempt from sampling,
	// for audit and security records.
	NeverSamplePrefixes []string

	// OnDropped is invoked for each dropped record. Panics in the
	// callback are swallowed.
	OnDropped func(ctx context.Context, record slog.Record)

	// EnableMetrics exports processed/dropped counters to Prometheus.
	EnableMetrics bool
}

const (
	DefaultSamplingTick           = time.Second
	DefaultSamplingThreshold      = 100
	DefaultSamplingRate           = 0.1
	DefaultSamplingErrorRate      = 1.0
	DefaultSamplingMaxCounterSize = 10000
)

// DefaultSamplingConfig returns production defaults with sampling off.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Tick:           DefaultSamplingTick,
		Threshold:      DefaultSamplingThreshold,
		Rate:           DefaultSamplingRate,
		ErrorRate:      DefaultSamplingErrorRate,
		MaxCounterSize: DefaultSamplingMaxCounterSize,
	}
}

type samplingHandler struct {
	handler     slog.Handler
	config      SamplingConfig
	counters    sync.Map // key string -> *recordCounter
	counterSize atomic.Int64
	lastReset   atomic.Int64
}

type recordCounter struct {
	n atomic.Uint64
}

// NewSamplingHandler wraps h with sampling per cfg. With sampling
// disabled h is returned unchanged.
func NewSamplingHandler(h slog.Handler, cfg SamplingConfig) slog.Handler {
	if !cfg.Enabled {
		return h
	}

	if cfg.Tick == 0 {
		cfg.Tick = DefaultSamplingTick
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultSamplingThreshold
	}
	if cfg.MaxCounterSize == 0 {
		cfg.MaxCounterSize = DefaultSamplingMaxCounterSize
	}

	sh := &samplingHandler{
		handler: h,
		config:  cfg,
	}
	sh.lastReset.Store(time.Now().UnixNano())
	return sh
}

func (h *samplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *samplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.config.EnableMetrics {
		MetricsOnProcessed(r.Level)
	}

	if h.exempt(r.Message) {
		return h.handler.Handle(ctx, r)
	}

	h.maybeResetCounters()

	// Key cap keeps memory bounded under unique-message floods; once
	// hit, records pass through uncounted until the next reset.
	if h.counterSize.Load() >= int64(h.config.MaxCounterSize) {
		return h.handler.Handle(ctx, r)
	}

	key := r.Level.String() + ":" + r.Message
	val, loaded := h.counters.LoadOrStore(key, &recordCounter{})
	if !loaded {
		h.counterSize.Add(1)
	}
	count := val.(*recordCounter).n.Add(1)

	if count <= h.config.Threshold {
		return h.handler.Handle(ctx, r)
	}

	rate := h.config.Rate
	if r.Level >= slog.LevelWarn {
		rate = h.config.ErrorRate
	}
	if keepSampled(count, rate) {
		return h.handler.Handle(ctx, r)
	}

	h.dropped(ctx, r)
	return nil
}

func (h *samplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &samplingHandler{
		handler: h.handler.WithAttrs(attrs),
		config:  h.config,
	}
}

func (h *samplingHandler) WithGroup(name string) slog.Handler {
	return &samplingHandler{
		handler: h.handler.WithGroup(name),
		config:  h.config,
	}
}

func (h *samplingHandler) exempt(message string) bool {
	for _, prefix := range h.config.NeverSamplePrefixes {
		if strings.HasPrefix(message, prefix) {
			return true
		}
	}
	return false
}

func (h *samplingHandler) dropped(ctx context.Context, r slog.Record) {
	if h.config.EnableMetrics {
		logsDroppedTotal.WithLabelValues(levelToString(r.Level)).Inc()
	}
	if h.config.OnDropped == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	h.config.OnDropped(ctx, r)
}

// keepSampled keeps every Nth record for rate 1/N, so the decision is
// deterministic for a given count.
func keepSampled(count uint64, rate float64) bool {
	if rate >= 1.0 {
		return true
	}
	if rate <= 0.0 {
		return false
	}
	return count%uint64(1.0/rate) == 0
}

func (h *samplingHandler) maybeResetCounters() {
	now := time.Now().UnixNano()
	last := h.lastReset.Load()
	if now-last < h.config.Tick.Nanoseconds() {
		return
	}
	if !h.lastReset.CompareAndSwap(last, now) {
		return
	}

	h.counters.Range(func(key, _ any) bool {
		h.counters.Delete(key)
		return true
	})
	h.counterSize.Store(0)

	if h.config.EnableMetrics {
		SetSamplingCounterSize(0)
	}
}

// DroppedLogsCounter counts dropped records; its Increment method fits
// SamplingConfig.OnDropped.
type DroppedLogsCounter struct {
	total atomic.Uint64
}

func NewDroppedLogsCounter() *DroppedLogsCounter {
	return &DroppedLogsCounter{}
}

func (c *DroppedLogsCounter) Increment(ctx context.Context, record slog.Record) {
	c.total.Add(1)
}

func (c *DroppedLogsCounter) Total() uint64 {
	return c.total.Load()
}

func (c *DroppedLogsCounter) Reset() uint64 {
	return c.total.Swap(0)
}
