package logger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func countLines(buf *bytes.Buffer) int {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return 0
	}
	return len(strings.Split(s, "\n"))
}

func samplingLogger(buf *bytes.Buffer, cfg SamplingConfig) *slog.Logger {
	return slog.New(NewSamplingHandler(slog.NewJSONHandler(buf, nil), cfg))
}

func TestSamplingHandlerDisabledPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	log := samplingLogger(&buf, SamplingConfig{Enabled: false})

	for i := 0; i < 200; i++ {
		log.Info("request handled")
	}

	if got := countLines(&buf); got != 200 {
		t.Errorf("disabled sampling: want 200 records, got %d", got)
	}
}

func TestSamplingHandlerThreshold(t *testing.T) {
	var buf bytes.Buffer
	log := samplingLogger(&buf, SamplingConfig{
		Enabled:   true,
		Tick:      time.Minute,
		Threshold: 10,
		Rate:      0.0,
		ErrorRate: 1.0,
	})

	for i := 0; i < 100; i++ {
		log.Info("request handled")
	}

	if got := countLines(&buf); got != 10 {
		t.Errorf("want threshold of 10 records, got %d", got)
	}
}

func TestSamplingHandlerRate(t *testing.T) {
	var buf bytes.Buffer
	log := samplingLogger(&buf, SamplingConfig{
		Enabled:   true,
		Tick:      time.Minute,
		Threshold: 10,
		Rate:      0.5,
		ErrorRate: 1.0,
	})

	// 10 at threshold plus roughly half of the remaining 100.
	for i := 0; i < 110; i++ {
		log.Info("request handled")
	}

	if got := countLines(&buf); got < 55 || got > 65 {
		t.Errorf("want ~60 records at 50%% rate, got %d", got)
	}
}

func TestSamplingHandlerErrorRateExemptsWarnAndAbove(t *testing.T) {
	var buf bytes.Buffer
	log := samplingLogger(&buf, SamplingConfig{
		Enabled:   true,
		Tick:      time.Minute,
		Threshold: 5,
		Rate:      0.0,
		ErrorRate: 1.0,
	})

	for i := 0; i < 50; i++ {
		log.Info("cache miss")
	}
	for i := 0; i < 50; i++ {
		log.Warn("rate limiter unavailable")
	}
	for i := 0; i < 50; i++ {
		log.Error("database unreachable")
	}

	// 5 info records at threshold, all warn and error records kept.
	if got := countLines(&buf); got != 105 {
		t.Errorf("want 105 records, got %d", got)
	}
}

func TestSamplingHandlerCountsPerMessage(t *testing.T) {
	var buf bytes.Buffer
	log := samplingLogger(&buf, SamplingConfig{
		Enabled:   true,
		Tick:      time.Minute,
		Threshold: 5,
		Rate:      0.0,
		ErrorRate: 1.0,
	})

	for i := 0; i < 10; i++ {
		log.Info("scan enqueued")
	}
	for i := 0; i < 10; i++ {
		log.Info("report created")
	}

	if got := countLines(&buf); got != 10 {
		t.Errorf("want 5 records per message, got %d total", got)
	}
}

func TestSamplingHandlerTickResetsCounters(t *testing.T) {
	var buf bytes.Buffer
	log := samplingLogger(&buf, SamplingConfig{
		Enabled:   true,
		Tick:      50 * time.Millisecond,
		Threshold: 5,
		Rate:      0.0,
		ErrorRate: 1.0,
	})

	for i := 0; i < 10; i++ {
		log.Info("request handled")
	}

	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 10; i++ {
		log.Info("request handled")
	}

	if got := countLines(&buf); got != 10 {
		t.Errorf("want 5 records per tick, got %d total", got)
	}
}

func TestSamplingHandlerNeverSamplePrefixes(t *testing.T) {
	var buf bytes.Buffer
	log := samplingLogger(&buf, SamplingConfig{
		Enabled:             true,
		Tick:                time.Minute,
		Threshold:           5,
		Rate:                0.0,
		ErrorRate:           1.0,
		NeverSamplePrefixes: []string{"audit:"},
	})

	for i := 0; i < 20; i++ {
		log.Info("request handled")
	}
	for i := 0; i < 20; i++ {
		log.Info("audit: token refreshed")
	}

	// 5 sampled records plus all 20 audit records.
	if got := countLines(&buf); got != 25 {
		t.Errorf("want 25 records, got %d", got)
	}
}

func TestSamplingHandlerMaxCounterSize(t *testing.T) {
	var buf bytes.Buffer
	log := samplingLogger(&buf, SamplingConfig{
		Enabled:        true,
		Tick:           time.Minute,
		Threshold:      1,
		Rate:           0.0,
		ErrorRate:      1.0,
		MaxCounterSize: 10,
	})

	// First 10 unique messages occupy the counter table; the rest pass
	// through uncounted.
	for i := 0; i < 20; i++ {
		log.Info(fmt.Sprintf("unique message %d", i))
	}

	if got := countLines(&buf); got != 20 {
		t.Errorf("want 20 records past the counter cap, got %d", got)
	}
}

func TestSamplingHandlerOnDropped(t *testing.T) {
	var buf bytes.Buffer
	var dropped atomic.Int64
	log := samplingLogger(&buf, SamplingConfig{
		Enabled:   true,
		Tick:      time.Minute,
		Threshold: 5,
		Rate:      0.0,
		ErrorRate: 1.0,
		OnDropped: func(ctx context.Context, record slog.Record) {
			dropped.Add(1)
		},
	})

	for i := 0; i < 20; i++ {
		log.Info("request handled")
	}

	if got := dropped.Load(); got != 15 {
		t.Errorf("want 15 dropped records, got %d", got)
	}
}

func TestSamplingHandlerOnDroppedPanicIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	log := samplingLogger(&buf, SamplingConfig{
		Enabled:   true,
		Tick:      time.Minute,
		Threshold: 1,
		Rate:      0.0,
		ErrorRate: 1.0,
		OnDropped: func(ctx context.Context, record slog.Record) {
			panic("callback panic")
		},
	})

	for i := 0; i < 10; i++ {
		log.Info("request handled")
	}

	if got := countLines(&buf); got != 1 {
		t.Errorf("want 1 record, got %d", got)
	}
}

func TestSamplingHandlerConcurrent(t *testing.T) {
	var buf bytes.Buffer
	log := samplingLogger(&buf, SamplingConfig{
		Enabled:   true,
		Tick:      time.Minute,
		Threshold: 100,
		Rate:      0.1,
		ErrorRate: 1.0,
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				log.Info("concurrent message")
			}
		}()
	}
	wg.Wait()

	// 100 at threshold plus ~10% of the remaining 900.
	if got := countLines(&buf); got < 100 || got > 200 {
		t.Errorf("unexpected record count under concurrency: %d", got)
	}
}

func TestSamplingHandlerZeroValuesGetDefaults(t *testing.T) {
	h := NewSamplingHandler(slog.NewJSONHandler(&bytes.Buffer{}, nil), SamplingConfig{Enabled: true})

	sh := h.(*samplingHandler)
	if sh.config.Tick != DefaultSamplingTick {
		t.Errorf("Tick: want %v, got %v", DefaultSamplingTick, sh.config.Tick)
	}
	if sh.config.Threshold != DefaultSamplingThreshold {
		t.Errorf("Threshold: want %d, got %d", DefaultSamplingThreshold, sh.config.Threshold)
	}
	if sh.config.MaxCounterSize != DefaultSamplingMaxCounterSize {
		t.Errorf("MaxCounterSize: want %d, got %d", DefaultSamplingMaxCounterSize, sh.config.MaxCounterSize)
	}
}

func TestDroppedLogsCounter(t *testing.T) {
	counter := NewDroppedLogsCounter()

	for i := 0; i < 10; i++ {
		counter.Increment(context.Background(), slog.Record{})
	}
	if counter.Total() != 10 {
		t.Errorf("want 10, got %d", counter.Total())
	}

	if got := counter.Reset(); got != 10 {
		t.Errorf("Reset: want 10, got %d", got)
	}
	if counter.Total() != 0 {
		t.Errorf("want 0 after reset, got %d", counter.Total())
	}
}

func TestSamplingHandlerDroppedMetric(t *testing.T) {
	RegisterMetrics(nil)

	var buf bytes.Buffer
	before := GetDroppedTotal("info")

	log := samplingLogger(&buf, SamplingConfig{
		Enabled:       true,
		Tick:          time.Minute,
		Threshold:     1,
		Rate:          0.0,
		ErrorRate:     1.0,
		EnableMetrics: true,
	})

	for i := 0; i < 10; i++ {
		log.Info("metric drop probe")
	}

	if got := GetDroppedTotal("info") - before; got != 9 {
		t.Errorf("want 9 dropped records recorded, got %v", got)
	}
}

func BenchmarkSamplingHandler(b *testing.B) {
	log := samplingLogger(&bytes.Buffer{}, SamplingConfig{
		Enabled:   true,
		Tick:      time.Second,
		Threshold: 100,
		Rate:      0.1,
		ErrorRate: 1.0,
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Info("benchmark message", "iteration", i)
	}
}
