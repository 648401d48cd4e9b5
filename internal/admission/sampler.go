// Package admission implements the pressure-sampling adaptive Admission
// Controller (spec component C4): a background sampler that periodically
// reads load signals into a lock-free cell, and an HTTP middleware that
// admits or rejects each request against the latest sample.
package admission

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"prescription-order-service/internal/ports"
)

// PressureSample is the immutable snapshot of system load the sampler
// publishes every CheckIntervalMs (spec section 4.4).
type PressureSample struct {
	HeapLoadPercent       float64
	ThreadPoolUtilPercent float64
	PendingWorkDepth      int
	SampledAt             time.Time
}

// Sampler runs a single background task computing a PressureSample on a
// ticker and publishing it through an atomic.Pointer, mirroring the
// circuit breaker's atomic.Value state pattern (internal/resilience) —
// readers never take a lock.
type Sampler struct {
	signals       ports.PressureSignals
	checkInterval time.Duration
	logger        *zap.Logger

	latest atomic.Pointer[PressureSample]

	underPressure atomic.Bool
}

func NewSampler(signals ports.PressureSignals, checkInterval time.Duration, logger *zap.Logger) *Sampler {
	s := &Sampler{signals: signals, checkInterval: checkInterval, logger: logger}
	s.latest.Store(&PressureSample{})
	return s
}

// Run blocks, sampling every CheckInterval until ctx is cancelled. Call
// it from its own goroutine; graceful shutdown stops it by cancelling
// ctx (spec section 4.5 step 3, "background samplers ... stop accepting
// work").
func (s *Sampler) Run(ctx context.Context, thresholds Thresholds) {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce(thresholds)
		}
	}
}

func (s *Sampler) sampleOnce(thresholds Thresholds) {
	sample := &PressureSample{
		HeapLoadPercent:       s.signals.HeapLoadPercent(),
		ThreadPoolUtilPercent: s.signals.ThreadPoolUtilPercent(),
		PendingWorkDepth:      s.signals.PendingWorkDepth(),
		SampledAt:             time.Now(),
	}
	s.latest.Store(sample)

	wasUnder := s.underPressure.Load()
	isUnder := thresholds.exceeded(sample)

	if isUnder != wasUnder && s.underPressure.CompareAndSwap(wasUnder, isUnder) {
		if isUnder {
			s.logger.Warn("entering under-pressure state",
				zap.Float64("heap_load_pct", sample.HeapLoadPercent),
				zap.Float64("threadpool_util_pct", sample.ThreadPoolUtilPercent),
				zap.Int("pending_work_depth", sample.PendingWorkDepth),
			)
		} else {
			s.logger.Info("exiting under-pressure state")
		}
	}
}

// Latest returns the most recent sample, read lock-free.
func (s *Sampler) Latest() *PressureSample { return s.latest.Load() }
