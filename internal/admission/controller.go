package admission

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"prescription-order-service/internal/problem"
)

// Thresholds configures the admit/reject decision (spec section 4.4).
type Thresholds struct {
	MemoryThresholdPercent     float64
	ThreadPoolThresholdPercent float64
	PendingWorkItemsThreshold  int
	RetryAfter                 time.Duration
}

func (t Thresholds) exceeded(s *PressureSample) bool {
	return s.HeapLoadPercent >= t.MemoryThresholdPercent ||
		s.ThreadPoolUtilPercent >= t.ThreadPoolThresholdPercent ||
		s.PendingWorkDepth >= t.PendingWorkItemsThreshold
}

func (t Thresholds) reason(s *PressureSample) string {
	switch {
	case s.HeapLoadPercent >= t.MemoryThresholdPercent:
		return "heap_pressure"
	case s.ThreadPoolUtilPercent >= t.ThreadPoolThresholdPercent:
		return "threadpool_saturation"
	case s.PendingWorkDepth >= t.PendingWorkItemsThreshold:
		return "queue_depth"
	default:
		return ""
	}
}

// DefaultThresholds returns the spec's named defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MemoryThresholdPercent:     0.85,
		ThreadPoolThresholdPercent: 0.90,
		PendingWorkItemsThreshold:  500,
		RetryAfter:                 10 * time.Second,
	}
}

// Middleware reads the sampler's latest snapshot lock-free per request
// and rejects with Retry-After plus a reason code when any threshold is
// exceeded (spec section 4.4's decision logic; Retry-After convention
// following ipiton-alert-history-service's token-bucket limiter, reused
// here even though the admission mechanism itself — sampled pressure,
// not token bucket — differs).
func Middleware(sampler *Sampler, thresholds Thresholds, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sample := sampler.Latest()
			if thresholds.exceeded(sample) {
				reason := thresholds.reason(sample)
				f := problem.NewRejected("ADMISSION_REJECTED", "server is under pressure, try again shortly", thresholds.RetryAfter).
					WithOperation(reason)
				problem.Write(w, r, f, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
