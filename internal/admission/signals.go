package admission

import "runtime"

// workerPool is the narrow view of an adaptive worker pool that
// PoolPressureSignals wraps (matched structurally against
// internal/concurrency's *AdaptiveWorkerPool) so the sampler never imports
// the pool package directly. HeapLoadPercent reads runtime.MemStats
// against a configured budget — the teacher had no equivalent signal since its worker pool
// never fed an admission decision.
type workerPool interface {
	Utilization() float64
	PendingWorkDepth() int
}

type PoolPressureSignals struct {
	pool            workerPool
	heapBudgetBytes uint64
}

func NewPoolPressureSignals(pool workerPool, heapBudgetBytes uint64) *PoolPressureSignals {
	return &PoolPressureSignals{pool: pool, heapBudgetBytes: heapBudgetBytes}
}

func (p *PoolPressureSignals) HeapLoadPercent() float64 {
	if p.heapBudgetBytes == 0 {
		return 0
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / float64(p.heapBudgetBytes)
}

func (p *PoolPressureSignals) ThreadPoolUtilPercent() float64 {
	return p.pool.Utilization()
}

func (p *PoolPressureSignals) PendingWorkDepth() int {
	return p.pool.PendingWorkDepth()
}
