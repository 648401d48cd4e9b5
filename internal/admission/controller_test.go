package admission

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSignals struct {
	heap, threadpool float64
	depth            int
}

func (f fakeSignals) HeapLoadPercent() float64       { return f.heap }
func (f fakeSignals) ThreadPoolUtilPercent() float64 { return f.threadpool }
func (f fakeSignals) PendingWorkDepth() int          { return f.depth }

func TestMiddleware_AdmitsUnderThreshold(t *testing.T) {
	// Arrange
	sampler := NewSampler(fakeSignals{heap: 0.1, threadpool: 0.1, depth: 1}, time.Millisecond, zap.NewNop())
	sampler.sampleOnce(DefaultThresholds())
	called := false
	handler := Middleware(sampler, DefaultThresholds(), zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	// Act
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	// Assert
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_RejectsOverHeapThreshold(t *testing.T) {
	// Arrange
	thresholds := DefaultThresholds()
	sampler := NewSampler(fakeSignals{heap: 0.99, threadpool: 0.1, depth: 1}, time.Millisecond, zap.NewNop())
	sampler.sampleOnce(thresholds)
	called := false
	handler := Middleware(sampler, thresholds, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	// Act
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	// Assert
	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestThresholds_ExceededReasons(t *testing.T) {
	// Arrange
	thresholds := DefaultThresholds()

	// Act + Assert
	require.Equal(t, "heap_pressure", thresholds.reason(&PressureSample{HeapLoadPercent: 0.9}))
	require.Equal(t, "threadpool_saturation", thresholds.reason(&PressureSample{ThreadPoolUtilPercent: 0.95}))
	require.Equal(t, "queue_depth", thresholds.reason(&PressureSample{PendingWorkDepth: 600}))
}
