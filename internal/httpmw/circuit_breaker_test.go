package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCircuitBreaker_PassesThroughSuccessfulRequests(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("test-route")
	handler := CircuitBreaker(cfg, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCircuitBreaker_TripsOpenAfterFailureRatioExceeded(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("test-route")
	cfg.MinRequests = 2
	cfg.FailureThreshold = 0.5
	cfg.Interval = time.Minute
	cfg.Timeout = time.Minute

	failing := CircuitBreaker(cfg, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	}

	rec := httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
